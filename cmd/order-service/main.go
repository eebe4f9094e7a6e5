package main

import (
	"log"

	"shopflow/internal/orderapp"
)

func main() {
	if err := orderapp.Run(); err != nil {
		log.Fatalf("order service failed: %v", err)
	}
}
