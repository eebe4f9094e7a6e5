package main

import (
	"log"

	"shopflow/internal/paymentapp"
)

func main() {
	if err := paymentapp.Run(); err != nil {
		log.Fatalf("payment service failed: %v", err)
	}
}
