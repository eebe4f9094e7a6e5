package inbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Mark records that consumer has applied the message, inside the caller's
// transaction. It reports false when a record for (messageID, consumer)
// already exists, meaning the delivery is a duplicate and the caller must
// skip its side effects and just acknowledge.
//
// Running the check, the domain effect and the record insert in one
// transaction is what turns at-least-once delivery into effectively-once
// application.
func Mark(ctx context.Context, tx pgx.Tx, messageID, consumer string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_messages (message_id, consumer, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (message_id, consumer) DO NOTHING`,
		messageID, consumer,
	)
	if err != nil {
		return false, fmt.Errorf("insert inbox: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
