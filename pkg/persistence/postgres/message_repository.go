package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

// MessageRepository handles message-related database operations.
type MessageRepository struct {
	db *sql.DB
}

func (r *MessageRepository) SaveMessage(ctx context.Context, message *models.Message) error {
	metadataJSON, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	query := `
		INSERT INTO messages (
			id, business_id, phone_number, email, body, conversation_id,
			is_first_in_conversation, response_to_message_id, is_opted_out,
			opted_out_at, retry_attempt, provider_message_id, received_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			is_opted_out = EXCLUDED.is_opted_out,
			opted_out_at = EXCLUDED.opted_out_at,
			retry_attempt = EXCLUDED.retry_attempt
	`

	_, err = r.db.ExecContext(ctx, query,
		message.ID,
		message.BusinessID,
		nullString(message.PhoneNumber),
		nullString(message.Email),
		message.Body,
		nullString(message.ConversationID),
		message.IsFirstInConversation,
		message.ResponseToMessageID,
		message.IsOptedOut,
		message.OptedOutAt,
		message.RetryAttempt,
		nullString(message.ProviderMessageID),
		message.ReceivedAt,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (r *MessageRepository) MessageByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, selectMessage+" WHERE id = $1", id)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrMessageNotFound
		}

		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return message, nil
}

func (r *MessageRepository) LatestByContact(ctx context.Context, businessID, contact string, since time.Time) (*models.Message, error) {
	query := selectMessage + `
		WHERE business_id = $1
		  AND (phone_number = $2 OR email = $2)
		  AND received_at >= $3
		ORDER BY received_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, businessID, contact, since)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrMessageNotFound
		}

		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return message, nil
}

func (r *MessageRepository) MessagesByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query := selectMessage + " WHERE conversation_id = $1 ORDER BY received_at ASC"

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message

	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

const selectMessage = `
	SELECT id, business_id, phone_number, email, body, conversation_id,
	       is_first_in_conversation, response_to_message_id, is_opted_out,
	       opted_out_at, retry_attempt, provider_message_id, received_at, metadata
	FROM messages
`

func scanMessage(scanner interface{ Scan(dest ...any) error }) (*models.Message, error) {
	var (
		message                                             models.Message
		phone, email, conversationID, providerID, responseTo sql.NullString
		optedOutAt                                          sql.NullTime
		metadataJSON                                        []byte
	)

	err := scanner.Scan(
		&message.ID,
		&message.BusinessID,
		&phone,
		&email,
		&message.Body,
		&conversationID,
		&message.IsFirstInConversation,
		&responseTo,
		&message.IsOptedOut,
		&optedOutAt,
		&message.RetryAttempt,
		&providerID,
		&message.ReceivedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	message.PhoneNumber = phone.String
	message.Email = email.String
	message.ConversationID = conversationID.String
	message.ProviderMessageID = providerID.String

	if responseTo.Valid {
		message.ResponseToMessageID = &responseTo.String
	}

	if optedOutAt.Valid {
		message.OptedOutAt = &optedOutAt.Time
	}

	if metadataJSON != nil {
		err = json.Unmarshal(metadataJSON, &message.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}
	}

	return &message, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
