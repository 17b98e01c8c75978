// Package conversation assigns inbound messages to conversations, linking
// each message to the prior one within the inactivity window.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

// DefaultInactivityWindow bounds a conversation: a message arriving later
// than this after the previous one starts a new conversation.
const DefaultInactivityWindow = 24 * time.Hour

type Threader struct {
	messages persistence.MessageRepository
	locker   protocol.Locker
	window   time.Duration
	logger   *slog.Logger
}

func NewThreader(messages persistence.MessageRepository, locker protocol.Locker, window time.Duration, logger *slog.Logger) *Threader {
	if window <= 0 {
		window = DefaultInactivityWindow
	}

	return &Threader{
		messages: messages,
		locker:   locker,
		window:   window,
		logger:   logger,
	}
}

// Thread assigns the message a conversation and persists it. The
// lookup-then-link runs under the per-(business, contact) lock so two
// concurrent messages from the same burst cannot both become first in
// conversation.
//
// threadHint optionally names an existing conversation; it is honored only
// when it resolves to a conversation of the same business and contact.
func (t *Threader) Thread(ctx context.Context, message *models.Message, threadHint string) error {
	release, err := t.locker.Acquire(ctx, message.BusinessID+":"+message.Contact())
	if err != nil {
		return fmt.Errorf("failed to acquire contact lock: %w", err)
	}
	defer release()

	return t.thread(ctx, message, threadHint)
}

// ThreadLocked is Thread for callers already holding the contact lock.
func (t *Threader) ThreadLocked(ctx context.Context, message *models.Message, threadHint string) error {
	return t.thread(ctx, message, threadHint)
}

func (t *Threader) thread(ctx context.Context, message *models.Message, threadHint string) error {
	if threadHint != "" {
		ok, err := t.resolveHint(ctx, message, threadHint)
		if err != nil {
			return err
		}

		if ok {
			return t.save(ctx, message)
		}
	}

	since := message.ReceivedAt.Add(-t.window)

	previous, err := t.messages.LatestByContact(ctx, message.BusinessID, message.Contact(), since)
	if err != nil {
		if !persistence.IsMessageNotFound(err) {
			return fmt.Errorf("failed to look up prior message: %w", err)
		}

		t.mintConversation(message)

		return t.save(ctx, message)
	}

	previousID := previous.ID
	message.ConversationID = previous.ConversationID
	message.ResponseToMessageID = &previousID
	message.IsFirstInConversation = false

	return t.save(ctx, message)
}

func (t *Threader) resolveHint(ctx context.Context, message *models.Message, threadHint string) (bool, error) {
	existing, err := t.messages.MessagesByConversation(ctx, threadHint)
	if err != nil {
		return false, fmt.Errorf("failed to resolve thread hint: %w", err)
	}

	if len(existing) == 0 {
		return false, nil
	}

	last := existing[len(existing)-1]
	if last.BusinessID != message.BusinessID || last.Contact() != message.Contact() {
		t.logger.WarnContext(ctx, "Ignoring thread hint for different contact",
			"conversation_id", threadHint,
			"business_id", message.BusinessID,
		)

		return false, nil
	}

	lastID := last.ID
	message.ConversationID = threadHint
	message.ResponseToMessageID = &lastID
	message.IsFirstInConversation = false

	return true, nil
}

func (t *Threader) mintConversation(message *models.Message) {
	message.ConversationID = "conv-" + uuid.New().String()
	message.IsFirstInConversation = true
	message.ResponseToMessageID = nil
}

func (t *Threader) save(ctx context.Context, message *models.Message) error {
	err := t.messages.SaveMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to save threaded message: %w", err)
	}

	return nil
}
