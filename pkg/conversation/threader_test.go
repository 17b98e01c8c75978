package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/lock"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence/memory"
)

func testThreader(t *testing.T, window time.Duration) (*Threader, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewThreader(store.Messages(), lock.NewMemoryLocker(), window, logger), store
}

func message(id string, receivedAt time.Time) *models.Message {
	return &models.Message{
		ID:          id,
		BusinessID:  "biz-1",
		PhoneNumber: "+15555550100",
		Body:        "hello",
		ReceivedAt:  receivedAt,
	}
}

func TestThreadMintsConversationForNewContact(t *testing.T) {
	threader, store := testThreader(t, 0)
	ctx := context.Background()

	msg := message("msg-1", time.Now().UTC())
	require.NoError(t, threader.Thread(ctx, msg, ""))

	assert.NotEmpty(t, msg.ConversationID)
	assert.True(t, msg.IsFirstInConversation)
	assert.Nil(t, msg.ResponseToMessageID)

	stored, err := store.Messages().MessageByID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, msg.ConversationID, stored.ConversationID)
}

func TestThreadLinksWithinWindow(t *testing.T) {
	threader, _ := testThreader(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()

	first := message("msg-1", now)
	require.NoError(t, threader.Thread(ctx, first, ""))

	second := message("msg-2", now.Add(time.Hour))
	require.NoError(t, threader.Thread(ctx, second, ""))

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.False(t, second.IsFirstInConversation)
	require.NotNil(t, second.ResponseToMessageID)
	assert.Equal(t, "msg-1", *second.ResponseToMessageID)
}

func TestThreadStartsNewConversationAfterWindow(t *testing.T) {
	threader, _ := testThreader(t, time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()

	first := message("msg-1", now)
	require.NoError(t, threader.Thread(ctx, first, ""))

	late := message("msg-2", now.Add(2*time.Hour))
	require.NoError(t, threader.Thread(ctx, late, ""))

	assert.NotEqual(t, first.ConversationID, late.ConversationID)
	assert.True(t, late.IsFirstInConversation)
	assert.Nil(t, late.ResponseToMessageID)
}

func TestThreadSeparatesContactsAndBusinesses(t *testing.T) {
	threader, _ := testThreader(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()

	first := message("msg-1", now)
	require.NoError(t, threader.Thread(ctx, first, ""))

	otherContact := message("msg-2", now.Add(time.Minute))
	otherContact.PhoneNumber = "+15555550199"
	require.NoError(t, threader.Thread(ctx, otherContact, ""))

	otherBusiness := message("msg-3", now.Add(time.Minute))
	otherBusiness.BusinessID = "biz-2"
	require.NoError(t, threader.Thread(ctx, otherBusiness, ""))

	assert.NotEqual(t, first.ConversationID, otherContact.ConversationID)
	assert.NotEqual(t, first.ConversationID, otherBusiness.ConversationID)
}

func TestThreadHonorsThreadHint(t *testing.T) {
	threader, _ := testThreader(t, time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()

	first := message("msg-1", now)
	require.NoError(t, threader.Thread(ctx, first, ""))

	// Outside the window, but the hint pins it to the old conversation.
	late := message("msg-2", now.Add(3*time.Hour))
	require.NoError(t, threader.Thread(ctx, late, first.ConversationID))

	assert.Equal(t, first.ConversationID, late.ConversationID)
	assert.False(t, late.IsFirstInConversation)
}

func TestThreadIgnoresHintForDifferentContact(t *testing.T) {
	threader, _ := testThreader(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()

	first := message("msg-1", now)
	require.NoError(t, threader.Thread(ctx, first, ""))

	stranger := message("msg-2", now.Add(time.Minute))
	stranger.PhoneNumber = "+15555550199"
	require.NoError(t, threader.Thread(ctx, stranger, first.ConversationID))

	assert.NotEqual(t, first.ConversationID, stranger.ConversationID)
	assert.True(t, stranger.IsFirstInConversation)
}

func TestThreadConcurrentBurstHasOneConversationStart(t *testing.T) {
	threader, store := testThreader(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()

	const burst = 10

	var wg sync.WaitGroup

	for i := range burst {
		wg.Add(1)

		go func() {
			defer wg.Done()

			msg := message(fmt.Sprintf("msg-%d", i), now.Add(time.Duration(i)*time.Millisecond))
			assert.NoError(t, threader.Thread(ctx, msg, ""))
		}()
	}

	wg.Wait()

	conversations := make(map[string]struct{})
	firsts := 0

	for i := range burst {
		stored, err := store.Messages().MessageByID(ctx, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)

		conversations[stored.ConversationID] = struct{}{}

		if stored.IsFirstInConversation {
			firsts++
		}
	}

	assert.Len(t, conversations, 1)
	assert.Equal(t, 1, firsts)
}
