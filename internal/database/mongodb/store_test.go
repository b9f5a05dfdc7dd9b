package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore connects to MESSENGERHUB_TEST_MONGO_URI using a throwaway database
func setupStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MESSENGERHUB_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("skip integration test: MESSENGERHUB_TEST_MONGO_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "messengerhub_test_" + uuid.NewString()[:8]
	store, err := New(ctx, uri, dbName)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to mongodb: %v", err)
	}
	t.Cleanup(func() {
		_ = store.client.Database(dbName).Drop(context.Background())
		_ = store.Close()
	})
	return store
}

func newConversation(pageID, psid, name string, at time.Time) *models.Conversation {
	return &models.Conversation{
		ConversationID:      models.ConversationID(pageID, psid),
		Platform:            constants.PlatformFacebook,
		PageID:              pageID,
		PageName:            "Test Page",
		CustomerPSID:        psid,
		CustomerName:        name,
		CustomerNameFetched: name != constants.UnknownCustomerName,
		LastMessageTime:     at,
		Status:              constants.ConversationStatusActive,
	}
}

func customerMessage(convID, mid, psid string) *models.Message {
	return &models.Message{
		ConversationID: convID,
		Platform:       constants.PlatformFacebook,
		MessageID:      models.StringPtr(mid),
		SenderType:     constants.SenderTypeCustomer,
		SenderPSID:     models.StringPtr(psid),
		MessageText:    "hi",
		MessageType:    constants.MessageTypeText,
		Status:         constants.MessageStatusReceived,
	}
}

func TestNew_EmptyURI(t *testing.T) {
	_, err := New(context.Background(), "", "")
	assert.Error(t, err)
}

func TestStore_UpsertConversation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "2002", constants.UnknownCustomerName, now)))

	conv, err := findConversation(ctx, store, "fb_1001_2002")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, constants.UnknownCustomerName, conv.CustomerName)
	assert.False(t, conv.CustomerNameFetched)

	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "2002", "Jane Doe", now.Add(time.Minute))))
	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "2002", constants.UnknownCustomerName, now.Add(2*time.Minute))))

	conv, err = findConversation(ctx, store, "fb_1001_2002")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", conv.CustomerName)
	assert.True(t, conv.CustomerNameFetched)
	assert.True(t, conv.LastMessageTime.Equal(now.Add(2*time.Minute)))

	all, err := store.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	missing, err := findConversation(ctx, store, "fb_1001_9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SaveMessageIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	convID := models.ConversationID("1001", "2002")

	inserted, err := store.SaveMessage(ctx, customerMessage(convID, "m_1", "2002"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.SaveMessage(ctx, customerMessage(convID, "m_1", "2002"))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Agent rows carry no message id and never collide.
	for i := 0; i < 2; i++ {
		inserted, err = store.SaveMessage(ctx, &models.Message{
			ConversationID: convID,
			Platform:       constants.PlatformFacebook,
			SenderType:     constants.SenderTypeAgent,
			MessageType:    constants.MessageTypeText,
			Status:         constants.MessageStatusSent,
		})
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	messages, err := store.GetConversationMessages(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestStore_UnrepliedAggregation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "2002", "Jane", now)))
	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "3003", "Bob", now)))

	convA := models.ConversationID("1001", "2002")
	convB := models.ConversationID("1001", "3003")
	for _, mid := range []string{"m_a1", "m_a2"} {
		_, err := store.SaveMessage(ctx, customerMessage(convA, mid, "2002"))
		require.NoError(t, err)
	}
	_, err := store.SaveMessage(ctx, customerMessage(convB, "m_b1", "3003"))
	require.NoError(t, err)

	counts, err := store.AggregateUnreplied(ctx)
	require.NoError(t, err)
	byKey := map[string]int{}
	for _, c := range counts {
		byKey[models.UnrepliedKey(c.PageID, c.CustomerPSID)] = c.UnrepliedCount
	}
	assert.Equal(t, map[string]int{"1001_2002": 2, "1001_3003": 1}, byKey)

	marked, err := store.MarkConversationReplied(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	n, err := store.CountUnreplied(ctx, convA)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_CustomerLookup(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.UpsertConversation(ctx, newConversation("1001", "2002", constants.UnknownCustomerName, now.Add(-time.Hour))))
	require.NoError(t, store.UpsertConversation(ctx, newConversation("1002", "2002", constants.UnknownCustomerName, now)))

	conv, err := store.FindConversationByCustomer(ctx, "2002")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "1002", conv.PageID)

	n, err := store.UpdateCustomerName(ctx, "2002", "Jane")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := store.ListActiveConversations(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "1002", active[0].PageID)
	assert.Equal(t, "Jane", active[1].CustomerName)
}

// findConversation returns the conversation with the given id, or nil when absent
func findConversation(ctx context.Context, store interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}, conversationID string) (*models.Conversation, error) {
	all, err := store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ConversationID == conversationID {
			return &all[i], nil
		}
	}
	return nil, nil
}
