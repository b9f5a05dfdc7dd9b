package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"messengerhub/internal/database"
	"messengerhub/internal/models"
	"messengerhub/pkg/messenger"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGraphClient struct {
	mock.Mock
}

func (m *mockGraphClient) GetUserName(ctx context.Context, psid, accessToken string) (string, error) {
	args := m.Called(ctx, psid, accessToken)
	return args.String(0), args.Error(1)
}

func (m *mockGraphClient) SendText(ctx context.Context, accessToken string, params messenger.SendTextParams) (*messenger.SendResponse, error) {
	args := m.Called(ctx, accessToken, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messenger.SendResponse), args.Error(1)
}

func (m *mockGraphClient) SendImage(ctx context.Context, accessToken string, params messenger.SendImageParams) (*messenger.SendResponse, error) {
	args := m.Called(ctx, accessToken, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messenger.SendResponse), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *mockStore) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkConversationReplied(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *mockStore) CountUnreplied(ctx context.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

type fixedResolver string

func (r fixedResolver) Resolve(ctx context.Context, psid, accessToken string) string {
	return string(r)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRegistry(t *testing.T, pages ...models.PageConfig) *PageRegistry {
	t.Helper()
	if len(pages) == 0 {
		pages = []models.PageConfig{{ID: "1001", Name: "Shop", AccessToken: validToken}}
	}
	r, err := NewPageRegistry(pages)
	require.NoError(t, err)
	return r
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
