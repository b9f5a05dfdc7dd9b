// Package postgres implements the conversation and message store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/migrations"
	"messengerhub/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	upsertConversationQuery = `
		INSERT INTO conversations (
			conversation_id, platform, page_id, page_name, customer_psid,
			customer_name, customer_name_fetched, last_message_time, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (conversation_id) DO UPDATE SET
			last_message_time = EXCLUDED.last_message_time,
			customer_name = CASE
				WHEN EXCLUDED.customer_name <> $10 THEN EXCLUDED.customer_name
				ELSE conversations.customer_name
			END,
			customer_name_fetched = CASE
				WHEN EXCLUDED.customer_name <> $10 THEN TRUE
				ELSE conversations.customer_name_fetched
			END`

	conversationColumns = `id, conversation_id, platform, page_id, page_name, customer_psid,
		customer_name, customer_name_fetched, last_message_time, status`

	messageColumns = `id, conversation_id, platform, message_id, sender_type, sender_psid,
		message_text, message_type, image_url, attachment_type, replied, created_at, status`

	insertMessageQuery = `
		INSERT INTO messages (
			conversation_id, platform, message_id, sender_type, sender_psid,
			message_text, message_type, image_url, attachment_type, replied,
			created_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id`
)

// Store is the PostgreSQL store
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and applies pending migrations
func New(ctx context.Context, databaseURL string) (*Store, error) {
	s, err := Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := s.Migrate(ctx); err != nil {
		s.pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Connect opens a pool to databaseURL without touching the schema
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate applies every embedded migration not yet recorded and returns the applied versions
func (s *Store) Migrate(ctx context.Context) ([]int, error) {
	if _, err := s.pool.Exec(ctx, migrations.TrackingTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	pending, err := migrations.Load(migrations.DialectPostgres)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range pending {
		var exists bool
		if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version).Scan(&exists); err != nil {
			return applied, fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ConversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	_, err := s.pool.Exec(ctx, upsertConversationQuery,
		conv.ConversationID,
		conv.Platform,
		conv.PageID,
		conv.PageName,
		conv.CustomerPSID,
		conv.CustomerName,
		conv.CustomerNameFetched,
		conv.LastMessageTime.UTC(),
		conv.Status,
		constants.UnknownCustomerName,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (s *Store) FindConversationByCustomer(ctx context.Context, psid string) (*models.Conversation, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+conversationColumns+` FROM conversations
		WHERE customer_psid = $1
		ORDER BY last_message_time DESC, id DESC
		LIMIT 1`, psid)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by customer: %w", err)
	}
	return conv, nil
}

func (s *Store) UpdateCustomerName(ctx context.Context, psid, name string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE conversations SET customer_name = $1, customer_name_fetched = TRUE WHERE customer_psid = $2",
		name, psid)
	if err != nil {
		return 0, fmt.Errorf("failed to update customer name: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListActiveConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.queryConversations(ctx, "SELECT "+conversationColumns+` FROM conversations
		WHERE status = $1
		ORDER BY last_message_time DESC, id DESC`, constants.ConversationStatusActive)
}

func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.queryConversations(ctx, "SELECT "+conversationColumns+" FROM conversations ORDER BY id ASC")
}

func (s *Store) queryConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	conversations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Conversation, error) {
		conv, err := scanConversation(row)
		if err != nil {
			return models.Conversation{}, err
		}
		return *conv, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	return conversations, nil
}

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.ConversationID == "" {
		return false, fmt.Errorf("conversation_id is required")
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertMessageQuery,
		msg.ConversationID,
		msg.Platform,
		nonEmpty(msg.MessageID),
		msg.SenderType,
		nonEmpty(msg.SenderPSID),
		msg.MessageText,
		msg.MessageType,
		nonEmpty(msg.ImageURL),
		nonEmpty(msg.AttachmentType),
		msg.Replied,
		createdAt.UTC(),
		msg.Status,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save message: %w", err)
	}
	msg.ID = id
	return true, nil
}

func (s *Store) GetConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var msg models.Message
		err := row.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Platform,
			&msg.MessageID,
			&msg.SenderType,
			&msg.SenderPSID,
			&msg.MessageText,
			&msg.MessageType,
			&msg.ImageURL,
			&msg.AttachmentType,
			&msg.Replied,
			&msg.CreatedAt,
			&msg.Status,
		)
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (s *Store) CountUnreplied(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND sender_type = $2 AND replied = FALSE",
		conversationID, constants.SenderTypeCustomer).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unreplied messages: %w", err)
	}
	return count, nil
}

func (s *Store) MarkConversationReplied(ctx context.Context, conversationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE messages SET replied = TRUE WHERE conversation_id = $1 AND sender_type = $2 AND replied = FALSE",
		conversationID, constants.SenderTypeCustomer)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation replied: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AggregateUnreplied calls the get_unreplied_counts() function
func (s *Store) AggregateUnreplied(ctx context.Context) ([]models.UnrepliedCount, error) {
	rows, err := s.pool.Query(ctx, "SELECT page_id, customer_psid, unreplied_count FROM get_unreplied_counts() WHERE unreplied_count > 0")
	if err != nil {
		return nil, fmt.Errorf("failed to call get_unreplied_counts: %w", err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UnrepliedCount, error) {
		var c models.UnrepliedCount
		var n int64
		err := row.Scan(&c.PageID, &c.CustomerPSID, &n)
		c.UnrepliedCount = int(n)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan unreplied counts: %w", err)
	}
	return counts, nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.ConversationID,
		&conv.Platform,
		&conv.PageID,
		&conv.PageName,
		&conv.CustomerPSID,
		&conv.CustomerName,
		&conv.CustomerNameFetched,
		&conv.LastMessageTime,
		&conv.Status,
	); err != nil {
		return nil, err
	}
	return &conv, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
