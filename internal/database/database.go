package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/migrations"
	"messengerhub/internal/models"
	"messengerhub/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite store
type Database struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and applies pending migrations
func New(dbPath string) (*Database, error) {
	d, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultStoreConnectTimeoutSec)*time.Second)
	defer cancel()

	if _, err := d.Migrate(ctx); err != nil {
		if closeErr := d.db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Open opens the SQLite database at dbPath without touching the schema
func Open(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultStoreConnectTimeoutSec)*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: db}, nil
}

// Migrate applies every embedded migration not yet recorded and returns the applied versions
func (d *Database) Migrate(ctx context.Context) ([]int, error) {
	if _, err := d.db.ExecContext(ctx, migrations.TrackingTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	pending, err := migrations.Load(migrations.DialectSQLite)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range pending {
		var count int
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return applied, fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
	}

	return applied, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ConversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	return retryableDBOperation(ctx, "upsert conversation", func() error {
		_, err := d.db.ExecContext(ctx, UpsertConversationQuery,
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
			constants.UnknownCustomerName,
		)
		return err
	})
}

func (d *Database) FindConversationByCustomer(ctx context.Context, psid string) (*models.Conversation, error) {
	row := d.db.QueryRowContext(ctx, SelectLatestConversationByCustomerQuery, psid)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by customer: %w", err)
	}
	return conv, nil
}

func (d *Database) UpdateCustomerName(ctx context.Context, psid, name string) (int64, error) {
	var affected int64
	err := retryableDBOperation(ctx, "update customer name", func() error {
		result, err := d.db.ExecContext(ctx, UpdateCustomerNameQuery, name, psid)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

func (d *Database) ListActiveConversations(ctx context.Context) ([]models.Conversation, error) {
	return d.queryConversations(ctx, SelectConversationsByStatusQuery, constants.ConversationStatusActive)
}

func (d *Database) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return d.queryConversations(ctx, SelectAllConversationsQuery)
}

func (d *Database) queryConversations(ctx context.Context, query string, args ...interface{}) ([]models.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.ConversationID == "" {
		return false, fmt.Errorf("conversation_id is required")
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var inserted bool
	err := retryableDBOperation(ctx, "save message", func() error {
		result, err := d.db.ExecContext(ctx, InsertMessageQuery,
			msg.ConversationID,
			msg.Platform,
			nullableString(msg.MessageID),
			msg.SenderType,
			nullableString(msg.SenderPSID),
			msg.MessageText,
			msg.MessageType,
			nullableString(msg.ImageURL),
			nullableString(msg.AttachmentType),
			msg.Replied,
			createdAt.UTC(),
			msg.Status,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		if inserted {
			if id, err := result.LastInsertId(); err == nil {
				msg.ID = id
			}
		}
		return nil
	})
	return inserted, err
}

func (d *Database) GetConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := d.db.QueryContext(ctx, SelectMessagesByConversationQuery, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var messageID, senderPSID, imageURL, attachmentType sql.NullString
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Platform,
			&messageID,
			&msg.SenderType,
			&senderPSID,
			&msg.MessageText,
			&msg.MessageType,
			&imageURL,
			&attachmentType,
			&msg.Replied,
			&msg.CreatedAt,
			&msg.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.MessageID = stringPtr(messageID)
		msg.SenderPSID = stringPtr(senderPSID)
		msg.ImageURL = stringPtr(imageURL)
		msg.AttachmentType = stringPtr(attachmentType)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (d *Database) CountUnreplied(ctx context.Context, conversationID string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, CountUnrepliedQuery, conversationID, constants.SenderTypeCustomer).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unreplied messages: %w", err)
	}
	return count, nil
}

func (d *Database) MarkConversationReplied(ctx context.Context, conversationID string) (int64, error) {
	var affected int64
	err := retryableDBOperation(ctx, "mark conversation replied", func() error {
		result, err := d.db.ExecContext(ctx, MarkConversationRepliedQuery, conversationID, constants.SenderTypeCustomer)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// AggregateUnreplied reads the unreplied_counts view
func (d *Database) AggregateUnreplied(ctx context.Context) ([]models.UnrepliedCount, error) {
	rows, err := d.db.QueryContext(ctx, SelectUnrepliedCountsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query unreplied_counts: %w", err)
	}
	defer rows.Close()

	var counts []models.UnrepliedCount
	for rows.Next() {
		var c models.UnrepliedCount
		if err := rows.Scan(&c.PageID, &c.CustomerPSID, &c.UnrepliedCount); err != nil {
			return nil, fmt.Errorf("failed to scan unreplied count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unreplied counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
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

func nullableString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
