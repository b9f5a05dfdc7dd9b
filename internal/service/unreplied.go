package service

import (
	"context"
	"fmt"

	"messengerhub/internal/models"

	"github.com/sirupsen/logrus"
)

// UnrepliedStrategy names how a count map was produced
type UnrepliedStrategy string

const (
	StrategyAggregate UnrepliedStrategy = "aggregate"
	StrategyScan      UnrepliedStrategy = "scan"
)

// UnrepliedStore is the persistence needed by the scan strategy
type UnrepliedStore interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	CountUnreplied(ctx context.Context, conversationID string) (int, error)
}

// UnrepliedCounter computes unreplied customer message counts keyed by
// "{page_id}_{customer_psid}". Zero counts are never present.
type UnrepliedCounter struct {
	store  UnrepliedStore
	logger *logrus.Logger
}

func NewUnrepliedCounter(store UnrepliedStore, logger *logrus.Logger) *UnrepliedCounter {
	return &UnrepliedCounter{store: store, logger: logger}
}

// Counts uses the store's precomputed aggregation when it has one and it succeeds,
// and the per-conversation scan otherwise
func (c *UnrepliedCounter) Counts(ctx context.Context) (map[string]int, UnrepliedStrategy, error) {
	if agg, ok := c.store.(UnrepliedAggregator); ok {
		counts, err := c.aggregate(ctx, agg)
		if err == nil {
			return counts, StrategyAggregate, nil
		}
		LogWithContext(ctx, c.logger, logrus.Fields{
			LogFieldComponent: "unreplied",
		}).WithError(err).Warn("Unreplied aggregation failed, falling back to scan")
	}

	counts, err := c.scan(ctx)
	if err != nil {
		return nil, StrategyScan, err
	}
	return counts, StrategyScan, nil
}

func (c *UnrepliedCounter) aggregate(ctx context.Context, agg UnrepliedAggregator) (map[string]int, error) {
	rows, err := agg.AggregateUnreplied(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		addCount(counts, models.UnrepliedKey(row.PageID, row.CustomerPSID), row.UnrepliedCount)
	}
	return counts, nil
}

func (c *UnrepliedCounter) scan(ctx context.Context) (map[string]int, error) {
	conversations, err := c.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	counts := make(map[string]int)
	for _, conv := range conversations {
		n, err := c.store.CountUnreplied(ctx, conv.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to count unreplied for %s: %w", conv.ConversationID, err)
		}
		addCount(counts, conv.UnrepliedKey(), n)
	}
	return counts, nil
}

func addCount(counts map[string]int, key string, n int) {
	if n > 0 {
		counts[key] += n
	}
}
