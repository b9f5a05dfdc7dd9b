package service

import (
	"context"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/metrics"
	"messengerhub/internal/models"
	"messengerhub/internal/tracing"
	"messengerhub/pkg/messenger"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// IngestOutcome is what happened to one inbound messaging event
type IngestOutcome string

const (
	OutcomeStored            IngestOutcome = "stored"
	OutcomeDuplicate         IngestOutcome = "duplicate"
	OutcomeSkippedNotMessage IngestOutcome = "skipped_not_message"
	OutcomeSkippedNoConfig   IngestOutcome = "skipped_no_config"
	OutcomeFailed            IngestOutcome = "failed"
)

// IngestResult reports the handling of one event. It is consumed for logging and
// metrics only; the webhook always acknowledges.
type IngestResult struct {
	Outcome        IngestOutcome
	ConversationID string
	MessageType    string
	Err            error
}

// SenderNameResolver resolves a sender's display name, never failing
type SenderNameResolver interface {
	Resolve(ctx context.Context, psid, accessToken string) string
}

// IngestionStore is the persistence needed to record inbound messages
type IngestionStore interface {
	UpsertConversation(ctx context.Context, conv *models.Conversation) error
	SaveMessage(ctx context.Context, msg *models.Message) (bool, error)
}

// IngestionService records inbound webhook events as conversations and messages
type IngestionService struct {
	pages    *PageRegistry
	resolver SenderNameResolver
	store    IngestionStore
	logger   *logrus.Logger
	now      func() time.Time
}

func NewIngestionService(pages *PageRegistry, resolver SenderNameResolver, store IngestionStore, logger *logrus.Logger) *IngestionService {
	return &IngestionService{
		pages:    pages,
		resolver: resolver,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleWebhook ingests every messaging event of a page payload, in order
func (s *IngestionService) HandleWebhook(ctx context.Context, payload *messenger.WebhookPayload) []IngestResult {
	var results []IngestResult
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			results = append(results, s.HandleEvent(ctx, entry.ID, event))
		}
	}
	return results
}

// HandleEvent ingests a single messaging event received for pageID
func (s *IngestionService) HandleEvent(ctx context.Context, pageID string, event messenger.MessagingEvent) IngestResult {
	ctx, span := tracing.StartSpan(ctx, "ingest.event", attribute.String("messenger.page_id", pageID))
	defer span.End()

	result := s.handleEvent(ctx, pageID, event)
	tracing.AddSpanAttributes(ctx, attribute.String("ingest.outcome", string(result.Outcome)))
	if result.Err != nil {
		tracing.RecordError(ctx, result.Err)
	}

	fields := logrus.Fields{
		LogFieldPageID:    pageID,
		LogFieldPSID:      event.Sender.ID,
		LogFieldOutcome:   string(result.Outcome),
		LogFieldComponent: "ingestion",
	}
	if result.ConversationID != "" {
		fields[LogFieldConversationID] = result.ConversationID
		fields[LogFieldMessageType] = result.MessageType
	}
	log := LogWithContext(ctx, s.logger, fields)

	switch result.Outcome {
	case OutcomeStored:
		log.Info("Message stored")
	case OutcomeDuplicate:
		log.Info("Duplicate message ignored")
	case OutcomeSkippedNoConfig:
		log.Warn("Page not configured, event skipped")
	case OutcomeFailed:
		log.WithError(result.Err).Error("Failed to ingest message")
	default:
		log.Debug("Event skipped")
	}

	metrics.IncrementCounter(metrics.WebhookEventsTotal, map[string]string{
		"outcome": string(result.Outcome),
	}, "Inbound webhook events by ingestion outcome")

	return result
}

func (s *IngestionService) handleEvent(ctx context.Context, pageID string, event messenger.MessagingEvent) IngestResult {
	if event.Message == nil || event.Message.IsEcho {
		return IngestResult{Outcome: OutcomeSkippedNotMessage}
	}

	page, ok := s.pages.Get(pageID)
	if !ok {
		return IngestResult{Outcome: OutcomeSkippedNoConfig}
	}

	class := ClassifyMessage(event.Message)
	senderID := event.Sender.ID
	senderName := s.resolver.Resolve(ctx, senderID, page.AccessToken)
	conversationID := models.ConversationID(pageID, senderID)
	now := s.now()

	result := IngestResult{ConversationID: conversationID, MessageType: class.MessageType}

	conv := &models.Conversation{
		ConversationID:      conversationID,
		Platform:            constants.PlatformFacebook,
		PageID:              pageID,
		PageName:            page.DisplayName(),
		CustomerPSID:        senderID,
		CustomerName:        senderName,
		CustomerNameFetched: senderName != constants.UnknownCustomerName,
		LastMessageTime:     now,
		Status:              constants.ConversationStatusActive,
	}
	if err := s.store.UpsertConversation(ctx, conv); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	msg := &models.Message{
		ConversationID: conversationID,
		Platform:       constants.PlatformFacebook,
		MessageID:      models.StringPtr(event.Message.MID),
		SenderType:     constants.SenderTypeCustomer,
		SenderPSID:     models.StringPtr(senderID),
		MessageText:    class.Text,
		MessageType:    class.MessageType,
		ImageURL:       models.StringPtr(class.ImageURL),
		AttachmentType: models.StringPtr(class.AttachmentType),
		Replied:        false,
		CreatedAt:      now,
		Status:         constants.MessageStatusReceived,
	}
	inserted, err := s.store.SaveMessage(ctx, msg)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if !inserted {
		result.Outcome = OutcomeDuplicate
		return result
	}

	result.Outcome = OutcomeStored
	return result
}
