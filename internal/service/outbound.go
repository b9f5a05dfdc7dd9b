package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
	"unicode/utf8"

	"messengerhub/internal/constants"
	"messengerhub/internal/errors"
	"messengerhub/internal/metrics"
	"messengerhub/internal/models"
	"messengerhub/internal/validation"
	"messengerhub/pkg/messenger"

	"github.com/sirupsen/logrus"
)

// SendTextRequest is the body of a text reply
type SendTextRequest struct {
	PageID           string `json:"page_id" validate:"required"`
	RecipientID      string `json:"recipient_id" validate:"required"`
	MessageText      string `json:"message_text" validate:"required"`
	UseHumanAgentTag bool   `json:"use_human_agent_tag"`
}

// SendImageRequest is an image reply taken from a multipart upload
type SendImageRequest struct {
	PageID           string `validate:"required"`
	RecipientID      string `validate:"required"`
	UseHumanAgentTag bool
	Filename         string
	ContentType      string
	Data             []byte
}

// OutboundStore is the persistence needed to record agent replies
type OutboundStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) (bool, error)
	MarkConversationReplied(ctx context.Context, conversationID string) (int64, error)
}

// OutboundService sends agent replies through the Send API and records them
type OutboundService struct {
	client         messenger.Client
	pages          *PageRegistry
	store          OutboundStore
	logger         *logrus.Logger
	maxUploadBytes int64
	now            func() time.Time
}

func NewOutboundService(client messenger.Client, pages *PageRegistry, store OutboundStore, logger *logrus.Logger, maxUploadBytes int64) *OutboundService {
	return &OutboundService{
		client:         client,
		pages:          pages,
		store:          store,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// SendText validates and sends a text reply. No request reaches the platform when
// validation or page configuration fails.
func (s *OutboundService) SendText(ctx context.Context, req SendTextRequest) (*messenger.SendResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.MessageText) > constants.MaxMessageTextLength {
		return nil, errors.NewValidationError("message_text",
			fmt.Sprintf("Message text exceeds maximum length of %d characters", constants.MaxMessageTextLength))
	}
	page, err := s.pageFor(req.PageID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.SendText(ctx, page.AccessToken, messenger.SendTextParams{
		RecipientID:   req.RecipientID,
		Text:          req.MessageText,
		HumanAgentTag: req.UseHumanAgentTag,
	})
	if err != nil {
		s.recordSend(constants.MessageTypeText, "failed")
		return nil, s.sendError(ctx, "send_text", req.PageID, req.RecipientID, err)
	}
	s.recordSend(constants.MessageTypeText, "sent")

	s.persistReply(ctx, &models.Message{
		ConversationID: models.ConversationID(req.PageID, req.RecipientID),
		Platform:       constants.PlatformFacebook,
		MessageID:      models.StringPtr(resp.MessageID),
		SenderType:     constants.SenderTypeAgent,
		MessageText:    req.MessageText,
		MessageType:    constants.MessageTypeText,
		CreatedAt:      s.now(),
		Status:         constants.MessageStatusSent,
	})
	return resp, nil
}

// SendImage validates and uploads an image reply as a reusable attachment
func (s *OutboundService) SendImage(ctx context.Context, req SendImageRequest) (*messenger.SendResponse, error) {
	if req.Filename == "" || len(req.Data) == 0 {
		return nil, errors.NewValidationError("image", "No image file provided")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := validation.ValidateImageUpload(req.Filename, req.ContentType, req.Data, s.maxUploadBytes); err != nil {
		return nil, err
	}
	page, err := s.pageFor(req.PageID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.SendImage(ctx, page.AccessToken, messenger.SendImageParams{
		RecipientID:   req.RecipientID,
		HumanAgentTag: req.UseHumanAgentTag,
		Filename:      req.Filename,
		ContentType:   req.ContentType,
		Data:          req.Data,
	})
	if err != nil {
		s.recordSend(constants.MessageTypeImage, "failed")
		return nil, s.sendError(ctx, "send_image", req.PageID, req.RecipientID, err)
	}
	s.recordSend(constants.MessageTypeImage, "sent")

	s.persistReply(ctx, &models.Message{
		ConversationID: models.ConversationID(req.PageID, req.RecipientID),
		Platform:       constants.PlatformFacebook,
		MessageID:      models.StringPtr(resp.MessageID),
		SenderType:     constants.SenderTypeAgent,
		MessageText:    "[Image]",
		MessageType:    constants.MessageTypeImage,
		ImageURL:       models.StringPtr(resp.AttachmentID),
		CreatedAt:      s.now(),
		Status:         constants.MessageStatusSent,
	})
	return resp, nil
}

func (s *OutboundService) pageFor(pageID string) (models.PageConfig, error) {
	page, ok := s.pages.Get(pageID)
	if !ok {
		return models.PageConfig{}, errors.NewConfigError("page_id", fmt.Sprintf("Page %s not configured", pageID))
	}
	if !page.HasValidToken() {
		return models.PageConfig{}, errors.NewConfigError("access_token", "Page access token not configured")
	}
	return page, nil
}

// persistReply records a delivered reply. The send already succeeded, so storage
// failures are logged and not returned.
func (s *OutboundService) persistReply(ctx context.Context, msg *models.Message) {
	log := LogWithContext(ctx, s.logger, logrus.Fields{
		LogFieldConversationID: msg.ConversationID,
		LogFieldMessageID:      models.StringValue(msg.MessageID),
		LogFieldMessageType:    msg.MessageType,
		LogFieldComponent:      "outbound",
	})

	if _, err := s.store.SaveMessage(ctx, msg); err != nil {
		errors.LogError(log, errors.NewDatabaseError("save agent message", err), "Failed to record sent message")
		return
	}
	if n, err := s.store.MarkConversationReplied(ctx, msg.ConversationID); err != nil {
		errors.LogError(log, errors.NewDatabaseError("mark conversation replied", err), "Failed to mark conversation replied")
	} else {
		log.WithField(LogFieldCount, n).Info("Reply sent")
	}
}

func (s *OutboundService) sendError(ctx context.Context, endpoint, pageID, recipientID string, err error) error {
	var appErr *errors.AppError
	var apiErr *messenger.APIError
	switch {
	case stderrors.As(err, &apiErr):
		appErr = errors.NewPlatformError(endpoint, apiErr.StatusCode, apiErr.Code, apiErr.Message).WithContext("type", apiErr.Type)
	case stderrors.Is(err, context.DeadlineExceeded):
		appErr = errors.NewTimeoutError(endpoint, err)
	default:
		appErr = errors.Wrap(err, errors.ErrCodeInternalError, endpoint+" failed").WithUserMessage(err.Error())
	}

	errors.LogError(LogWithContext(ctx, s.logger, logrus.Fields{
		LogFieldPageID:    pageID,
		LogFieldPSID:      recipientID,
		LogFieldEndpoint:  endpoint,
		LogFieldComponent: "outbound",
	}), appErr, "Send API request failed")
	return appErr
}

func (s *OutboundService) recordSend(messageType, outcome string) {
	metrics.IncrementCounter(metrics.MessagesSentTotal, map[string]string{
		"type":    messageType,
		"outcome": outcome,
	}, "Agent replies sent through the Send API")
}
