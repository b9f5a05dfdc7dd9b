package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/metrics"
	"messengerhub/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Client talks to the Graph API on behalf of a page
type Client interface {
	GetUserName(ctx context.Context, psid, accessToken string) (string, error)
	SendText(ctx context.Context, accessToken string, params SendTextParams) (*SendResponse, error)
	SendImage(ctx context.Context, accessToken string, params SendImageParams) (*SendResponse, error)
}

// ClientConfig holds Graph API location and per-operation deadlines
type ClientConfig struct {
	BaseURL        string
	APIVersion     string
	ProfileTimeout time.Duration
	SendTimeout    time.Duration
	UploadTimeout  time.Duration
	HTTPClient     *http.Client
}

// GraphClient is the HTTP implementation of Client
type GraphClient struct {
	baseURL        string
	profileTimeout time.Duration
	sendTimeout    time.Duration
	uploadTimeout  time.Duration
	client         *http.Client
}

const maxResponseBytes = 1 << 20

// NewClient creates a Graph API client, filling unset fields with defaults
func NewClient(cfg ClientConfig) *GraphClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultGraphAPIBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = constants.DefaultGraphAPIVersion
	}
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = time.Duration(constants.DefaultProfileTimeoutSec) * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = time.Duration(constants.DefaultSendTimeoutSec) * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = time.Duration(constants.DefaultUploadTimeoutSec) * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &GraphClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.APIVersion, "/"),
		profileTimeout: cfg.ProfileTimeout,
		sendTimeout:    cfg.SendTimeout,
		uploadTimeout:  cfg.UploadTimeout,
		client:         httpClient,
	}
}

// GetUserName fetches the display name of a sender
func (c *GraphClient) GetUserName(ctx context.Context, psid, accessToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.profileTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("fields", "name")
	query.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(psid)+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	var profile UserProfile
	if err := c.do(req, "profile", &profile); err != nil {
		return "", err
	}
	return profile.Name, nil
}

// SendText sends a text reply through the Send API
func (c *GraphClient) SendText(ctx context.Context, accessToken string, params SendTextParams) (*SendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	messagingType, tag := messagingType(params.HumanAgentTag)
	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": params.RecipientID},
		"message":        map[string]string{"text": params.Text},
		"messaging_type": messagingType,
	}
	if tag != "" {
		payload["tag"] = tag
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(accessToken), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result SendResponse
	if err := c.do(req, "send_text", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendImage uploads an image and sends it as a reusable attachment
func (c *GraphClient) SendImage(ctx context.Context, accessToken string, params SendImageParams) (*SendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	recipient, err := json.Marshal(map[string]string{"id": params.RecipientID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipient: %w", err)
	}
	message, err := json.Marshal(map[string]interface{}{
		"attachment": map[string]interface{}{
			"type":    "image",
			"payload": map[string]bool{"is_reusable": true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	messagingType, tag := messagingType(params.HumanAgentTag)
	fields := [][2]string{
		{"recipient", string(recipient)},
		{"messaging_type", messagingType},
		{"message", string(message)},
	}
	if tag != "" {
		fields = append(fields, [2]string{"tag", tag})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(params.Data)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="filedata"; filename=%q`, params.Filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(params.Data); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(accessToken), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result SendResponse
	if err := c.do(req, "send_image", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *GraphClient) messagesURL(accessToken string) string {
	return c.baseURL + "/me/messages?access_token=" + url.QueryEscape(accessToken)
}

func messagingType(humanAgent bool) (string, string) {
	if humanAgent {
		return constants.MessagingTypeMessageTag, constants.MessageTagHumanAgent
	}
	return constants.MessagingTypeResponse, ""
}

// do executes req, records a span and metrics, and decodes a success body into out
func (c *GraphClient) do(req *http.Request, operation string, out interface{}) error {
	ctx, span := tracing.StartSpan(req.Context(), "graph."+operation,
		attribute.String("graph.operation", operation),
		attribute.String("http.method", req.Method),
	)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.client.Do(req)
	status := "error"
	defer func() {
		labels := map[string]string{"operation": operation, "status": status}
		metrics.IncrementCounter(metrics.GraphAPIRequestsTotal, labels, "Graph API requests")
		metrics.RecordTimer(metrics.GraphAPIRequestLatency, time.Since(start), labels, "Graph API request duration")
	}()
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("graph api %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)
	tracing.AddSpanAttributes(ctx, attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope errorEnvelope
	_ = json.Unmarshal(data, &envelope)
	if resp.StatusCode != http.StatusOK || envelope.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: "Unknown Facebook error"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Type = envelope.Error.Type
			if envelope.Error.Message != "" {
				apiErr.Message = envelope.Error.Message
			}
		}
		tracing.RecordError(ctx, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
