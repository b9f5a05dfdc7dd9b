package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "EAAtesttoken"

func newTestClient(t *testing.T, handler http.HandlerFunc) *GraphClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL:        server.URL,
		APIVersion:     "v19.0",
		ProfileTimeout: 200 * time.Millisecond,
		SendTimeout:    200 * time.Millisecond,
		UploadTimeout:  200 * time.Millisecond,
	})
}

func TestGetUserName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v19.0/24811234567890", r.URL.Path)
		assert.Equal(t, "name", r.URL.Query().Get("fields"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"24811234567890","name":"Jane Doe"}`))
	})

	name, err := client.GetUserName(context.Background(), "24811234567890", testToken)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)
}

func TestGetUserName_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Unsupported get request","type":"GraphMethodException","code":100}}`))
	})

	_, err := client.GetUserName(context.Background(), "1", testToken)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, "Unsupported get request", apiErr.Message)
}

func TestGetUserName_ErrorInSuccessBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"(#100) Pages can't fetch page profiles","code":100}}`))
	})

	_, err := client.GetUserName(context.Background(), "1", testToken)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "Pages")
}

func TestGetUserName_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	_, err := client.GetUserName(context.Background(), "1", testToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendText(t *testing.T) {
	tests := []struct {
		name          string
		humanAgent    bool
		wantType      string
		wantTag       string
		wantTagAbsent bool
	}{
		{"standard response", false, "RESPONSE", "", true},
		{"human agent tag", true, "MESSAGE_TAG", "HUMAN_AGENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v19.0/me/messages", r.URL.Path)
				assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var payload map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, map[string]interface{}{"id": "2002"}, payload["recipient"])
				assert.Equal(t, map[string]interface{}{"text": "hello"}, payload["message"])
				assert.Equal(t, tt.wantType, payload["messaging_type"])
				if tt.wantTagAbsent {
					assert.NotContains(t, payload, "tag")
				} else {
					assert.Equal(t, tt.wantTag, payload["tag"])
				}

				_, _ = w.Write([]byte(`{"recipient_id":"2002","message_id":"m_abc"}`))
			})

			resp, err := client.SendText(context.Background(), testToken, SendTextParams{
				RecipientID:   "2002",
				Text:          "hello",
				HumanAgentTag: tt.humanAgent,
			})
			require.NoError(t, err)
			assert.Equal(t, "m_abc", resp.MessageID)
			assert.Equal(t, "2002", resp.RecipientID)
		})
	}
}

func TestSendText_PlatformError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This message is sent outside of allowed window.","type":"OAuthException","code":10}}`))
	})

	_, err := client.SendText(context.Background(), testToken, SendTextParams{RecipientID: "2", Text: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 10, apiErr.Code)
	assert.Equal(t, "This message is sent outside of allowed window.", apiErr.Message)
}

func TestSendText_UnparseableErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.SendText(context.Background(), testToken, SendTextParams{RecipientID: "2", Text: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Unknown Facebook error", apiErr.Message)
}

func TestSendImage(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/me/messages", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.JSONEq(t, `{"id":"2002"}`, r.FormValue("recipient"))
		assert.Equal(t, "MESSAGE_TAG", r.FormValue("messaging_type"))
		assert.Equal(t, "HUMAN_AGENT", r.FormValue("tag"))
		assert.JSONEq(t, `{"attachment":{"type":"image","payload":{"is_reusable":true}}}`, r.FormValue("message"))

		file, header, err := r.FormFile("filedata")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "photo.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, image, data)

		_, _ = w.Write([]byte(`{"recipient_id":"2002","message_id":"m_img","attachment_id":"987654"}`))
	})

	resp, err := client.SendImage(context.Background(), testToken, SendImageParams{
		RecipientID:   "2002",
		HumanAgentTag: true,
		Filename:      "photo.png",
		ContentType:   "image/png",
		Data:          image,
	})
	require.NoError(t, err)
	assert.Equal(t, "m_img", resp.MessageID)
	assert.Equal(t, "987654", resp.AttachmentID)
}

func TestSendImage_NoTagByDefault(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "RESPONSE", r.FormValue("messaging_type"))
		_, hasTag := r.MultipartForm.Value["tag"]
		assert.False(t, hasTag)
		_, _ = w.Write([]byte(`{"message_id":"m_img","attachment_id":"1"}`))
	})

	_, err := client.SendImage(context.Background(), testToken, SendImageParams{
		RecipientID: "2002",
		Filename:    "a.png",
		Data:        []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
	})
	require.NoError(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{})
	assert.Equal(t, "https://graph.facebook.com/v19.0", c.baseURL)
	assert.Equal(t, 5*time.Second, c.profileTimeout)
	assert.Equal(t, 10*time.Second, c.sendTimeout)
	assert.Equal(t, 30*time.Second, c.uploadTimeout)
}
