package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/errors"
	"messengerhub/internal/middleware"
	"messengerhub/internal/models"
	"messengerhub/internal/service"
	"messengerhub/pkg/messenger"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Services bundles the components the HTTP surface dispatches to
type Services struct {
	Ingestion     *service.IngestionService
	Outbound      *service.OutboundService
	Names         *service.NameResolver
	Unreplied     *service.UnrepliedCounter
	Conversations *service.ConversationReader
}

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	services Services
	verbose  bool
	server   *http.Server
}

func NewServer(cfg *models.Config, services Services, logger *logrus.Logger, verbose bool) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		services: services,
		verbose:  verbose,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))
	s.router.Use(s.verboseMiddleware)

	s.router.HandleFunc("/", s.handleIndex()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	s.router.HandleFunc("/webhook", s.handleWebhookVerify()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhookEvent()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.CORSMiddleware(api, s.cfg.Server.AllowedOrigins))
	api.HandleFunc("/send", s.handleSendText()).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/send-image", s.handleSendImage()).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/customer-name/{psid}", s.handleCustomerName()).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/unreplied-counts", s.handleUnrepliedCounts()).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/conversation/{conversation_id}", s.handleConversationMessages()).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet, http.MethodOptions)
}

func (s *Server) Start() error {
	port := s.cfg.Server.Port
	if port == "" {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %s", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) verboseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(service.WithVerbose(r.Context(), s.verbose)))
	})
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Facebook Messenger Hub API",
			"endpoints": map[string]string{
				"webhook":          "/webhook",
				"send_message":     "/api/send",
				"send_image":       "/api/send-image",
				"customer_name":    "/api/customer-name/<psid>",
				"unreplied_counts": "/api/unreplied-counts",
				"conversation":     "/api/conversation/<conversation_id>",
				"conversations":    "/api/conversations",
				"health":           "/health",
				"metrics":          "/metrics",
			},
		})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge, status := messenger.VerifySubscription(r.URL.Query(), s.cfg.Webhook.VerifyToken)
		if status != http.StatusOK {
			s.logger.WithField(service.LogFieldStatusCode, status).Warn("Webhook verification rejected")
			writeText(w, status, http.StatusText(status))
			return
		}
		s.logger.Info("Webhook verified")
		writeText(w, http.StatusOK, challenge)
	}
}

func (s *Server) handleWebhookEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxWebhookBodyBytes))
		if err != nil {
			writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			return
		}
		payload, err := messenger.ParseWebhookPayload(body)
		if err != nil {
			s.logger.WithError(err).Warn("Malformed webhook payload")
			writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			return
		}
		if !payload.IsPageEvent() {
			writeText(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
			return
		}

		// The platform may hang up before ingestion finishes; the bookkeeping must not be cut short.
		ctx := context.WithoutCancel(r.Context())
		results := s.services.Ingestion.HandleWebhook(ctx, payload)

		service.LogWithContext(ctx, s.logger, logrus.Fields{
			service.LogFieldCount: len(results),
		}).Debug("Webhook processed")

		writeText(w, http.StatusOK, constants.WebhookEventReceived)
	}
}

func (s *Server) handleSendText() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.SendTextRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, constants.MaxWebhookBodyBytes)).Decode(&req); err != nil {
			s.writeError(w, errors.NewValidationError("body", "Invalid JSON body"))
			return
		}

		resp, err := s.services.Outbound.SendText(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": resp})
	}
}

func (s *Server) handleSendImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(s.cfg.Messenger.MaxUploadMB) * constants.BytesPerMegabyte
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+constants.MultipartOverheadBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			s.writeError(w, multipartError(err, maxBytes))
			return
		}

		req := service.SendImageRequest{
			PageID:           r.FormValue("page_id"),
			RecipientID:      r.FormValue("recipient_id"),
			UseHumanAgentTag: strings.EqualFold(r.FormValue("use_human_agent_tag"), "true"),
		}

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxBytes+1))
			if readErr != nil {
				s.writeError(w, errors.NewValidationError("image", "No image file provided"))
				return
			}
			req.Filename = header.Filename
			req.ContentType = header.Header.Get("Content-Type")
			req.Data = data
		}

		resp, err := s.services.Outbound.SendImage(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": resp})
	}
}

func (s *Server) handleCustomerName() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		psid := mux.Vars(r)["psid"]

		name, err := s.services.Names.RefreshCustomerName(r.Context(), psid)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if name == "" {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": false,
				"name":    nil,
				"error":   "Could not fetch name",
			})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "name": name})
	}
}

func (s *Server) handleUnrepliedCounts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, strategy, err := s.services.Unreplied.Counts(r.Context())
		if err != nil {
			s.writeError(w, errors.NewDatabaseError("count unreplied messages", err))
			return
		}
		s.logger.WithField("strategy", string(strategy)).Debug("Unreplied counts computed")
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "counts": counts})
	}
}

func (s *Server) handleConversationMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.services.Conversations.Messages(r.Context(), mux.Vars(r)["conversation_id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "messages": messages})
	}
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := s.services.Conversations.Active(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "conversations": conversations})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)
	entry := s.logger.WithField(service.LogFieldStatusCode, status)
	errors.LogError(entry, err, "Request failed")
	s.writeJSON(w, status, errors.ToHTTPResponse(err))
}

func multipartError(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return errors.NewValidationError("image", fmt.Sprintf("Image exceeds maximum size of %d bytes", maxBytes))
	case stderrors.Is(err, http.ErrNotMultipart), stderrors.Is(err, http.ErrMissingBoundary):
		return errors.NewValidationError("image", "No image file provided")
	default:
		return errors.NewValidationError("body", "Invalid multipart form")
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
