package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/errors"
	"messengerhub/internal/models"
	"messengerhub/internal/validation"
	"messengerhub/pkg/circuitbreaker"
	"messengerhub/pkg/messenger"

	"github.com/sirupsen/logrus"
)

// NameResolver turns sender PSIDs into display names through the profile API.
// Lookups go through a circuit breaker so an unreachable profile API does not
// stall every webhook for the full profile timeout.
type NameResolver struct {
	client  messenger.Client
	pages   *PageRegistry
	store   ConversationStore
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewNameResolver(client messenger.Client, pages *PageRegistry, store ConversationStore, logger *logrus.Logger) *NameResolver {
	breaker := circuitbreaker.New("graph-profile",
		constants.ProfileBreakerMaxFailures,
		time.Duration(constants.ProfileBreakerCooldownSec)*time.Second,
		logger,
	).WithFailurePredicate(isUpstreamFailure)

	return &NameResolver{
		client:  client,
		pages:   pages,
		store:   store,
		breaker: breaker,
		logger:  logger,
	}
}

// isUpstreamFailure counts transport errors and 5xx answers, not per-user rejections
func isUpstreamFailure(err error) bool {
	var apiErr *messenger.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// Resolve returns the sender's display name. Every failure yields "Unknown";
// a profile error that refers to a page yields "Facebook Page".
func (r *NameResolver) Resolve(ctx context.Context, psid, accessToken string) string {
	log := LogWithContext(ctx, r.logger, logrus.Fields{
		LogFieldPSID:      psid,
		LogFieldComponent: "name_resolver",
	})

	if !models.IsValidAccessToken(accessToken) {
		log.Warn("Access token missing, cannot resolve sender name")
		return constants.UnknownCustomerName
	}
	if err := validation.ValidatePSID(psid); err != nil {
		log.WithError(err).Warn("Malformed sender id, skipping name lookup")
		return constants.UnknownCustomerName
	}

	var name string
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var lookupErr error
		name, lookupErr = r.client.GetUserName(ctx, psid, accessToken)
		return lookupErr
	})
	if err != nil {
		var apiErr *messenger.APIError
		if stderrors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "page") {
			log.WithField("graph_error", apiErr.Message).Debug("Sender is a page")
			return constants.PageSenderName
		}
		log.WithError(err).Warn("Failed to fetch sender name")
		return constants.UnknownCustomerName
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return constants.UnknownCustomerName
	}
	return name
}

// RefreshCustomerName resolves the name of a known customer through the page of their
// latest conversation and stores it on every conversation of that PSID. An empty name
// with a nil error means the lookup ran but produced nothing usable.
func (r *NameResolver) RefreshCustomerName(ctx context.Context, psid string) (string, error) {
	conv, err := r.store.FindConversationByCustomer(ctx, psid)
	if err != nil {
		return "", errors.NewDatabaseError("find conversation by customer", err)
	}
	if conv == nil {
		return "", errors.NewNotFoundError("Customer", psid)
	}

	page, ok := r.pages.Get(conv.PageID)
	if !ok {
		return "", errors.NewConfigError("page", "Page not configured")
	}
	if !page.HasValidToken() {
		return "", errors.NewConfigError("access_token", "Access token missing")
	}

	name := r.Resolve(ctx, psid, page.AccessToken)
	if name == constants.UnknownCustomerName {
		return "", nil
	}

	updated, err := r.store.UpdateCustomerName(ctx, psid, name)
	if err != nil {
		return "", errors.NewDatabaseError("update customer name", err)
	}

	LogWithContext(ctx, r.logger, logrus.Fields{
		LogFieldPSID:   psid,
		LogFieldPageID: conv.PageID,
		LogFieldCount:  updated,
	}).Info("Customer name refreshed")

	return name, nil
}
