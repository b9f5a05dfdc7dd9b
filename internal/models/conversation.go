package models

import (
	"fmt"
	"time"

	"messengerhub/internal/constants"
)

// Conversation is the bookkeeping row for one (page, customer) pair
type Conversation struct {
	ID                  int64     `json:"id,omitempty" bson:"-"`
	ConversationID      string    `json:"conversation_id" bson:"conversation_id"`
	Platform            string    `json:"platform" bson:"platform"`
	PageID              string    `json:"page_id" bson:"page_id"`
	PageName            string    `json:"page_name" bson:"page_name"`
	CustomerPSID        string    `json:"customer_psid" bson:"customer_psid"`
	CustomerName        string    `json:"customer_name" bson:"customer_name"`
	CustomerNameFetched bool      `json:"customer_name_fetched" bson:"customer_name_fetched"`
	LastMessageTime     time.Time `json:"last_message_time" bson:"last_message_time"`
	Status              string    `json:"status" bson:"status"`
}

// HasKnownName reports whether the stored customer name came from a successful lookup
func (c *Conversation) HasKnownName() bool {
	return c.CustomerName != "" && c.CustomerName != constants.UnknownCustomerName
}

// UnrepliedKey returns the "{page_id}_{customer_psid}" key used by unreplied counts
func (c *Conversation) UnrepliedKey() string {
	return UnrepliedKey(c.PageID, c.CustomerPSID)
}

// ConversationID derives the deterministic conversation identifier for a sender on a page
func ConversationID(pageID, senderID string) string {
	return fmt.Sprintf("%s_%s_%s", constants.ConversationIDPrefix, pageID, senderID)
}

// UnrepliedKey builds the grouping key for unreplied message counts
func UnrepliedKey(pageID, customerPSID string) string {
	return pageID + "_" + customerPSID
}

// UnrepliedCount is one row of the precomputed unreplied aggregation
type UnrepliedCount struct {
	PageID         string `json:"page_id" bson:"page_id"`
	CustomerPSID   string `json:"customer_psid" bson:"customer_psid"`
	UnrepliedCount int    `json:"unreplied_count" bson:"unreplied_count"`
}
