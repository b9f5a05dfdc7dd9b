package database

// Conversation queries
const (
	// Parameters: conversation_id, platform, page_id, page_name, customer_psid,
	// customer_name, customer_name_fetched, last_message_time, status, and the
	// unknown-name sentinel twice
	UpsertConversationQuery = `
		INSERT INTO conversations (
			conversation_id, platform, page_id, page_name, customer_psid,
			customer_name, customer_name_fetched, last_message_time, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			last_message_time = excluded.last_message_time,
			customer_name = CASE
				WHEN excluded.customer_name <> ? THEN excluded.customer_name
				ELSE conversations.customer_name
			END,
			customer_name_fetched = CASE
				WHEN excluded.customer_name <> ? THEN 1
				ELSE conversations.customer_name_fetched
			END
	`

	selectConversationColumns = `
		SELECT id, conversation_id, platform, page_id, page_name, customer_psid,
			   customer_name, customer_name_fetched, last_message_time, status
		FROM conversations
	`

	SelectLatestConversationByCustomerQuery = selectConversationColumns + `
		WHERE customer_psid = ?
		ORDER BY last_message_time DESC, id DESC
		LIMIT 1
	`

	SelectConversationsByStatusQuery = selectConversationColumns + `
		WHERE status = ?
		ORDER BY last_message_time DESC, id DESC
	`

	SelectAllConversationsQuery = selectConversationColumns + `ORDER BY id ASC`

	UpdateCustomerNameQuery = `
		UPDATE conversations
		SET customer_name = ?, customer_name_fetched = 1
		WHERE customer_psid = ?
	`
)

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (
			conversation_id, platform, message_id, sender_type, sender_psid,
			message_text, message_type, image_url, attachment_type, replied,
			created_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`

	SelectMessagesByConversationQuery = `
		SELECT id, conversation_id, platform, message_id, sender_type, sender_psid,
			   message_text, message_type, image_url, attachment_type, replied,
			   created_at, status
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`

	CountUnrepliedQuery = `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND sender_type = ? AND replied = 0
	`

	MarkConversationRepliedQuery = `
		UPDATE messages
		SET replied = 1
		WHERE conversation_id = ? AND sender_type = ? AND replied = 0
	`
)

// Aggregation queries
const (
	SelectUnrepliedCountsQuery = `
		SELECT page_id, customer_psid, unreplied_count
		FROM unreplied_counts
		WHERE unreplied_count > 0
	`
)
