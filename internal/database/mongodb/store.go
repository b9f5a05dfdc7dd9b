// Package mongodb implements the conversation and message store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messengerhub/internal/constants"
	"messengerhub/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// Store is the MongoDB store
type Store struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// New connects to uri, selects databaseName and ensures the collection indexes
func New(ctx context.Context, uri, databaseName string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if databaseName == "" {
		databaseName = constants.DefaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(databaseName)
	s := &Store{
		client:        client,
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// createIndexes mirrors the relational schema. message_id is unique only where present.
func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "customer_psid", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_message_time", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"message_id": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_type", Value: 1}, {Key: "replied", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ConversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}

	set := bson.M{"last_message_time": conv.LastMessageTime.UTC()}
	onInsert := bson.M{
		"platform":      conv.Platform,
		"page_id":       conv.PageID,
		"page_name":     conv.PageName,
		"customer_psid": conv.CustomerPSID,
		"status":        conv.Status,
	}
	if conv.HasKnownName() {
		set["customer_name"] = conv.CustomerName
		set["customer_name_fetched"] = true
	} else {
		onInsert["customer_name"] = constants.UnknownCustomerName
		onInsert["customer_name_fetched"] = false
	}

	filter := bson.M{"conversation_id": conv.ConversationID}
	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.Update().SetUpsert(true)

	_, err := s.conversations.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted first; the retry takes the update path.
		_, err = s.conversations.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (s *Store) FindConversationByCustomer(ctx context.Context, psid string) (*models.Conversation, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "last_message_time", Value: -1}, {Key: "_id", Value: -1}})
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"customer_psid": psid}, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by customer: %w", err)
	}
	return &conv, nil
}

func (s *Store) UpdateCustomerName(ctx context.Context, psid, name string) (int64, error) {
	result, err := s.conversations.UpdateMany(ctx,
		bson.M{"customer_psid": psid},
		bson.M{"$set": bson.M{"customer_name": name, "customer_name_fetched": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update customer name: %w", err)
	}
	return result.MatchedCount, nil
}

func (s *Store) ListActiveConversations(ctx context.Context) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}, {Key: "_id", Value: -1}})
	return s.findConversations(ctx, bson.M{"status": constants.ConversationStatusActive}, opts)
}

func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return s.findConversations(ctx, bson.M{}, opts)
}

func (s *Store) findConversations(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (bool, error) {
	if msg.ConversationID == "" {
		return false, fmt.Errorf("conversation_id is required")
	}
	doc := *msg
	doc.MessageID = nonEmpty(msg.MessageID)
	doc.SenderPSID = nonEmpty(msg.SenderPSID)
	doc.ImageURL = nonEmpty(msg.ImageURL)
	doc.AttachmentType = nonEmpty(msg.AttachmentType)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.CreatedAt = doc.CreatedAt.UTC()

	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save message: %w", err)
	}
	return true, nil
}

func (s *Store) GetConversationMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

func unrepliedFilter(conversationID string) bson.M {
	return bson.M{
		"conversation_id": conversationID,
		"sender_type":     constants.SenderTypeCustomer,
		"replied":         false,
	}
}

func (s *Store) CountUnreplied(ctx context.Context, conversationID string) (int, error) {
	n, err := s.messages.CountDocuments(ctx, unrepliedFilter(conversationID))
	if err != nil {
		return 0, fmt.Errorf("failed to count unreplied messages: %w", err)
	}
	return int(n), nil
}

func (s *Store) MarkConversationReplied(ctx context.Context, conversationID string) (int64, error) {
	result, err := s.messages.UpdateMany(ctx, unrepliedFilter(conversationID), bson.M{"$set": bson.M{"replied": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation replied: %w", err)
	}
	return result.ModifiedCount, nil
}

// AggregateUnreplied groups unreplied customer messages by page and customer in one pipeline
func (s *Store) AggregateUnreplied(ctx context.Context) ([]models.UnrepliedCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"sender_type": constants.SenderTypeCustomer, "replied": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         conversationsCollection,
			"localField":   "_id",
			"foreignField": "conversation_id",
			"as":           "conversation",
		}}},
		{{Key: "$unwind", Value: "$conversation"}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"page_id":       "$conversation.page_id",
				"customer_psid": "$conversation.customer_psid",
			},
			"unreplied_count": bson.M{"$sum": "$count"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":             0,
			"page_id":         "$_id.page_id",
			"customer_psid":   "$_id.customer_psid",
			"unreplied_count": 1,
		}}},
	}

	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate unreplied counts: %w", err)
	}
	var counts []models.UnrepliedCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode unreplied counts: %w", err)
	}
	return counts, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
