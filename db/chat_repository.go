package db

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"personachat/db/models"
)

// MongoChatStore persists groups and chat messages.
type MongoChatStore struct{}

// SaveGroup inserts a group document.
func (MongoChatStore) SaveGroup(ctx context.Context, group *models.GroupDocument) error {
	group.CreatedAt = time.Now()

	collection := GetCollection("groups")
	_, err := collection.InsertOne(ctx, group)
	return err
}

// SaveMessage persists a single chat message at its position in the
// conversation.
func (MongoChatStore) SaveMessage(ctx context.Context, groupID, sender, text string, index int) error {
	// Skip empty messages
	if strings.TrimSpace(text) == "" {
		log.Printf("[SAVE_MESSAGE_SKIP] Skipping empty message for group %s at index %d", groupID, index)
		return nil
	}

	doc := models.MessageDocument{
		GroupID:   groupID,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
		Index:     index,
	}

	collection := GetCollection("messages")

	// Retry transient failures with backoff
	var lastErr error
	for i := 0; i < 3; i++ {
		_, err := collection.InsertOne(ctx, doc)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Millisecond * 100 * time.Duration(i+1))
	}

	return lastErr
}

// GroupHistory retrieves paginated message history for a group.
func (MongoChatStore) GroupHistory(ctx context.Context, groupID string, limit, offset int) ([]models.MessageDocument, int64, error) {
	collection := GetCollection("messages")

	total, err := collection.CountDocuments(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "index", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var messages []models.MessageDocument
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// CreateChatIndexes creates the indexes message pagination relies on.
func CreateChatIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "index", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}

	collection := GetCollection("messages")
	_, err := collection.Indexes().CreateMany(ctx, messageIndexes)
	if err != nil {
		log.Printf("Failed to create indexes: %v", err)
	}
}
