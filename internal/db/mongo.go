package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wuwenbin0122/finbot/internal/models"
	"github.com/wuwenbin0122/finbot/internal/utils"
)

// Mongo is the document-backed chat history store, selected with
// CHAT_HISTORY_BACKEND=mongo.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	Chats    *mongo.Collection
	Messages *mongo.Collection
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Mongo{
		Client:   client,
		Database: db,
		Chats:    db.Collection("chats"),
		Messages: db.Collection("chat_messages"),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure chat index: %w", err)
	}

	_, err = m.Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure message index: %w", err)
	}

	return nil
}

type chatDocument struct {
	ID            string     `bson:"_id"`
	UserID        string     `bson:"user_id"`
	Title         string     `bson:"title"`
	CreatedAt     time.Time  `bson:"created_at"`
	LastMessageAt *time.Time `bson:"last_message_at"`
}

type messageDocument struct {
	ChatID    string `bson:"chat_id"`
	UserID    string `bson:"user_id"`
	MessageID string `bson:"message_id"`
	Sender    string `bson:"sender"`
	Text      string `bson:"text"`
	Seq       int64  `bson:"seq"`
}

func (m *Mongo) CreateChat(ctx context.Context, userID string) (string, error) {
	doc := chatDocument{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	if _, err := m.Chats.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo: create chat: %w", err)
	}
	return doc.ID, nil
}

func (m *Mongo) AppendMessages(ctx context.Context, userID, chatID string, msgs []models.Message) error {
	now := time.Now().UTC()
	res, err := m.Chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{"$set": bson.M{"last_message_at": now}},
	)
	if err != nil {
		return fmt.Errorf("mongo: touch chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	if len(msgs) == 0 {
		return nil
	}

	base := now.UnixNano()
	docs := make([]any, 0, len(msgs))
	for i, msg := range msgs {
		docs = append(docs, messageDocument{
			ChatID:    chatID,
			UserID:    userID,
			MessageID: msg.ID,
			Sender:    string(msg.Sender),
			Text:      msg.Text,
			Seq:       base + int64(i),
		})
	}
	if _, err := m.Messages.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("mongo: insert messages: %w", err)
	}
	return nil
}

func (m *Mongo) ListChats(ctx context.Context, userID string) ([]models.ChatRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := m.Chats.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list chats: %w", err)
	}

	var docs []chatDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode chats: %w", err)
	}

	chats := make([]models.ChatRecord, 0, len(docs))
	for _, d := range docs {
		chats = append(chats, models.ChatRecord{
			ID:            d.ID,
			UserID:        d.UserID,
			CreatedAt:     d.CreatedAt,
			LastMessageAt: d.LastMessageAt,
			Title:         d.Title,
		})
	}
	return chats, nil
}

func (m *Mongo) LoadMessages(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	if err := m.Chats.FindOne(ctx, bson.M{"_id": chatID, "user_id": userID}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find chat: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := m.Messages.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: load messages: %w", err)
	}

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode messages: %w", err)
	}

	msgs := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, models.Message{ID: d.MessageID, Text: d.Text, Sender: models.Sender(d.Sender)})
	}
	return msgs, nil
}

func (m *Mongo) RenameChat(ctx context.Context, userID, chatID, title string) error {
	res, err := m.Chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{"$set": bson.M{"title": title}},
	)
	if err != nil {
		return fmt.Errorf("mongo: rename chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteChat(ctx context.Context, userID, chatID string) error {
	res, err := m.Chats.DeleteOne(ctx, bson.M{"_id": chatID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("mongo: delete chat: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := m.Messages.DeleteMany(ctx, bson.M{"chat_id": chatID}); err != nil {
		return fmt.Errorf("mongo: delete chat messages: %w", err)
	}
	return nil
}

func (m *Mongo) DeleteAllChats(ctx context.Context, userID string) error {
	if _, err := m.Chats.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("mongo: delete chats: %w", err)
	}
	if _, err := m.Messages.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("mongo: delete messages: %w", err)
	}
	return nil
}
