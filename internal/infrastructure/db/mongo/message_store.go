package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const messagesCollection = "messages"

// MessageStore implements ports.MessageStore.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(messagesCollection)}
}

type mongoMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	User      string             `bson:"user"`
	Room      string             `bson:"room"`
	Timestamp time.Time          `bson:"timestamp"`
}

// Save inserts msg. It returns only once the write is acknowledged.
func (s *MessageStore) Save(ctx context.Context, msg domain.Message) (domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if msg.Room == "" {
		msg.Room = domain.DefaultRoom
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	res, err := s.coll.InsertOne(ctx, mongoMessage{
		Text:      msg.Text,
		User:      msg.AuthorSubjectID,
		Room:      msg.Room,
		Timestamp: msg.Timestamp.UTC(),
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid.Hex()
	}
	return msg, nil
}

// EnsureIndexes supports room history queries ordered by time.
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}
