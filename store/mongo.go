package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/madshubh27/Crotex/document"
)

// mongoDrawing mirrors the drawings collection document.
type mongoDrawing struct {
	SessionID string            `bson:"sessionId"`
	Data      document.Snapshot `bson:"data"`
	CreatedBy string            `bson:"createdBy,omitempty"`
	Title     string            `bson:"title,omitempty"`
	CreatedAt time.Time         `bson:"createdAt"`
	UpdatedAt time.Time         `bson:"updatedAt"`
}

// MongoStore persists drawings in a MongoDB collection, one document per
// session.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoStore connects to uri and uses the drawings collection of dbName.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	col := client.Database(dbName).Collection("drawings")

	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return &MongoStore{client: client, col: col}, nil
}

func (s *MongoStore) FindBySessionID(ctx context.Context, sessionID string) (*Drawing, error) {
	var doc mongoDrawing
	err := s.col.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find drawing %s: %w", sessionID, err)
	}
	return &Drawing{
		SessionID: doc.SessionID,
		Elements:  doc.Data,
		Owner:     doc.CreatedBy,
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Upsert(ctx context.Context, sessionID string, elements document.Snapshot, owner string) error {
	now := time.Now()
	set := bson.M{"data": elements, "updatedAt": now}
	if owner != "" {
		set["createdBy"] = owner
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"sessionId": sessionID, "title": "Untitled Drawing", "createdAt": now},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert drawing %s: %w", sessionID, err)
	}
	return nil
}

func (s *MongoStore) ListByOwner(ctx context.Context, owner string) ([]Drawing, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"createdBy": owner},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list drawings for %s: %w", owner, err)
	}
	defer cursor.Close(ctx)

	var out []Drawing
	for cursor.Next(ctx) {
		var doc mongoDrawing
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode drawing: %w", err)
		}
		out = append(out, Drawing{
			SessionID: doc.SessionID,
			Elements:  doc.Data,
			Owner:     doc.CreatedBy,
			Title:     doc.Title,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, cursor.Err()
}

func (s *MongoStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("delete drawing %s: %w", sessionID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
