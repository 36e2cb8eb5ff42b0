// Package mongostore keeps medium objects as MongoDB documents, one per
// object: {_id, content, fields}.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/covertfs/internal/medium"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type document struct {
	ID      string            `bson:"_id"`
	Content []byte            `bson:"content"`
	Fields  map[string]string `bson:"fields"`
}

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func New(db *mongo.Database, collection string) *Store {
	return &Store{collection: db.Collection(collection)}
}

// Dial connects to uri and verifies the deployment answers.
func Dial(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := New(client.Database(database), collection)
	s.client = client
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// nonNil keeps empty content a binary value; a nil slice encodes as null and
// would never match a swap filter.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", medium.ErrNotFound, id)
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *Store) find(ctx context.Context, id string, projection bson.M) (document, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(projection)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return document{}, notFound(id)
	}
	return doc, err
}

func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.find(ctx, id, bson.M{"content": 1})
	if err != nil {
		return nil, err
	}
	return nonNil(doc.Content), nil
}

func (s *Store) WriteContent(ctx context.Context, id string, data []byte) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"content": nonNil(data)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(id)
	}
	return nil
}

// SwapContent is a single conditional update filtered on the old content.
func (s *Store) SwapContent(ctx context.Context, id string, prev, next []byte) (bool, error) {
	filter := bson.M{"_id": id, "content": nonNil(prev)}
	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"content": nonNil(next)}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.find(ctx, id, bson.M{"_id": 1}); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ReadFields(ctx context.Context, id string) (map[string]string, error) {
	doc, err := s.find(ctx, id, bson.M{"fields": 1})
	if err != nil {
		return nil, err
	}
	if doc.Fields == nil {
		return map[string]string{}, nil
	}
	return doc.Fields, nil
}

// fieldUpdate builds the $set/$unset document. A key in both set and remove
// is set.
func fieldUpdate(set map[string]string, remove []string) bson.M {
	update := bson.M{}
	if len(set) > 0 {
		sets := bson.M{}
		for k, v := range set {
			sets["fields."+k] = v
		}
		update["$set"] = sets
	}
	unsets := bson.M{}
	for _, k := range remove {
		if _, ok := set[k]; ok {
			continue
		}
		unsets["fields."+k] = ""
	}
	if len(unsets) > 0 {
		update["$unset"] = unsets
	}
	return update
}

func (s *Store) WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error {
	for k := range set {
		if err := medium.ValidateFieldName(k); err != nil {
			return err
		}
	}
	for _, k := range remove {
		if err := medium.ValidateFieldName(k); err != nil {
			return err
		}
	}
	update := fieldUpdate(set, remove)
	if len(update) == 0 {
		_, err := s.find(ctx, id, bson.M{"_id": 1})
		return err
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, id string, content []byte) error {
	if id == "" {
		return medium.ErrInvalidID
	}
	_, err := s.collection.InsertOne(ctx, document{ID: id, Content: nonNil(content), Fields: map[string]string{}})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", medium.ErrExists, id)
	}
	return err
}

// Drop removes the whole collection.
func (s *Store) Drop(ctx context.Context) error {
	return s.collection.Drop(ctx)
}
