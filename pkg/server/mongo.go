package server

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/patch"
)

// MongoStore keeps boards in a MongoDB collection. Optimistic concurrency
// rides on a compound replace filter: the document is replaced only when its
// stored version still matches the expected one.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses the "boards" collection of db.
func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection("boards"),
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Board, error) {
	var b Board
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "board %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load board %s", id)
	}
	return &b, nil
}

func (s *MongoStore) Put(ctx context.Context, b *Board) error {
	b.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, b, opts); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "store board %s", b.ID)
	}
	return nil
}

func (s *MongoStore) ApplyPatch(ctx context.Context, id string, expected int64, ops []patch.Operation) (*Board, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Version != expected {
		return nil, &errors.VersionConflictError{Expected: expected, Actual: b.Version}
	}

	next, err := patch.Apply(b.Data, ops)
	if err != nil {
		return nil, err
	}
	b.Data = next
	b.Version++
	b.UpdatedAt = time.Now()

	// The filter pins the version read above; a concurrent writer makes the
	// replace match nothing and we report the fresher version.
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": expected}, b)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "store board %s", id)
	}
	if res.MatchedCount == 0 {
		current, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &errors.VersionConflictError{Expected: expected, Actual: current.Version}
	}
	return b, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
