package sequence

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoGenerator keeps counters as {_id: name, sequenceValue: n} documents,
// the layout the original deployment's counters collection already uses.
type MongoGenerator struct {
	coll *mongo.Collection
}

type counterDoc struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"sequenceValue"`
}

// NewMongoGenerator uses the "counters" collection of db.
func NewMongoGenerator(db *mongo.Database) *MongoGenerator {
	return &MongoGenerator{coll: db.Collection("counters")}
}

// Next runs findOneAndUpdate with $inc, upsert and return-after, a single
// atomic document update.
func (g *MongoGenerator) Next(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.coll == nil {
		return 0, ErrStoreUnavailable
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDoc
	err := g.coll.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"sequenceValue": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return doc.Value, nil
}

func (g *MongoGenerator) Current(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.coll == nil {
		return 0, ErrStoreUnavailable
	}

	var doc counterDoc
	err := g.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return doc.Value, nil
}
