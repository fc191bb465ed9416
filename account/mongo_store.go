package account

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps users and hospitals in separate collections and claims
// addresses in an "account_emails" collection keyed by email, whose _id
// uniqueness provides the cross-kind guarantee.
type MongoStore struct {
	users     *mongo.Collection
	hospitals *mongo.Collection
	emails    *mongo.Collection
}

type emailClaim struct {
	Email     string `bson:"_id"`
	AccountID string `bson:"accountId"`
	Kind      Kind   `bson:"type"`
}

// NewMongoStore uses the users, hospitals and account_emails collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:     db.Collection("users"),
		hospitals: db.Collection("hospitals"),
		emails:    db.Collection("account_emails"),
	}
}

// EnsureIndexes creates the per-collection unique email indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []*mongo.Collection{s.users, s.hospitals} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("%w: create index on %s: %v", ErrStoreUnavailable, coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) collection(kind Kind) (*mongo.Collection, error) {
	switch kind {
	case KindUser:
		return s.users, nil
	case KindHospital:
		return s.hospitals, nil
	}
	return nil, ErrInvalidKind
}

// Insert claims the email first. If the account write fails the claim is
// released so the address can be registered again.
func (s *MongoStore) Insert(ctx context.Context, acct *Account) error {
	coll, err := s.collection(acct.Kind)
	if err != nil {
		return err
	}

	_, err = s.emails.InsertOne(ctx, emailClaim{Email: acct.Email, AccountID: acct.ID, Kind: acct.Kind})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := coll.InsertOne(ctx, acct); err != nil {
		_, _ = s.emails.DeleteOne(ctx, bson.M{"_id": acct.Email, "accountId": acct.ID})
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Account, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	return decodeOne(coll.FindOne(ctx, bson.M{"email": email}))
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*Account, error) {
	for _, coll := range []*mongo.Collection{s.users, s.hospitals} {
		acct, err := decodeOne(coll.FindOne(ctx, bson.M{"_id": id}))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return acct, err
	}
	return nil, ErrNotFound
}

// Update replaces the document only while its revision matches. Documents
// written before revisions existed have no field and count as revision 0.
func (s *MongoStore) Update(ctx context.Context, acct *Account) error {
	coll, err := s.collection(acct.Kind)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": acct.ID, "revision": acct.Revision}
	if acct.Revision == 0 {
		filter["revision"] = bson.M{"$in": bson.A{int64(0), nil}}
	}
	next := acct.Clone()
	next.Revision++

	res, err := coll.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{"_id": acct.ID})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	acct.Revision = next.Revision
	return nil
}

func decodeOne(res *mongo.SingleResult) (*Account, error) {
	var acct Account
	if err := res.Decode(&acct); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &acct, nil
}
