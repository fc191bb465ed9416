package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "acct"

// RedisStore keeps each account as a JSON document under "<prefix>:id:<id>"
// and claims the address under "<prefix>:email:<email>". The claim key holds
// the account ID and is written in the same MULTI as the document.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// redisRecord carries the secret fields that Account hides from JSON.
type redisRecord struct {
	*Account
	PasswordHash string     `json:"passwordHash"`
	OTP          string     `json:"otp,omitempty"`
	OTPExpiry    *time.Time `json:"otpExpiry,omitempty"`
	Revision     int64      `json:"revision"`
}

// NewRedisStore returns a store using prefix for its keys. An empty prefix
// defaults to "acct".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) idKey(id string) string {
	return s.prefix + ":id:" + id
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

// Insert claims the email and writes the document atomically. A concurrent
// writer touching the claim key aborts the transaction, which is reported as
// ErrDuplicateEmail since only inserts write claim keys.
func (s *RedisStore) Insert(ctx context.Context, acct *Account) error {
	payload, err := encodeRecord(acct)
	if err != nil {
		return err
	}
	emailKey := s.emailKey(acct.Email)

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, emailKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateEmail
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, emailKey, acct.ID, 0)
			pipe.Set(ctx, s.idKey(acct.ID), payload, 0)
			return nil
		})
		return err
	}, emailKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, redis.TxFailedErr):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (s *RedisStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	acct, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Kind != kind {
		return nil, ErrNotFound
	}
	return acct, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*Account, error) {
	data, err := s.redis.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeRecord(data)
}

// Update overwrites an existing document while WATCHing it, so a write that
// lands between the revision check and EXEC aborts the transaction.
func (s *RedisStore) Update(ctx context.Context, acct *Account) error {
	next := acct.Clone()
	next.Revision++
	payload, err := encodeRecord(next)
	if err != nil {
		return err
	}
	key := s.idKey(acct.ID)

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		stored, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if stored.Revision != acct.Revision {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetXX(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		acct.Revision = next.Revision
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func encodeRecord(acct *Account) ([]byte, error) {
	payload, err := json.Marshal(redisRecord{
		Account:      acct,
		PasswordHash: acct.PasswordHash,
		OTP:          acct.OTP,
		OTPExpiry:    acct.OTPExpiry,
		Revision:     acct.Revision,
	})
	if err != nil {
		return nil, fmt.Errorf("account: encode: %w", err)
	}
	return payload, nil
}

func decodeRecord(data []byte) (*Account, error) {
	rec := redisRecord{Account: &Account{}}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt record: %v", ErrStoreUnavailable, err)
	}
	acct := rec.Account
	acct.PasswordHash = rec.PasswordHash
	acct.OTP = rec.OTP
	acct.OTPExpiry = rec.OTPExpiry
	acct.Revision = rec.Revision
	return acct, nil
}
