package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes bounds the plaintext accepted by Hash.
const MaxPasswordBytes = 1024

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password: empty plaintext")
	// ErrPasswordTooLong is returned by Hash when plaintext exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password: plaintext too long")
	// ErrMalformedDigest is returned when a stored digest cannot be parsed.
	ErrMalformedDigest = errors.New("password: malformed digest")
	// ErrInvalidConfig is returned for argon2 parameters below the accepted floor.
	ErrInvalidConfig = errors.New("password: invalid config")
)

// Codec turns plaintext credentials into salted one-way digests and checks
// candidates against them.
//
// New digests are always argon2id. Digests carried over from the bcrypt era
// ($2a$, $2b$, $2y$) still verify and are reported by NeedsRehash so callers
// can migrate them after a successful login.
type Codec struct {
	argon *Argon2
}

// NewCodec returns a Codec hashing with cfg.
func NewCodec(cfg Config) (*Codec, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Codec{argon: argon}, nil
}

// Hash returns a self-describing digest. It fails only on empty or oversized input.
func (c *Codec) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	return c.argon.Hash(plaintext)
}

// Verify reports whether plaintext matches digest. Malformed or unknown
// digests yield false; Verify never errors.
func (c *Codec) Verify(plaintext, digest string) bool {
	if len(plaintext) > MaxPasswordBytes {
		return false
	}

	switch {
	case isArgon2Digest(digest):
		ok, err := c.argon.Verify(plaintext, digest)
		return err == nil && ok
	case isBcryptDigest(digest):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	default:
		return false
	}
}

// NeedsRehash reports whether digest should be replaced with a fresh Hash of
// the same plaintext.
func (c *Codec) NeedsRehash(digest string) bool {
	if isBcryptDigest(digest) {
		return true
	}
	upgrade, err := c.argon.NeedsUpgrade(digest)
	return err == nil && upgrade
}

func isBcryptDigest(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}
