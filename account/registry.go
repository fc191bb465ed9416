package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sehatbridge/sehatauth/internal/validate"
)

const (
	// MinPasswordLength is the shortest accepted interactive password.
	MinPasswordLength = 8
	// MaxPasswordLength matches the credential codec's input bound.
	MaxPasswordLength = 1024
)

// Hasher produces credential digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// CreateRequest describes a new account. Exactly one profile must be set and
// it must match Kind.
type CreateRequest struct {
	Kind     Kind
	Email    string
	Password string
	User     *UserProfile
	Hospital *HospitalProfile
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides account ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// Registry validates, hashes and persists accounts.
type Registry struct {
	store  Store
	hasher Hasher
	now    func() time.Time
	newID  func() string
}

// NewRegistry wires a Registry to store and hasher.
func NewRegistry(store Store, hasher Hasher, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		hasher: hasher,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates req, hashes the password and inserts the account.
// Validation problems come back as *validate.Errors listing every field.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Account, error) {
	return r.create(ctx, req, true)
}

// Provision creates an account whose credential is not user-chosen, such as
// one derived from an external identity subject. Profile fields are still
// validated; the password length policy is not applied.
func (r *Registry) Provision(ctx context.Context, req CreateRequest) (*Account, error) {
	return r.create(ctx, req, false)
}

func (r *Registry) create(ctx context.Context, req CreateRequest, passwordPolicy bool) (*Account, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validateCreate(req, passwordPolicy); err != nil {
		return nil, err
	}

	// Hashing is slow; skip it for an address that is obviously taken. The
	// store's insert remains the authority.
	if _, err := r.FindByEmailAnyKind(ctx, req.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	digest, err := r.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}

	now := r.now().UTC()
	acct := &Account{
		ID:           r.newID(),
		Kind:         req.Kind,
		Email:        req.Email,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch req.Kind {
	case KindUser:
		profile := *req.User
		if profile.MedicalHistory == nil {
			profile.MedicalHistory = []string{}
		}
		acct.User = &profile
	case KindHospital:
		profile := *req.Hospital
		// Geocoding is not performed; coordinates stay at the origin.
		profile.Latitude, profile.Longitude = 0, 0
		acct.Hospital = &profile
	}

	if err := r.store.Insert(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// FindByEmail returns the account of kind registered under email.
func (r *Registry) FindByEmail(ctx context.Context, kind Kind, email string) (*Account, error) {
	if kind != KindUser && kind != KindHospital {
		return nil, ErrInvalidKind
	}
	return r.store.FindByEmail(ctx, kind, validate.NormalizeEmail(email))
}

// FindByEmailAnyKind searches users first, then hospitals.
func (r *Registry) FindByEmailAnyKind(ctx context.Context, email string) (*Account, error) {
	email = validate.NormalizeEmail(email)
	for _, kind := range Kinds {
		acct, err := r.store.FindByEmail(ctx, kind, email)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// FindByID returns the account with id.
func (r *Registry) FindByID(ctx context.Context, id string) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return r.store.FindByID(ctx, id)
}

// UpdatePassword stores a new digest on acct. The pending challenge is left
// alone; callers clear it when appropriate.
func (r *Registry) UpdatePassword(ctx context.Context, acct *Account, digest string) error {
	acct.PasswordHash = digest
	return r.Save(ctx, acct)
}

// Save persists acct, bumping UpdatedAt. It fails with ErrConflict when the
// stored account changed since acct was read.
func (r *Registry) Save(ctx context.Context, acct *Account) error {
	acct.UpdatedAt = r.now().UTC()
	return r.store.Update(ctx, acct)
}

func validateCreate(req CreateRequest, passwordPolicy bool) error {
	var v validate.Errors

	v.Email("email", req.Email)
	switch {
	case req.Password == "":
		v.Add("password", "is required")
	case len(req.Password) > MaxPasswordLength:
		v.Add("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	case passwordPolicy && len([]rune(req.Password)) < MinPasswordLength:
		v.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}

	switch req.Kind {
	case KindUser:
		if req.Hospital != nil {
			v.Add("type", "user accounts cannot carry a hospital profile")
		}
		if req.User == nil {
			v.Add("user", "is required")
			break
		}
		p := req.User
		v.Required("name", p.Name)
		v.Required("phone", p.Phone)
		v.Required("gender", p.Gender)
		if p.DateOfBirth.IsZero() {
			v.Add("dob", "is required")
		}
		v.Required("address.street", p.Address.Street)
		v.Required("address.city", p.Address.City)
		v.Required("address.state", p.Address.State)
		v.Required("address.postalCode", p.Address.PostalCode)
	case KindHospital:
		if req.User != nil {
			v.Add("type", "hospital accounts cannot carry a user profile")
		}
		if req.Hospital == nil {
			v.Add("hospital", "is required")
			break
		}
		p := req.Hospital
		v.Required("name", p.Name)
		v.Required("phone", p.Phone)
		v.URL("website", p.Website)
		if strings.TrimSpace(p.Address.PostalCode) == "" {
			v.Add("address.postalCode", "Pincode is required")
		}
	default:
		v.Add("type", "must be user or hospital")
	}

	return v.Err()
}
