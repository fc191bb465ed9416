// Package intake records outpatient (OPD) registrations and stamps each one
// with a human-readable registration identifier of the form REG-<n>.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehatbridge/sehatauth/internal"
	"github.com/sehatbridge/sehatauth/internal/validate"
	"github.com/sehatbridge/sehatauth/sequence"
)

const (
	DefaultSequenceName = "registrationId"
	DefaultPrefix       = "REG-"
)

var (
	// ErrNotFound is returned when no registration matches.
	ErrNotFound = errors.New("intake: registration not found")
	// ErrPersistFailed is returned when an identifier was allocated but the
	// record could not be stored. The identifier is not reused.
	ErrPersistFailed = errors.New("intake: persist failed")
)

// Request is a submitted OPD form.
type Request struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Contact    string   `json:"contact"`
	Address    string   `json:"address"`
	Department string   `json:"department"`
	Pincode    string   `json:"pincode"`
	Reason     string   `json:"reason"`
	Date       string   `json:"date"`
	Reports    []string `json:"report"`
}

// Record is a stored registration.
type Record struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36" bson:"_id"`
	RegistrationID string    `json:"registrationId" gorm:"uniqueIndex;size:32;not null" bson:"registrationId"`
	Name           string    `json:"name" gorm:"not null" bson:"name"`
	Email          string    `json:"email" gorm:"index;not null" bson:"email"`
	Age            int       `json:"age" bson:"age"`
	Gender         string    `json:"gender" bson:"gender"`
	Contact        string    `json:"contact" bson:"contact"`
	Address        string    `json:"address" bson:"address"`
	Department     string    `json:"department" bson:"department"`
	Pincode        string    `json:"pincode" bson:"pincode"`
	Reason         string    `json:"reason" bson:"reason"`
	Date           string    `json:"date" bson:"date"`
	Reports        []string  `json:"report" gorm:"serializer:json" bson:"report"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index" bson:"createdAt"`
}

// TableName pins the table name.
func (Record) TableName() string { return "opd_registrations" }

// Repository stores registrations. LatestByEmail returns the most recently
// created record for the address.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	LatestByEmail(ctx context.Context, email string) (*Record, error)
}

// Config names the counter and prefix used for identifiers.
type Config struct {
	SequenceName string `yaml:"sequence_name"`
	Prefix       string `yaml:"prefix"`
}

// Service validates and stores registrations.
type Service struct {
	seq    sequence.Generator
	repo   Repository
	config Config
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService wires a Service. Empty config fields take the defaults.
func NewService(seq sequence.Generator, repo Repository, cfg Config, logger zerolog.Logger) *Service {
	if cfg.SequenceName == "" {
		cfg.SequenceName = DefaultSequenceName
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Service{
		seq:    seq,
		repo:   repo,
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Submit validates req, allocates the next identifier and stores the record.
// Validation failures never consume a sequence value.
func (s *Service) Submit(ctx context.Context, req Request) (*Record, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	n, err := s.seq.Next(ctx, s.config.SequenceName)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:             s.newID(),
		RegistrationID: s.config.Prefix + strconv.FormatInt(n, 10),
		Name:           strings.TrimSpace(req.Name),
		Email:          validate.NormalizeEmail(req.Email),
		Age:            req.Age,
		Gender:         req.Gender,
		Contact:        req.Contact,
		Address:        req.Address,
		Department:     req.Department,
		Pincode:        req.Pincode,
		Reason:         req.Reason,
		Date:           req.Date,
		Reports:        append([]string{}, req.Reports...),
		CreatedAt:      s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Error().
			Err(err).
			Str("registration_id", rec.RegistrationID).
			Str("email", internal.RedactEmail(rec.Email)).
			Msg("opd registration not stored; identifier orphaned")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return rec, nil
}

// LatestByEmail returns the newest registration for email.
func (s *Service) LatestByEmail(ctx context.Context, email string) (*Record, error) {
	email = validate.NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return s.repo.LatestByEmail(ctx, email)
}

func validateRequest(req Request) error {
	var v validate.Errors
	v.Required("name", req.Name)
	if req.Age <= 0 || req.Age > 150 {
		v.Add("age", "must be between 1 and 150")
	}
	v.Email("email", req.Email)
	return v.Err()
}
