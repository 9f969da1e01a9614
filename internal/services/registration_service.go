package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidrys/gatepass/internal/codes"
	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/payload"
	"github.com/davidrys/gatepass/internal/store"
	"github.com/davidrys/gatepass/pkg/metrics"
	"github.com/davidrys/gatepass/pkg/token"
	"github.com/davidrys/gatepass/pkg/validator"
)

// Collision retries are cheap insurance the token space makes almost
// unnecessary; a third consecutive duplicate means something is broken.
const defaultCreateAttempts = 3

// Identity carries the caller-supplied registrant fields. All of them are
// immutable once the record exists.
type Identity struct {
	Name  string `json:"name" validate:"required,max=128"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=7,max=32"`
}

// RegistrationOption customises RegistrationService behaviour.
type RegistrationOption func(*RegistrationService)

// WithTokenLength overrides the generated token length.
func WithTokenLength(length int) RegistrationOption {
	return func(s *RegistrationService) {
		if length > 0 {
			s.tokenLength = length
		}
	}
}

// WithEncodeOptions overrides QR rendering options for issued artifacts.
func WithEncodeOptions(opts codes.EncodeOptions) RegistrationOption {
	return func(s *RegistrationService) {
		s.encodeOpts = opts
	}
}

// WithRegistrationClock injects a custom clock primarily for testing.
func WithRegistrationClock(clock func() time.Time) RegistrationOption {
	return func(s *RegistrationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// RegistrationService issues tokens, persists registrant records, and renders
// their optical artifacts.
type RegistrationService struct {
	registrants *store.Registrants
	tokenLength int
	encodeOpts  codes.EncodeOptions
	now         func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(registrants *store.Registrants, opts ...RegistrationOption) (*RegistrationService, error) {
	if registrants == nil {
		return nil, errors.New("registration service: registrant store is required")
	}

	service := &RegistrationService{
		registrants: registrants,
		tokenLength: token.DefaultLength,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Register validates the identity, issues a fresh token and creates the
// record in invited status. Duplicate tokens from the store trigger a retry
// with a new token.
func (s *RegistrationService) Register(ctx context.Context, identity Identity, comingIntent bool) (*models.Registrant, error) {
	identity.Name = strings.TrimSpace(identity.Name)
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	identity.Phone = strings.TrimSpace(identity.Phone)

	if err := validator.ValidateStruct(identity); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < defaultCreateAttempts; attempt++ {
		tok, err := token.Generate(s.tokenLength)
		if err != nil {
			return nil, fmt.Errorf("registration service: %w", err)
		}

		record := &models.Registrant{
			Token:        tok,
			Name:         identity.Name,
			Email:        identity.Email,
			Phone:        identity.Phone,
			ComingIntent: comingIntent,
			Status:       models.StatusInvited,
			CreatedAt:    s.now(),
		}

		if err := s.registrants.Create(ctx, record); err != nil {
			if errors.Is(err, store.ErrDuplicateToken) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("registration service: %w", err)
		}

		metrics.Registrations.Inc()
		return record, nil
	}

	return nil, fmt.Errorf("registration service: token space exhausted after %d attempts: %w", defaultCreateAttempts, lastErr)
}

// Get returns one registrant by token.
func (s *RegistrationService) Get(ctx context.Context, tok string) (*models.Registrant, error) {
	return s.registrants.Get(ctx, tok)
}

// List returns registrants filtered by optional status.
func (s *RegistrationService) List(ctx context.Context, status string, page, perPage int) ([]models.Registrant, int64, error) {
	return s.registrants.List(ctx, status, page, perPage)
}

// Artifact renders the QR PNG for an existing registration. The payload
// embeds the current stored identity fields, never caller-supplied ones.
func (s *RegistrationService) Artifact(ctx context.Context, tok string) ([]byte, error) {
	record, err := s.registrants.Get(ctx, tok)
	if err != nil {
		return nil, err
	}

	text, err := payload.Serialize(payload.FromRegistrant(record))
	if err != nil {
		return nil, fmt.Errorf("registration service: serialize payload: %w", err)
	}

	png, err := codes.EncodePNG(text, s.encodeOpts)
	if err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	}
	return png, nil
}
