// Package payload defines the envelope carried inside the scannable code and
// its three-way classification on the decode side.
package payload

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/davidrys/gatepass/internal/models"
)

// Kind is the literal tag that marks an envelope as actionable by the scanner.
const Kind = "rsvp"

var (
	// ErrForeign indicates the decoded text is not a structurally parseable envelope.
	ErrForeign = errors.New("payload: foreign code")
	// ErrInvalid indicates the text parsed but carries a wrong kind, mistyped
	// fields, or no token.
	ErrInvalid = errors.New("payload: recognized but invalid")
)

// ScanPayload is the closed envelope embedded in the optical artifact. Only
// Token is authoritative; the identity fields are redundant copies carried so
// the artifact stays human-auditable without a store round trip.
type ScanPayload struct {
	Kind   string `json:"t"`
	Token  string `json:"token"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Coming bool   `json:"coming"`
}

// FromRegistrant builds the envelope for a stored record.
func FromRegistrant(r *models.Registrant) ScanPayload {
	return ScanPayload{
		Kind:   Kind,
		Token:  r.Token,
		Name:   r.Name,
		Email:  r.Email,
		Phone:  r.Phone,
		Coming: r.ComingIntent,
	}
}

// Serialize produces the compact textual encoding embedded in the code image.
func Serialize(p ScanPayload) (string, error) {
	p.Kind = Kind
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Deserialize parses decoded text back into an envelope. It returns ErrForeign
// for text that is not a JSON object, and ErrInvalid for an object that lacks
// the rsvp kind tag, a non-empty token, or carries mistyped fields. Callers
// branch on these errors; neither is fatal to the scan loop.
func Deserialize(text string) (*ScanPayload, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil, ErrForeign
	}

	var p ScanPayload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		// A field of the wrong type is still a parseable object, so it lands
		// in the recognized-but-invalid bucket; only syntax errors are foreign.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrInvalid
		}
		return nil, ErrForeign
	}

	if p.Kind != Kind || strings.TrimSpace(p.Token) == "" {
		return nil, ErrInvalid
	}

	return &p, nil
}
