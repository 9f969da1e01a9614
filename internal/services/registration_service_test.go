package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/payload"
	"github.com/davidrys/gatepass/pkg/token"
	"github.com/davidrys/gatepass/pkg/validator"
)

func TestRegisterIssuesTokenAndStoresRecord(t *testing.T) {
	registrants := newRegistrantStore(t)
	current := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)

	svc, err := NewRegistrationService(registrants,
		WithRegistrationClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	record, err := svc.Register(context.Background(), Identity{
		Name:  "Ana",
		Email: "A@X.com",
		Phone: "+1 5551234567",
	}, true)
	require.NoError(t, err)

	require.Len(t, record.Token, token.DefaultLength)
	for _, r := range record.Token {
		require.True(t, strings.ContainsRune(token.Alphabet, r))
	}

	require.Equal(t, models.StatusInvited, record.Status)
	require.Equal(t, "a@x.com", record.Email, "email is normalised")
	require.True(t, record.ComingIntent)
	require.Nil(t, record.CheckedInAt)

	stored, err := registrants.Get(context.Background(), record.Token)
	require.NoError(t, err)
	require.Equal(t, record.Name, stored.Name)
}

func TestRegisterRejectsInvalidIdentity(t *testing.T) {
	svc, err := NewRegistrationService(newRegistrantStore(t))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), Identity{
		Name:  "Ana",
		Email: "not-an-email",
		Phone: "+1 5551234567",
	}, false)
	require.Error(t, err)

	var failures validator.ValidationErrors
	require.ErrorAs(t, err, &failures)
}

func TestRegisterCustomTokenLength(t *testing.T) {
	svc, err := NewRegistrationService(newRegistrantStore(t), WithTokenLength(24))
	require.NoError(t, err)

	record, err := svc.Register(context.Background(), Identity{
		Name:  "Bea",
		Email: "b@x.com",
		Phone: "+1 5550001111",
	}, false)
	require.NoError(t, err)
	require.Len(t, record.Token, 24)
}

func TestArtifactEncodesStoredPayload(t *testing.T) {
	registrants := newRegistrantStore(t)
	svc, err := NewRegistrationService(registrants)
	require.NoError(t, err)

	record := registerFixture(t, registrants, true)

	png, err := svc.Artifact(context.Background(), record.Token)
	require.NoError(t, err)
	require.Greater(t, len(png), 4)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])

	// The embedded text must round-trip back to the stored token.
	text, err := payload.Serialize(payload.FromRegistrant(record))
	require.NoError(t, err)
	parsed, err := payload.Deserialize(text)
	require.NoError(t, err)
	require.Equal(t, record.Token, parsed.Token)
}

func TestArtifactUnknownToken(t *testing.T) {
	svc, err := NewRegistrationService(newRegistrantStore(t))
	require.NoError(t, err)

	_, err = svc.Artifact(context.Background(), "nonexistent")
	require.Error(t, err)
}
