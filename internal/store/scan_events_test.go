package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/davidrys/gatepass/internal/models"
)

func TestScanEventsRecordAndRecent(t *testing.T) {
	s, err := NewScanEvents(openTestDB(t))
	require.NoError(t, err)

	for _, class := range []string{models.ScanClassForeign, models.ScanClassRSVP} {
		require.NoError(t, s.Record(context.Background(), &models.ScanEvent{
			Classification: class,
			RawText:        "raw",
			Payload:        datatypes.JSON([]byte(`{"t":"rsvp"}`)),
		}))
	}

	events, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		require.NotEmpty(t, e.ID)
	}
}

func TestScanEventsPruneBefore(t *testing.T) {
	db := openTestDB(t)
	s, err := NewScanEvents(db)
	require.NoError(t, err)

	old := &models.ScanEvent{Classification: models.ScanClassForeign}
	require.NoError(t, s.Record(context.Background(), old))
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := &models.ScanEvent{Classification: models.ScanClassRSVP}
	require.NoError(t, s.Record(context.Background(), fresh))

	pruned, err := s.PruneBefore(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	events, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.ScanClassRSVP, events[0].Classification)
}
