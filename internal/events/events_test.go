package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esperanza/internal/events"
	"esperanza/internal/queue/models"
	"esperanza/internal/triage"
	"esperanza/pkg/domain"
)

var testNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

func TestFromEntry(t *testing.T) {
	day := domain.DayOf(testNow)
	e := models.NewEntry("P-20250114-001", day, triage.TierCritical, []string{"High fever"}, testNow)
	e.Number = 300

	ev := events.FromEntry(events.TypeAdmitted, e, testNow)

	assert.Equal(t, events.TypeAdmitted, ev.Type)
	assert.Equal(t, e.ID, ev.EntryID)
	assert.Equal(t, e.PatientID, ev.PatientID)
	assert.Equal(t, day, ev.Day)
	assert.Equal(t, models.LanePriority, ev.Lane)
	assert.Equal(t, 300, ev.Number)
	assert.Equal(t, "CRITICAL", ev.Tier)
	assert.Equal(t, testNow, ev.At)
}

func TestRecorder(t *testing.T) {
	rec := events.NewRecorder()
	ctx := context.Background()
	day := domain.DayOf(testNow)
	e := models.NewEntry("P-20250114-001", day, triage.TierNormal, nil, testNow)

	require.NoError(t, rec.Emit(ctx, events.FromEntry(events.TypeAdmitted, e, testNow)))
	require.NoError(t, rec.Emit(ctx, events.FromEntry(events.TypeServing, e, testNow.Add(time.Minute))))

	assert.Len(t, rec.Events(), 2)
	admitted := rec.OfType(events.TypeAdmitted)
	require.Len(t, admitted, 1)
	assert.Equal(t, e.ID, admitted[0].EntryID)
	assert.Empty(t, rec.OfType(events.TypeCancelled))
}
