package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esperanza/internal/vitals/models"
	"esperanza/internal/vitals/store"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/requestcontext"
)

var testNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	known map[domain.PatientID]bool
}

func (f *fakeRegistry) Exists(_ context.Context, id domain.PatientID) (bool, error) {
	return f.known[id], nil
}

func newAccumulator(t *testing.T) *Accumulator {
	t.Helper()
	registry := &fakeRegistry{known: map[domain.PatientID]bool{"P-20250114-001": true}}
	return NewAccumulator(store.NewInMemory(), registry, slog.Default(), nil, time.UTC)
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), testNow)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestSubmit_AccumulatesAcrossPartials(t *testing.T) {
	acc := newAccumulator(t)
	ctx := testCtx()

	res, err := acc.Submit(ctx, "P-20250114-001", models.Partial{
		HeartRate: intPtr(72), Temperature: floatPtr(36.6),
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.ElementsMatch(t, []string{"oxygen_saturation", "blood_pressure", "height", "weight"}, res.MissingFields)

	res, err = acc.Submit(ctx, "P-20250114-001", models.Partial{
		SpO2: floatPtr(98), Systolic: intPtr(120), Diastolic: intPtr(80),
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)

	res, err = acc.Submit(ctx, "P-20250114-001", models.Partial{
		HeightCM: floatPtr(170), WeightKG: floatPtr(70),
	})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Empty(t, res.MissingFields)
	require.NotNil(t, res.Reading.BMI)
	assert.InDelta(t, 24.2, *res.Reading.BMI, 0.001)
	assert.NotNil(t, res.Reading.CompletedAt)
}

func TestSubmit_OrderDoesNotMatter(t *testing.T) {
	partials := []models.Partial{
		{HeightCM: floatPtr(170), WeightKG: floatPtr(70)},
		{SpO2: floatPtr(98)},
		{Systolic: intPtr(120), Diastolic: intPtr(80)},
		{Temperature: floatPtr(36.6)},
		{HeartRate: intPtr(72)},
	}
	orders := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}}

	for _, order := range orders {
		acc := newAccumulator(t)
		ctx := testCtx()
		var last *Result
		for _, i := range order {
			res, err := acc.Submit(ctx, "P-20250114-001", partials[i])
			require.NoError(t, err)
			last = res
		}
		require.True(t, last.Completed)
		assert.InDelta(t, 24.2, *last.Reading.BMI, 0.001)
	}
}

func TestSubmit_NewReadingAfterCompletion(t *testing.T) {
	acc := newAccumulator(t)
	ctx := testCtx()

	full := models.Partial{
		HeartRate: intPtr(72), Temperature: floatPtr(36.6), SpO2: floatPtr(98),
		Systolic: intPtr(120), Diastolic: intPtr(80),
		HeightCM: floatPtr(170), WeightKG: floatPtr(70),
	}
	first, err := acc.Submit(ctx, "P-20250114-001", full)
	require.NoError(t, err)
	require.True(t, first.Completed)

	// The completed reading is frozen; the next partial opens a new cycle.
	next, err := acc.Submit(ctx, "P-20250114-001", models.Partial{HeartRate: intPtr(80)})
	require.NoError(t, err)
	assert.False(t, next.Completed)
	assert.NotEqual(t, first.Reading.ID, next.Reading.ID)
	assert.Equal(t, 80, *next.Reading.HeartRate)
}

func TestSubmit_UnknownPatient(t *testing.T) {
	acc := newAccumulator(t)

	_, err := acc.Submit(testCtx(), "P-20250114-099", models.Partial{HeartRate: intPtr(72)})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSubmit_EmptyPartial(t *testing.T) {
	acc := newAccumulator(t)

	_, err := acc.Submit(testCtx(), "P-20250114-001", models.Partial{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestLatest_NilWhenNoCompletedReading(t *testing.T) {
	acc := newAccumulator(t)
	ctx := testCtx()

	reading, err := acc.Latest(ctx, "P-20250114-001")
	require.NoError(t, err)
	assert.Nil(t, reading)

	_, err = acc.Submit(ctx, "P-20250114-001", models.Partial{HeartRate: intPtr(72)})
	require.NoError(t, err)

	reading, err = acc.Latest(ctx, "P-20250114-001")
	require.NoError(t, err)
	assert.Nil(t, reading, "an open reading is not a completed one")
}

func TestHistory_MostRecentFirst(t *testing.T) {
	acc := newAccumulator(t)

	day1 := requestcontext.WithTime(context.Background(), testNow)
	day2 := requestcontext.WithTime(context.Background(), testNow.Add(24*time.Hour))

	_, err := acc.Submit(day1, "P-20250114-001", models.Partial{HeartRate: intPtr(72)})
	require.NoError(t, err)
	_, err = acc.Submit(day2, "P-20250114-001", models.Partial{HeartRate: intPtr(75)})
	require.NoError(t, err)

	history, err := acc.History(day2, "P-20250114-001", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.Day("2025-01-15"), history[0].Day)
	assert.Equal(t, domain.Day("2025-01-14"), history[1].Day)
}
