package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esperanza/internal/display"
	"esperanza/internal/events"
	"esperanza/internal/queue/models"
	"esperanza/internal/queue/store"
	"esperanza/internal/triage"
	vitalsmodels "esperanza/internal/vitals/models"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
	"esperanza/pkg/platform/sentinel"
	"esperanza/pkg/requestcontext"
)

var testNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	ages    map[domain.PatientID]int
	touched []domain.PatientID
}

func (f *fakeRegistry) Info(_ context.Context, id domain.PatientID) (*PatientInfo, error) {
	age, ok := f.ages[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &PatientInfo{ID: id, Age: age}, nil
}

func (f *fakeRegistry) TouchLastVisit(_ context.Context, id domain.PatientID, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type fixture struct {
	svc       *Service
	store     *store.InMemory
	registry  *fakeRegistry
	board     *display.MemoryBoard
	publisher *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewInMemory(),
		registry: &fakeRegistry{ages: map[domain.PatientID]int{
			"P-20250114-001": 30,
			"P-20250114-002": 70,
		}},
		board:     display.NewMemoryBoard(),
		publisher: events.NewRecorder(),
	}
	f.svc = New(f.store, f.registry, f.board, f.publisher, slog.Default(), nil, time.UTC, 3)
	return f
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), testNow)
}

func completedReading(t *testing.T, patientID domain.PatientID, temp float64) *vitalsmodels.Reading {
	t.Helper()
	r := vitalsmodels.NewReading(patientID, domain.DayOf(testNow), testNow)
	hr, spo2 := 72, 98.0
	sys, dia := 120, 80
	height, weight := 170.0, 70.0
	require.NoError(t, r.Apply(vitalsmodels.Partial{
		HeartRate: &hr, Temperature: &temp, SpO2: &spo2,
		Systolic: &sys, Diastolic: &dia, HeightCM: &height, WeightKG: &weight,
	}, testNow))
	r.Freeze(testNow)
	return r
}

func TestAdmit_NormalVitals(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Admit(testCtx(), "P-20250114-001", completedReading(t, "P-20250114-001", 36.6))
	require.NoError(t, err)
	require.False(t, out.AlreadyAdmitted)

	e := out.Entry
	assert.Equal(t, triage.TierNormal, e.Tier)
	assert.Equal(t, models.LaneNormal, e.Lane)
	assert.Equal(t, 1, e.Number)
	assert.Equal(t, "001", e.DisplayNumber())
	assert.Equal(t, models.StatusWaiting, e.Status)
	assert.Equal(t, []string{"Normal vitals"}, e.Reasons)
}

func TestAdmit_HighFeverRoutesToPriorityLane(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Admit(testCtx(), "P-20250114-001", completedReading(t, "P-20250114-001", 39.5))
	require.NoError(t, err)

	assert.Equal(t, triage.TierCritical, out.Entry.Tier)
	assert.Equal(t, models.LanePriority, out.Entry.Lane)
	assert.Equal(t, 300, out.Entry.Number)
	assert.Equal(t, []string{"High fever"}, out.Entry.Reasons)
}

func TestAdmit_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	reading := completedReading(t, "P-20250114-001", 36.6)

	first, err := f.svc.Admit(ctx, "P-20250114-001", reading)
	require.NoError(t, err)
	second, err := f.svc.Admit(ctx, "P-20250114-001", reading)
	require.NoError(t, err)

	assert.True(t, second.AlreadyAdmitted)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, first.Entry.Number, second.Entry.Number)
	assert.Len(t, f.publisher.OfType(events.TypeAdmitted), 1, "idempotent re-admission must not emit")
}

func TestAdmit_UnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Admit(testCtx(), "P-20250114-099", completedReading(t, "P-20250114-099", 36.6))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestAdmit_RejectsOpenReading(t *testing.T) {
	f := newFixture(t)

	open := vitalsmodels.NewReading("P-20250114-001", domain.DayOf(testNow), testNow)
	_, err := f.svc.Admit(testCtx(), "P-20250114-001", open)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestAdmit_SeniorBorderlineEscalates(t *testing.T) {
	f := newFixture(t)

	// 37.8 is borderline: HIGH only because the patient is 70.
	out, err := f.svc.Admit(testCtx(), "P-20250114-002", completedReading(t, "P-20250114-002", 37.8))
	require.NoError(t, err)
	assert.Equal(t, triage.TierHigh, out.Entry.Tier)
	assert.Equal(t, models.LanePriority, out.Entry.Lane)
	assert.Contains(t, out.Entry.Reasons, "Senior with borderline vitals")
}

func TestAdmit_TouchesLastVisitAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	_, err := f.svc.Admit(ctx, "P-20250114-001", completedReading(t, "P-20250114-001", 36.6))
	require.NoError(t, err)

	assert.Equal(t, []domain.PatientID{"P-20250114-001"}, f.registry.touched)

	emitted := f.publisher.OfType(events.TypeAdmitted)
	require.Len(t, emitted, 1)
	assert.Equal(t, 1, emitted[0].Number)

	snap, err := f.board.Current(ctx, domain.DayOf(testNow))
	require.NoError(t, err)
	require.Len(t, snap.Waiting, 1)
	assert.Equal(t, "001", snap.Waiting[0].Number)
}

type conflictingStore struct {
	store.Store
	inserts int
}

func (c *conflictingStore) Insert(context.Context, *models.Entry) error {
	c.inserts++
	return sentinel.ErrConflict
}

func TestAdmit_BoundedRetryThenFails(t *testing.T) {
	f := newFixture(t)
	cs := &conflictingStore{Store: f.store}
	svc := New(cs, f.registry, nil, nil, slog.Default(), nil, time.UTC, 3)

	_, err := svc.AdmitDirect(testCtx(), "P-20250114-001", triage.TierNormal)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Equal(t, 3, cs.inserts)
}

func TestAdmitDirect_DefaultsToNormal(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.AdmitDirect(testCtx(), "P-20250114-001", "")
	require.NoError(t, err)
	assert.Equal(t, triage.TierNormal, out.Entry.Tier)
	assert.Equal(t, []string{"Staff admission"}, out.Entry.Reasons)
}

func TestTransitions_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	out, err := f.svc.AdmitDirect(ctx, "P-20250114-001", triage.TierNormal)
	require.NoError(t, err)
	id := out.Entry.ID

	serving, err := f.svc.MarkServing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, serving.Status)

	done, err := f.svc.MarkCompleted(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.ServedAt)
	assert.Equal(t, testNow, *done.ServedAt)

	assert.Len(t, f.publisher.OfType(events.TypeServing), 1)
	assert.Len(t, f.publisher.OfType(events.TypeCompleted), 1)
}

func TestTransitions_TerminalEntryRejects(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	out, err := f.svc.AdmitDirect(ctx, "P-20250114-001", triage.TierNormal)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, out.Entry.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkServing(ctx, out.Entry.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = f.svc.MarkCompleted(ctx, out.Entry.ID)
	require.Error(t, err)
}

func TestTransitions_UnknownEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.MarkServing(testCtx(), domain.NewEntryID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCurrentQueue_OrdersByTierThenArrival(t *testing.T) {
	f := newFixture(t)

	early := requestcontext.WithTime(context.Background(), testNow)
	late := requestcontext.WithTime(context.Background(), testNow.Add(5*time.Minute))

	normal, err := f.svc.AdmitDirect(early, "P-20250114-001", triage.TierNormal)
	require.NoError(t, err)
	critical, err := f.svc.AdmitDirect(late, "P-20250114-002", triage.TierCritical)
	require.NoError(t, err)

	queue, err := f.svc.CurrentQueue(testCtx(), "")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, critical.Entry.ID, queue[0].ID)
	assert.Equal(t, normal.Entry.ID, queue[1].ID)
}

func TestCurrentDisplay_FallsBackToStore(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	svc := New(f.store, f.registry, nil, nil, slog.Default(), nil, time.UTC, 3)

	_, err := svc.AdmitDirect(ctx, "P-20250114-001", triage.TierNormal)
	require.NoError(t, err)

	snap, err := svc.CurrentDisplay(ctx, "")
	require.NoError(t, err)
	require.Len(t, snap.Waiting, 1)
	assert.Equal(t, "001", snap.Waiting[0].Number)
	assert.Empty(t, snap.NowServing)
}
