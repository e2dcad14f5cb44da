package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esperanza/internal/queue/models"
	"esperanza/internal/triage"
	"esperanza/pkg/domain"
	"esperanza/pkg/platform/sentinel"
)

const testDay = domain.Day("2025-01-14")

func admit(t *testing.T, s *InMemory, patient string, tier triage.Tier) *models.Entry {
	t.Helper()
	e := models.NewEntry(domain.PatientID(patient), testDay, tier, nil, time.Now())
	require.NoError(t, s.Insert(context.Background(), e))
	return e
}

func TestInMemory_SequentialAllocation(t *testing.T) {
	s := NewInMemory()

	first := admit(t, s, "P-20250114-001", triage.TierNormal)
	second := admit(t, s, "P-20250114-002", triage.TierNormal)
	priority := admit(t, s, "P-20250114-003", triage.TierCritical)

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, 300, priority.Number, "priority lane starts at its own floor")
}

func TestInMemory_LanesAreIndependent(t *testing.T) {
	s := NewInMemory()

	admit(t, s, "P-20250114-001", triage.TierCritical)
	normal := admit(t, s, "P-20250114-002", triage.TierNormal)

	assert.Equal(t, 1, normal.Number, "priority allocations must not advance the normal lane")
}

func TestNextNumber_Wrap(t *testing.T) {
	assert.Equal(t, 1, nextNumber(0, models.LaneNormal))
	assert.Equal(t, 299, nextNumber(298, models.LaneNormal))
	assert.Equal(t, 1, nextNumber(299, models.LaneNormal), "normal lane wraps to 1 after 299")
	assert.Equal(t, 300, nextNumber(0, models.LanePriority))
	assert.Equal(t, 300, nextNumber(999, models.LanePriority), "priority lane wraps to 300 after 999")
}

func TestInMemory_DuplicateActiveAdmission(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	admit(t, s, "P-20250114-001", triage.TierNormal)

	dup := models.NewEntry(domain.PatientID("P-20250114-001"), testDay, triage.TierNormal, nil, time.Now())
	err := s.Insert(ctx, dup)
	require.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemory_ReadmissionAfterCompletion(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first := admit(t, s, "P-20250114-001", triage.TierNormal)
	_, err := s.Execute(ctx, first.ID, (*models.Entry).CanServe, func(e *models.Entry) { e.ApplyServe(time.Now()) })
	require.NoError(t, err)
	_, err = s.Execute(ctx, first.ID, (*models.Entry).CanComplete, func(e *models.Entry) { e.ApplyComplete(time.Now()) })
	require.NoError(t, err)

	second := admit(t, s, "P-20250114-001", triage.TierNormal)
	assert.Equal(t, 2, second.Number, "completed numbers are not reused within the day")
}

func TestInMemory_ConcurrentAllocationIsDistinct(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := models.NewEntry(domain.PatientID(fmt.Sprintf("P-20250114-%03d", i+1)),
				testDay, triage.TierNormal, nil, time.Now())
			if err := s.Insert(ctx, e); err == nil {
				numbers <- e.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for num := range numbers {
		assert.False(t, seen[num], "number %d issued twice", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestInMemory_ExecuteValidateFailureDoesNotWrite(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	e := admit(t, s, "P-20250114-001", triage.TierNormal)
	_, err := s.Execute(ctx, e.ID, (*models.Entry).CanServe, func(e *models.Entry) { e.ApplyServe(time.Now()) })
	require.NoError(t, err)

	_, err = s.Execute(ctx, e.ID, (*models.Entry).CanServe, func(e *models.Entry) { e.ApplyServe(time.Now()) })
	require.Error(t, err)

	got, err := s.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, got.Status)
}

func TestInMemory_ListActiveOrder(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	base := time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)
	late := models.NewEntry("P-20250114-001", testDay, triage.TierNormal, nil, base.Add(2*time.Minute))
	critical := models.NewEntry("P-20250114-002", testDay, triage.TierCritical, nil, base.Add(3*time.Minute))
	early := models.NewEntry("P-20250114-003", testDay, triage.TierNormal, nil, base)
	for _, e := range []*models.Entry{late, critical, early} {
		require.NoError(t, s.Insert(ctx, e))
	}

	active, err := s.ListActive(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, critical.ID, active[0].ID, "critical outranks arrival order")
	assert.Equal(t, early.ID, active[1].ID)
	assert.Equal(t, late.ID, active[2].ID)
}
