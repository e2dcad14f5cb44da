package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esperanza/pkg/domain-errors"
)

func TestPatient_Age(t *testing.T) {
	p := &Patient{Birthdate: time.Date(1960, 3, 15, 0, 0, 0, 0, time.UTC)}

	beforeBirthday := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	onBirthday := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 64, p.Age(beforeBirthday))
	assert.Equal(t, 65, p.Age(onBirthday))
	assert.False(t, p.Senior(beforeBirthday))
	assert.True(t, p.Senior(onBirthday))
}

func TestPatient_PIN(t *testing.T) {
	p := &Patient{}

	require.NoError(t, p.SetPIN("0417"))
	assert.NotEqual(t, "0417", p.PINHash, "pin must be stored hashed")
	assert.True(t, p.VerifyPIN("0417"))
	assert.False(t, p.VerifyPIN("0000"))
}

func TestPatient_PINValidation(t *testing.T) {
	p := &Patient{}
	for _, pin := range []string{"", "123", "12345", "abcd", "12a4"} {
		err := p.SetPIN(pin)
		require.Error(t, err, "pin %q", pin)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func TestPatient_VerifyPINWithoutHash(t *testing.T) {
	p := &Patient{}
	assert.False(t, p.VerifyPIN("1234"))
}

func TestPatient_Clone(t *testing.T) {
	visit := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	p := &Patient{ID: "P-20250110-001", LastVisit: &visit}

	c := p.Clone()
	*c.LastVisit = c.LastVisit.Add(time.Hour)

	assert.Equal(t, visit, *p.LastVisit)
}
