package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule(t *testing.T) {
	s, err := NewSchedule("auto-1", "0 9 * * *")
	require.NoError(t, err)

	assert.Equal(t, "auto-1", s.AutomationID)
	assert.False(t, s.NextDueAt.IsZero())
	assert.Equal(t, 9, s.NextDueAt.Hour())
	assert.Equal(t, 0, s.NextDueAt.Minute())
}

func TestNewSchedule_InvalidExpression(t *testing.T) {
	_, err := NewSchedule("auto-1", "not a cron expression")
	require.Error(t, err)
}

func TestSchedule_IsDue(t *testing.T) {
	s, err := NewSchedule("auto-1", "*/5 * * * *")
	require.NoError(t, err)

	assert.False(t, s.IsDue(s.NextDueAt.Add(-time.Second)))
	assert.True(t, s.IsDue(s.NextDueAt))
	assert.True(t, s.IsDue(s.NextDueAt.Add(time.Minute)))
}

func TestSchedule_Advance(t *testing.T) {
	s, err := NewSchedule("auto-1", "*/5 * * * *")
	require.NoError(t, err)

	first := s.NextDueAt
	require.NoError(t, s.Advance())
	assert.False(t, s.NextDueAt.Before(first))
}

func TestSchedule_Validate(t *testing.T) {
	s := &Schedule{AutomationID: "auto-1", CronExpression: "0 0 * * *"}
	require.NoError(t, s.Validate())

	missing := &Schedule{CronExpression: "0 0 * * *"}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidSchedule)

	broken := &Schedule{AutomationID: "auto-1", CronExpression: "banana"}
	assert.Error(t, broken.Validate())
}
