package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a schedule trigger configuration
// fails validation.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule tracks the precomputed next fire time for one schedule-triggered
// automation, so the scheduler daemon can poll for due entries instead of
// keeping a timer per automation.
type Schedule struct {
	AutomationID   string    `json:"automation_id" validate:"required"`
	CronExpression string    `json:"cron_expression" validate:"required"`
	NextDueAt      time.Time `json:"next_due_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSchedule creates a schedule entry with the first fire time computed
// from now.
func NewSchedule(automationID, cronExpression string) (*Schedule, error) {
	s := &Schedule{
		AutomationID:   automationID,
		CronExpression: cronExpression,
	}

	if err := s.advance(time.Now().UTC()); err != nil {
		return nil, err
	}

	return s, nil
}

// Advance recomputes NextDueAt from the current time, after a fire.
func (s *Schedule) Advance() error {
	return s.advance(time.Now().UTC())
}

func (s *Schedule) advance(from time.Time) error {
	parsed, err := cron.ParseStandard(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = parsed.Next(from)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return !s.NextDueAt.IsZero() && !s.NextDueAt.After(now)
}

// Validate checks the cron expression parses in the standard 5-field form.
func (s *Schedule) Validate() error {
	if s.AutomationID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	_, err := cron.ParseStandard(s.CronExpression)

	return err
}
