// Package trigger decides which automations a trigger signal activates.
package trigger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/autoflowhq/autoflow/pkg/models"
)

// MatchError reports an automation that was excluded from matching because
// its trigger configuration could not be interpreted. A broken automation
// never blocks its tenant's healthy ones.
type MatchError struct {
	AutomationID string
	Reason       string
}

func (e MatchError) Error() string {
	return fmt.Sprintf("automation %s excluded from matching: %s", e.AutomationID, e.Reason)
}

// Matcher matches incoming trigger requests against enabled automation
// definitions.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a trigger matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger.With("module", "trigger")}
}

// Match returns the automations activated by the request, in the order they
// were given. Candidates are expected to be enabled already; disabled or
// deleted automations are filtered defensively anyway.
func (m *Matcher) Match(req models.TriggerRequest, candidates []*models.Automation) ([]*models.Automation, []MatchError) {
	matched := make([]*models.Automation, 0)
	matchErrors := make([]MatchError, 0)

	for _, automation := range candidates {
		if !automation.Enabled || automation.DeletedAt != nil {
			continue
		}

		if req.TenantID != "" && automation.TenantID != req.TenantID {
			continue
		}

		if automation.TriggerType != req.SourceType {
			continue
		}

		ok, err := m.matches(req, automation)
		if err != nil {
			matchErrors = append(matchErrors, MatchError{
				AutomationID: automation.ID,
				Reason:       err.Error(),
			})

			continue
		}

		if ok {
			matched = append(matched, automation)
		}
	}

	return matched, matchErrors
}

func (m *Matcher) matches(req models.TriggerRequest, automation *models.Automation) (bool, error) {
	switch automation.TriggerType {
	case models.TriggerTypeEvent:
		return matchEvent(req.EventName, automation)
	case models.TriggerTypeSchedule:
		return matchSchedule(req, automation)
	case models.TriggerTypeManual, models.TriggerTypeAITool:
		return req.AutomationID == automation.ID, nil
	default:
		return false, fmt.Errorf("unknown trigger type %q", automation.TriggerType)
	}
}

// matchEvent compares the incoming event name against the configured one.
// A trailing ".*" in the configuration matches any event under that prefix,
// so "lead.*" activates on both lead.created and lead.updated.
func matchEvent(eventName string, automation *models.Automation) (bool, error) {
	configured := automation.EventName()
	if configured == "" {
		return false, fmt.Errorf("event trigger missing event_name")
	}

	if eventName == "" {
		return false, nil
	}

	if prefix, found := strings.CutSuffix(configured, ".*"); found {
		return strings.HasPrefix(eventName, prefix+"."), nil
	}

	return configured == eventName, nil
}

// matchSchedule reports whether the automation's cron expression fires on the
// tick's minute. Ticks are compared at minute granularity, so a delayed tick
// still activates the schedule it was emitted for. A zero tick means now.
func matchSchedule(req models.TriggerRequest, automation *models.Automation) (bool, error) {
	expression := automation.CronExpression()
	if expression == "" {
		return false, fmt.Errorf("schedule trigger missing cron expression")
	}

	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return false, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	tick := req.TickAt
	if tick.IsZero() {
		tick = time.Now().UTC()
	}

	tick = tick.Truncate(time.Minute)
	next := schedule.Next(tick.Add(-time.Second))

	return next.Equal(tick), nil
}
