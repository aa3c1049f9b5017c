package trigger

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflowhq/autoflow/pkg/models"
)

func eventAutomation(id, tenantID, eventName string) *models.Automation {
	return &models.Automation{
		ID:          id,
		TenantID:    tenantID,
		Enabled:     true,
		TriggerType: models.TriggerTypeEvent,
		TriggerConfig: map[string]any{
			"event_name": eventName,
		},
	}
}

func scheduleAutomation(id, tenantID, expression string) *models.Automation {
	return &models.Automation{
		ID:          id,
		TenantID:    tenantID,
		Enabled:     true,
		TriggerType: models.TriggerTypeSchedule,
		TriggerConfig: map[string]any{
			"cron": expression,
		},
	}
}

func TestMatcher_EventExactMatch(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	candidates := []*models.Automation{
		eventAutomation("a1", "tenant-a", "lead.created"),
		eventAutomation("a2", "tenant-a", "lead.updated"),
	}

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.created",
	}

	matched, matchErrors := matcher.Match(req, candidates)
	assert.Empty(t, matchErrors)
	require.Len(t, matched, 1)
	assert.Equal(t, "a1", matched[0].ID)
}

func TestMatcher_EventWildcard(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	candidates := []*models.Automation{
		eventAutomation("a1", "tenant-a", "lead.*"),
		eventAutomation("a2", "tenant-a", "deal.*"),
	}

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.stage_changed",
	}

	matched, matchErrors := matcher.Match(req, candidates)
	assert.Empty(t, matchErrors)
	require.Len(t, matched, 1)
	assert.Equal(t, "a1", matched[0].ID)

	// The wildcard requires a segment under the prefix.
	req.EventName = "lead"
	matched, _ = matcher.Match(req, candidates)
	assert.Empty(t, matched)
}

func TestMatcher_TenantIsolation(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	candidates := []*models.Automation{
		eventAutomation("a1", "tenant-a", "lead.created"),
		eventAutomation("b1", "tenant-b", "lead.created"),
	}

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-b",
		EventName:  "lead.created",
	}

	matched, _ := matcher.Match(req, candidates)
	require.Len(t, matched, 1)
	assert.Equal(t, "b1", matched[0].ID)
}

func TestMatcher_DisabledAndDeletedExcluded(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	disabled := eventAutomation("a1", "tenant-a", "lead.created")
	disabled.Enabled = false

	deleted := eventAutomation("a2", "tenant-a", "lead.created")
	now := time.Now().UTC()
	deleted.DeletedAt = &now

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.created",
	}

	matched, _ := matcher.Match(req, []*models.Automation{disabled, deleted})
	assert.Empty(t, matched)
}

func TestMatcher_MalformedConfigReportedNotFatal(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	broken := eventAutomation("broken", "tenant-a", "")
	healthy := eventAutomation("healthy", "tenant-a", "lead.created")

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeEvent,
		TenantID:   "tenant-a",
		EventName:  "lead.created",
	}

	matched, matchErrors := matcher.Match(req, []*models.Automation{broken, healthy})
	require.Len(t, matched, 1)
	assert.Equal(t, "healthy", matched[0].ID)
	require.Len(t, matchErrors, 1)
	assert.Equal(t, "broken", matchErrors[0].AutomationID)
	assert.Contains(t, matchErrors[0].Error(), "event_name")
}

func TestMatcher_ScheduleDueOnTick(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	hourly := scheduleAutomation("hourly", "tenant-a", "0 * * * *")
	daily := scheduleAutomation("daily", "tenant-a", "30 9 * * *")

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeSchedule,
		TenantID:   "tenant-a",
		TickAt:     time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
	}

	matched, matchErrors := matcher.Match(req, []*models.Automation{hourly, daily})
	assert.Empty(t, matchErrors)
	require.Len(t, matched, 1)
	assert.Equal(t, "hourly", matched[0].ID)
}

func TestMatcher_ScheduleMinuteGranularity(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	hourly := scheduleAutomation("hourly", "tenant-a", "0 * * * *")

	// A tick delayed within its minute still matches.
	req := models.TriggerRequest{
		SourceType: models.TriggerTypeSchedule,
		TenantID:   "tenant-a",
		TickAt:     time.Date(2026, 3, 5, 14, 0, 42, 0, time.UTC),
	}

	matched, _ := matcher.Match(req, []*models.Automation{hourly})
	assert.Len(t, matched, 1)

	req.TickAt = time.Date(2026, 3, 5, 14, 1, 0, 0, time.UTC)
	matched, _ = matcher.Match(req, []*models.Automation{hourly})
	assert.Empty(t, matched)
}

func TestMatcher_ScheduleZeroTickMeansNow(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	// Cover this minute and the next so a minute rollover mid-test
	// cannot flake the match.
	now := time.Now().UTC()
	next := now.Add(time.Minute)
	expression := fmt.Sprintf("%d,%d %d,%d * * *",
		now.Minute(), next.Minute(), now.Hour(), next.Hour())

	automation := scheduleAutomation("due-now", "tenant-a", expression)

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeSchedule,
		TenantID:   "tenant-a",
	}

	matched, matchErrors := matcher.Match(req, []*models.Automation{automation})
	assert.Empty(t, matchErrors)
	require.Len(t, matched, 1)
	assert.Equal(t, "due-now", matched[0].ID)
}

func TestMatcher_ScheduleInvalidCronReported(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	broken := scheduleAutomation("broken", "tenant-a", "not-a-cron")

	req := models.TriggerRequest{
		SourceType: models.TriggerTypeSchedule,
		TenantID:   "tenant-a",
		TickAt:     time.Now().UTC(),
	}

	matched, matchErrors := matcher.Match(req, []*models.Automation{broken})
	assert.Empty(t, matched)
	require.Len(t, matchErrors, 1)
	assert.Contains(t, matchErrors[0].Reason, "cron")
}

func TestMatcher_ManualTargetsExactAutomation(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	target := &models.Automation{ID: "a1", TenantID: "tenant-a", Enabled: true, TriggerType: models.TriggerTypeManual}
	other := &models.Automation{ID: "a2", TenantID: "tenant-a", Enabled: true, TriggerType: models.TriggerTypeManual}

	req := models.TriggerRequest{
		SourceType:   models.TriggerTypeManual,
		TenantID:     "tenant-a",
		AutomationID: "a1",
	}

	matched, _ := matcher.Match(req, []*models.Automation{target, other})
	require.Len(t, matched, 1)
	assert.Equal(t, "a1", matched[0].ID)
}
