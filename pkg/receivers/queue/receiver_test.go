package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflowhq/autoflow/pkg/models"
)

func TestNewReceiver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name          string
		config        map[string]any
		expectedQueue string
	}{
		{
			name: "explicit_queue",
			config: map[string]any{
				"queue": "crm_events",
				"connection": map[string]any{
					"addr":     "localhost:6379",
					"password": "",
					"db":       "0",
				},
			},
			expectedQueue: "crm_events",
		},
		{
			name:          "default_queue",
			config:        map[string]any{},
			expectedQueue: DefaultQueue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver, err := NewReceiver(tt.config, logger)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedQueue, receiver.Queue)
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected models.TriggerRequest
		errorMsg string
	}{
		{
			name:    "valid_event",
			message: `{"tenant_id":"acme","event_name":"lead.created","payload":{"lead_id":"l1"}}`,
			expected: models.TriggerRequest{
				SourceType: models.TriggerTypeEvent,
				TenantID:   "acme",
				EventName:  "lead.created",
				Payload:    map[string]any{"lead_id": "l1"},
			},
		},
		{
			name:     "not_json",
			message:  "not json at all",
			errorMsg: "invalid event message",
		},
		{
			name:     "missing_tenant",
			message:  `{"event_name":"lead.created"}`,
			errorMsg: "missing tenant_id",
		},
		{
			name:     "missing_event_name",
			message:  `{"tenant_id":"acme"}`,
			errorMsg: "missing event_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeMessage(tt.message)

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, req)
		})
	}
}
