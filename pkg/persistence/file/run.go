package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/autoflowhq/autoflow/pkg/models"
	"github.com/autoflowhq/autoflow/pkg/persistence"
)

// RunRepository handles run-related file operations. A single mutex
// serializes the read-modify-write cycles of AppendStep and Finalize.
type RunRepository struct {
	root string
	mu   sync.Mutex
}

// NewRunRepository creates a new run repository.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (rr *RunRepository) dir() string {
	return path.Join(rr.root, "runs")
}

// Create writes a new run record to the file system.
func (rr *RunRepository) Create(_ context.Context, run *models.Run) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	return rr.write(run)
}

// GetByID retrieves a run by its ID from the file system.
func (rr *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	return rr.read(id)
}

// AppendStep appends a step record to a run. Appending to a finalized run
// is rejected so the history of terminal runs stays immutable.
func (rr *RunRepository) AppendStep(_ context.Context, runID string, step models.StepRecord) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	run, err := rr.read(runID)
	if err != nil {
		return err
	}

	if run.Status.IsTerminal() {
		return persistence.NewRunError("AppendStep", runID, persistence.ErrRunTerminal)
	}

	run.Steps = append(run.Steps, step)

	return rr.write(run)
}

// Finalize moves a run to a terminal status. It reports false without error
// when the run is already terminal, keeping duplicate completion signals
// idempotent.
func (rr *RunRepository) Finalize(_ context.Context, runID string, status models.RunStatus, errMsg string, finishedAt time.Time) (bool, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	run, err := rr.read(runID)
	if err != nil {
		return false, err
	}

	if run.Status.IsTerminal() {
		return false, nil
	}

	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &finishedAt

	if err := rr.write(run); err != nil {
		return false, err
	}

	return true, nil
}

// ListByAutomation returns the most recent runs for an automation, newest first.
func (rr *RunRepository) ListByAutomation(_ context.Context, automationID string, limit int) ([]*models.Run, error) {
	root := os.DirFS(rr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.Run, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5]

		run, err := rr.read(id)
		if err != nil {
			return nil, err
		}

		if run.AutomationID == automationID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

func (rr *RunRepository) read(id string) (*models.Run, error) {
	filePath := filepath.Clean(path.Join(rr.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	var run models.Run

	err = json.Unmarshal(body, &run)
	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("failed to unmarshal: %w", err))
	}

	return &run, nil
}

func (rr *RunRepository) write(run *models.Run) error {
	err := os.MkdirAll(rr.dir(), 0750)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to create runs directory: %w", err))
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to marshal: %w", err))
	}

	filePath := path.Join(rr.dir(), run.ID+".json")

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}
