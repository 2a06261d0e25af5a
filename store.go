package unwind

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RunStore defines the interface for archiving terminal run records.
//
// The engine only writes finished runs: the archive exists for post-mortem
// inspection (which step failed, which compensations also failed, what the
// context held), not for resuming in-flight sagas.
type RunStore interface {
	// Save archives a terminal run record.
	Save(ctx context.Context, record RunRecord) error

	// Load retrieves a run record by saga ID.
	Load(ctx context.Context, sagaID string) (*RunRecord, error)

	// Delete removes a run record.
	Delete(ctx context.Context, sagaID string) error
}

// RunRecord is the serializable form of a terminal Result.
type RunRecord struct {
	SagaID             string         `json:"saga_id"`
	SagaName           string         `json:"saga_name"`
	Status             string         `json:"status"`
	Rollback           string         `json:"rollback"`
	Context            map[string]any `json:"context,omitempty"`
	Steps              []StepOutcome  `json:"steps,omitempty"`
	TriggeringError    string         `json:"triggering_error,omitempty"`
	CompensationErrors []string       `json:"compensation_errors,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
}

// StepOutcome records how one forward action went.
type StepOutcome struct {
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	Error     string     `json:"error,omitempty"`
}

// newRunRecord flattens a Result into its archival form.
func newRunRecord(result *Result) RunRecord {
	record := RunRecord{
		SagaID:     result.SagaID.String(),
		SagaName:   string(result.SagaName),
		Status:     result.Status.String(),
		Rollback:   result.Rollback.String(),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}

	if result.Context != nil {
		record.Context = result.Context.Snapshot()
	}

	for _, rec := range result.Records {
		outcome := StepOutcome{
			Name:      string(rec.Step),
			Status:    rec.Status,
			StartedAt: rec.StartTime,
			EndedAt:   rec.EndTime,
		}
		if rec.Error != nil {
			outcome.Error = rec.Error.Error()
		}
		record.Steps = append(record.Steps, outcome)
	}

	if result.TriggeringError != nil {
		record.TriggeringError = result.TriggeringError.Error()
	}
	for _, ce := range result.CompensationErrors {
		record.CompensationErrors = append(record.CompensationErrors, ce.Error())
	}

	return record
}

// MemoryStore provides an in-memory implementation of RunStore for testing
// or scenarios where durable archiving is not required.
type MemoryStore struct {
	records map[string]*RunRecord
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*RunRecord),
	}
}

// Save stores the run record in memory.
func (m *MemoryStore) Save(ctx context.Context, record RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keep a copy so callers can't mutate the archived record.
	recordCopy := record
	m.records[record.SagaID] = &recordCopy
	return nil
}

// Load retrieves a run record from memory.
func (m *MemoryStore) Load(ctx context.Context, sagaID string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[sagaID]
	if !exists {
		return nil, fmt.Errorf("run %s not found", sagaID)
	}

	recordCopy := *record
	return &recordCopy, nil
}

// Delete removes a run record from memory.
func (m *MemoryStore) Delete(ctx context.Context, sagaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, sagaID)
	return nil
}
