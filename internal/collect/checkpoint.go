package collect

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LoopStatus is the lifecycle state of one Loop Manager run, adapted from
// the teacher's EnumerationStatus state machine for a collection loop
// instead of a repository enumeration session.
type LoopStatus string

const (
	LoopStatusInitialized LoopStatus = "initialized"
	LoopStatusInProgress  LoopStatus = "in_progress"
	LoopStatusCompleted   LoopStatus = "completed"
	LoopStatusFaulted     LoopStatus = "faulted"
)

// LoopCheckpoint is an entity recording how far one loop pass got, so a
// long-running --Loop invocation can report progress (and, if the run is
// resumed after a crash, skip straight to the next pass number). Adapted
// from the teacher's Checkpoint entity: PassNumber plays the role
// TargetID played there.
type LoopCheckpoint struct {
	id         int64
	runID      uuid.UUID
	passNumber int

	objectsProcessed int
	updatedAt        time.Time
}

// NewLoopCheckpoint creates a persisted checkpoint with an existing ID.
func NewLoopCheckpoint(id int64, runID uuid.UUID, passNumber, objectsProcessed int) *LoopCheckpoint {
	return &LoopCheckpoint{
		id:               id,
		runID:            runID,
		passNumber:       passNumber,
		objectsProcessed: objectsProcessed,
		updatedAt:        time.Now(),
	}
}

// NewTemporaryLoopCheckpoint creates a checkpoint with no persisted ID,
// for a pass that has just completed and hasn't been recorded yet.
func NewTemporaryLoopCheckpoint(runID uuid.UUID, passNumber, objectsProcessed int) *LoopCheckpoint {
	return &LoopCheckpoint{
		runID:            runID,
		passNumber:       passNumber,
		objectsProcessed: objectsProcessed,
		updatedAt:        time.Now(),
	}
}

func (c *LoopCheckpoint) ID() int64               { return c.id }
func (c *LoopCheckpoint) RunID() uuid.UUID         { return c.runID }
func (c *LoopCheckpoint) PassNumber() int          { return c.passNumber }
func (c *LoopCheckpoint) ObjectsProcessed() int    { return c.objectsProcessed }
func (c *LoopCheckpoint) UpdatedAt() time.Time     { return c.updatedAt }
func (c *LoopCheckpoint) IsTemporary() bool        { return c.id == 0 }

// SetID assigns the ID once a temporary checkpoint has been persisted.
// Panics on an already-persisted checkpoint, matching the invariant the
// teacher's entity enforces.
func (c *LoopCheckpoint) SetID(id int64) {
	if c.id != 0 {
		panic("collect: attempted to modify id of a persisted loop checkpoint")
	}
	c.id = id
}

func (c *LoopCheckpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID               int64     `json:"id"`
		RunID            string    `json:"run_id"`
		PassNumber       int       `json:"pass_number"`
		ObjectsProcessed int       `json:"objects_processed"`
		UpdatedAt        time.Time `json:"updated_at"`
	}{
		ID:               c.id,
		RunID:            c.runID.String(),
		PassNumber:       c.passNumber,
		ObjectsProcessed: c.objectsProcessed,
		UpdatedAt:        c.updatedAt,
	})
}

func (c *LoopCheckpoint) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID               int64     `json:"id"`
		RunID            string    `json:"run_id"`
		PassNumber       int       `json:"pass_number"`
		ObjectsProcessed int       `json:"objects_processed"`
		UpdatedAt        time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.id = aux.ID
	if aux.RunID != "" {
		id, err := uuid.Parse(aux.RunID)
		if err != nil {
			return err
		}
		c.runID = id
	}
	c.passNumber = aux.PassNumber
	c.objectsProcessed = aux.ObjectsProcessed
	c.updatedAt = aux.UpdatedAt
	return nil
}

// LoopState is the aggregate the Loop Manager mutates once per pass,
// adapted from the teacher's EnumerationState aggregate.
type LoopState struct {
	RunID          uuid.UUID       `json:"run_id"`
	Status         LoopStatus      `json:"status"`
	LastCheckpoint *LoopCheckpoint `json:"last_checkpoint"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// NewLoopState starts a fresh, initialized loop state for runID.
func NewLoopState(runID uuid.UUID) *LoopState {
	return &LoopState{RunID: runID, Status: LoopStatusInitialized, LastUpdated: time.Now()}
}

// UpdateCheckpoint records the outcome of a completed pass.
func (s *LoopState) UpdateCheckpoint(cp *LoopCheckpoint) {
	s.LastCheckpoint = cp
	s.LastUpdated = time.Now()
}

// UpdateStatus transitions the loop's lifecycle status.
func (s *LoopState) UpdateStatus(status LoopStatus) {
	s.Status = status
	s.LastUpdated = time.Now()
}
