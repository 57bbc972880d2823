package relayer

import (
	"encoding/json"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/state"
)

// Phase is where a submission sits in the two-step durable record
// write/mod.rs keeps: a submission is marked Prepared before it is handed
// to the DA client and Finalized only once the client confirms it landed,
// so a crash between the two never double-reports a height as final
// without also being able to tell the submission was in flight.
type Phase string

const (
	// PhaseFinalized is also the phase Load reports for a key that has
	// never been written: nothing has been prepared yet.
	PhaseFinalized Phase = "finalized"
	PhasePrepared  Phase = "prepared"
)

// Record is the durable submission-state record persisted after every
// transition.
type Record struct {
	Phase              Phase  `json:"phase"`
	MaxSequencerHeight int64  `json:"max_sequencer_height"`
	CelestiaHeight     uint64 `json:"celestia_height,omitempty"`
}

const stateKey = "relayer/submission_state"

// SubmissionState persists Record across restarts using the same
// Backend abstraction the application's own storage façade is built on, so
// a restart resumes exactly where the last confirmed submission left off
// instead of re-deriving it from DA or sequencer state.
type SubmissionState struct {
	backend state.Backend
}

// NewSubmissionState wraps backend for durable submission-state tracking.
func NewSubmissionState(backend state.Backend) *SubmissionState {
	return &SubmissionState{backend: backend}
}

// Load returns the last-persisted Record, or the zero Record (PhaseFinalized,
// height 0) if nothing has been written yet.
func (s *SubmissionState) Load() (Record, error) {
	raw, ok := s.backend.Get([]byte(stateKey))
	if !ok {
		return Record{Phase: PhaseFinalized}, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding persisted submission state: %w", err)
	}
	return rec, nil
}

// MarkPrepared records that a submission up to maxHeight is about to be
// sent to the DA layer but has not yet been confirmed.
func (s *SubmissionState) MarkPrepared(maxHeight int64) error {
	return s.save(Record{Phase: PhasePrepared, MaxSequencerHeight: maxHeight})
}

// MarkFinalized records that the in-flight submission landed at
// celestiaHeight and is now confirmed.
func (s *SubmissionState) MarkFinalized(maxHeight int64, celestiaHeight uint64) error {
	return s.save(Record{Phase: PhaseFinalized, MaxSequencerHeight: maxHeight, CelestiaHeight: celestiaHeight})
}

func (s *SubmissionState) save(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding submission state: %w", err)
	}
	s.backend.Set([]byte(stateKey), raw)
	return nil
}
