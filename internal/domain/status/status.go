// Package status owns the single process-wide training status record.
//
// All mutation goes through the defined transition operations; every
// successful mutation is mirrored to registered listeners as a broadcast
// update. Reads return copies, never the live record.
package status

import (
	"fmt"
	"sync"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
)

// Progress band boundaries. Preparation occupies [0,25); training maps
// epochs onto [25,95]; the final 5 points are reserved for completion.
const (
	prepBandEnd       = 25.0
	trainBandSpan     = 70.0
	trainProgressCap  = 95.0
	completedProgress = 100.0
)

// Listener receives a broadcast update after each status mutation.
type Listener func(model.StatusUpdate)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithListener registers a listener at construction time.
func WithListener(fn Listener) Option {
	return func(s *Store) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// Store is the single-instance training status record with guarded
// transitions.
type Store struct {
	mu        sync.RWMutex
	cur       model.TrainingStatus
	listeners []Listener
}

// NewStore creates a status store in the idle state.
func NewStore(opts ...Option) *Store {
	s := &Store{
		cur: model.TrainingStatus{Status: model.StatusIdle},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnChange registers an additional listener. Listeners are invoked
// synchronously, outside the store lock, in registration order.
func (s *Store) OnChange(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Get returns a copy of the current status snapshot.
func (s *Store) Get() model.TrainingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Start transitions idle/terminal -> preparing. The check and the reset
// happen under one lock, so two near-simultaneous starts cannot both win.
func (s *Store) Start(cfg model.TrainingConfig) error {
	s.mu.Lock()
	if s.cur.Status.Active() {
		s.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrAlreadyActive, s.cur.Status)
	}
	s.cur = model.TrainingStatus{
		Status:      model.StatusPreparing,
		Progress:    0,
		TotalEpochs: cfg.Epochs,
		Message:     "Preparing dataset...",
	}
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// AdvancePreparation moves progress within the preparation band. Values are
// clamped below the band end and never move backwards.
func (s *Store) AdvancePreparation(pct float64, message string) {
	s.mu.Lock()
	if s.cur.Status != model.StatusPreparing {
		s.mu.Unlock()
		return
	}
	if pct >= prepBandEnd {
		pct = prepBandEnd - 1
	}
	if pct > s.cur.Progress {
		s.cur.Progress = pct
	}
	if message != "" {
		s.cur.Message = message
	}
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
}

// AdvanceTraining records an epoch transition. Overall progress is the
// preparation band plus the epoch fraction of the training band, capped
// until Complete is called. A non-positive loss or accuracy reading keeps
// the previous valid value.
func (s *Store) AdvanceTraining(epoch, total int, loss, accuracy float64) {
	if total < 1 {
		return
	}
	if epoch > total {
		epoch = total
	}

	s.mu.Lock()
	if !s.cur.Status.Active() {
		s.mu.Unlock()
		return
	}
	s.cur.Status = model.StatusTraining
	s.cur.CurrentEpoch = epoch
	s.cur.TotalEpochs = total

	pct := prepBandEnd + float64(epoch)/float64(total)*trainBandSpan
	if pct > trainProgressCap {
		pct = trainProgressCap
	}
	if pct > s.cur.Progress {
		s.cur.Progress = pct
	}

	if loss > 0 {
		l := loss
		s.cur.Loss = &l
	}
	if accuracy > 0 {
		a := accuracy
		s.cur.Accuracy = &a
	}
	s.cur.Message = fmt.Sprintf("Training epoch %d/%d", epoch, total)
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
}

// RecordLoss updates the latest loss reading on its own, for loss lines
// that arrive between epoch markers. Invalid readings are ignored.
func (s *Store) RecordLoss(loss float64) {
	if loss <= 0 {
		return
	}

	s.mu.Lock()
	if !s.cur.Status.Active() {
		s.mu.Unlock()
		return
	}
	l := loss
	s.cur.Loss = &l
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
}

// Complete marks the run finished. Callers must have validated the model
// artifact before this transition.
func (s *Store) Complete(modelPath string) {
	s.mu.Lock()
	s.cur.Status = model.StatusCompleted
	s.cur.Progress = completedProgress
	s.cur.ModelPath = modelPath
	s.cur.Message = "Training completed"
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
}

// Fail marks the run failed with a human-readable reason. Valid at any
// point; the next Start resets the record.
func (s *Store) Fail(reason string) {
	s.mu.Lock()
	s.cur.Status = model.StatusFailed
	s.cur.Message = reason
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
}

// Stop is the user-initiated transition back to idle.
func (s *Store) Stop() error {
	s.mu.Lock()
	if !s.cur.Status.Active() {
		s.mu.Unlock()
		return ErrNoActiveRun
	}
	s.cur = model.TrainingStatus{
		Status:  model.StatusIdle,
		Message: "Training stopped",
	}
	snapshot := s.cur
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

func (s *Store) notify(snapshot model.TrainingStatus) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	update := model.NewStatusUpdate(snapshot)
	for _, fn := range listeners {
		fn(update)
	}
}
