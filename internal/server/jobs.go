package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/copyleftdev/divrect/internal/errors"
	"github.com/copyleftdev/divrect/internal/optimization"
)

// JobStatus is the lifecycle state of an optimization job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// OptimizationState represents the state of an optimization job.
// Fields are guarded by the owning jobStore's lock.
type OptimizationState struct {
	ID            string
	Objective     string
	Status        JobStatus
	StartTime     time.Time
	EndTime       *time.Time
	LastUpdated   time.Time
	MaxIterations int
	BestSolution  *optimization.Solution
	Result        *optimization.OptimizationResult
	Error         string
	Optimizer     optimization.Optimizer
	CancelFunc    context.CancelFunc
}

// progress is the fraction of the iteration budget used so far.
func (st *OptimizationState) progress(history []optimization.Evaluation) float64 {
	if st.Status == StatusCompleted {
		return 1
	}
	if st.MaxIterations == 0 {
		return 0
	}
	return min(float64(len(history))/float64(st.MaxIterations), 1)
}

func (st *OptimizationState) finish(status JobStatus, now time.Time) {
	st.Status = status
	st.EndTime = &now
	st.LastUpdated = now
}

// jobStore keeps at most limit jobs. When full, the finished job that ended
// first is evicted to make room.
type jobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*OptimizationState
	limit int
}

func newJobStore(limit int) *jobStore {
	return &jobStore{
		jobs:  make(map[string]*OptimizationState),
		limit: limit,
	}
}

func newJobID() string {
	return "opt_" + uuid.New().String()
}

// add stores state, evicting a finished job if needed. It returns the
// evicted job's ID, if any.
func (js *jobStore) add(state *OptimizationState) (string, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	var evicted string
	if js.limit > 0 && len(js.jobs) >= js.limit {
		var oldest *OptimizationState
		for _, st := range js.jobs {
			if !st.Status.Terminal() {
				continue
			}
			if oldest == nil || st.EndTime.Before(*oldest.EndTime) {
				oldest = st
			}
		}
		if oldest == nil {
			return "", fmt.Errorf("%w: %d jobs in progress", apierrors.ErrCapacity, len(js.jobs))
		}
		evicted = oldest.ID
		delete(js.jobs, evicted)
	}

	js.jobs[state.ID] = state
	return evicted, nil
}

// view runs fn on the job under the read lock.
func (js *jobStore) view(id string, fn func(*OptimizationState)) error {
	js.mu.RLock()
	defer js.mu.RUnlock()

	state, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", apierrors.ErrNotFound, id)
	}
	fn(state)
	return nil
}

// update runs fn on the job under the write lock.
func (js *jobStore) update(id string, fn func(*OptimizationState) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	state, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", apierrors.ErrNotFound, id)
	}
	return fn(state)
}

// cancelAll cancels every job that has not finished.
func (js *jobStore) cancelAll() {
	js.mu.RLock()
	defer js.mu.RUnlock()

	for _, st := range js.jobs {
		if !st.Status.Terminal() && st.CancelFunc != nil {
			st.CancelFunc()
		}
	}
}

func (js *jobStore) len() int {
	js.mu.RLock()
	defer js.mu.RUnlock()
	return len(js.jobs)
}
