package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/symptom-checker/internal/monitoring"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

// Assessor classifies a completed set of answers
type Assessor interface {
	Assess(ctx context.Context, responses questionnaire.ResponseSet) (prediction.Result, error)
}

const lockStripes = 64

// Manager drives questionnaire sessions: it loads state, applies one
// transition, predicts once on completion and saves the new state.
type Manager struct {
	flow     *questionnaire.Flow
	store    Store
	assessor Assessor
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	now      func() time.Time

	// serialises transitions on the same session within this process
	locks [lockStripes]sync.Mutex
}

// NewManager creates a session manager
func NewManager(flow *questionnaire.Flow, store Store, assessor Assessor, metrics *monitoring.Metrics, logger *monitoring.Logger) *Manager {
	return &Manager{
		flow:     flow,
		store:    store,
		assessor: assessor,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Flow returns the questionnaire flow sessions step through
func (m *Manager) Flow() *questionnaire.Flow {
	return m.flow
}

func (m *Manager) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &m.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Start creates and saves a new session for the given flow
func (m *Manager) Start(ctx context.Context, kind questionnaire.Kind) (*State, error) {
	now := m.now().UTC()
	state := &State{
		ID:        NewID(),
		Progress:  m.flow.Start(kind),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, state); err != nil {
		return nil, err
	}
	m.event("started", state)
	return state, nil
}

// Get loads a session
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, id)
}

// Answer applies one answer to the session. An invalid answer returns a
// *questionnaire.AnswerError and leaves the stored state untouched.
// A non-empty question names the question raw answers; when the session has
// already moved past it the answer is dropped with ErrStaleAnswer.
func (m *Manager) Answer(ctx context.Context, id, question, raw string) (*State, error) {
	return m.update(ctx, id, func(p questionnaire.Progress) (questionnaire.Progress, error) {
		if question != "" {
			if current, ok := m.flow.Current(p); ok && current.Name != question {
				return p, ErrStaleAnswer
			}
		}
		return m.flow.Answer(p, raw)
	})
}

// Submit answers every remaining question at once, as the single-page form does
func (m *Manager) Submit(ctx context.Context, id string, answers map[string]string) (*State, error) {
	return m.update(ctx, id, func(p questionnaire.Progress) (questionnaire.Progress, error) {
		if m.flow.Complete(p) {
			return p, questionnaire.ErrComplete
		}
		return m.flow.AnswerAll(p, answers)
	})
}

func (m *Manager) update(ctx context.Context, id string, step func(questionnaire.Progress) (questionnaire.Progress, error)) (*State, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	unlock := m.lock(id)
	defer unlock()

	state, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	progress, err := step(state.Progress)
	if err != nil {
		return state, err
	}

	next := *state
	next.Progress = progress
	next.UpdatedAt = m.now().UTC()

	// classification runs once per completion
	if m.flow.Complete(progress) && next.Result == nil {
		result, err := m.assessor.Assess(ctx, progress.Responses)
		if err != nil {
			return state, err
		}
		next.Result = &result
		next.Progress = m.flow.Conclude(progress, result.Outcome, result.Confidence)
		m.event("completed", &next)
	}

	if err := m.store.Save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Restart clears answers, transcript and result while keeping the session id
func (m *Manager) Restart(ctx context.Context, id string) (*State, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	unlock := m.lock(id)
	defer unlock()

	state, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := &State{
		ID:        state.ID,
		Progress:  m.flow.Restart(state.Progress),
		CreatedAt: state.CreatedAt,
		UpdatedAt: m.now().UTC(),
	}
	if err := m.store.Save(ctx, next); err != nil {
		return nil, err
	}
	m.event("restarted", next)
	return next, nil
}

// Delete forgets a session
func (m *Manager) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrNotFound
	}
	state, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.event("deleted", state)
	return nil
}

func (m *Manager) event(name string, state *State) {
	if m.metrics != nil {
		m.metrics.RecordSession(string(state.Progress.Kind), name)
	}
	if m.logger != nil {
		m.logger.SessionLogger(name, state.ID, string(state.Progress.Kind), state.Progress.Step)
	}
}
