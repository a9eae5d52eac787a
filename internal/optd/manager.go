// Package optd is the optimizer daemon: it manages search sessions, exposes
// the HTTP and websocket control plane, and delivers completion webhooks.
package optd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/importance"
	"github.com/QuantTune-Labs/optimizer-core/internal/pruner"
	"github.com/QuantTune-Labs/optimizer-core/internal/sampler"
	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/config"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// SessionStatus is the lifecycle state of a search session
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionActive   = errors.New("session is already active")
)

// Session is one managed search: the spec it was created from, its status
// timeline, and the result once it finishes
type Session struct {
	Name            string
	RunID           string // regenerated for every batch, so webhooks and progress events are attributable
	Spec            *config.StudySpec
	Status          SessionStatus
	CreatedAtUnixMs int64
	StartedAtUnixMs int64
	EndedAtUnixMs   int64
	Error           string
	Result          *study.Result

	study  *study.Study
	cancel context.CancelFunc
}

// Manager owns the session table and drives each session's search in its
// own goroutine
type Manager struct {
	cfg      *config.Config
	store    study.Store
	hub      *Hub
	notifier *Notifier

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager over the given persistence store. hub and
// notifier may be nil when progress streaming or webhooks are not wanted.
func NewManager(cfg *config.Config, store study.Store, hub *Hub, notifier *Notifier) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		hub:      hub,
		notifier: notifier,
		sessions: make(map[string]*Session),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create validates the spec, opens (or resumes) the underlying study, and
// starts the search in the background. Re-creating a study name is allowed
// once its previous session has finished; the new session continues the
// persisted history.
func (m *Manager) Create(spec *config.StudySpec) (*Session, error) {
	if spec.Name == "" {
		spec.Name = utils.GenerateStudyName()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[spec.Name]; ok && !existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, spec.Name)
	}

	sp, err := space.NormalizeOrdered([]space.Param(spec.Params))
	if err != nil {
		return nil, err
	}

	direction := study.Direction(spec.Direction)
	if direction == "" {
		direction = study.Maximize
	}

	objective, err := BuildObjective(spec)
	if err != nil {
		return nil, err
	}

	samplerName := spec.Sampler.Type
	if samplerName == "" {
		samplerName = m.cfg.Defaults.Sampler
	}
	prunerName := spec.Pruner.Type
	if prunerName == "" {
		prunerName = m.cfg.Defaults.Pruner
	}
	seed := spec.Sampler.Seed
	if seed == 0 {
		seed = spec.Seed
	}

	st, err := study.Open(study.Options{
		Name:      spec.Name,
		Direction: direction,
		Space:     sp,
		Objective: objective,
		Sampler:   sampler.New(samplerName, seed, spec.Sampler.StartupTrials),
		Pruner: pruner.New(prunerName, pruner.Options{
			StartupTrials:   spec.Pruner.StartupTrials,
			WarmupSteps:     spec.Pruner.WarmupSteps,
			IntervalSteps:   spec.Pruner.IntervalSteps,
			MinResource:     spec.Pruner.MinResource,
			ReductionFactor: spec.Pruner.ReductionFactor,
		}),
		Store: m.store,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		Name:            spec.Name,
		RunID:           utils.GenerateRunID(),
		Spec:            spec,
		Status:          StatusPending,
		CreatedAtUnixMs: nowUnixMs(),
		study:           st,
		cancel:          cancel,
	}
	m.sessions[spec.Name] = session

	go m.execute(ctx, session)

	logger.Info("session created", "study", spec.Name, "sampler", samplerName, "pruner", prunerName)
	return session, nil
}

// execute runs the session's search to completion and settles its status
func (m *Manager) execute(ctx context.Context, session *Session) {
	m.mu.Lock()
	session.Status = StatusRunning
	session.StartedAtUnixMs = nowUnixMs()
	m.mu.Unlock()

	timeout, _ := session.Spec.GetTimeout()
	concurrency := session.Spec.Concurrency
	if concurrency <= 0 {
		concurrency = m.cfg.Defaults.Concurrency
	}

	res, err := session.study.Run(ctx, study.RunOptions{
		NTrials:     session.Spec.NTrials,
		Timeout:     timeout,
		Concurrency: concurrency,
		Progress:    m.progressFunc(session),
	})

	m.mu.Lock()
	session.Result = res
	session.EndedAtUnixMs = nowUnixMs()
	switch {
	case err != nil:
		session.Status = StatusFailed
		session.Error = err.Error()
	case res.Interrupted:
		session.Status = StatusCancelled
	default:
		session.Status = StatusCompleted
	}
	payload := m.notificationPayloadLocked(session)
	m.mu.Unlock()

	if m.hub != nil && res != nil {
		m.hub.Broadcast(ProgressEvent{
			Study:      session.Name,
			RunID:      session.RunID,
			Fraction:   1,
			TrialCount: res.TrialCount,
			BestValue:  res.BestValue,
			Final:      true,
		})
	}
	m.notifier.Notify(payload)

	logger.Info("session finished", "study", session.Name, "status", session.Status)
}

// progressFunc adapts a session to the study progress callback, forwarding
// updates to the websocket hub
func (m *Manager) progressFunc(session *Session) study.ProgressFunc {
	if m.hub == nil {
		return nil
	}
	return func(fraction float64, eta *time.Duration) {
		event := ProgressEvent{
			Study:      session.Name,
			RunID:      session.RunID,
			Fraction:   fraction,
			TrialCount: session.study.TrialCount(),
		}
		if eta != nil {
			secs := eta.Seconds()
			event.ETASeconds = &secs
		}
		if best := session.study.Best(); best != nil {
			v := *best.Value
			event.BestValue = &v
		}
		m.hub.Broadcast(event)
	}
}

// notificationPayloadLocked builds the webhook payload. Callers hold m.mu.
func (m *Manager) notificationPayloadLocked(session *Session) NotificationPayload {
	payload := NotificationPayload{
		Study:           session.Name,
		RunID:           session.RunID,
		Status:          session.Status,
		Error:           session.Error,
		CreatedAtUnixMs: session.CreatedAtUnixMs,
		EndedAtUnixMs:   session.EndedAtUnixMs,
	}
	if session.Result != nil {
		payload.TrialCount = session.Result.TrialCount
		payload.BestValue = session.Result.BestValue
		payload.BestAssignment = session.Result.BestAssignment
		payload.Interrupted = session.Result.Interrupted
	}
	return payload
}

// Run starts another batch of trials on a finished session. The new batch
// continues the study's persisted history, so trial numbering and the best
// pointer carry over.
func (m *Manager) Run(name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if !session.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	session.cancel = cancel
	session.RunID = utils.GenerateRunID()
	session.Status = StatusPending
	session.Error = ""
	session.EndedAtUnixMs = 0

	go m.execute(ctx, session)

	logger.Info("session rerun requested", "study", name, "n_trials", session.Spec.NTrials)
	return session, nil
}

// Stop requests cooperative cancellation of a running session. The session
// settles to cancelled once its in-flight trials finish.
func (m *Manager) Stop(name string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	session.cancel()
	logger.Info("session stop requested", "study", name)
	return session, nil
}

// Get returns the named session
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[name]
	return session, ok
}

// List returns all sessions, newest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUnixMs != out[j].CreatedAtUnixMs {
			return out[i].CreatedAtUnixMs > out[j].CreatedAtUnixMs
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Snapshot returns a read-consistent copy of the session's mutable fields
func (m *Manager) Snapshot(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[name]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Trials returns the terminal trial history of the named session's study
func (m *Manager) Trials(name string) ([]*study.Trial, error) {
	m.mu.RLock()
	session, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return session.study.History(), nil
}

// Best returns the best trial of the named session's study, or nil
func (m *Manager) Best(name string) (*study.Trial, error) {
	m.mu.RLock()
	session, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return session.study.Best(), nil
}

// Importance estimates parameter importance over the session's history
func (m *Manager) Importance(name string) (importance.Report, error) {
	m.mu.RLock()
	session, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	sp, err := space.NormalizeOrdered([]space.Param(session.Spec.Params))
	if err != nil {
		return nil, err
	}
	return importance.NewEstimator().Estimate(sp, session.study.History()), nil
}

// Wait blocks until the named session reaches a terminal status or the
// context is cancelled. Intended for tests and embedders.
func (m *Manager) Wait(ctx context.Context, name string) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		session, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		m.mu.RLock()
		done := session.Status.Terminal()
		m.mu.RUnlock()
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
