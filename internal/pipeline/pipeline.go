// Package pipeline runs match resolution on a bounded worker pool. It owns
// the per-item match ledger, coalesces duplicate submissions for the same
// item, and publishes completion events to subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/media"
)

var (
	// ErrQueueFull is returned when the submission queue has no room.
	ErrQueueFull = errors.New("pipeline queue is full")
	// ErrNotPending is returned when an item outside the Pending state is
	// submitted for resolution.
	ErrNotPending = errors.New("item is not pending")
	// ErrBusy is returned for manual actions on an item whose resolution is
	// currently in flight.
	ErrBusy = errors.New("item resolution is in flight")
	// ErrUnknownItem is returned for actions on an item never submitted.
	ErrUnknownItem = errors.New("unknown media item")
	// ErrClosed is returned after Stop.
	ErrClosed = errors.New("pipeline is stopped")
)

// Event types published to the broadcaster.
const (
	EventCompleted = "match.completed"
	EventFailed    = "match.failed"
	EventCancelled = "match.cancelled"
	EventManual    = "match.manual"
	EventSkipped   = "match.skipped"
)

// Resolver is the slice of the matching engine the pipeline drives.
type Resolver interface {
	Resolve(ctx context.Context, query media.MediaQuery) (*match.Resolution, error)
	Search(ctx context.Context, query media.MediaQuery) ([]media.Candidate, error)
}

// Broadcaster delivers asynchronous completion events. Delivery is best
// effort; the pipeline never blocks on a slow subscriber.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Config holds the worker pool settings.
type Config struct {
	// Workers is the pool size. Zero or negative means 2 x GOMAXPROCS,
	// since resolution work is network-bound.
	Workers int
	// QueueSize bounds the number of accepted-but-unstarted tasks.
	QueueSize int
}

// Progress is a snapshot of pipeline counters.
type Progress struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	InFlight  int    `json:"inFlight"`
}

// Event is the payload published for every completion.
type Event struct {
	TaskID   uuid.UUID         `json:"taskId"`
	Identity string            `json:"identity"`
	Match    *match.MediaMatch `json:"match,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Outcome is the terminal result of one task.
type Outcome struct {
	Match     *match.MediaMatch
	Err       error
	Cancelled bool
}

// task is one queued resolution. Its context is derived from the pipeline
// context so both individual cancellation and shutdown stop it. outcome is
// written once before done closes and read only after.
type task struct {
	id       uuid.UUID
	identity string
	query    media.MediaQuery
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	outcome  Outcome
}

// Ticket is the caller's handle on a submitted task.
type Ticket struct {
	TaskID   uuid.UUID
	Identity string
	// Coalesced is true when the submission joined an already in-flight
	// task for the same item instead of starting a new one.
	Coalesced bool

	task *task
}

// Wait blocks until the task completes or ctx expires.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.task.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cancellation of the underlying task. Safe to call at any
// point; a task cancelled before a worker picks it up never touches the
// providers.
func (t *Ticket) Cancel() {
	t.task.cancel()
}

// Outcome returns the task's terminal result. It is meaningful only after
// Wait has returned nil.
func (t *Ticket) Outcome() Outcome {
	select {
	case <-t.task.done:
		return t.task.outcome
	default:
		return Outcome{}
	}
}

// Pipeline owns the match ledger and the resolution worker pool.
type Pipeline struct {
	resolver    Resolver
	broadcaster Broadcaster
	logger      zerolog.Logger

	// mu serializes match state transitions and the in-flight claim;
	// it is never held across a provider call.
	mu       sync.Mutex
	matches  *csmap.CsMap[string, *match.MediaMatch]
	inflight *csmap.CsMap[string, *task]

	queue   chan *task
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc

	submitted atomic.Uint64
	completed atomic.Uint64
}

// New creates a pipeline and starts its workers.
func New(resolver Resolver, broadcaster Broadcaster, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		resolver:    resolver,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "pipeline").Logger(),
		matches:     csmap.Create[string, *match.MediaMatch](),
		inflight:    csmap.Create[string, *task](),
		queue:       make(chan *task, cfg.QueueSize),
		baseCtx:     ctx,
		stop:        cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	p.logger.Info().
		Int("workers", cfg.Workers).
		Int("queueSize", cfg.QueueSize).
		Msg("Pipeline started")

	return p
}

// Stop cancels all in-flight work and waits for the workers to drain, or
// for ctx to expire. Tasks still queued when the workers exit are reported
// as cancelled, so every accepted submission gets exactly one completion.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.drainQueue()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainQueue settles tasks the workers never picked up. Runs after the
// workers have exited, so it is the queue's only consumer.
func (p *Pipeline) drainQueue() {
	for {
		select {
		case t := <-p.queue:
			p.mu.Lock()
			p.inflight.Delete(t.identity)
			p.mu.Unlock()
			p.completed.Add(1)
			t.outcome = Outcome{Cancelled: true}
			t.cancel()
			close(t.done)
			p.publish(Event{TaskID: t.id, Identity: t.identity}, EventCancelled)
		default:
			return
		}
	}
}

// Identity returns the canonical identity string for a query. Two queries
// with the same identity are the same media item for ledger and coalescing
// purposes.
func Identity(query media.MediaQuery) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d",
		query.Type, match.NormalizeTitle(query.Title), query.Year, query.Season, query.Episode)
}

// Submit queues a query for resolution. A second submission for an item
// already in flight returns a coalesced ticket for the existing task rather
// than a new one, so concurrent submitters share one provider fan-out.
func (p *Pipeline) Submit(query media.MediaQuery) (*Ticket, error) {
	if p.baseCtx.Err() != nil {
		return nil, ErrClosed
	}

	identity := Identity(query)

	p.mu.Lock()
	if existing, ok := p.inflight.Load(identity); ok {
		p.mu.Unlock()
		return &Ticket{TaskID: existing.id, Identity: identity, Coalesced: true, task: existing}, nil
	}

	m, ok := p.matches.Load(identity)
	if !ok {
		m = match.NewMediaMatch(query)
		p.matches.Store(identity, m)
	}
	if m.Status != match.StatusPending {
		p.mu.Unlock()
		return nil, ErrNotPending
	}

	taskCtx, cancel := context.WithCancel(p.baseCtx)
	t := &task{
		id:       uuid.New(),
		identity: identity,
		query:    query,
		ctx:      taskCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	p.inflight.Store(identity, t)
	p.mu.Unlock()

	select {
	case p.queue <- t:
		p.submitted.Add(1)
		p.logger.Debug().
			Str("taskId", t.id.String()).
			Str("identity", identity).
			Msg("Task queued")
		return &Ticket{TaskID: t.id, Identity: identity, task: t}, nil
	default:
		p.mu.Lock()
		p.inflight.Delete(identity)
		p.mu.Unlock()
		cancel()
		close(t.done)
		return nil, ErrQueueFull
	}
}

// Cancel cancels the in-flight resolution for an item, if any.
func (p *Pipeline) Cancel(identity string) bool {
	t, ok := p.inflight.Load(identity)
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Get returns a copy of the item's current match.
func (p *Pipeline) Get(identity string) (match.MediaMatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.matches.Load(identity)
	if !ok {
		return match.MediaMatch{}, false
	}
	return snapshot(m), true
}

// List returns copies of every known match.
func (p *Pipeline) List() []match.MediaMatch {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]match.MediaMatch, 0, p.matches.Count())
	p.matches.Range(func(_ string, m *match.MediaMatch) bool {
		result = append(result, snapshot(m))
		return false
	})
	return result
}

// Accept applies a user-confirmed candidate to a Pending item. Rejected
// with ErrBusy while the item's automatic resolution is in flight.
func (p *Pipeline) Accept(identity string, candidate media.Candidate) (match.MediaMatch, error) {
	return p.manual(identity, EventManual, func(m *match.MediaMatch) error {
		return m.AcceptManual(candidate)
	})
}

// Skip marks a Pending item as deliberately unmatched.
func (p *Pipeline) Skip(identity string) (match.MediaMatch, error) {
	return p.manual(identity, EventSkipped, func(m *match.MediaMatch) error {
		return m.Skip()
	})
}

func (p *Pipeline) manual(identity, event string, fn func(*match.MediaMatch) error) (match.MediaMatch, error) {
	p.mu.Lock()
	if _, busy := p.inflight.Load(identity); busy {
		p.mu.Unlock()
		return match.MediaMatch{}, ErrBusy
	}
	m, ok := p.matches.Load(identity)
	if !ok {
		p.mu.Unlock()
		return match.MediaMatch{}, ErrUnknownItem
	}
	if err := fn(m); err != nil {
		p.mu.Unlock()
		return match.MediaMatch{}, err
	}
	snap := snapshot(m)
	p.mu.Unlock()

	p.publish(Event{Identity: identity, Match: &snap}, event)
	return snap, nil
}

// Retry re-opens a settled item and resubmits it for resolution.
func (p *Pipeline) Retry(identity string) (*Ticket, error) {
	p.mu.Lock()
	if _, busy := p.inflight.Load(identity); busy {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	m, ok := p.matches.Load(identity)
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownItem
	}
	if m.Status != match.StatusPending {
		if err := m.Reset(); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	query := m.Query
	p.mu.Unlock()

	return p.Submit(query)
}

// Progress returns a snapshot of the pipeline counters.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		InFlight:  p.inflight.Count(),
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.baseCtx.Done():
			return
		case t := <-p.queue:
			p.process(t)
		}
	}
}

// process runs one task to completion and publishes exactly one event for
// it: completed, failed, or cancelled.
func (p *Pipeline) process(t *task) {
	defer func() {
		p.mu.Lock()
		p.inflight.Delete(t.identity)
		p.mu.Unlock()
		p.completed.Add(1)
		t.cancel()
		close(t.done)
	}()

	if t.ctx.Err() != nil {
		t.outcome = Outcome{Cancelled: true}
		p.publish(Event{TaskID: t.id, Identity: t.identity}, EventCancelled)
		return
	}

	res, err := p.resolver.Resolve(t.ctx, t.query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			t.outcome = Outcome{Cancelled: true}
			p.publish(Event{TaskID: t.id, Identity: t.identity}, EventCancelled)
			return
		}
		p.logger.Error().
			Err(err).
			Str("taskId", t.id.String()).
			Str("identity", t.identity).
			Msg("Resolution failed")
		t.outcome = Outcome{Err: err}
		p.publish(Event{TaskID: t.id, Identity: t.identity, Error: err.Error()}, EventFailed)
		return
	}

	p.mu.Lock()
	m, ok := p.matches.Load(t.identity)
	if !ok {
		p.mu.Unlock()
		return
	}
	if err := m.ApplyResolution(res); err != nil {
		p.mu.Unlock()
		t.outcome = Outcome{Err: err}
		p.publish(Event{TaskID: t.id, Identity: t.identity, Error: err.Error()}, EventFailed)
		return
	}
	snap := snapshot(m)
	p.mu.Unlock()

	t.outcome = Outcome{Match: &snap}
	p.publish(Event{TaskID: t.id, Identity: t.identity, Match: &snap}, EventCompleted)
}

func (p *Pipeline) publish(event Event, eventType string) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Broadcast(eventType, event)
}

// snapshot copies a match so callers never share the ledger's mutable value.
func snapshot(m *match.MediaMatch) match.MediaMatch {
	clone := *m
	clone.Cast = append([]string(nil), m.Cast...)
	return clone
}
