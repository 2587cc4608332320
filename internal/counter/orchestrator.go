package counter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/blockedby/chatcount/internal/logger"
)

// orchestrator errors
var (
	ErrAlreadyRunning = errors.New("a counting run is already in progress")
	ErrEmptyQueue     = errors.New("no chat targets queued")
	ErrNoSessions     = errors.New("no sessions available")
)

// State is the orchestrator lifecycle state.
type State string

// lifecycle states
const (
	StateIdle        State = "IDLE"
	StateDispatching State = "DISPATCHING"
	StateRunning     State = "RUNNING"
	StateCancelling  State = "CANCELLING"
)

// UserFilter answers membership questions about user ids
// (whitelist/blacklist rosters).
type UserFilter interface {
	Contains(id int64) bool
}

// noFilter matches nothing.
type noFilter struct{}

func (noFilter) Contains(int64) bool { return false }

// Options tunes an orchestrator.
type Options struct {
	Whitelist UserFilter
	Blacklist UserFilter
	// Buffer sizes the outbound event channel.
	Buffer int
}

// Orchestrator owns the target queue, decides single- versus
// multi-session dispatch, launches and cancels workers, and folds
// worker events into per-chat counts and overall progress. All shared
// aggregates are mutated only from its event loop; the outside world
// talks to it through commands in and events out.
type Orchestrator struct {
	sessions  SessionSource
	whitelist UserFilter
	blacklist UserFilter
	log       *logger.Logger

	mu     sync.Mutex
	state  State
	queue  []ChatTarget
	counts map[string]*Counts

	progress *Progress
	events   chan Event

	cancelFlag *atomic.Bool
	runCtx     context.Context
	runCancel  context.CancelFunc
	runDone    chan struct{}
}

// New creates an idle orchestrator over the given sessions.
func New(sessions SessionSource, opts Options) *Orchestrator {
	if opts.Whitelist == nil {
		opts.Whitelist = noFilter{}
	}
	if opts.Blacklist == nil {
		opts.Blacklist = noFilter{}
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}

	return &Orchestrator{
		sessions:  sessions,
		whitelist: opts.Whitelist,
		blacklist: opts.Blacklist,
		log:       logger.Get(),
		state:     StateIdle,
		counts:    make(map[string]*Counts),
		progress:  NewProgress(),
		events:    make(chan Event, opts.Buffer),
	}
}

// Events returns the outbound event stream. Per worker the order
// matches emission order; events of concurrent workers interleave.
// The channel is never closed; consumers stop reading after Wait.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Enqueue parses raw range text and appends the resulting targets to
// the queue. Returns how many targets were queued; malformed input
// simply queues nothing.
func (o *Orchestrator) Enqueue(rawStart, rawEnd string) int {
	targets := ParseRanges(rawStart, rawEnd)
	o.EnqueueTargets(targets)
	return len(targets)
}

// EnqueueTargets appends pre-built targets to the queue.
func (o *Orchestrator) EnqueueTargets(targets []ChatTarget) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, targets...)
	for _, t := range targets {
		o.log.Info().Str("target", t.String()).Msg("orchestrator: target queued")
	}
}

// QueueLen returns how many targets are waiting.
func (o *Orchestrator) QueueLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Overall returns the overall progress fraction in [0,1].
func (o *Orchestrator) Overall() float64 {
	return o.progress.Overall()
}

// ChatCounts returns a snapshot of the accumulated counts for a chat.
func (o *Orchestrator) ChatCounts(chat string) (CountsSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.counts[chat]
	if !ok {
		return CountsSnapshot{}, false
	}
	return c.Snapshot(), true
}

// AllCounts returns snapshots for every chat counted in this run.
func (o *Orchestrator) AllCounts() map[string]CountsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]CountsSnapshot, len(o.counts))
	for chat, c := range o.counts {
		out[chat] = c.Snapshot()
	}
	return out
}

// Start begins draining the queue. With useAllSessions and more than
// one registered session each target's range is split across all
// sessions; otherwise targets run one session, one at a time.
// Returns immediately; follow Events and Wait for completion.
func (o *Orchestrator) Start(useAllSessions bool) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(o.queue) == 0 {
		o.mu.Unlock()
		return ErrEmptyQueue
	}
	if len(o.sessions.Names()) == 0 {
		o.mu.Unlock()
		return ErrNoSessions
	}

	o.state = StateDispatching
	o.counts = make(map[string]*Counts)
	o.cancelFlag = &atomic.Bool{}
	o.runCtx, o.runCancel = context.WithCancel(context.Background())
	o.runDone = make(chan struct{})
	done := o.runDone
	o.mu.Unlock()

	o.progress.Reset()
	o.log.Info().Bool("all_sessions", useAllSessions).Msg("orchestrator: run starting")

	go func() {
		defer close(done)
		o.run(useAllSessions)
	}()

	return nil
}

// Wait blocks until the current run has fully stopped. Returns
// immediately when no run is active.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.runDone
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel asks every in-flight job to stop and waits until the workers
// observed it. Queued targets that never started are dropped.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	o.state = StateCancelling
	o.queue = nil
	flag := o.cancelFlag
	cancel := o.runCancel
	done := o.runDone
	o.mu.Unlock()

	o.log.Info().Msg("orchestrator: cancelling run")
	if flag != nil {
		flag.Store(true)
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// run drains the queue, one target at a time.
func (o *Orchestrator) run(useAllSessions bool) {
	defer o.finishRun()

	for {
		if o.cancelFlag.Load() {
			return
		}

		target, ok := o.popTarget()
		if !ok {
			return
		}
		o.runTarget(target, useAllSessions)
	}
}

// finishRun pins progress and returns to idle.
func (o *Orchestrator) finishRun() {
	o.progress.Finish()
	o.mu.Lock()
	o.state = StateIdle
	o.runCancel = nil
	o.mu.Unlock()
	o.log.Info().Msg("orchestrator: run finished")
}

func (o *Orchestrator) popTarget() (ChatTarget, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return ChatTarget{}, false
	}
	target := o.queue[0]
	o.queue = o.queue[1:]
	if o.counts[target.Chat] == nil {
		o.counts[target.Chat] = NewCounts()
	}
	return target, true
}

// runTarget dispatches one target and blocks until every worker for it
// reported a terminal event.
func (o *Orchestrator) runTarget(target ChatTarget, useAllSessions bool) {
	// each target starts a fresh progress bar; the never-backwards
	// clamp on session fractions is scoped to one job
	o.progress.Reset()

	names := o.sessions.Names()
	multi := useAllSessions && len(names) > 1

	var jobs []*Job
	if multi {
		subs, ok := o.probeAndSplit(target, len(names))
		if !ok {
			return // probe already emitted the terminal event
		}
		for i, sub := range subs {
			jobs = append(jobs, NewJob(
				ChatTarget{Chat: target.Chat, StartID: sub.Start, EndID: sub.End},
				names[i],
				o.cancelFlag,
			))
		}
	} else {
		jobs = []*Job{NewJob(target, names[0], o.cancelFlag)}
	}

	workerEvents := make(chan Event, 64)
	var wg sync.WaitGroup

	for _, job := range jobs {
		client, err := o.sessions.Acquire(job.Session)
		if err != nil {
			// one job per session is an invariant; a busy session here
			// means the previous run leaked, surface and skip
			o.log.Error().Err(err).Str("session", job.Session).Msg("orchestrator: session unavailable")
			o.emit(WorkerFailed{Chat: job.Target.Chat, Session: job.Session, Err: err})
			continue
		}

		wg.Add(1)
		go func(job *Job, client SessionClient) {
			defer wg.Done()
			defer o.sessions.Release(job.Session)
			NewWorker(client).Run(o.runCtx, job, workerEvents)
		}(job, client)

		o.log.Info().
			Str("session", job.Session).
			Str("target", job.Target.String()).
			Msg("orchestrator: worker dispatched")
	}

	o.setState(StateRunning)

	go func() {
		wg.Wait()
		close(workerEvents)
	}()

	for ev := range workerEvents {
		o.handleEvent(target.Chat, ev)
	}
}

// probeAndSplit resolves the chat on the first session, establishes
// the missing start bound from the latest message and partitions the
// range across sessions. On failure the terminal event for the target
// is emitted here.
func (o *Orchestrator) probeAndSplit(target ChatTarget, sessionCount int) ([]Subrange, bool) {
	names := o.sessions.Names()
	client, err := o.sessions.Acquire(names[0])
	if err != nil {
		o.emit(WorkerFailed{Chat: target.Chat, Session: names[0], Err: err})
		return nil, false
	}
	defer o.sessions.Release(names[0])

	ctx := o.runCtx

	if !client.IsAuthorized(ctx) {
		o.emit(SessionUnauthorized{Session: client.Name()})
		return nil, false
	}

	peer, err := client.Resolve(ctx, target.Chat)
	if err != nil {
		o.log.Warn().Err(err).Str("chat", target.Chat).Msg("orchestrator: probe failed to resolve chat")
		o.emit(ChatNotFound{Chat: target.Chat, Session: client.Name()})
		return nil, false
	}

	startID := target.StartID
	if startID == NoMessageID {
		msg, err := client.History(peer, 0, 1).Next(ctx)
		if err != nil || msg == nil {
			o.log.Error().Err(err).Str("chat", target.Chat).Msg("orchestrator: failed to load the latest message")
			o.emit(WorkerFailed{Chat: target.Chat, Session: client.Name(), Err: errors.New("failed to load the latest message")})
			return nil, false
		}
		startID = msg.ID
	}

	endID := target.EndID
	if endID == NoMessageID {
		endID = 1
	}

	subs := Split(startID, endID, sessionCount)
	if len(subs) == 0 {
		o.emit(ChatNotFound{Chat: target.Chat, Session: client.Name()})
		return nil, false
	}

	o.log.Info().
		Str("chat", target.Chat).
		Int("start_id", startID).
		Int("end_id", endID).
		Int("subranges", len(subs)).
		Msg("orchestrator: range split across sessions")

	return subs, true
}

// handleEvent folds one worker event into the aggregates and forwards
// it to the consumer. This is the single mutation point for counts and
// progress.
func (o *Orchestrator) handleEvent(chat string, ev Event) {
	switch e := ev.(type) {
	case MessageCounted:
		o.mu.Lock()
		c := o.counts[chat]
		c.AddDeleted(Gap(e.LastSeen, e.Message.ID))
		c.AddMessage(
			e.Message.SenderID,
			o.whitelist.Contains(e.Message.SenderID),
			o.blacklist.Contains(e.Message.SenderID),
		)
		o.mu.Unlock()
		o.progress.SetSession(e.Session, Fraction(e.StartAt, e.EndAt, e.Message.ID))

	case JobFinished:
		if !e.Cancelled {
			o.mu.Lock()
			o.counts[chat].AddDeleted(TailGap(e.LastSeen, e.EndAt))
			o.mu.Unlock()
		}
		o.progress.SetSession(e.Session, 1)

	case ChatNotFound:
		o.log.Info().Str("chat", e.Chat).Msg("orchestrator: chat not found, moving on")

	case SessionUnauthorized:
		o.log.Warn().Str("session", e.Session).Msg("orchestrator: session unauthorized, moving on")

	case WorkerFailed:
		o.log.Error().Err(e.Err).Str("chat", e.Chat).Msg("orchestrator: worker failed, moving on")
	}

	o.emit(ev)
}

// emit forwards an event to the outbound channel.
func (o *Orchestrator) emit(ev Event) {
	o.events <- ev
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	// never mask an in-progress cancellation
	if o.state != StateCancelling {
		o.state = s
	}
	o.mu.Unlock()
}
