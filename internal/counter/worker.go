package counter

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/blockedby/chatcount/internal/logger"
	"github.com/blockedby/chatcount/internal/telegram"
)

// Job binds one target (or sub-range of a target) to one session.
// The cancel flag is the only state shared between the orchestrator
// and a running worker.
type Job struct {
	Target  ChatTarget
	Session string
	cancel  *atomic.Bool
}

// NewJob creates a job sharing the given cancel flag.
func NewJob(target ChatTarget, session string, cancel *atomic.Bool) *Job {
	return &Job{Target: target, Session: session, cancel: cancel}
}

// Cancelled reports whether the orchestrator asked this job to stop.
func (j *Job) Cancelled() bool {
	return j.cancel != nil && j.cancel.Load()
}

// Worker drives one job over one session: resolves the chat, walks
// the history newest to oldest, paces fetches and emits events.
type Worker struct {
	client SessionClient
	log    *logger.Logger
}

// NewWorker creates a worker bound to a session client.
func NewWorker(client SessionClient) *Worker {
	return &Worker{
		client: client,
		log:    logger.Get(),
	}
}

// Run executes the job to completion, cancellation or failure and
// emits exactly one terminal event on out.
func (w *Worker) Run(ctx context.Context, job *Job, out chan<- Event) {
	session := w.client.Name()
	chat := job.Target.Chat

	if !w.client.IsAuthorized(ctx) {
		w.log.Warn().Str("session", session).Msg("worker: session unauthorized")
		out <- SessionUnauthorized{Session: session}
		return
	}

	peer, err := w.client.Resolve(ctx, chat)
	if err != nil {
		if errors.Is(err, telegram.ErrChatNotFound) {
			w.log.Warn().Str("chat", chat).Msg("worker: chat does not exist")
			out <- ChatNotFound{Chat: chat, Session: session}
			return
		}
		out <- WorkerFailed{Chat: chat, Session: session, Err: err}
		return
	}

	w.log.Info().
		Str("chat", chat).
		Str("session", session).
		Int("start_id", job.Target.StartID).
		Int("end_id", job.Target.EndID).
		Msg("worker: chat exists, iterating messages")

	endAt := job.Target.EndID
	if endAt == NoMessageID {
		endAt = 1
	}
	startAt := job.Target.StartID
	if startAt == NoMessageID {
		startAt = -1 // discovered from the first observed message
	}

	gov := NewGovernor()
	watchdogDone := make(chan struct{})
	go func() {
		gov.Watch(func() {
			out <- FloodWaitDetected{Chat: chat, Session: session}
		})
		close(watchdogDone)
	}()

	lastSeen, cancelled, failure := w.count(ctx, job, peer, &startAt, endAt, gov, out)

	// stop the watchdog before the terminal event so nothing trails it
	gov.Clear()
	<-watchdogDone

	if failure != nil {
		out <- WorkerFailed{Chat: chat, Session: session, Err: failure}
		return
	}
	out <- JobFinished{
		Chat:      chat,
		Session:   session,
		EndAt:     endAt,
		LastSeen:  lastSeen,
		Cancelled: cancelled,
	}
}

// count walks the history and emits MessageCounted events. Returns the
// last processed id, whether cancellation stopped the walk, and any
// fatal fetch error.
func (w *Worker) count(
	ctx context.Context,
	job *Job,
	peer *telegram.Peer,
	startAt *int,
	endAt int,
	gov *Governor,
	out chan<- Event,
) (lastSeen int, cancelled bool, failure error) {
	chat := job.Target.Chat
	session := w.client.Name()

	// Start one above the requested id: the iteration yields below the
	// offset, and arming lastSeen at start+1 makes a missing start
	// message itself count as deleted.
	lastSeen = NoLastSeen
	offsetID := 0
	if *startAt != -1 {
		offsetID = *startAt + 1
		lastSeen = *startAt + 1
	}

	iter := w.client.History(peer, offsetID, 0)

	for {
		msg, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return lastSeen, true, nil
			}
			return lastSeen, false, err
		}
		if msg == nil {
			return lastSeen, false, nil
		}

		if *startAt == -1 {
			w.log.Info().Int("message_id", msg.ID).Msg("worker: start point set from latest message")
			*startAt = msg.ID
		}

		if msg.ID < endAt {
			// end boundary is inclusive, anything older is not
			return lastSeen, false, nil
		}

		if msg.ID <= *startAt {
			out <- MessageCounted{
				Chat:     chat,
				Session:  session,
				Message:  *msg,
				StartAt:  *startAt,
				EndAt:    endAt,
				LastSeen: lastSeen,
			}
			lastSeen = msg.ID
		}

		gov.Touch()

		if err := gov.Pace(ctx, *startAt-endAt); err != nil {
			return lastSeen, true, nil
		}

		if job.Cancelled() {
			return lastSeen, true, nil
		}
	}
}
