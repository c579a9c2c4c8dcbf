// internal/hook/emit.go
package hook

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/swarmd/internal/types"
)

// Emitter dispatches hook events fire-and-forget: each emission runs
// detached under a hard deadline and never returns an error to the caller.
// A semaphore bounds in-flight dispatches; when the bound is hit new
// events are dropped rather than queued, since a slow state root must not
// back-pressure the worker being instrumented.
type Emitter struct {
	ingestor *Ingestor
	sem      *semaphore.Weighted
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewEmitter creates an emitter with the given in-flight bound and
// per-event deadline (200ms by convention for tool-call instrumentation).
func NewEmitter(ingestor *Ingestor, maxInFlight int64, timeout time.Duration) *Emitter {
	return &Emitter{
		ingestor: ingestor,
		sem:      semaphore.NewWeighted(maxInFlight),
		timeout:  timeout,
	}
}

// Emit dispatches one event. It returns immediately; failures and
// timeouts are logged at debug and otherwise invisible to the caller.
func (e *Emitter) Emit(agentID types.AgentID, eventType, data string) {
	if !e.sem.TryAcquire(1) {
		slog.Debug("hook emission dropped, too many in flight", "type", eventType)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.sem.Release(1)

		done := make(chan error, 1)
		go func() {
			done <- e.ingestor.Ingest(agentID, eventType, data)
		}()

		select {
		case err := <-done:
			if err != nil {
				slog.Debug("hook emission failed", "type", eventType, "error", err)
			}
		case <-time.After(e.timeout):
			// The write may still land; we just stop waiting for it.
			slog.Debug("hook emission deadline exceeded", "type", eventType)
		}
	}()
}

// Wait blocks until all in-flight emissions have been abandoned or
// finished. Used by tests and process shutdown.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
