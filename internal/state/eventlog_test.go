package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/swarmd/internal/types"
)

func TestEventLogAppendAndAll(t *testing.T) {
	log := NewEventLog(t.TempDir())

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	err := log.Append(&types.Event{At: at, AgentID: "agent-a", Type: types.EventJobCreated, Data: `{"job_id":"job-1"}`})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := log.All()
	if err != nil {
		t.Fatalf("all failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	event := events[0]
	if !event.At.Equal(at) || event.AgentID != "agent-a" || event.Type != types.EventJobCreated {
		t.Errorf("round trip mismatch: %+v", event)
	}
	if event.JobID() != "job-1" {
		t.Errorf("JobID() = %s, want job-1", event.JobID())
	}
}

func TestEventLogFlattensNewlines(t *testing.T) {
	log := NewEventLog(t.TempDir())

	err := log.Append(&types.Event{AgentID: "agent-a", Type: "TOOL_BASH", Data: "line one\nline two"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	err = log.Append(&types.Event{AgentID: "agent-b", Type: types.EventGitCommit, Data: "after"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := log.All()
	if err != nil {
		t.Fatalf("all failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2; a record spanned lines", len(events))
	}
	if events[0].Data != "line one line two" {
		t.Errorf("data = %q, newlines not flattened", events[0].Data)
	}
}

func TestEventLogAllMissingFile(t *testing.T) {
	log := NewEventLog(t.TempDir())

	events, err := log.All()
	if err != nil {
		t.Fatalf("all on missing log failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from missing log", len(events))
	}
}

func TestEventLogTail(t *testing.T) {
	log := NewEventLog(t.TempDir())

	for i := 0; i < 5; i++ {
		err := log.Append(&types.Event{AgentID: "agent-a", Type: "TOOL_EDIT", Data: fmt.Sprintf("n=%d", i)})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	tail, err := log.Tail(2)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("got %d events, want 2", len(tail))
	}
	if tail[0].Data != "n=3" || tail[1].Data != "n=4" {
		t.Errorf("tail = [%s, %s], want last two", tail[0].Data, tail[1].Data)
	}
}

func TestParseEventLineMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"just some text",
		"2026-08-01T12:00:00Z | agent-a | MISSING_DATA_FIELD",
		"not-a-time | agent-a | JOB_CREATED | {}",
	} {
		if _, ok := ParseEventLine(line); ok {
			t.Errorf("ParseEventLine(%q) parsed, want rejection", line)
		}
	}
}

func TestEventLogConcurrentAppends(t *testing.T) {
	log := NewEventLog(t.TempDir())

	const writers = 10
	const each = 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			agent := types.AgentID(fmt.Sprintf("agent-%d", w))
			for i := 0; i < each; i++ {
				if err := log.Append(&types.Event{AgentID: agent, Type: "TOOL_EDIT", Data: "x"}); err != nil {
					t.Errorf("append failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	events, err := log.All()
	if err != nil {
		t.Fatalf("all failed: %v", err)
	}
	if len(events) != writers*each {
		t.Errorf("got %d events, want %d; lines interleaved or lost", len(events), writers*each)
	}
}

func TestEventLogFollow(t *testing.T) {
	log := NewEventLog(t.TempDir())

	// Pre-existing events are before the follow start offset.
	if err := log.Append(&types.Event{AgentID: "agent-a", Type: "TOOL_EDIT", Data: "old"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *types.Event, 10)
	done := make(chan error, 1)
	go func() {
		done <- log.Follow(ctx, 10*time.Millisecond, func(e *types.Event) { got <- e })
	}()

	time.Sleep(30 * time.Millisecond)
	if err := log.Append(&types.Event{AgentID: "agent-b", Type: types.EventGitCommit, Data: "new"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	select {
	case event := <-got:
		if event.Data != "new" {
			t.Errorf("followed event data = %q, want new", event.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow never delivered the new event")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("follow returned %v, want context.Canceled", err)
	}
}
