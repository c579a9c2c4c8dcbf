// internal/state/eventlog.go
package state

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/swarmd/internal/types"
)

const eventTimeFormat = time.RFC3339

// EventLog is the append-only audit feed at <root>/events.log. Each event
// is one pipe-delimited, newline-terminated line:
//
//	<RFC3339 timestamp> | <agent-id> | <EVENT_TYPE> | <data>
//
// Every append is a single write to a file opened O_APPEND, so concurrent
// writers from independent processes never interleave partial lines.
// Cross-writer ordering is approximate; the log is never a coordination
// primitive.
type EventLog struct {
	path string
	mu   sync.Mutex
}

// NewEventLog creates an event log rooted at the given state directory.
func NewEventLog(root string) *EventLog {
	return &EventLog{path: filepath.Join(root, "events.log")}
}

// Path returns the log file path.
func (l *EventLog) Path() string {
	return l.path
}

// Append writes one event. Newlines in the data field are flattened so a
// record can never span lines.
func (l *EventLog) Append(event *types.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	data := strings.NewReplacer("\n", " ", "\r", " ").Replace(event.Data)
	line := fmt.Sprintf("%s | %s | %s | %s\n",
		at.UTC().Format(eventTimeFormat), event.AgentID, event.Type, data)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// All returns every parseable event in the log, in file order. Malformed
// lines are skipped.
func (l *EventLog) All() ([]*types.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if event, ok := ParseEventLine(scanner.Text()); ok {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

// Tail returns the last N events.
func (l *EventLog) Tail(limit int) ([]*types.Event, error) {
	events, err := l.All()
	if err != nil {
		return nil, err
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Follow polls the log for new complete lines and invokes the handler for
// each, until the context is cancelled. It starts at the current end of
// the file.
func (l *EventLog) Follow(ctx context.Context, poll time.Duration, handler func(*types.Event)) error {
	var offset int64
	if info, err := os.Stat(l.path); err == nil {
		offset = info.Size()
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		f, err := os.Open(l.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("open event log: %w", err)
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return fmt.Errorf("seek event log: %w", err)
		}

		reader := bufio.NewReader(f)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				// Partial line without newline stays unread until the
				// writer finishes it.
				break
			}
			offset += int64(len(line))
			if event, ok := ParseEventLine(strings.TrimSuffix(line, "\n")); ok {
				handler(event)
			}
		}
		f.Close()
	}
}

// ParseEventLine parses one pipe-delimited log line. The ok result is
// false for blank or malformed lines.
func ParseEventLine(line string) (*types.Event, bool) {
	parts := strings.SplitN(line, " | ", 4)
	if len(parts) != 4 {
		return nil, false
	}
	at, err := time.Parse(eventTimeFormat, parts[0])
	if err != nil {
		return nil, false
	}
	return &types.Event{
		At:      at,
		AgentID: types.AgentID(parts[1]),
		Type:    parts[2],
		Data:    parts[3],
	}, true
}
