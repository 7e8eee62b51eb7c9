package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tendant/simple-brief/internal/process"
	"github.com/tendant/simple-brief/internal/sink"
	"github.com/tendant/simple-brief/pkg/schema"
)

// terminal is the final outcome of one deferred brief.
type terminal struct {
	key    process.EntityKey
	status process.JobStatus
	text   string
}

func collector(ch chan<- terminal) sink.Funcs {
	return sink.Funcs{
		Completed: func(key process.EntityKey, brief string) {
			ch <- terminal{key: key, status: process.JobStatusCompleted, text: brief}
		},
		Failed: func(key process.EntityKey, reason string) {
			ch <- terminal{key: key, status: process.JobStatusFailed, text: reason}
		},
		TimedOut: func(key process.EntityKey) {
			ch <- terminal{key: key, status: process.JobStatusTimedOut}
		},
	}
}

// trackBriefs requests every key, prints immediate briefs and then waits for
// the deferred ones. It returns how many keys did not produce a brief.
func trackBriefs(ctx context.Context, d *process.Dispatcher, results <-chan terminal, keys []string, wait time.Duration, out io.Writer) int {
	failed := 0
	pending := make(map[process.EntityKey]bool)

	for _, raw := range keys {
		outcome, err := d.RequestBrief(ctx, process.EntityKey(raw))
		switch outcome.Kind {
		case process.OutcomeImmediate:
			printBrief(out, outcome.Key, outcome.Brief)
		case process.OutcomeDeferred:
			pending[outcome.Key] = true
			fmt.Fprintf(out, "%s: generating brief...\n", outcome.Key)
		case process.OutcomeDuplicate:
			fmt.Fprintf(out, "%s: already being generated\n", outcome.Key)
		default:
			failed++
			fmt.Fprintf(out, "%s: request failed: %v\n", raw, err)
		}
	}

	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			if !pending[r.key] {
				continue
			}
			delete(pending, r.key)
			switch r.status {
			case process.JobStatusCompleted:
				printBrief(out, r.key, r.text)
			case process.JobStatusFailed:
				failed++
				fmt.Fprintf(out, "%s: failed: %s\n", r.key, r.text)
			default:
				failed++
				fmt.Fprintf(out, "%s: timed out waiting for brief\n", r.key)
			}
		case <-deadline:
			return failed + abandon(d, pending, out)
		case <-ctx.Done():
			return failed + abandon(d, pending, out)
		}
	}
	return failed
}

func abandon(d *process.Dispatcher, pending map[process.EntityKey]bool, out io.Writer) int {
	for key := range pending {
		d.Cancel(key)
		fmt.Fprintf(out, "%s: gave up waiting\n", key)
	}
	return len(pending)
}

func printBrief(out io.Writer, key process.EntityKey, brief string) {
	fmt.Fprintf(out, "== %s ==\n%s\n\n", key, strings.TrimSpace(brief))
}

func formatEvent(data []byte) (string, error) {
	var event schema.BriefLifecycleEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", fmt.Errorf("decode lifecycle event: %w", err)
	}
	line := fmt.Sprintf("%s %s job=%s attempts=%d", event.Entity, event.Status, event.JobID, event.Attempts)
	if event.Message != "" {
		line += fmt.Sprintf(" message=%q", event.Message)
	}
	if event.Error != "" {
		line += fmt.Sprintf(" error=%q failure_type=%s", event.Error, event.FailureType)
	}
	return line, nil
}
