package task

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// RequestQueue
// ---------------------------------------------------------------------------

func TestRequestQueue_FIFO(t *testing.T) {
	q := NewRequestQueue()

	for i := range 5 {
		q.Enqueue(NewRequest(i, func(any, error) {}))
	}
	if q.Len() != 5 {
		t.Fatalf("expected 5 pending, got %d", q.Len())
	}

	for want := range 5 {
		req, ok := q.TakeHead()
		if !ok {
			t.Fatalf("expected a request at position %d", want)
		}
		if req.Params.(int) != want {
			t.Fatalf("expected params %d, got %v", want, req.Params)
		}
	}

	if _, ok := q.TakeHead(); ok {
		t.Fatal("drained queue should report empty")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewRequestQueue()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(NewRequest(i, func(any, error) {}))
		}()
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Fatalf("expected 100 pending, got %d", q.Len())
	}

	seen := make(map[string]bool)
	for {
		req, ok := q.TakeHead()
		if !ok {
			break
		}
		key := req.ID.String()
		if seen[key] {
			t.Fatalf("duplicate request ID %s", key)
		}
		seen[key] = true
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct requests, got %d", len(seen))
	}
}

func TestNewRequest_Fields(t *testing.T) {
	before := time.Now().UTC()
	req := NewRequest("params", func(any, error) {})

	if req.ID.IsNil() {
		t.Fatal("request should carry a fresh ID")
	}
	if req.EnqueuedAt.Before(before) {
		t.Fatal("EnqueuedAt should be stamped at creation")
	}
}

func TestRequest_SettleForwardsOutcome(t *testing.T) {
	var gotValue any
	var gotErr error
	req := NewRequest(nil, func(v any, err error) {
		gotValue = v
		gotErr = err
	})

	wantErr := fmt.Errorf("remote unavailable")
	req.Settle("result", wantErr)

	if gotValue != "result" || gotErr != wantErr {
		t.Fatalf("settle did not forward outcome: value=%v err=%v", gotValue, gotErr)
	}
}

// ---------------------------------------------------------------------------
// Definitions and options
// ---------------------------------------------------------------------------

func TestNewDefinition_Defaults(t *testing.T) {
	def := NewDefinition("list-instances", func(_ context.Context, _ struct{}) (int, error) {
		return 0, nil
	})

	if def.Type != "list-instances" {
		t.Fatalf("unexpected type: %q", def.Type)
	}
	if def.Opts.Execution != ExecNonBlocking {
		t.Fatalf("expected non-blocking default, got %v", def.Opts.Execution)
	}
	if def.Opts.Timeout != 0 {
		t.Fatalf("expected zero default timeout, got %v", def.Opts.Timeout)
	}
}

func TestNewDefinition_Options(t *testing.T) {
	def := NewDefinition("start-instance", func(_ context.Context, _ string) (bool, error) {
		return true, nil
	}, WithExecution(ExecBlocking), WithTimeout(5*time.Second))

	if def.Opts.Execution != ExecBlocking {
		t.Fatalf("expected blocking, got %v", def.Opts.Execution)
	}
	if def.Opts.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", def.Opts.Timeout)
	}
}

func TestExecutionType_String(t *testing.T) {
	if ExecBlocking.String() != "blocking" {
		t.Fatalf("unexpected name: %q", ExecBlocking.String())
	}
	if ExecNonBlocking.String() != "non-blocking" {
		t.Fatalf("unexpected name: %q", ExecNonBlocking.String())
	}
}
