package throttle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/postsharp/teamcity-azure-agent/throttle"
	"github.com/postsharp/teamcity-azure-agent/throttle/adapter"
	"github.com/postsharp/teamcity-azure-agent/throttle/task"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopDef(typeID task.TypeID, opts ...task.Option) *task.Definition[struct{}, string] {
	return task.NewDefinition(typeID, func(ctx context.Context, _ struct{}) (string, error) {
		adapter.RecordRequest(ctx)
		return "ok", nil
	}, opts...)
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestRegister_Duplicate(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))

	if err := throttle.Register(tr, noopDef("list-vms")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := throttle.Register(tr, noopDef("list-vms"))
	if !errors.Is(err, throttle.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRegister_EmptyType(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))

	if err := throttle.Register(tr, noopDef("")); err == nil {
		t.Fatal("expected error for empty task type")
	}
}

func TestTaskList(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))

	mustRegister(t, tr, noopDef("stop-instance", task.WithExecution(task.ExecBlocking), task.WithTimeout(10*time.Second)))
	mustRegister(t, tr, noopDef("fetch-prices"))

	want := []task.Descriptor{
		{Type: "fetch-prices", Execution: task.ExecNonBlocking},
		{Type: "stop-instance", Execution: task.ExecBlocking, Timeout: 10 * time.Second},
	}
	if diff := cmp.Diff(want, tr.TaskList()); diff != "" {
		t.Fatalf("task list mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueDepth(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))
	mustRegister(t, tr, noopDef("list-vms"))

	for range 3 {
		if _, err := throttle.Execute[struct{}, string](tr, "list-vms", struct{}{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if d := tr.QueueDepth("list-vms"); d != 3 {
		t.Fatalf("expected depth 3, got %d", d)
	}
	if d := tr.QueueDepth("unknown"); d != 0 {
		t.Fatalf("expected depth 0 for unknown type, got %d", d)
	}
}

// ---------------------------------------------------------------------------
// Enqueue errors
// ---------------------------------------------------------------------------

func TestExecute_UnknownTask(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))

	_, err := throttle.Execute[struct{}, string](tr, "never-registered", struct{}{})
	if !errors.Is(err, throttle.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestExecute_AfterStop(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))
	mustRegister(t, tr, noopDef("list-vms"))

	ctx := context.Background()
	tr.Start(ctx)
	tr.Stop(ctx)

	_, err := throttle.Execute[struct{}, string](tr, "list-vms", struct{}{})
	if !errors.Is(err, throttle.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Result typing
// ---------------------------------------------------------------------------

func TestExecute_ResultTypeMismatch(t *testing.T) {
	tr := throttle.New(
		throttle.WithLogger(quietLogger()),
		throttle.WithTickInterval(5*time.Millisecond),
	)
	mustRegister(t, tr, noopDef("list-vms")) // returns string

	ctx := context.Background()
	tr.Start(ctx)
	defer tr.Stop(ctx)

	h, err := throttle.Execute[struct{}, int](tr, "list-vms", struct{}{})
	if err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = h.Wait(waitCtx)
	if err == nil || !strings.Contains(err.Error(), "result type") {
		t.Fatalf("expected result type mismatch error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestLifecycle_Transitions(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))
	ctx := context.Background()

	if tr.Stop(ctx) {
		t.Fatal("Stop before Start should be a no-op")
	}
	if !tr.Start(ctx) {
		t.Fatal("first Start should succeed")
	}
	if tr.Start(ctx) {
		t.Fatal("second Start should be a no-op")
	}
	if !tr.Stop(ctx) {
		t.Fatal("first Stop should succeed")
	}
	if tr.Stop(ctx) {
		t.Fatal("second Stop should be a no-op")
	}
	if tr.Start(ctx) {
		t.Fatal("a stopped engine must not restart")
	}
}

func TestNew_Defaults(t *testing.T) {
	tr := throttle.New(throttle.WithLogger(quietLogger()))

	if tr.EngineID().IsNil() {
		t.Fatal("engine should carry a fresh ID")
	}
	if tr.IsSuspended() {
		t.Fatal("a fresh engine should not be suspended")
	}
	if w := tr.Window(); w.RemainingReads != 12000 {
		t.Fatalf("expected default allowance 12000, got %d", w.RemainingReads)
	}
	if list := tr.TaskList(); len(list) != 0 {
		t.Fatalf("expected empty task list, got %v", list)
	}
}

func mustRegister[P, R any](t *testing.T, tr *throttle.Throttler, def *task.Definition[P, R]) {
	t.Helper()
	if err := throttle.Register(tr, def); err != nil {
		t.Fatalf("register %q: %v", def.Type, err)
	}
}
