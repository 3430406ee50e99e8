// Package throttle provides an adaptive throttling and task-scheduling
// engine for quota-limited remote management APIs. It multiplexes many
// logical task types over a single rolling request quota, serializes
// dispatch into a fair schedule, adapts pacing from live quota telemetry,
// and returns results asynchronously through single-assignment handles.
//
// # Quick start
//
//	t := throttle.New(throttle.WithTickInterval(500 * time.Millisecond))
//
//	def := task.NewDefinition("list-vms",
//	    func(ctx context.Context, p ListParams) ([]VM, error) {
//	        adapter.RecordRequest(ctx)
//	        return client.ListVMs(ctx, p)
//	    },
//	    task.WithExecution(task.ExecNonBlocking),
//	)
//	if err := throttle.Register(t, def); err != nil { ... }
//
//	t.Start(ctx)
//	defer t.Stop(ctx)
//
//	h, err := throttle.ExecuteWithTimeout[ListParams, []VM](t, "list-vms", params)
//	vms, err := h.Wait(ctx)
//
// # Architecture
//
// Each registered task type owns a strict-FIFO request queue. A periodic
// tick offers dispatch to the queues in fairness order (least recently
// considered first) and runs at most one request per tick system-wide.
// The adapter tracks the remote quota window from response telemetry; the
// strategy turns that window into a pacing delay (window width spread
// across the remaining allowance) and suspends dispatch globally when the
// remote throttles.
//
// The engine performs no retries and persists nothing — both belong to
// the calling layer.
package throttle
