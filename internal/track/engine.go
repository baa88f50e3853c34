package track

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	telem "github.com/rastow/panerun/internal/otel"
	"github.com/rastow/panerun/internal/shell"
	"github.com/rastow/panerun/internal/tmux"
)

// ErrNotFound marks lookups for execution ids the registry does not hold.
var ErrNotFound = errors.New("execution not found")

// Options tune the engine's polling and retry policy. Values are taken
// literally; config supplies the defaults.
type Options struct {
	// CaptureLines is the screen window re-read on every poll.
	CaptureLines int
	// DefaultTimeout bounds executions submitted without their own
	// timeout. Zero disables deadlines.
	DefaultTimeout time.Duration
	// RetryGrace is how long after a send the start marker may stay
	// unseen before the composite is re-sent.
	RetryGrace time.Duration
	// MaxRetries caps re-sends; past it the record turns error.
	MaxRetries int
	// UseHooks selects the hook protocol on panes whose dialect has a
	// real post-command hook.
	UseHooks bool
}

func (o Options) withDefaults() Options {
	if o.CaptureLines <= 0 {
		o.CaptureLines = 1000
	}
	return o
}

// SubmitOptions carry per-submission overrides. A zero Timeout inherits
// the engine default; a negative one disables the deadline entirely.
// UseHooks overrides the engine-wide protocol choice when non-nil.
type SubmitOptions struct {
	Timeout  time.Duration
	UseHooks *bool
}

// History receives terminal records for durable storage. Failures are
// logged and never block tracking.
type History interface {
	Record(e Execution) error
}

const (
	detectDeadline = 5 * time.Second
	detectInterval = 250 * time.Millisecond
	detectWindow   = 50
)

// PaneIO is the slice of the pane transport the engine drives: literal
// keystrokes in, rendered text out.
type PaneIO interface {
	SendText(target, text string) error
	SendEnter(target string) error
	SendKey(target, key string) error
	Capture(target string, lines int) (string, error)
}

// Engine orchestrates tracked executions: submit wraps and sends, poll
// re-reads the screen and advances the record, cancel aborts. It owns
// no goroutines; all progress happens inside caller-invoked operations.
type Engine struct {
	transport PaneIO
	registry  *Registry
	opts      Options

	metrics *telem.Metrics
	tracer  trace.Tracer
	history History

	detections sync.Map // pane target -> *shell.DetectionInfo
	execLocks  sync.Map // execution id -> *sync.Mutex
	paneLocks  sync.Map // pane target -> *sync.Mutex
}

func NewEngine(t PaneIO, r *Registry, opts Options) *Engine {
	return &Engine{
		transport: t,
		registry:  r,
		opts:      opts.withDefaults(),
	}
}

// SetTelemetry attaches optional metrics and tracing. Both are nil-safe.
func (e *Engine) SetTelemetry(m *telem.Metrics, tracer trace.Tracer) {
	e.metrics = m
	e.tracer = tracer
}

// SetHistory attaches a durable sink for terminal records.
func (e *Engine) SetHistory(h History) {
	e.history = h
}

func lockFor(m *sync.Map, key string) *sync.Mutex {
	v, _ := m.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Submit wraps command in per-execution markers, inserts a pending
// record, sends the composite to the pane and returns immediately. It
// never waits for the command; Poll advances the record afterwards.
func (e *Engine) Submit(ctx context.Context, pane, command string, so SubmitOptions) (Execution, error) {
	ctx, span := e.startSpan(ctx, "submit", attribute.String("pane.target", pane))
	defer span.End()

	if strings.TrimSpace(command) == "" {
		return Execution{}, errors.New("empty command")
	}
	if pane == "" {
		return Execution{}, errors.New("empty pane target")
	}

	dialect, shellName, workingDir := e.dialectFor(pane)

	id := uuid.NewString()
	start, end := markersFor(id)

	useHook := e.opts.UseHooks
	if so.UseHooks != nil {
		useHook = *so.UseHooks
	}
	useHook = useHook && dialect.HookSupported()
	var composite string
	if useHook {
		composite = hookCommand(dialect, command, start)
	} else {
		composite = wrapCommand(dialect, command, start, end)
	}

	now := time.Now()
	rec := &Execution{
		ID:          id,
		PaneTarget:  pane,
		Command:     command,
		Status:      StatusPending,
		StartedAt:   now,
		Output:      "waiting for start marker",
		ShellType:   shellName,
		WorkingDir:  workingDir,
		startMarker: start,
		endMarker:   end,
		composite:   composite,
		lastSentAt:  now,
	}
	timeout := so.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}
	if timeout > 0 {
		rec.deadline = now.Add(timeout)
	}

	e.registry.Insert(rec)

	// one submission at a time per pane, so composite lines never
	// interleave on the wire
	paneLock := lockFor(&e.paneLocks, pane)
	paneLock.Lock()
	var sendErr error
	if useHook {
		sendErr = tmux.SendLine(e.transport, pane, dialect.SetupScript(start, end))
		if sendErr == nil {
			sendErr = tmux.SendLine(e.transport, pane, composite)
		}
	} else {
		sendErr = tmux.SendLine(e.transport, pane, composite)
	}
	paneLock.Unlock()

	if sendErr != nil {
		e.registry.Remove(id)
		e.metrics.RecordTransportError(ctx, "send-keys")
		return Execution{}, fmt.Errorf("submit to %s: %w", pane, sendErr)
	}

	out, _ := e.registry.Update(id, func(r *Execution) {
		r.lastSentAt = time.Now()
	})
	e.metrics.RecordSubmission(ctx)
	return out, nil
}

// Poll re-reads the pane and advances the record. It is cheap,
// idempotent and safe to call at any cadence: terminal records return
// unchanged without touching the transport. A transport failure is
// returned alongside the unchanged record.
func (e *Engine) Poll(ctx context.Context, id string) (Execution, error) {
	ctx, span := e.startSpan(ctx, "poll", attribute.String("execution.id", id))
	defer span.End()

	opLock := lockFor(&e.execLocks, id)
	opLock.Lock()
	defer opLock.Unlock()

	rec, ok := e.registry.Get(id)
	if !ok {
		return Execution{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.Terminal() {
		return rec, nil
	}

	// Deadline first: a timed-out record reports timeout even if the
	// markers materialized since the last poll.
	if !rec.deadline.IsZero() && time.Now().After(rec.deadline) {
		var timedOut bool
		out, _ := e.registry.Update(id, func(r *Execution) {
			if r.Terminal() {
				return
			}
			r.finish(StatusTimeout, time.Now())
			r.Output = fmt.Sprintf("timed out after %s", time.Since(r.StartedAt).Round(time.Second))
			timedOut = true
		})
		if timedOut {
			e.noteTerminal(ctx, out)
		}
		return out, nil
	}

	raw, err := e.transport.Capture(rec.PaneTarget, e.opts.CaptureLines)
	if err != nil {
		e.metrics.RecordTransportError(ctx, "capture-pane")
		return rec, fmt.Errorf("poll %s: %w", id, err)
	}
	res := scanMarkers(shell.CleanScreen(raw), rec.startMarker, rec.endMarker)

	var resend, finished bool
	out, _ := e.registry.Update(id, func(r *Execution) {
		if r.Terminal() {
			// cancel won the race; markers never overwrite it
			return
		}
		switch {
		case res.startLine < 0:
			if time.Since(r.lastSentAt) < e.opts.RetryGrace {
				r.Output = "waiting for start marker"
				return
			}
			if r.RetryCount < e.opts.MaxRetries {
				r.RetryCount++
				r.lastSentAt = time.Now()
				resend = true
				r.Output = fmt.Sprintf("start marker not observed; resending (attempt %d of %d)",
					r.RetryCount, e.opts.MaxRetries)
				return
			}
			r.finish(StatusError, time.Now())
			r.Output = "start marker never observed; retries exhausted"
			finished = true
		case res.endLine < 0:
			r.Status = StatusRunning
			r.Output = "command started; completion marker not yet observed"
		case res.exitCode == nil:
			// marker survived but the exit token did not; keep waiting
			// rather than invent a code
			r.Status = StatusRunning
			r.Output = "completion marker found without an exit status token"
		default:
			code := *res.exitCode
			r.ExitCode = &code
			if code == 0 {
				r.finish(StatusCompleted, time.Now())
			} else {
				r.finish(StatusError, time.Now())
			}
			r.Output = res.output
			finished = true
		}
	})

	if resend {
		paneLock := lockFor(&e.paneLocks, out.PaneTarget)
		paneLock.Lock()
		sendErr := tmux.SendLine(e.transport, out.PaneTarget, out.composite)
		paneLock.Unlock()
		e.metrics.RecordRetry(ctx)
		if sendErr != nil {
			e.metrics.RecordTransportError(ctx, "send-keys")
			return out, fmt.Errorf("retry %s: %w", id, sendErr)
		}
	}

	if finished {
		e.noteTerminal(ctx, out)
	}
	return out, nil
}

// Cancel aborts a pending or running execution. Cancelling a record
// that is already terminal is a no-op returning it unchanged. The
// interrupt keypress is best-effort; the state transition holds either
// way.
func (e *Engine) Cancel(ctx context.Context, id string) (Execution, error) {
	ctx, span := e.startSpan(ctx, "cancel", attribute.String("execution.id", id))
	defer span.End()

	opLock := lockFor(&e.execLocks, id)
	opLock.Lock()
	defer opLock.Unlock()

	rec, ok := e.registry.Get(id)
	if !ok {
		return Execution{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.Terminal() {
		return rec, nil
	}

	var transitioned bool
	out, _ := e.registry.Update(id, func(r *Execution) {
		if r.Terminal() {
			return
		}
		r.finish(StatusCancelled, time.Now())
		r.Aborted = true
		r.Output = "cancelled"
		transitioned = true
	})

	if transitioned {
		if err := e.transport.SendKey(out.PaneTarget, "C-c"); err != nil {
			log.Printf("panerun: interrupt %s: %v", out.PaneTarget, err)
			e.metrics.RecordTransportError(ctx, "send-keys")
		}
		e.metrics.RecordCancel(ctx)
		e.noteTerminal(ctx, out)
	}
	return out, nil
}

// ListAll returns every record, newest first.
func (e *Engine) ListAll() []Execution {
	return e.registry.List()
}

// ListActive returns the non-terminal records, newest first.
func (e *Engine) ListActive() []Execution {
	all := e.registry.List()
	active := all[:0]
	for _, rec := range all {
		if !rec.Terminal() {
			active = append(active, rec)
		}
	}
	return active
}

// CleanupOld evicts terminal records that ended at least maxAge ago and
// returns how many were removed. Zero evicts all terminal records.
func (e *Engine) CleanupOld(maxAge time.Duration) int {
	evicted := e.registry.EvictOlderThan(maxAge)
	for _, id := range evicted {
		e.execLocks.Delete(id)
	}
	return len(evicted)
}

// SweepTimeouts marks every overdue non-terminal record timeout without
// touching the transport. The engine never calls this itself; a serving
// loop may run it on a ticker.
func (e *Engine) SweepTimeouts(ctx context.Context) int {
	n := 0
	for _, rec := range e.registry.List() {
		if rec.Terminal() || rec.deadline.IsZero() || time.Now().Before(rec.deadline) {
			continue
		}
		opLock := lockFor(&e.execLocks, rec.ID)
		opLock.Lock()
		var transitioned bool
		out, _ := e.registry.Update(rec.ID, func(r *Execution) {
			if r.Terminal() || r.deadline.IsZero() || time.Now().Before(r.deadline) {
				return
			}
			r.finish(StatusTimeout, time.Now())
			r.Output = fmt.Sprintf("timed out after %s", time.Since(r.StartedAt).Round(time.Second))
			transitioned = true
		})
		opLock.Unlock()
		if transitioned {
			n++
			e.noteTerminal(ctx, out)
		}
	}
	return n
}

// DetectShell probes the pane with the identity script and waits for
// the tagged lines to render. The result is cached per pane and feeds
// dialect selection for later submissions.
func (e *Engine) DetectShell(ctx context.Context, pane string) (*shell.DetectionInfo, error) {
	ctx, span := e.startSpan(ctx, "detect", attribute.String("pane.target", pane))
	defer span.End()

	paneLock := lockFor(&e.paneLocks, pane)
	paneLock.Lock()
	err := tmux.SendLine(e.transport, pane, shell.Unknown.DetectionScript())
	paneLock.Unlock()
	if err != nil {
		e.metrics.RecordTransportError(ctx, "send-keys")
		return nil, fmt.Errorf("detect %s: %w", pane, err)
	}

	deadline := time.Now().Add(detectDeadline)
	for {
		raw, err := e.transport.Capture(pane, detectWindow)
		if err != nil {
			e.metrics.RecordTransportError(ctx, "capture-pane")
			return nil, fmt.Errorf("detect %s: %w", pane, err)
		}
		if info := shell.ParseDetection(raw); info != nil {
			e.detections.Store(pane, info)
			return info, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("detect %s: identity tags never rendered", pane)
		}
		timer := time.NewTimer(detectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Detection returns the cached probe result for a pane, if any.
func (e *Engine) Detection(pane string) *shell.DetectionInfo {
	if v, ok := e.detections.Load(pane); ok {
		return v.(*shell.DetectionInfo)
	}
	return nil
}

// CleanupPane sends the dialect's cleanup script, removing any hook
// artifacts left behind in the pane's shell.
func (e *Engine) CleanupPane(ctx context.Context, pane string) error {
	dialect, _, _ := e.dialectFor(pane)
	paneLock := lockFor(&e.paneLocks, pane)
	paneLock.Lock()
	err := tmux.SendLine(e.transport, pane, dialect.CleanupScript())
	paneLock.Unlock()
	if err != nil {
		e.metrics.RecordTransportError(ctx, "send-keys")
		return fmt.Errorf("cleanup %s: %w", pane, err)
	}
	return nil
}

func (e *Engine) dialectFor(pane string) (shell.Dialect, string, string) {
	if info := e.Detection(pane); info != nil {
		return info.Shell, info.ShellName, info.WorkingDir
	}
	return shell.Unknown, "unknown", ""
}

// noteTerminal mirrors a just-terminal record to metrics and history.
func (e *Engine) noteTerminal(ctx context.Context, rec Execution) {
	if !rec.Terminal() {
		return
	}
	e.metrics.RecordCompletion(ctx, string(rec.Status))
	if e.history != nil {
		if err := e.history.Record(rec); err != nil {
			log.Printf("panerun: history record %s: %v", rec.ID, err)
		}
	}
}
