package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"folio/internal/acquire"
	"folio/internal/favorites"
	"folio/internal/logging"
	"folio/internal/metadata"
	"folio/internal/notifications"
	"folio/internal/services"
	"folio/internal/workid"
)

// ErrStopped is returned by Submit when the dispatcher is not running.
var ErrStopped = errors.New("dispatcher stopped")

// Acquirer runs acquisitions.
type Acquirer interface {
	Acquire(ctx context.Context, raw string) (acquire.Result, error)
}

// Lookup fetches work metadata.
type Lookup interface {
	Fetch(ctx context.Context, raw string) (metadata.Work, error)
}

// Favorites is the favorites store contract.
type Favorites interface {
	Add(ctx context.Context, raw string) (favorites.AddResult, error)
	Remove(ctx context.Context, raw string) (favorites.RemoveResult, error)
	List(ctx context.Context) (favorites.Listing, error)
	PickRandom(ctx context.Context) (workid.ID, error)
}

// Deps bundles the components a dispatcher calls.
type Deps struct {
	Acquirer  Acquirer
	Lookup    Lookup
	Favorites Favorites
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// Reply is the outcome of one command. Data carries the typed component
// result for API clients.
type Reply struct {
	RequestID string                  `json:"request_id"`
	Command   Command                 `json:"command"`
	OK        bool                    `json:"ok"`
	ErrorKind string                  `json:"error_kind,omitempty"`
	Messages  []notifications.Message `json:"messages"`
	Data      any                     `json:"data,omitempty"`
}

// Text renders every message of the reply as plain text.
func (r Reply) Text() string {
	out := ""
	for i, msg := range r.Messages {
		if i > 0 {
			out += "\n\n"
		}
		out += msg.Text()
	}
	return out
}

// StatusSummary represents lightweight dispatcher diagnostics.
type StatusSummary struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitzero"`
	InFlight  int64     `json:"in_flight"`
	Handled   int64     `json:"handled"`
	LastError string    `json:"last_error,omitempty"`
}

type request struct {
	ctx   context.Context
	id    string
	text  string
	reply chan Reply
}

// Dispatcher routes command text to the core components.
type Dispatcher struct {
	deps     Deps
	logger   *slog.Logger
	requests chan request

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	lastErr   error
	workers   sync.WaitGroup

	inFlight atomic.Int64
	handled  atomic.Int64
}

// New constructs a dispatcher. Start must be called before Submit.
func New(deps Deps) *Dispatcher {
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	return &Dispatcher{
		deps:     deps,
		logger:   logging.NewComponentLogger(deps.Logger, "dispatch"),
		requests: make(chan request),
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true
	d.startedAt = time.Now().UTC()
	go d.loop(loopCtx, d.done)
	return nil
}

// Stop ends the loop and waits for running workers to deliver their replies.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	done := d.done
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	<-done
	d.workers.Wait()
}

// Submit hands text to the loop and waits for the reply. When ctx ends first
// Submit returns ctx.Err() and the eventual reply is discarded.
func (d *Dispatcher) Submit(ctx context.Context, text string) (Reply, error) {
	d.mu.RLock()
	running := d.running
	done := d.done
	d.mu.RUnlock()
	if !running {
		return Reply{}, ErrStopped
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req := request{ctx: ctx, id: requestID, text: text, reply: make(chan Reply, 1)}

	select {
	case d.requests <- req:
	case <-done:
		return Reply{}, ErrStopped
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Status returns current dispatcher diagnostics.
func (d *Dispatcher) Status() StatusSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	summary := StatusSummary{
		Running:   d.running,
		StartedAt: d.startedAt,
		InFlight:  d.inFlight.Load(),
		Handled:   d.handled.Load(),
	}
	if d.lastErr != nil {
		summary.LastError = services.UserMessage(d.lastErr)
	}
	return summary
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.requests:
			cmd := Parse(req.text)
			d.inFlight.Add(1)
			d.workers.Add(1)
			go d.work(req, cmd)
		}
	}
}

func (d *Dispatcher) work(req request, cmd Command) {
	defer d.workers.Done()
	defer d.inFlight.Add(-1)

	ctx := services.WithRequestID(req.ctx, req.id)
	ctx = services.WithCommand(ctx, string(cmd.Verb))
	reply := d.Execute(ctx, cmd)
	reply.RequestID = req.id
	d.handled.Add(1)

	// Buffered; never blocks even when Submit has returned.
	req.reply <- reply
}

// Execute runs one parsed command synchronously.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) Reply {
	logger := logging.WithContext(ctx, d.logger)
	logger.Debug("dispatching command",
		logging.String(logging.FieldCommand, string(cmd.Verb)),
		logging.String("arg", cmd.Arg),
	)

	reply := Reply{Command: cmd}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		reply.RequestID = rid
	}

	switch cmd.Verb {
	case VerbGet:
		d.get(ctx, cmd, &reply)
	case VerbInfo:
		work, err := d.deps.Lookup.Fetch(ctx, cmd.Arg)
		if err != nil {
			d.failed(ctx, &reply, "info", err)
			break
		}
		d.succeed(ctx, &reply, notifications.FormatWork(work), work)
	case VerbFavAdd:
		res, err := d.deps.Favorites.Add(ctx, cmd.Arg)
		if err != nil {
			d.failed(ctx, &reply, "fav add", err)
			break
		}
		d.succeed(ctx, &reply, notifications.FormatAdded(res), res)
	case VerbFavRemove:
		res, err := d.deps.Favorites.Remove(ctx, cmd.Arg)
		if err != nil {
			d.failed(ctx, &reply, "fav remove", err)
			break
		}
		d.succeed(ctx, &reply, notifications.FormatRemoved(res), res)
	case VerbFavList:
		listing, err := d.deps.Favorites.List(ctx)
		if err != nil {
			d.failed(ctx, &reply, "fav list", err)
			break
		}
		d.succeed(ctx, &reply, notifications.FormatListing(listing), listing)
	case VerbFavRandom:
		id, err := d.deps.Favorites.PickRandom(ctx)
		if err != nil {
			d.failed(ctx, &reply, "fav random", err)
			break
		}
		d.succeed(ctx, &reply, notifications.FormatRandom(id), map[string]string{"id": id.String()})
	case VerbHelp:
		reply.OK = true
		reply.Messages = []notifications.Message{{Title: "folio", Body: Usage}}
	default:
		reply.Messages = []notifications.Message{{Title: "Unknown command: " + cmd.Raw, Body: Usage}}
	}
	return reply
}

func (d *Dispatcher) get(ctx context.Context, cmd Command, reply *Reply) {
	res, err := d.deps.Acquirer.Acquire(ctx, cmd.Arg)
	reply.Data = res
	if err != nil {
		reply.ErrorKind = services.Kind(err)
		d.setLastError(err)
		msg := notifications.FormatAcquisition(res)
		reply.Messages = append(reply.Messages, msg)
		d.publish(ctx, msg)
		return
	}

	reply.OK = true
	msg := notifications.FormatAcquisition(res)
	reply.Messages = append(reply.Messages, msg)
	d.publish(ctx, msg)

	// Metadata is a separate best-effort call; its failure never fails the download.
	work, err := d.deps.Lookup.Fetch(ctx, res.ID.String())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "metadata lookup after download failed", "post_download_lookup_failed",
			logging.String(logging.FieldWorkID, res.ID.String()),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the PDF is available; retry with info"),
			logging.String(logging.FieldImpact, "work details not shown"),
		)
		return
	}
	details := notifications.FormatWork(work)
	reply.Messages = append(reply.Messages, details)
	d.publish(ctx, details)
}

func (d *Dispatcher) succeed(ctx context.Context, reply *Reply, msg notifications.Message, data any) {
	reply.OK = true
	reply.Data = data
	reply.Messages = append(reply.Messages, msg)
	d.publish(ctx, msg)
}

func (d *Dispatcher) failed(ctx context.Context, reply *Reply, operation string, err error) {
	reply.ErrorKind = services.Kind(err)
	d.setLastError(err)
	msg := notifications.FormatError(err, operation)
	reply.Messages = append(reply.Messages, msg)
	d.publish(ctx, msg)
	logging.WithContext(ctx, d.logger).Info("command failed",
		logging.String(logging.FieldCommand, operation),
		logging.String(logging.FieldErrorKind, reply.ErrorKind),
		logging.Error(err),
	)
}

func (d *Dispatcher) publish(ctx context.Context, msg notifications.Message) {
	if err := d.deps.Notifier.Publish(ctx, msg); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "notification delivery failed", "notification_failed",
			logging.String("event", string(msg.Event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "message not pushed"),
		)
	}
}

func (d *Dispatcher) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notifications.Message) error { return nil }
func (noopNotifier) TestNotification(context.Context) error               { return nil }
