// Package notify delivers invite notifications by email and WhatsApp
// outside the request path.
//
// With Redis configured, each channel of a notice is queued as its own
// asynq task and delivered by a worker running in this process, so a
// restart does not lose them and a failed channel is retried without
// resending the ones that went through. Without Redis they are delivered
// once from a goroutine.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/mailer"
	"github.com/dalemusser/churchhub/internal/app/system/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/whatsapp"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TypeInviteNotice is the asynq task type for invite notifications.
const TypeInviteNotice = "invite:notify"

// InviteNotice is everything needed to tell someone about an invite.
type InviteNotice struct {
	InviteID     string `json:"invite_id"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	InviterName  string `json:"inviter_name"`
	RoleName     string `json:"role_name"`
	Link         string `json:"link,omitempty"`
	ExpiresIn    string `json:"expires_in,omitempty"`
	SendEmail    bool   `json:"send_email"`
	SendWhatsApp bool   `json:"send_whatsapp"`
}

// PerChannel splits n into one notice per requested channel.
func (n InviteNotice) PerChannel() []InviteNotice {
	var out []InviteNotice
	if n.SendEmail {
		c := n
		c.SendWhatsApp = false
		out = append(out, c)
	}
	if n.SendWhatsApp {
		c := n
		c.SendEmail = false
		out = append(out, c)
	}
	return out
}

// Notifier accepts notices for later delivery.
type Notifier interface {
	NotifyInvite(ctx context.Context, n InviteNotice) error
}

// MarkStore records which channels delivered.
type MarkStore interface {
	MarkNotified(ctx context.Context, id primitive.ObjectID, email, whatsapp bool) error
}

// WhatsAppSender is the part of whatsapp.Client the dispatcher uses.
type WhatsAppSender interface {
	Enabled() bool
	Send(ctx context.Context, phone, message string) (whatsapp.SendResult, error)
}

// Dispatcher performs delivery.
type Dispatcher struct {
	Mail     mailer.Sender
	WhatsApp WhatsAppSender
	Marks    MarkStore
	Log      *zap.Logger
}

// Deliver sends n on every requested channel and records the channels
// that went through. The error joins every channel failure with any
// failure to record.
func (d *Dispatcher) Deliver(ctx context.Context, n InviteNotice) error {
	var emailOK, waOK bool
	var errs []error

	if n.SendEmail && d.Mail != nil {
		msg := mailer.BuildInviteEmail(mailer.InviteEmailData{
			InviterName: n.InviterName,
			RoleName:    n.RoleName,
			Link:        n.Link,
			ExpiresIn:   n.ExpiresIn,
		})
		msg.To = n.Email
		if err := d.Mail.Send(ctx, msg); err != nil {
			d.Log.Warn("invite email failed", zap.String("invite_id", n.InviteID), zap.Error(err))
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			emailOK = true
		}
		metrics.Notified("email", emailOK)
	}

	if n.SendWhatsApp && n.Phone != "" && d.WhatsApp != nil && d.WhatsApp.Enabled() {
		text := whatsapp.InviteMessage(n.InviterName, n.RoleName, n.Link, n.ExpiresIn)
		if _, err := d.WhatsApp.Send(ctx, n.Phone, text); err != nil {
			d.Log.Warn("invite whatsapp failed", zap.String("invite_id", n.InviteID), zap.Error(err))
			errs = append(errs, fmt.Errorf("whatsapp: %w", err))
		} else {
			waOK = true
		}
		metrics.Notified("whatsapp", waOK)
	}

	if (emailOK || waOK) && d.Marks != nil {
		if oid, err := primitive.ObjectIDFromHex(n.InviteID); err != nil {
			errs = append(errs, fmt.Errorf("notify: bad invite id %q", n.InviteID))
		} else if err := d.Marks.MarkNotified(ctx, oid, emailOK, waOK); err != nil {
			errs = append(errs, fmt.Errorf("notify: mark invite: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HandleTask is the asynq handler for TypeInviteNotice. A failed send is
// returned so asynq retries it; a phone that can never work is not.
func (d *Dispatcher) HandleTask(ctx context.Context, t *asynq.Task) error {
	var n InviteNotice
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	err := d.Deliver(ctx, n)
	if errors.Is(err, whatsapp.ErrBadPhone) || errors.Is(err, whatsapp.ErrNotConfigured) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// NewInviteTask encodes n as an asynq task.
func NewInviteTask(n InviteNotice) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInviteNotice, data, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// Queue enqueues notices in Redis.
type Queue struct {
	client *asynq.Client
}

// NewQueue connects an asynq client.
func NewQueue(opt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(opt)}
}

// NotifyInvite enqueues one task per requested channel.
func (q *Queue) NotifyInvite(ctx context.Context, n InviteNotice) error {
	for _, c := range n.PerChannel() {
		task, err := NewInviteTask(c)
		if err != nil {
			return err
		}
		if _, err := q.client.EnqueueContext(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the Redis connection.
func (q *Queue) Close() error { return q.client.Close() }

// Inline delivers from a goroutine. Close waits for deliveries in flight.
type Inline struct {
	d       *Dispatcher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInline builds an in-process notifier. Each delivery gets timeout.
func NewInline(d *Dispatcher, timeout time.Duration) *Inline {
	return &Inline{d: d, timeout: timeout}
}

// NotifyInvite starts delivery and returns at once. The request context is
// not used so delivery outlives the request.
func (in *Inline) NotifyInvite(_ context.Context, n InviteNotice) error {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
		defer cancel()
		if err := in.d.Deliver(ctx, n); err != nil {
			in.d.Log.Warn("invite notification incomplete", zap.Error(err))
		}
	}()
	return nil
}

// Close waits for pending deliveries or ctx, whichever comes first.
func (in *Inline) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Worker runs the asynq server that drains the queue.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker builds a worker with the given concurrency.
func NewWorker(opt asynq.RedisClientOpt, d *Dispatcher, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInviteNotice, d.HandleTask)
	return &Worker{srv: srv, mux: mux}
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("notify worker: %w", err)
	}
	return nil
}

// Shutdown stops the worker, letting active tasks finish.
func (w *Worker) Shutdown() { w.srv.Shutdown() }

// ErrNoNotifier is returned by Discard.
var ErrNoNotifier = errors.New("notify: notifications disabled")

// Discard drops every notice.
type Discard struct{}

// NotifyInvite reports ErrNoNotifier.
func (Discard) NotifyInvite(context.Context, InviteNotice) error { return ErrNoNotifier }
