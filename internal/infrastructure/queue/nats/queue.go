package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pixelmend/pixelmend/internal/core/ports"
	"github.com/pixelmend/pixelmend/internal/infrastructure/resilience"
)

const workerGroup = "workers"

// Queue carries edit jobs to the worker pool and fans cancel requests out to
// every worker. Job delivery uses a queue group so each job lands on exactly
// one worker; cancels are broadcast because only the worker holding the job
// can act on them.
type Queue struct {
	conn          *nats.Conn
	editsSubject  string
	cancelSubject string
	guard         *resilience.Guard
	logger        *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Guard                *resilience.Guard
	Logger               *slog.Logger
}

func New(url, editsSubject, cancelSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("pixelmend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		editsSubject:  editsSubject,
		cancelSubject: cancelSubject,
		guard:         options.Guard,
		logger:        logger,
	}, nil
}

var _ ports.MessageQueue = (*Queue)(nil)

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishEditRequested(ctx context.Context, jobID string) error {
	return q.publish(ctx, q.editsSubject, []byte(jobID))
}

type cancelMessage struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

func (q *Queue) PublishCancelRequested(ctx context.Context, jobID, reason string) error {
	payload, err := json.Marshal(cancelMessage{JobID: jobID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode cancel message: %w", err)
	}
	return q.publish(ctx, q.cancelSubject, payload)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.guard != nil {
		err = q.guard.Do(ctx, "nats.publish", call)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeEditRequested consumes jobs from the shared worker group and blocks
// until ctx is cancelled, then drains in-flight deliveries.
func (q *Queue) SubscribeEditRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.editsSubject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		jobID := string(msg.Data)
		if err := handler(handlerCtx, jobID); err != nil {
			q.logger.Error("edit_job_failed", "job_id", jobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.editsSubject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// SubscribeCancelRequested receives every cancel broadcast. Unlike job
// delivery there is no queue group: all workers see all cancels and ignore
// jobs they do not hold. Returns once the subscription is live.
func (q *Queue) SubscribeCancelRequested(ctx context.Context, handler func(jobID, reason string)) error {
	sub, err := q.conn.Subscribe(q.cancelSubject, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var cm cancelMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			q.logger.Warn("cancel_message_malformed", "error", err)
			return
		}
		handler(cm.JobID, cm.Reason)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.cancelSubject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			q.logger.Warn("cancel_subscription_drain", "error", err)
		}
	}()

	return q.conn.Flush()
}
