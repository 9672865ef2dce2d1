package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	defaultEnrichmentWorkers   = 2
	defaultEnrichmentQueueSize = 64
	defaultEnrichmentTimeout   = 2 * time.Minute
	enrichmentQueueGroup       = "gema-enrichment"
)

// DispatcherConfig tunes the enrichment worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Dispatcher runs enrichment tasks on a bounded in-process worker pool.
// Enqueue never blocks: when the queue is full the task runs on its own
// goroutine.
type Dispatcher struct {
	enricher EnrichmentService
	config   DispatcherConfig
	queue    chan EnrichmentTask
	logger   zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewDispatcher constructs an idle dispatcher; call Start to launch workers.
func NewDispatcher(enricher EnrichmentService, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultEnrichmentWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultEnrichmentQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultEnrichmentTimeout
	}
	return &Dispatcher{
		enricher: enricher,
		config:   cfg,
		queue:    make(chan EnrichmentTask, cfg.QueueSize),
		ctx:      context.Background(),
		logger:   logger.With().Str("component", "enrichment_dispatcher").Logger(),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.work(d.ctx)
	}
	d.logger.Info().Int("workers", d.config.Workers).Int("queue_size", d.config.QueueSize).Msg("enrichment workers started")
}

// Stop drains queued tasks and waits for running ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
}

// Enqueue implements EnrichmentEnqueuer.
func (d *Dispatcher) Enqueue(task EnrichmentTask) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.logger.Warn().Str("submission_id", task.SubmissionID.String()).Msg("dispatcher stopped, running enrichment detached")
		go d.run(context.Background(), task)
		return
	}

	select {
	case d.queue <- task:
	default:
		d.logger.Warn().Str("submission_id", task.SubmissionID.String()).Msg("enrichment queue full, running detached")
		d.detach(task)
	}
}

func (d *Dispatcher) detach(task EnrichmentTask) {
	ctx := context.WithoutCancel(d.ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, task)
	}()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(ctx, task)
	}
}

func (d *Dispatcher) run(ctx context.Context, task EnrichmentTask) {
	defer func() {
		if r := recover(); r != nil {
			enrichmentOutcomes.WithLabelValues("panic").Inc()
			d.logger.Error().Interface("panic", r).Str("submission_id", task.SubmissionID.String()).Msg("enrichment task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.config.TaskTimeout)
	defer cancel()

	if err := d.enricher.Enrich(ctx, task); err != nil {
		d.logger.Error().Err(err).Str("submission_id", task.SubmissionID.String()).Msg("enrichment task failed")
	}
}

// NATSDispatcher publishes enrichment tasks to a subject and consumes them
// through a queue group so each task is handled by exactly one instance.
// Publish failures fall back to the local pool.
type NATSDispatcher struct {
	conn    *nats.Conn
	subject string
	local   *Dispatcher
	logger  zerolog.Logger
}

// NewNATSDispatcher wraps local with NATS transport.
func NewNATSDispatcher(conn *nats.Conn, subject string, local *Dispatcher, logger zerolog.Logger) *NATSDispatcher {
	return &NATSDispatcher{
		conn:    conn,
		subject: subject,
		local:   local,
		logger:  logger.With().Str("component", "enrichment_nats").Logger(),
	}
}

// Enqueue implements EnrichmentEnqueuer.
func (d *NATSDispatcher) Enqueue(task EnrichmentTask) {
	payload, err := json.Marshal(task)
	if err == nil {
		err = d.conn.Publish(d.subject, payload)
	}
	if err != nil {
		d.logger.Warn().Err(err).Str("submission_id", task.SubmissionID.String()).Msg("failed to publish enrichment task, running locally")
		d.local.Enqueue(task)
	}
}

// Consume subscribes to the subject until ctx is cancelled.
func (d *NATSDispatcher) Consume(ctx context.Context) error {
	sub, err := d.conn.QueueSubscribe(d.subject, enrichmentQueueGroup, d.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", d.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain enrichment nats subscription")
		}
	}()
	return nil
}

func (d *NATSDispatcher) handleMessage(msg *nats.Msg) {
	var task EnrichmentTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		d.logger.Warn().Err(err).Msg("invalid enrichment task payload")
		return
	}
	d.local.Enqueue(task)
}
