package service

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/oguzk/shortkit/internal/app/model"
	"github.com/oguzk/shortkit/internal/app/repository"
	"github.com/oguzk/shortkit/internal/infra/metrics"
	"go.uber.org/zap"
)

// ClientMeta carries the request attributes recorded with a click. The raw IP
// never reaches durable storage; the worker masks it first.
type ClientMeta struct {
	IP        string
	UserAgent string
	Referer   string
}

// GeoResolver maps an IP to an ISO country code. Optional; resolution happens
// in the worker, never on the redirect path.
type GeoResolver interface {
	Country(ip string) string
}

// DropPolicy selects which side of a full queue loses an event.
type DropPolicy string

const (
	DropNewest DropPolicy = "newest"
	DropOldest DropPolicy = "oldest"
)

// ClickRecorderConfig tunes the ingestion pipeline.
type ClickRecorderConfig struct {
	QueueSize       int
	BatchSize       int
	BatchInterval   time.Duration
	DropPolicy      DropPolicy
	DrainOnShutdown bool
}

type clickJob struct {
	code string
	meta ClientMeta
	ts   time.Time
}

const flushTimeout = 3 * time.Second

// ClickRecorder ingests click events without ever blocking the redirect path.
// Record offers into a bounded queue and returns immediately; a single
// consumer goroutine batches inserts and bumps per-code aggregates with atomic
// increments. Accuracy is best-effort, redirect latency is not.
type ClickRecorder struct {
	clicks repository.ClickEventRepository
	urls   repository.URLRepository
	logger *zap.Logger
	js     nats.JetStreamContext // optional fan-out, may be nil
	geo    GeoResolver           // optional, may be nil

	queue           chan clickJob
	batchSize       int
	batchInterval   time.Duration
	dropOldest      bool
	drainOnShutdown bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewClickRecorder creates the pipeline. Start must be called before events
// are drained; Record is safe to call at any time.
func NewClickRecorder(
	clicks repository.ClickEventRepository,
	urls repository.URLRepository,
	cfg ClickRecorderConfig,
	js nats.JetStreamContext,
	geo GeoResolver,
	logger *zap.Logger,
) *ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 2 * time.Second
	}

	return &ClickRecorder{
		clicks:          clicks,
		urls:            urls,
		logger:          logger,
		js:              js,
		geo:             geo,
		queue:           make(chan clickJob, cfg.QueueSize),
		batchSize:       cfg.BatchSize,
		batchInterval:   cfg.BatchInterval,
		dropOldest:      cfg.DropPolicy == DropOldest,
		drainOnShutdown: cfg.DrainOnShutdown,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the consumer goroutine. JetStream stream creation failures
// only disable fan-out; local recording keeps working.
func (r *ClickRecorder) Start() {
	r.startOnce.Do(func() {
		if r.js != nil {
			if err := r.ensureStream(); err != nil {
				r.logger.Error("click stream unavailable, fan-out disabled", zap.Error(err))
				r.js = nil
			}
		}
		go r.run()
	})
}

// Record enqueues a click without blocking. On overflow the configured drop
// policy applies and the drop counter is incremented. The returned flag only
// reports queue acceptance; durability is asynchronous.
func (r *ClickRecorder) Record(code string, meta ClientMeta) bool {
	job := clickJob{code: code, meta: meta, ts: time.Now().UTC()}

	select {
	case r.queue <- job:
		return true
	default:
	}

	if r.dropOldest {
		select {
		case <-r.queue:
			metrics.ClicksDropped.Inc()
		default:
		}
		select {
		case r.queue <- job:
			return true
		default:
		}
	}

	metrics.ClicksDropped.Inc()
	return false
}

// Shutdown stops the consumer, draining or discarding the queue per config,
// and waits for the final flush or the context deadline.
func (r *ClickRecorder) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ClickRecorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.batchInterval)
	defer ticker.Stop()

	batch := make([]clickJob, 0, r.batchSize)

	for {
		select {
		case job := <-r.queue:
			batch = append(batch, job)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			if r.drainOnShutdown {
				batch = r.drain(batch)
			} else if dropped := len(r.queue); dropped > 0 {
				metrics.ClicksDropped.Add(float64(dropped))
				r.logger.Info("discarding queued click events on shutdown", zap.Int("count", dropped))
			}
			if len(batch) > 0 {
				r.flush(batch)
			}
			return
		}
	}
}

func (r *ClickRecorder) drain(batch []clickJob) []clickJob {
	for {
		select {
		case job := <-r.queue:
			batch = append(batch, job)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		default:
			return batch
		}
	}
}

func (r *ClickRecorder) flush(jobs []clickJob) {
	events := make([]model.ClickEvent, 0, len(jobs))
	perCode := make(map[string]int64, len(jobs))

	for _, job := range jobs {
		event := model.ClickEvent{
			ID:        uuid.New().String(),
			Code:      job.code,
			Timestamp: job.ts,
			MaskedIP:  MaskIP(job.meta.IP),
			UserAgent: job.meta.UserAgent,
			Referer:   job.meta.Referer,
		}
		if r.geo != nil {
			event.Country = r.geo.Country(job.meta.IP)
		}
		events = append(events, event)
		perCode[job.code]++
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := r.clicks.CreateBatch(ctx, events); err != nil {
		metrics.ClicksDropped.Add(float64(len(events)))
		r.logger.Error("failed to persist click batch", zap.Int("count", len(events)), zap.Error(err))
		return
	}
	metrics.ClicksPersisted.Add(float64(len(events)))

	for code, delta := range perCode {
		if err := r.urls.IncrementClicks(ctx, code, delta); err != nil {
			// Reconciliation recomputes the aggregate from the event table,
			// so a lost increment here self-heals.
			r.logger.Warn("failed to increment click count",
				zap.String("code", code), zap.Int64("delta", delta), zap.Error(err))
		}
	}

	if r.js != nil {
		r.publish(events)
	}
}

func (r *ClickRecorder) publish(events []model.ClickEvent) {
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			r.logger.Error("failed to encode click event", zap.String("id", event.ID), zap.Error(err))
			continue
		}
		if _, err := r.js.Publish(model.ClickStreamSubject, data); err != nil {
			r.logger.Warn("failed to publish click event", zap.String("id", event.ID), zap.Error(err))
		}
	}
}

func (r *ClickRecorder) ensureStream() error {
	if _, err := r.js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := r.js.AddStream(&nats.StreamConfig{
		Name:     model.ClickStreamName,
		Subjects: []string{model.ClickStreamSubject},
		MaxBytes: model.ClickStreamMaxBytes,
	})
	return err
}

// MaskIP zeroes the last IPv4 octet or the last IPv6 segment so raw client
// addresses never reach durable storage.
func MaskIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(112, 128)).String()
}
