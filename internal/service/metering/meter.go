package metering

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/llmgate/internal/logger"
)

const (
	defaultCountWorkers = 4
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

type hitRecorder interface {
	RecordHit(ctx context.Context, method string, endpoint string, userID int64) error
}

type hitCounter interface {
	EndpointHit(method string, endpoint string)
	HitDropped(reason string)
}

type Hit struct {
	Method   string
	Endpoint string
	UserID   int64
}

type Option func(*Meter)

func WithWorkers(n int) Option {
	return func(m *Meter) { m.countWorkers = n }
}

func WithQueueSize(n int) Option {
	return func(m *Meter) { m.queueSize = n }
}

func WithCounter(c hitCounter) Option {
	return func(m *Meter) { m.counter = c }
}

// Usage meter records hits of authorized requests in background
// Hits never block the request: when queue is full the hit is dropped
type Meter struct {
	countWorkers int
	queueSize    int
	writeTimeout time.Duration

	queue chan Hit

	repo    hitRecorder
	counter hitCounter
	logger  logger.Logger
}

func New(repo hitRecorder, l logger.Logger, opts ...Option) *Meter {
	m := &Meter{
		countWorkers: defaultCountWorkers,
		queueSize:    defaultQueueSize,
		writeTimeout: defaultWriteTimeout,
		repo:         repo,
		counter:      nopCounter{},
		logger:       l,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.queue = make(chan Hit, m.queueSize)
	return m
}

// Enqueue hit, never blocks
func (m *Meter) RecordHit(method string, endpoint string, userID int64) {
	hit := Hit{Method: method, Endpoint: endpoint, UserID: userID}

	select {
	case m.queue <- hit:
		m.counter.EndpointHit(method, endpoint)
	default:
		m.counter.HitDropped("queue_full")
		m.logger.Warn("Metering queue is full, hit dropped", "method", method, "endpoint", endpoint, "user_id", userID)
	}
}

// Start workers; they write queued hits until ctx is done and then flush what is left
// Returned channel is closed when all workers stopped
func (m *Meter) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < m.countWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		m.logger.Debug("Meter stopped")
	}()

	return idleStopped
}

func (m *Meter) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.flush()
			return
		case hit := <-m.queue:
			m.write(context.WithoutCancel(ctx), hit)
		}
	}
}

func (m *Meter) flush() {
	for {
		select {
		case hit := <-m.queue:
			m.write(context.Background(), hit)
		default:
			return
		}
	}
}

func (m *Meter) write(ctx context.Context, hit Hit) {
	ctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	err := m.repo.RecordHit(ctx, hit.Method, hit.Endpoint, hit.UserID)
	if err != nil {
		m.counter.HitDropped("write_failed")
		m.logger.Error("Failed to record hit", "error", err, "method", hit.Method, "endpoint", hit.Endpoint, "user_id", hit.UserID)
	}
}

type nopCounter struct{}

func (nopCounter) EndpointHit(string, string) {}
func (nopCounter) HitDropped(string)          {}
