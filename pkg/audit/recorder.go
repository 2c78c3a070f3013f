package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables trace recording.
	Enabled bool

	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single store write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// MaxFieldLength bounds each stored body.
	// Default: 20000
	MaxFieldLength int

	// RedactAPIKeys stores only the ends of caller API keys.
	// Default: true
	RedactAPIKeys bool
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		MaxFieldLength: 20000,
		RedactAPIKeys:  true,
	}
}

// Recorder writes traces asynchronously. Record never blocks: when the queue
// is full the trace is dropped and counted.
type Recorder struct {
	store  Store
	config *Config
	queue  chan *Trace
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	subMu   sync.RWMutex
	subs    map[int]chan Trace
	nextSub int
}

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(store Store, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		store:  store,
		config: config,
		queue:  make(chan *Trace, config.AsyncBuffer),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "audit.recorder"),
		subs:   make(map[int]chan Trace),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"max_field_length", config.MaxFieldLength,
	)
	return r
}

// Record enqueues t for writing. It returns ErrBufferFull when the trace was
// dropped and ErrClosed after Close.
func (r *Recorder) Record(t *Trace) error {
	if !r.config.Enabled || t == nil {
		return nil
	}
	select {
	case <-r.done:
		return &RecorderError{TraceID: t.ID, Cause: ErrClosed}
	default:
	}

	select {
	case r.queue <- t:
		return nil
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping trace",
			"trace_id", t.ID,
			"queue_capacity", r.config.AsyncBuffer,
		)
		return &RecorderError{TraceID: t.ID, Cause: ErrBufferFull}
	}
}

// Subscribe returns a channel receiving every trace after it is written.
// Slow subscribers miss traces rather than delaying the writer. Call cancel
// to unsubscribe; the channel is closed by cancel or by Close.
func (r *Recorder) Subscribe(buffer int) (<-chan Trace, func()) {
	ch := make(chan Trace, buffer)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.subMu.Lock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
			r.subMu.Unlock()
		})
	}
	return ch, cancel
}

// Stats returns written, dropped and failed counts.
func (r *Recorder) Stats() (written, dropped, failed uint64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}

// Close drains the queue, waits for pending writes and closes all
// subscriber channels. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.logger.Info("shutting down audit recorder")
		close(r.done)
		r.wg.Wait()

		r.subMu.Lock()
		for id, c := range r.subs {
			close(c)
			delete(r.subs, id)
		}
		r.subMu.Unlock()
		r.logger.Info("audit recorder shut down complete")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case t := <-r.queue:
			r.write(t)

		case <-r.done:
			r.logger.Info("draining audit queue before shutdown", "pending_count", len(r.queue))
			for {
				select {
				case t := <-r.queue:
					r.write(t)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(t *Trace) {
	r.prepare(t)

	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.InsertTrace(ctx, t); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store trace", "trace_id", t.ID, "error", err)
		return
	}
	r.written.Add(1)

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"trace_id", t.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
	r.publish(*t)
}

func (r *Recorder) prepare(t *Trace) {
	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	if r.config.RedactAPIKeys {
		t.APIKey = RedactAPIKey(t.APIKey)
	}
	limit := r.config.MaxFieldLength
	t.RequestBody = TruncateJSON(t.RequestBody, limit)
	t.UpstreamPayload = TruncateJSON(t.UpstreamPayload, limit)
	t.ResponseBody = TruncateJSON(t.ResponseBody, limit)
	t.Error = TruncateString(t.Error, limit)
}

func (r *Recorder) publish(t Trace) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for _, c := range r.subs {
		select {
		case c <- t:
		default:
		}
	}
}
