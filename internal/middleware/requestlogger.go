package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/models"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
)

// BatchWriter is satisfied by *repository.RequestLogRepository.
type BatchWriter interface {
	CreateBatch(ctx context.Context, logs []models.RequestLog) error
}

// RequestLogWriter persists request logs asynchronously. Entries go through a
// buffered channel to one worker that inserts in batches; when the buffer is
// full the entry is dropped so requests never wait on the database.
type RequestLogWriter struct {
	sink          BatchWriter
	log           *zap.Logger
	entries       chan models.RequestLog
	batchSize     int
	flushInterval time.Duration
	onDrop        func()

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type RequestLogOption func(*RequestLogWriter)

func WithBatchSize(n int) RequestLogOption {
	return func(w *RequestLogWriter) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) RequestLogOption {
	return func(w *RequestLogWriter) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithDropHook is called for every entry dropped on a full buffer.
func WithDropHook(fn func()) RequestLogOption {
	return func(w *RequestLogWriter) { w.onDrop = fn }
}

// NewRequestLogWriter starts the background worker. Call Close to flush.
func NewRequestLogWriter(sink BatchWriter, bufferSize int, log *zap.Logger, opts ...RequestLogOption) *RequestLogWriter {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	w := &RequestLogWriter{
		sink:          sink,
		log:           log,
		entries:       make(chan models.RequestLog, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w
}

func (w *RequestLogWriter) run() {
	defer close(w.done)

	batch := make([]models.RequestLog, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.insertBatch(batch)
		batch = make([]models.RequestLog, 0, w.batchSize)
	}

	for {
		select {
		case entry := <-w.entries:
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.stop:
			// drain what is already queued
			for {
				select {
				case entry := <-w.entries:
					batch = append(batch, entry)
					if len(batch) >= w.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *RequestLogWriter) insertBatch(logs []models.RequestLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.sink.CreateBatch(ctx, logs); err != nil {
		w.log.Error("failed to insert request logs", zap.Int("count", len(logs)), zap.Error(err))
	}
}

// Enqueue reports false when the entry was dropped.
func (w *RequestLogWriter) Enqueue(entry models.RequestLog) bool {
	select {
	case <-w.stop:
		return false
	default:
	}

	select {
	case w.entries <- entry:
		return true
	default:
		if w.onDrop != nil {
			w.onDrop()
		}
		return false
	}
}

// Close stops accepting entries and waits for the final flush or ctx.
func (w *RequestLogWriter) Close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestLogger queues one models.RequestLog per request on w.
func RequestLogger(w *RequestLogWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		w.Enqueue(models.RequestLog{
			RequestID:      c.GetString(RequestIDKey),
			Timestamp:      start.UTC(),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			ClientIdentity: identityFrom(c),
			Origin:         c.GetHeader("Origin"),
			UserAgent:      c.Request.UserAgent(),
			RateLimited:    c.GetBool(RateLimitedKey),
		})
	}
}
