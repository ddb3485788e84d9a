package store

import (
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
)

// DefaultOfflineCapacity bounds how many records are held while persistence
// is unavailable (no signed-in user yet, or a store failure).
const DefaultOfflineCapacity uint32 = 4096

// OfflineCache buffers normalized records that cannot be persisted yet. The
// underlying ring is overlapped: when full, the oldest records are
// overwritten rather than blocking acquisition.
type OfflineCache[T any] struct {
	buffer      mpmc.RichOverlappedRingBuffer[T]
	logger      *logrus.Logger
	overwritten int64
}

func NewOfflineCache[T any](capacity uint32, logger *logrus.Logger) *OfflineCache[T] {
	if capacity == 0 {
		capacity = DefaultOfflineCapacity
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OfflineCache[T]{
		buffer: mpmc.NewOverlappedRingBuffer[T](capacity),
		logger: logger,
	}
}

// Add buffers records, overwriting the oldest entries when full.
func (c *OfflineCache[T]) Add(items ...T) {
	for _, item := range items {
		overwrites, err := c.buffer.EnqueueM(item)
		if err != nil {
			c.logger.WithField("error", err).Warn("Offline cache enqueue failed, record lost")
			continue
		}
		if overwrites > 0 {
			atomic.AddInt64(&c.overwritten, int64(overwrites))
		}
	}
}

// Drain removes and returns everything currently buffered, oldest first.
func (c *OfflineCache[T]) Drain() []T {
	var out []T
	for !c.buffer.IsEmpty() {
		item, err := c.buffer.Dequeue()
		if err != nil {
			break
		}
		out = append(out, item)
	}
	return out
}

// Overwritten reports how many buffered records were lost to overflow since
// creation.
func (c *OfflineCache[T]) Overwritten() int64 {
	return atomic.LoadInt64(&c.overwritten)
}
