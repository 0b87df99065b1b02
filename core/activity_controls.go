package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type ActivityRetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

// RetentionPolicyFromConfig reads the retention settings from service config.
func RetentionPolicyFromConfig(cfg ActivityConfig) ActivityRetentionPolicy {
	return ActivityRetentionPolicy{TTL: cfg.RetentionTTL, RowCap: cfg.RowCap}
}

type ActivityRetentionPruner interface {
	Prune(ctx context.Context, policy ActivityRetentionPolicy) (deleted int, err error)
}

// BufferedActivitySink records activity off the request path. Entries that do
// not fit in the buffer, or that the primary sink rejects, go to the fallback.
// Close drains the buffer before returning.
type BufferedActivitySink struct {
	primary  ActivitySink
	fallback ActivitySink
	policy   ActivityRetentionPolicy
	pruner   ActivityRetentionPruner

	queue chan ActivityEntry
	now   func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewBufferedActivitySink(
	primary ActivitySink,
	fallback ActivitySink,
	policy ActivityRetentionPolicy,
	bufferSize int,
) (*BufferedActivitySink, error) {
	if primary == nil {
		return nil, fmt.Errorf("core: primary activity sink is required")
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}

	sink := &BufferedActivitySink{
		primary:  primary,
		fallback: fallback,
		policy:   policy,
		queue:    make(chan ActivityEntry, bufferSize),
		now: func() time.Time {
			return time.Now().UTC()
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if pruner, ok := primary.(ActivityRetentionPruner); ok {
		sink.pruner = pruner
	}

	go sink.run()
	return sink, nil
}

func (s *BufferedActivitySink) Record(ctx context.Context, entry ActivityEntry) error {
	if s == nil || s.primary == nil {
		return fmt.Errorf("core: buffered activity sink is not configured")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	select {
	case <-s.stopCh:
		return s.primary.Record(ctx, entry)
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- entry:
		return nil
	default:
		if s.fallback != nil {
			return s.fallback.Record(ctx, entry)
		}
		return nil
	}
}

func (s *BufferedActivitySink) List(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.primary == nil {
		return ActivityPage{}, fmt.Errorf("core: buffered activity sink is not configured")
	}
	return s.primary.List(ctx, filter)
}

// EnforceRetention prunes the primary sink when it supports retention.
func (s *BufferedActivitySink) EnforceRetention(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: buffered activity sink is not configured")
	}
	if s.pruner == nil {
		return 0, nil
	}
	return s.pruner.Prune(ctx, s.policy)
}

func (s *BufferedActivitySink) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *BufferedActivitySink) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			for {
				select {
				case entry := <-s.queue:
					s.write(entry)
				default:
					return
				}
			}
		case entry := <-s.queue:
			s.write(entry)
		}
	}
}

func (s *BufferedActivitySink) write(entry ActivityEntry) {
	if err := s.primary.Record(context.Background(), entry); err != nil && s.fallback != nil {
		_ = s.fallback.Record(context.Background(), entry)
	}
}

var _ ActivitySink = (*BufferedActivitySink)(nil)
