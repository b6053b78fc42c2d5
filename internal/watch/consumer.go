package watch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/internal/retry"
	"github.com/capitalize-ai/vcon-datasets/internal/service"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
	"github.com/capitalize-ai/vcon-datasets/pkg/metrics"
)

// Runner runs one record through the ingestion pipeline.
type Runner interface {
	Run(ctx context.Context, rec service.Record) (*model.ConversationDataset, error)
}

// ReadFunc reads a file's full contents.
type ReadFunc func(path string) ([]byte, error)

// Consumer reads the files announced by a Watcher and hands them to the pipeline.
// Each event is handled by exactly one worker.
type Consumer struct {
	runner Runner
	policy retry.Policy
	read   ReadFunc
	pool   *ants.Pool
	wg     sync.WaitGroup
	logger *logger.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	policy  retry.Policy
	read    ReadFunc
	workers int
}

// WithPolicy sets the retry policy applied to file reads.
func WithPolicy(p retry.Policy) ConsumerOption {
	return func(c *consumerConfig) {
		c.policy = p
	}
}

// WithReadFunc replaces os.ReadFile.
func WithReadFunc(fn ReadFunc) ConsumerOption {
	return func(c *consumerConfig) {
		if fn != nil {
			c.read = fn
		}
	}
}

// WithWorkers sets how many events are processed concurrently. Default is 1.
func WithWorkers(n int) ConsumerOption {
	return func(c *consumerConfig) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// NewConsumer creates a consumer feeding runner.
func NewConsumer(runner Runner, log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if runner == nil {
		return nil, fmt.Errorf("watch: runner required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	cfg := consumerConfig{
		policy:  retry.Default(),
		read:    os.ReadFile,
		workers: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := ants.NewPool(cfg.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Consumer{
		runner: runner,
		policy: cfg.policy,
		read:   cfg.read,
		pool:   pool,
		logger: log.Named("consumer"),
	}, nil
}

// Close releases the worker pool of a consumer that will not consume.
func (c *Consumer) Close() {
	c.pool.Release()
}

// Consume processes events until the channel is closed or ctx is done, then
// waits for in-flight events and releases the worker pool.
func (c *Consumer) Consume(ctx context.Context, events <-chan Event) {
	defer c.pool.Release()
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.WatchQueueDepth.Set(float64(len(events)))

			c.wg.Add(1)
			err := c.pool.Submit(func() {
				defer c.wg.Done()
				_ = c.Handle(ctx, ev)
			})
			if err != nil {
				c.wg.Done()
				c.logger.Error("failed to schedule file", zap.String("path", ev.Path), zap.Error(err))
			}
		}
	}
}

// Handle reads the file behind ev under the retry policy and runs it through
// the pipeline. A file that cannot be read is logged and dropped.
func (c *Consumer) Handle(ctx context.Context, ev Event) error {
	log := c.logger.With(zap.String("path", ev.Path), zap.String("name", ev.Name))

	var data []byte
	attempts, err := c.policy.Do(ctx, func(attempt int) error {
		b, err := c.read(ev.Path)
		if err != nil {
			metrics.RecordReadAttempt("error")
			log.Warn("error reading file",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.policy.MaxAttempts),
				zap.Error(err),
			)
			return err
		}
		metrics.RecordReadAttempt("success")
		data = b
		return nil
	})
	if err != nil {
		log.Error("failed to read file after retries", zap.Int("attempts", attempts), zap.Error(err))
		return err
	}

	if _, err := c.runner.Run(ctx, service.Record{
		Name:   ev.Name,
		Source: model.SourceWatch,
		Data:   data,
	}); err != nil {
		// The pipeline has already logged and recorded the failure.
		return err
	}

	log.Info("new file ingested", zap.Int("read_attempts", attempts))
	return nil
}
