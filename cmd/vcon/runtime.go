package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/config"
	"github.com/capitalize-ai/vcon-datasets/internal/extract"
	"github.com/capitalize-ai/vcon-datasets/internal/llm"
	natsclient "github.com/capitalize-ai/vcon-datasets/internal/nats"
	"github.com/capitalize-ai/vcon-datasets/internal/retry"
	"github.com/capitalize-ai/vcon-datasets/internal/service"
	"github.com/capitalize-ai/vcon-datasets/internal/status"
	"github.com/capitalize-ai/vcon-datasets/internal/storage"
	"github.com/capitalize-ai/vcon-datasets/internal/watch"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
	"github.com/capitalize-ai/vcon-datasets/pkg/tracing"
)

// runtime holds the long-lived components shared by the intake sources.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *storage.Store
	tracker  *status.Tracker
	pipeline *service.Pipeline
	nats     *natsclient.Client

	closers []func()
}

// newRuntime builds the pipeline and its collaborators. The caller must call close.
func newRuntime(ctx context.Context, cfg *config.Config, log *logger.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			rt.closers = append(rt.closers, func() {
				if err := tracing.Shutdown(context.Background(), tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			})
		}
	}

	store, err := storage.NewStore(cfg.DatasetDir)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = store

	tracker, err := status.NewTracker(cfg.OutcomeHistory)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create outcome tracker: %w", err)
	}
	rt.tracker = tracker

	opts := []service.Option{service.WithRecorder(tracker)}

	if cfg.OutcomeDB != "" {
		journal, err := status.OpenJournal(cfg.OutcomeDB, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = journal.Close() })

		n, err := journal.Restore(tracker)
		if err != nil {
			log.Warn("failed to restore ingestion history", zap.Error(err))
		} else {
			log.Info("restored ingestion history", zap.Int("outcomes", n))
		}
		opts = append(opts, service.WithRecorder(journal))
	}

	// The extraction client is created once and shared by every pipeline run.
	client, err := llm.NewClient(ctx, llm.Options{
		Provider: llm.Provider(cfg.LLMProvider),
		APIKey:   cfg.APIKey(),
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, func() { _ = closer.Close() })
	}

	extractor, err := extract.NewLLMExtractor(client, log,
		extract.WithTimeout(cfg.ExtractionTimeout),
		extract.WithMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		rt.close()
		return nil, err
	}

	if cfg.NATSEnabled {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.nats = nc
		rt.closers = append(rt.closers, nc.Close)

		if err := natsclient.EnsureStream(ctx, nc.JetStream()); err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
		opts = append(opts, service.WithNotifier(natsclient.NewPublisher(nc)))
	}

	pipeline, err := service.NewPipeline(extractor, store, log, opts...)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.pipeline = pipeline

	log.Info("pipeline ready",
		zap.String("provider", client.Name()),
		zap.String("datasets", store.Root()),
		zap.Bool("nats", cfg.NATSEnabled),
	)
	return rt, nil
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// startWatch runs the directory watch source until ctx is done. The returned
// function blocks until the watcher and every in-flight event have finished.
func (rt *runtime) startWatch(ctx context.Context, dir string) (func(), error) {
	consumer, err := watch.NewConsumer(rt.pipeline, rt.log,
		watch.WithPolicy(retry.Policy{
			MaxAttempts: rt.cfg.ReadRetries,
			Delay:       rt.cfg.ReadRetryDelay,
		}),
		watch.WithWorkers(rt.cfg.WatchWorkers),
	)
	if err != nil {
		return nil, err
	}

	w, err := watch.NewWatcher(dir, rt.cfg.WatchExtension, rt.cfg.WatchQueueSize, rt.log)
	if err != nil {
		consumer.Close()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			rt.log.Error("watcher stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		consumer.Consume(ctx, w.Events())
	}()

	return wg.Wait, nil
}
