package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/case-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// AnalysisWorkerConfig holds configuration for the analysis worker
type AnalysisWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Timeout      time.Duration
}

// DefaultAnalysisWorkerConfig returns default configuration
func DefaultAnalysisWorkerConfig() AnalysisWorkerConfig {
	return AnalysisWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    5,
		Timeout:      5 * time.Minute,
	}
}

// PendingAnalyses lists analysis runs waiting to be processed
type PendingAnalyses interface {
	ListProcessing(ctx context.Context, limit int) ([]*entity.AnalysisResult, error)
}

// AnalysisProcessor runs one analysis to completion
type AnalysisProcessor interface {
	Process(ctx context.Context, resultID int64) error
}

// AnalysisWorker polls PROCESSANDO analysis results and processes them one at a time
type AnalysisWorker struct {
	config    AnalysisWorkerConfig
	pending   PendingAnalyses
	processor AnalysisProcessor
	logger    *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	processed int
	failed    int
	lastRun   time.Time
	lastError error
}

// NewAnalysisWorker creates a new analysis worker
func NewAnalysisWorker(config AnalysisWorkerConfig, pending PendingAnalyses, processor AnalysisProcessor, logger *zap.Logger) *AnalysisWorker {
	defaults := DefaultAnalysisWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &AnalysisWorker{
		config:    config,
		pending:   pending,
		processor: processor,
		logger:    logger,
	}
}

// Name returns the worker name for identification
func (w *AnalysisWorker) Name() string {
	return "AnalysisWorker"
}

// Start begins the polling loop
func (w *AnalysisWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("analysis worker already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("AnalysisWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current analysis to return
func (w *AnalysisWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done

	w.logger.Info("AnalysisWorker stopped",
		zap.Int("processed_count", w.Status().Processed),
		zap.Int("failed_count", w.Status().Failed))
	return nil
}

// Status reports the worker counters
func (w *AnalysisWorker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Status{
		Name:      w.Name(),
		Running:   w.running,
		Processed: w.processed,
		Failed:    w.failed,
		LastRun:   w.lastRun,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}

func (w *AnalysisWorker) pollLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("Failed to process pending analyses", zap.Error(err))
			}
		}
	}
}

// ProcessBatch processes up to BatchSize pending analyses and returns how many ran
func (w *AnalysisWorker) ProcessBatch(ctx context.Context) (int, error) {
	results, err := w.pending.ListProcessing(ctx, w.config.BatchSize)

	w.mu.Lock()
	w.lastRun = time.Now()
	if err != nil {
		w.lastError = err
	}
	w.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("failed to list pending analyses: %w", err)
	}

	ran := 0
	for _, r := range results {
		if ctx.Err() != nil {
			break
		}

		runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		err := w.processor.Process(runCtx, r.ID)
		cancel()
		ran++

		w.mu.Lock()
		if err != nil {
			w.failed++
			w.lastError = err
		} else {
			w.processed++
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Warn("Analysis failed",
				zap.Int64("result_id", r.ID),
				zap.Int64("case_id", r.CaseID),
				zap.Error(err))
		}
	}

	return ran, nil
}
