package search

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/novapages/internal/db"
	"go.uber.org/zap"
)

// PageSource lists the pages that should be searchable.
type PageSource interface {
	ListActive(ctx context.Context) ([]db.Page, error)
}

// ReindexObserver receives the outcome of each rebuild.
type ReindexObserver interface {
	Reindex(d time.Duration, ok bool)
}

// Scheduler periodically rebuilds the index from a PageSource.
type Scheduler struct {
	scheduler gocron.Scheduler
	indexer   *Indexer
	source    PageSource
	observer  ReindexObserver
	logger    *zap.Logger
}

// NewScheduler creates a scheduler. observer may be nil.
func NewScheduler(indexer *Indexer, source PageSource, observer ReindexObserver, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: s,
		indexer:   indexer,
		source:    source,
		observer:  observer,
		logger:    logger,
	}, nil
}

// Schedule registers the periodic rebuild job and returns its id.
func (s *Scheduler) Schedule(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("reindex interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := s.RunOnce(context.Background()); err != nil {
				s.logger.Error("scheduled reindex failed", zap.Error(err))
			}
		}),
		gocron.WithName("pages-reindex"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create reindex job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting reindex scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping reindex scheduler")
	return s.scheduler.Shutdown()
}

// RunOnce rebuilds the index immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	pages, err := s.source.ListActive(ctx)
	if err == nil {
		err = s.indexer.Rebuild(pages)
	}
	if s.observer != nil {
		s.observer.Reindex(time.Since(start), err == nil)
	}
	if err != nil {
		return fmt.Errorf("reindex pages: %w", err)
	}
	return nil
}
