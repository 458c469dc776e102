package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/config"
)

// RebuildScheduler triggers a full recommendation rebuild on a fixed
// interval. The rebuild's own in-flight guard handles overlap, so the
// scheduler just fires and logs.
type RebuildScheduler struct {
	service    RecommendationService
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewRebuildScheduler creates a scheduler from its configuration.
func NewRebuildScheduler(service RecommendationService, cfg config.SchedulerConfig, logger *zap.Logger) *RebuildScheduler {
	return &RebuildScheduler{
		service:    service,
		interval:   time.Duration(cfg.IntervalHours) * time.Hour,
		runOnStart: cfg.RunOnStart,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the scheduling loop in a background goroutine.
func (s *RebuildScheduler) Start() {
	go s.run()
}

// Stop signals the loop to exit and waits for it to finish. An in-flight
// rebuild completes before Stop returns.
func (s *RebuildScheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *RebuildScheduler) run() {
	defer close(s.done)

	s.logger.Info("rebuild scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		s.runOnce()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stop:
			s.logger.Info("rebuild scheduler stopped")
			return
		}
	}
}

func (s *RebuildScheduler) runOnce() {
	result, err := s.service.Rebuild(context.Background(), nil)
	if err != nil {
		if errors.Is(err, apperrors.ErrRebuildInProgress) {
			s.logger.Warn("scheduled rebuild skipped, another rebuild is running")
			return
		}
		s.logger.Error("scheduled rebuild failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled rebuild complete",
		zap.String("run_id", result.RunID.String()),
		zap.Int("restaurants", len(result.Restaurants)))
}
