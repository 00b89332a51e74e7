package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"brandmerch/internal/bootstrap"
	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/recovery"
)

const taskPollInterval = 2 * time.Second

type taskRunner interface {
	RunTask(ctx context.Context, task domain.Task) error
}

type sweeper interface {
	Run(ctx context.Context) (recovery.Result, error)
}

type worker struct {
	tasks    domain.TaskQueue
	runner   taskRunner
	lease    time.Duration
	poll     time.Duration
	logger   infra.Logger
	sweeper  sweeper
	interval time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.New(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: bootstrap failed")
	}
	defer c.Close()

	w := &worker{
		tasks:    c.Tasks,
		runner:   c.Pipeline,
		lease:    cfg.TaskLease,
		poll:     taskPollInterval,
		logger:   logger,
		sweeper:  c.Sweeper,
		interval: cfg.RecoveryInterval,
	}
	go w.sweepLoop(ctx)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run claims and executes tasks until ctx is done.
func (w *worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("lease", w.lease).Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ran, err := w.step(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: failed to claim task")
		}
		if ran {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.poll):
		}
	}
}

// step runs at most one task and reports whether one was claimed.
func (w *worker) step(ctx context.Context) (bool, error) {
	task, err := w.tasks.Claim(ctx, w.lease)
	if err != nil || task == nil {
		return false, err
	}
	w.handle(ctx, *task)
	return true, nil
}

func (w *worker) handle(ctx context.Context, task domain.Task) {
	log := w.logger.With().
		Str("task_id", task.ID).
		Str("session_id", task.SessionID).
		Str("stage", string(task.Stage)).
		Int("attempt", task.Attempts).
		Logger()
	log.Info().Msg("worker: picked task")

	// A stage never outlives its lease.
	runCtx, cancel := context.WithTimeout(ctx, w.lease)
	defer cancel()

	start := time.Now()
	if err := w.runner.RunTask(runCtx, task); err != nil {
		if ctx.Err() != nil {
			// Shutting down: hand the task back instead of failing it.
			log.Warn().Err(err).Msg("worker: interrupted, releasing task")
			if rerr := w.tasks.Release(context.WithoutCancel(ctx), task.ID); rerr != nil {
				log.Error().Err(rerr).Msg("worker: release task")
			}
			return
		}
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("worker: task failed")
		if ferr := w.tasks.Fail(context.WithoutCancel(ctx), task.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("worker: mark task failed")
		}
		return
	}
	if err := w.tasks.Complete(context.WithoutCancel(ctx), task.ID); err != nil {
		log.Error().Err(err).Msg("worker: mark task complete")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("worker: task done")
}

func (w *worker) sweepLoop(ctx context.Context) {
	if w.sweeper == nil || w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := w.sweeper.Run(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: recovery sweep failed")
				continue
			}
			w.logger.Info().
				Int("found", res.Found).
				Int("sent", res.Sent).
				Int("failed", res.Failed).
				Int("skipped", res.Skipped).
				Msg("worker: recovery sweep")
		}
	}
}
