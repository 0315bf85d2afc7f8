package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deluxe_backend/internal/service"
)

// Sweeper is satisfied by *service.Sweeper.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SweepRecorder receives the number of removed subscriptions after each run.
type SweepRecorder interface {
	SweepRemoved(n int)
}

// InitIncompleteSweepCron schedules the incomplete subscription sweep on spec
// and starts the scheduler. Stop the returned cron on shutdown.
func InitIncompleteSweepCron(spec string, timeout time.Duration, sweeper Sweeper, recorder SweepRecorder, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))

	_, err := c.AddFunc(spec, func() {
		runSweep(sweeper, recorder, timeout, logger)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("incomplete subscription sweep scheduled", zap.String("spec", spec))
	return c, nil
}

func runSweep(sweeper Sweeper, recorder SweepRecorder, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := sweeper.Sweep(ctx)
	if err != nil {
		logger.Error("incomplete subscription sweep failed", zap.Error(err))
	}
	if recorder != nil && result.Removed > 0 {
		recorder.SweepRemoved(result.Removed)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
