// File: internal/jobs/verification_sweep.go
package jobs

import (
	"context"
	"time"

	"mabel_auth_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepBatchSize is how many accounts the sweep loads per query.
const SweepBatchSize = 100

// VerificationStamper stamps EXTERNAL accounts that are missing EmailVerifiedAt.
// It is implemented by user.ServiceImplementation.
type VerificationStamper interface {
	StampUnverifiedExternal(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// VerificationSweepJob periodically corrects verification drift: every
// account provisioned through the gateway must be marked verified, even when
// the stamp at sign-in time failed.
type VerificationSweepJob struct {
	stamper       VerificationStamper
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewVerificationSweepJob creates a new VerificationSweepJob.
func NewVerificationSweepJob(stamper VerificationStamper, logger *zap.Logger, cfg *config.Config) *VerificationSweepJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)

	return &VerificationSweepJob{
		stamper:       stamper,
		logger:        logger.Named("VerificationSweepJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job. An empty schedule disables it.
func (j *VerificationSweepJob) SetupAndStart() error {
	jobSpec := j.cfg.VerificationSweepSchedule
	if jobSpec == "" {
		j.logger.Warn("Verification sweep schedule not defined (VERIFICATION_SWEEP_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, func() { j.RunOnce(context.Background()) })
	if err != nil {
		j.logger.Error("Failed to schedule verification sweep", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Verification sweep scheduled", zap.String("spec", jobSpec), zap.Int("jobID", int(jobID)))
	j.cronScheduler.Start()
	return nil
}

// RunOnce performs a single sweep and returns the number of accounts stamped.
func (j *VerificationSweepJob) RunOnce(ctx context.Context) int {
	j.logger.Info("Starting verification sweep run...")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	stamped, err := j.stamper.StampUnverifiedExternal(ctx, time.Now().UTC(), SweepBatchSize)
	if err != nil {
		j.logger.Error("Verification sweep run failed", zap.Int("accounts_stamped", stamped), zap.Error(err))
		return stamped
	}
	j.logger.Info("Verification sweep run completed", zap.Int("accounts_stamped", stamped))
	return stamped
}

// Stop gracefully stops the cron scheduler.
func (j *VerificationSweepJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping verification sweep scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Verification sweep scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Verification sweep scheduler stop timed out.")
	}
}
