// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

const reconcileTimeout = 4 * time.Minute

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("jobs.cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("jobs.cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			m[k] = keysAndValues[i+1]
		}
	}
	return m
}

type Scheduler struct {
	cron       *cron.Cron
	catalogSvc catalog.Service
	logger     core.Logger
}

// NewScheduler registers the orphan reconciliation on conf.Jobs.ReconcileSchedule.
// Runs never overlap: a run still in progress makes the next one skip.
func NewScheduler(conf *core.Config, catalogSvc catalog.Service, logger core.Logger) (*Scheduler, error) {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(catalogSvc, "catalogSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		catalogSvc: catalogSvc,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(conf.Jobs.ReconcileSchedule, s.reconcile); err != nil {
		return nil, errors.Wrapf(err, "scheduling reconciliation %q", conf.Jobs.ReconcileSchedule)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running jobs")
	}
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	if _, err := Reconcile(ctx, s.catalogSvc); err != nil {
		s.logger.Error("jobs.reconcile", err)
	}
}

// Reconcile runs one orphan reconciliation pass and returns the number of rows removed.
func Reconcile(ctx context.Context, catalogSvc catalog.Service) (int, error) {
	n, err := catalogSvc.ReconcileOrphans(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reconciling orphans")
	}
	return n, nil
}
