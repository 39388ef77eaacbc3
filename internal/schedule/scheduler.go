package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunNow(ctx context.Context, name string) error
	Start(ctx context.Context)
	Stop()
}

// Status is the outcome of the latest run of a job.
type Status struct {
	Name     string        `json:"name"`
	Spec     string        `json:"spec"`
	LastRun  time.Time     `json:"last_run"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
	Running  bool          `json:"running"`
}

type scheduledJob struct {
	job     Job
	spec    string
	entryID cron.EntryID
	running atomic.Bool

	mu     sync.Mutex
	status Status
}

// CronScheduler runs jobs on standard five field cron specs or descriptors
// such as "@every 10m". A job never overlaps with itself.
type CronScheduler struct {
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]*scheduledJob
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		jobs: make(map[string]*scheduledJob),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	sj := &scheduledJob{job: job, spec: spec, status: Status{Name: name, Spec: spec}}
	entryID, err := c.cron.AddFunc(spec, func() {
		c.run(c.context(), sj)
	})
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	sj.entryID = entryID
	c.jobs[name] = sj
	logger.Info("job scheduled")
	return nil
}

// RunNow runs a scheduled job synchronously, outside of its schedule.
func (c *CronScheduler) RunNow(ctx context.Context, name string) error {
	c.mu.Lock()
	sj, ok := c.jobs[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return c.run(ctx, sj)
}

func (c *CronScheduler) Statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, 0, len(c.jobs))
	for _, sj := range c.jobs {
		sj.mu.Lock()
		st := sj.status
		sj.mu.Unlock()
		st.Running = sj.running.Load()
		out = append(out, st)
	}
	return out
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *CronScheduler) run(ctx context.Context, sj *scheduledJob) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", sj.job.Name()),
		zap.String("spec", sj.spec),
	)
	if !sj.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return nil
	}
	defer sj.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := sj.job.Run(ctx)
	elapsed := time.Since(start)

	sj.mu.Lock()
	sj.status.LastRun = start
	sj.status.Duration = elapsed
	sj.status.Err = ""
	if err != nil {
		sj.status.Err = err.Error()
	}
	sj.mu.Unlock()

	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
	return nil
}
