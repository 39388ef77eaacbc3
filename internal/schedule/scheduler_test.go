package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countJob) Name() string { return j.name }

func (j *countJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestAddJobRejectsBadSpecAndDuplicates(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countJob{name: "bad"}, "not a spec"))
	require.NoError(t, s.AddJob(&countJob{name: "ok"}, "@every 1h"))
	require.NoError(t, s.AddJob(&countJob{name: "daily"}, "0 3 * * *"))
	require.Error(t, s.AddJob(&countJob{name: "ok"}, "@every 2h"))
}

func TestRunNowRecordsStatus(t *testing.T) {
	s := NewCronScheduler()
	failing := &countJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.AddJob(failing, "@every 1h"))

	err := s.RunNow(context.Background(), "failing")
	require.EqualError(t, err, "boom")
	require.EqualValues(t, 1, failing.runs.Load())

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, "boom", statuses[0].Err)
	require.False(t, statuses[0].LastRun.IsZero())

	require.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestRunNowSkipsOverlappingRun(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "@every 1h"))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.RunNow(context.Background(), "slow"))
	require.EqualValues(t, 1, job.runs.Load())

	close(job.block)
	require.NoError(t, <-done)
}

func TestStartRunsScheduledJob(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{name: "tick"}
	require.NoError(t, s.AddJob(job, "@every 1s"))
	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
}
