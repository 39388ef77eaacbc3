package job

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/sqlnb/internal/sqlnbfile"
)

// FileReport describes a stored file that failed to load.
type FileReport struct {
	Name     string   `json:"name"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

type IntegrityReport struct {
	Checked  int          `json:"checked"`
	Invalid  []FileReport `json:"invalid"`
	Warnings int          `json:"warnings"`
}

// IntegrityCheckJob loads every stored notebook and reports the ones that
// no longer parse or validate. Nothing is modified.
type IntegrityCheckJob struct {
	files   *sqlnbfile.Handler
	workers int

	mu   sync.Mutex
	last *IntegrityReport
}

func NewIntegrityCheckJob(files *sqlnbfile.Handler, workers int) *IntegrityCheckJob {
	if workers <= 0 {
		workers = 4
	}
	return &IntegrityCheckJob{files: files, workers: workers}
}

func (j *IntegrityCheckJob) Name() string {
	return "integrity_check"
}

func (j *IntegrityCheckJob) Run(ctx context.Context) error {
	report, err := j.Check(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, item := range report.Invalid {
		logger.Warn("notebook file is invalid", zap.String("file", item.Name), zap.Strings("errors", item.Errors))
	}
	logger.Info("integrity check done",
		zap.Int("checked", report.Checked),
		zap.Int("invalid", len(report.Invalid)),
		zap.Int("warnings", report.Warnings),
	)
	return nil
}

// Check runs the scan and returns its report. The latest report is also
// kept for LastReport.
func (j *IntegrityCheckJob) Check(ctx context.Context) (*IntegrityReport, error) {
	names, err := j.files.List(ctx)
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{Invalid: []FileReport{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := j.files.Load(gctx, name)
			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			report.Warnings += len(res.Warnings)
			if !res.Success {
				report.Invalid = append(report.Invalid, FileReport{Name: name, Errors: res.Errors, Warnings: res.Warnings})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(report.Invalid, func(a, b int) bool { return report.Invalid[a].Name < report.Invalid[b].Name })

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()
	return report, nil
}

func (j *IntegrityCheckJob) LastReport() *IntegrityReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
