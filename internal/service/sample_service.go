package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/sqlnb/internal/model"
)

type sampleCell struct {
	cellType model.CellType
	content  string
}

type sampleNotebook struct {
	title string
	cells []sampleCell
}

var sampleNotebooks = []sampleNotebook{
	{
		title: "Getting Started",
		cells: []sampleCell{
			{model.CellTypeMarkdown, "# Getting Started\n\nMix markdown notes and SQL queries in one notebook.\n\n- Add cells from the toolbar\n- Run a query to see its results\n- Switch to the YAML view to edit the file directly"},
			{model.CellTypeSQL, "-- a first query\nSELECT 'hello' AS greeting;"},
		},
	},
	{
		title: "Weekly Analysis",
		cells: []sampleCell{
			{model.CellTypeMarkdown, "# Weekly User Analysis\n\nSign ups per day over the last seven days."},
			{model.CellTypeSQL, "SELECT DATE(created_at) AS day, COUNT(*) AS users\nFROM users\nWHERE created_at >= NOW() - INTERVAL '7 days'\nGROUP BY DATE(created_at)\nORDER BY day;"},
		},
	},
	{
		title: "Monthly Trends",
		cells: []sampleCell{
			{model.CellTypeMarkdown, "# Monthly Trends\n\nUser growth over the past month."},
		},
	},
}

// SeedSamples writes the sample notebooks when storage holds no files and
// returns how many were written.
func (s *NotebookService) SeedSamples(ctx context.Context) (int, error) {
	keys, err := s.files.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sample := range sampleNotebooks {
		g.Go(func() error {
			nb, err := sample.build()
			if err != nil {
				return err
			}
			name := sample.title + FileExt
			if res := s.files.Save(gctx, name, nb, nil); !res.Success {
				return fmt.Errorf("seed %s: %w", name, res.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	logutil.GetLogger(ctx).Info("sample notebooks written", zap.Int("count", len(sampleNotebooks)))
	return len(sampleNotebooks), nil
}

func (n sampleNotebook) build() (*model.Notebook, error) {
	nb := model.NewNotebook(n.title)
	for _, cell := range n.cells {
		if _, err := nb.AddCell(cell.cellType, "", model.Text(cell.content)); err != nil {
			return nil, err
		}
	}
	return nb, nil
}
