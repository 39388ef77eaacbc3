package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/sqlnb/internal/autosave"
	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/sqlnbfile"
	"github.com/xxxsen/sqlnb/internal/storage"
)

func newTestService(t *testing.T) (*NotebookService, *sqlnbfile.Handler) {
	t.Helper()
	files := sqlnbfile.New(storage.NewMemory())
	svc := NewNotebookService(files, autosave.New(files, autosave.WithDelay(10*time.Millisecond)))
	t.Cleanup(func() {
		_ = svc.Close(context.Background())
	})
	return svc, files
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Weekly Analysis", want: "Weekly Analysis.sqlnb"},
		{in: " report.sqlnb ", want: "report.sqlnb"},
		{in: "", wantErr: true},
		{in: ".sqlnb", wantErr: true},
		{in: "a/b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, appErr.ErrInvalid, tt.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestCreateOpenAndConflict(t *testing.T) {
	ctx := context.Background()
	svc, files := newTestService(t)

	doc, err := svc.Create(ctx, "q1", "Q1 Review")
	require.NoError(t, err)
	require.Equal(t, "q1.sqlnb", doc.Name)
	require.Equal(t, "Q1 Review", doc.Notebook.Title)

	loaded := files.Load(ctx, "q1.sqlnb")
	require.True(t, loaded.Success, loaded.Errors)
	require.Equal(t, doc.Notebook.ID, loaded.Notebook.ID)

	_, err = svc.Create(ctx, "q1.sqlnb", "again")
	require.ErrorIs(t, err, appErr.ErrConflict)

	_, err = svc.Open(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCellEditsAreAutoSaved(t *testing.T) {
	ctx := context.Background()
	svc, files := newTestService(t)
	_, err := svc.Create(ctx, "n", "Notes")
	require.NoError(t, err)

	first, err := svc.AddCell(ctx, "n", model.CellTypeMarkdown, "", model.Text("# Intro"))
	require.NoError(t, err)
	second, err := svc.AddCell(ctx, "n", model.CellTypeSQL, "", model.Text("SELECT 1"))
	require.NoError(t, err)
	require.NoError(t, svc.UpdateCell(ctx, "n", second.ID, model.Text("SELECT 2")))
	require.NoError(t, svc.ReorderCells(ctx, "n", []string{second.ID}))
	require.NoError(t, svc.SetTitle(ctx, "n", "Renamed"))

	require.Eventually(t, func() bool {
		loaded := files.Load(ctx, "n.sqlnb")
		return loaded.Success && loaded.Notebook.Title == "Renamed"
	}, time.Second, 5*time.Millisecond)

	loaded := files.Load(ctx, "n.sqlnb")
	require.Len(t, loaded.Notebook.Cells, 2)
	require.Equal(t, second.ID, loaded.Notebook.Cells[0].ID)
	require.Equal(t, model.Text("SELECT 2"), loaded.Notebook.Cells[0].Content)
	require.Equal(t, first.ID, loaded.Notebook.Cells[1].ID)
	require.Equal(t, 1, loaded.Notebook.Cells[1].Order)

	err = svc.UpdateCell(ctx, "n", "cell-unknown", model.Text("x"))
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestRecordResultAndDeleteCell(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Create(ctx, "r", "Results")
	require.NoError(t, err)
	cell, err := svc.AddCell(ctx, "r", model.CellTypeSQL, "", model.Text("SELECT * FROM t"))
	require.NoError(t, err)

	require.NoError(t, svc.RecordResult(ctx, "r", model.CellResult{
		CellID:          cell.ID,
		Data:            []map[string]any{{"a": 1}, {"a": 2}},
		Columns:         []string{"a"},
		ExecutionTimeMs: 12,
	}))
	doc, err := svc.Open(ctx, "r")
	require.NoError(t, err)
	require.Contains(t, doc.Results, cell.ID)
	md := doc.Notebook.Cells[0].Metadata
	require.NotNil(t, md)
	require.True(t, md.Executed)
	require.Equal(t, 2, *md.ResultCount)

	require.NoError(t, svc.DeleteCell(ctx, "r", cell.ID))
	doc, err = svc.Open(ctx, "r")
	require.NoError(t, err)
	require.Empty(t, doc.Notebook.Cells)
	require.NotContains(t, doc.Results, cell.ID)
}

func TestSaveForcedAndDebounced(t *testing.T) {
	ctx := context.Background()
	svc, files := newTestService(t)
	nb := model.NewNotebook("Direct")
	_, err := nb.AddCell(model.CellTypeSQL, "", model.Text("SELECT 1"))
	require.NoError(t, err)

	doc, err := svc.Save(ctx, "direct", SaveInput{Notebook: nb})
	require.NoError(t, err)
	require.Equal(t, autosave.StateIdle, doc.State)
	require.True(t, files.Load(ctx, "direct.sqlnb").Success)

	nb.Title = "Direct v2"
	_, err = svc.Save(ctx, "direct", SaveInput{Notebook: nb, Debounce: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		loaded := files.Load(ctx, "direct.sqlnb")
		return loaded.Success && loaded.Notebook.Title == "Direct v2"
	}, time.Second, 5*time.Millisecond)

	invalid := model.NewNotebook("")
	_, err = svc.Save(ctx, "bad", SaveInput{Notebook: invalid})
	require.True(t, errors.Is(err, appErr.ErrValidation))
	require.Contains(t, appErr.Messages(err), "Missing required field: title")
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Create(ctx, "b", "B")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "a", "A")
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a.sqlnb", list[0].Name)
	require.True(t, list[0].Open)

	require.NoError(t, svc.Delete(ctx, "a"))
	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b.sqlnb", list[0].Name)
}

type slowAdapter struct {
	storage.Adapter
	delay time.Duration
}

func (s *slowAdapter) Save(ctx context.Context, key, text string) error {
	time.Sleep(s.delay)
	return s.Adapter.Save(ctx, key, text)
}

func TestDeleteWaitsForRunningAutoSave(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	files := sqlnbfile.New(&slowAdapter{Adapter: mem, delay: 100 * time.Millisecond})
	svc := NewNotebookService(files, autosave.New(files, autosave.WithDelay(10*time.Millisecond)))
	t.Cleanup(func() {
		_ = svc.Close(context.Background())
	})

	_, err := svc.Create(ctx, "a", "A")
	require.NoError(t, err)
	_, err = svc.AddCell(ctx, "a", model.CellTypeSQL, "", model.Text("SELECT 1"))
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)

	require.NoError(t, svc.Delete(ctx, "a"))
	time.Sleep(200 * time.Millisecond)
	keys, err := mem.List(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Create(ctx, "src", "Sales Report")
	require.NoError(t, err)
	_, err = svc.AddCell(ctx, "src", model.CellTypeMarkdown, "", model.Text("# Sales"))
	require.NoError(t, err)
	_, err = svc.AddCell(ctx, "src", model.CellTypeSQL, "", model.Text("SELECT sum(amount) FROM sales"))
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		payload, err := svc.Export(ctx, "src", format)
		require.NoError(t, err)
		require.Contains(t, payload.FileName, "Sales_Report_")
		require.Equal(t, format.ContentType(), payload.ContentType)

		doc, err := svc.Import(ctx, "copy-"+string(format), format, payload.Body)
		require.NoError(t, err)
		require.Len(t, doc.Notebook.Cells, 2)
		require.Equal(t, model.Text("# Sales"), doc.Notebook.Cells[0].Content)
		require.Equal(t, model.Text("SELECT sum(amount) FROM sales"), doc.Notebook.Cells[1].Content)
	}

	_, err = svc.Import(ctx, "", FormatJSON, `{"id": "x"}`)
	require.True(t, errors.Is(err, appErr.ErrValidation))
}

func TestApplyText(t *testing.T) {
	ctx := context.Background()
	svc, files := newTestService(t)
	_, err := svc.Create(ctx, "edit", "Before")
	require.NoError(t, err)
	text, err := svc.Text(ctx, "edit")
	require.NoError(t, err)
	require.True(t, svc.Validate(text).Valid)

	edited := replaceTitle(text, "Before", "After")
	doc, err := svc.ApplyText(ctx, "edit", edited)
	require.NoError(t, err)
	require.Equal(t, "After", doc.Notebook.Title)
	require.Equal(t, "After", files.Load(ctx, "edit.sqlnb").Notebook.Title)

	_, err = svc.ApplyText(ctx, "edit", "schema: [")
	require.Error(t, err)
	doc, err = svc.Open(ctx, "edit")
	require.NoError(t, err)
	require.Equal(t, "After", doc.Notebook.Title)
}

func TestSeedSamples(t *testing.T) {
	ctx := context.Background()
	svc, files := newTestService(t)
	n, err := svc.SeedSamples(ctx)
	require.NoError(t, err)
	require.Equal(t, len(sampleNotebooks), n)

	keys, err := files.List(ctx)
	require.NoError(t, err)
	require.Contains(t, keys, "Getting Started.sqlnb")
	loaded := files.Load(ctx, "Weekly Analysis.sqlnb")
	require.True(t, loaded.Success, loaded.Errors)
	require.Len(t, loaded.Notebook.Cells, 2)

	n, err = svc.SeedSamples(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func replaceTitle(text, from, to string) string {
	return strings.Replace(text, "title: "+from, "title: "+to, 1)
}
