package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/autosave"
	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/sqlnbfile"
)

const FileExt = ".sqlnb"

type FileSummary struct {
	Name  string         `json:"name"`
	State autosave.State `json:"state"`
	Open  bool           `json:"open"`
}

// Document is an open notebook together with the transient results the
// editor has reported for it.
type Document struct {
	Name     string          `json:"name"`
	Notebook *model.Notebook `json:"notebook"`
	Results  model.Results   `json:"results,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	State    autosave.State  `json:"state"`
}

type SaveInput struct {
	Notebook *model.Notebook
	Results  model.Results
	Debounce bool
}

type workingCopy struct {
	nb       *model.Notebook
	results  model.Results
	warnings []string
}

// NotebookService keeps a working copy of every opened file and routes all
// edits through the auto saver.
type NotebookService struct {
	files *sqlnbfile.Handler
	saver *autosave.AutoSaver

	mu   sync.Mutex
	open map[string]*workingCopy
}

func NewNotebookService(files *sqlnbfile.Handler, saver *autosave.AutoSaver) *NotebookService {
	return &NotebookService{
		files: files,
		saver: saver,
		open:  make(map[string]*workingCopy),
	}
}

// NormalizeName trims name and appends the .sqlnb extension when missing.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == FileExt {
		return "", fmt.Errorf("file name is required: %w", appErr.ErrInvalid)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("file name %q must not contain path separators: %w", name, appErr.ErrInvalid)
	}
	if !strings.HasSuffix(name, FileExt) {
		name += FileExt
	}
	return name, nil
}

func (s *NotebookService) List(ctx context.Context) ([]FileSummary, error) {
	keys, err := s.files.List(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(keys))
	out := make([]FileSummary, 0, len(keys))
	for _, key := range keys {
		seen[key] = struct{}{}
		_, isOpen := s.open[key]
		out = append(out, FileSummary{Name: key, State: s.saver.State(key), Open: isOpen})
	}
	// created but not yet flushed
	for key := range s.open {
		if _, ok := seen[key]; ok {
			continue
		}
		out = append(out, FileSummary{Name: key, State: s.saver.State(key), Open: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *NotebookService) Create(ctx context.Context, name, title string) (*Document, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(name, FileExt)
	}
	if _, err := s.files.Stat(ctx, name); err == nil {
		return nil, fmt.Errorf("file %q already exists: %w", name, appErr.ErrConflict)
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	nb := model.NewNotebook(title)
	if res := s.saver.ForceSave(ctx, name, nb, nil); !res.Success {
		return nil, res.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[name] = &workingCopy{nb: nb, results: model.Results{}}
	logutil.GetLogger(ctx).Info("notebook created", zap.String("file", name), zap.String("id", nb.ID))
	return s.documentLocked(name), nil
}

// Open returns the working copy of name, loading it from storage on first
// access.
func (s *NotebookService) Open(ctx context.Context, name string) (*Document, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.workingCopy(ctx, name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked(name), nil
}

// Save replaces the working copy. With Debounce the write is scheduled,
// otherwise it happens before Save returns.
func (s *NotebookService) Save(ctx context.Context, name string, in SaveInput) (*Document, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if in.Notebook == nil {
		return nil, fmt.Errorf("notebook is required: %w", appErr.ErrInvalid)
	}
	nb := in.Notebook.Clone()
	nb.Normalize()
	results := in.Results.Clone()
	if results == nil {
		results = model.Results{}
	}
	s.mu.Lock()
	s.open[name] = &workingCopy{nb: nb, results: results}
	s.mu.Unlock()

	if in.Debounce {
		if err := s.saver.ScheduleSave(name, nb, results); err != nil {
			return nil, err
		}
	} else if res := s.saver.ForceSave(ctx, name, nb, results); !res.Success {
		return nil, res.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked(name), nil
}

// Flush writes the working copy of name right away.
func (s *NotebookService) Flush(ctx context.Context, name string) (*Document, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	wc, ok := s.open[name]
	var (
		nb      *model.Notebook
		results model.Results
	)
	if ok {
		nb, results = wc.nb.Clone(), wc.results.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return s.Open(ctx, name)
	}
	if res := s.saver.ForceSave(ctx, name, nb, results); !res.Success {
		return nil, res.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked(name), nil
}

func (s *NotebookService) Delete(ctx context.Context, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.open, name)
	s.mu.Unlock()
	s.saver.Discard(name)
	if res := s.files.Delete(ctx, name); !res.Success {
		return res.Err
	}
	logutil.GetLogger(ctx).Info("notebook deleted", zap.String("file", name))
	return nil
}

func (s *NotebookService) AddCell(ctx context.Context, name string, cellType model.CellType, afterID string, content model.Content) (model.Cell, error) {
	var cell model.Cell
	err := s.edit(ctx, name, func(wc *workingCopy) error {
		var err error
		cell, err = wc.nb.AddCell(cellType, afterID, content)
		return err
	})
	return cell, err
}

func (s *NotebookService) UpdateCell(ctx context.Context, name, cellID string, content model.Content) error {
	return s.edit(ctx, name, func(wc *workingCopy) error {
		return wc.nb.UpdateCell(cellID, content)
	})
}

// DeleteCell also drops the cached result of the cell.
func (s *NotebookService) DeleteCell(ctx context.Context, name, cellID string) error {
	return s.edit(ctx, name, func(wc *workingCopy) error {
		if err := wc.nb.DeleteCell(cellID); err != nil {
			return err
		}
		wc.results.Evict(cellID)
		return nil
	})
}

func (s *NotebookService) ReorderCells(ctx context.Context, name string, ids []string) error {
	return s.edit(ctx, name, func(wc *workingCopy) error {
		wc.nb.ReorderCells(ids)
		return nil
	})
}

func (s *NotebookService) SetTitle(ctx context.Context, name, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required: %w", appErr.ErrInvalid)
	}
	return s.edit(ctx, name, func(wc *workingCopy) error {
		wc.nb.SetTitle(title)
		return nil
	})
}

// RecordResult stores an execution result reported by the query runner.
func (s *NotebookService) RecordResult(ctx context.Context, name string, result model.CellResult) error {
	return s.edit(ctx, name, func(wc *workingCopy) error {
		if err := wc.nb.ApplyResult(result); err != nil {
			return err
		}
		wc.results[result.CellID] = result
		return nil
	})
}

func (s *NotebookService) Close(ctx context.Context) error {
	return s.saver.Close(ctx)
}

// edit applies fn to the working copy of name and schedules a save.
func (s *NotebookService) edit(ctx context.Context, name string, fn func(wc *workingCopy) error) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if _, err := s.workingCopy(ctx, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wc, ok := s.open[name]
	if !ok {
		return fmt.Errorf("file %q: %w", name, appErr.ErrNotFound)
	}
	if err := fn(wc); err != nil {
		return err
	}
	return s.saver.ScheduleSave(name, wc.nb, wc.results)
}

func (s *NotebookService) workingCopy(ctx context.Context, name string) (*workingCopy, error) {
	s.mu.Lock()
	wc, ok := s.open[name]
	s.mu.Unlock()
	if ok {
		return wc, nil
	}
	loaded := s.files.Load(ctx, name)
	if !loaded.Success {
		return nil, loaded.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if wc, ok := s.open[name]; ok {
		return wc, nil
	}
	wc = &workingCopy{nb: loaded.Notebook, results: model.Results{}, warnings: loaded.Warnings}
	s.open[name] = wc
	return wc, nil
}

func (s *NotebookService) documentLocked(name string) *Document {
	wc := s.open[name]
	return &Document{
		Name:     name,
		Notebook: wc.nb.Clone(),
		Results:  wc.results.Clone(),
		Warnings: wc.warnings,
		State:    s.saver.State(name),
	}
}
