package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/codec"
	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/validator"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "yaml", "yml", "sqlnb":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q: %w", v, appErr.ErrInvalid)
}

func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/x-yaml"
}

func (f Format) Ext() string {
	if f == FormatJSON {
		return "json"
	}
	return "sqlnb"
}

type ExportPayload struct {
	FileName    string
	ContentType string
	Body        string
}

// Export renders the working copy of name, results included.
func (s *NotebookService) Export(ctx context.Context, name string, format Format) (*ExportPayload, error) {
	doc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	c := s.files.Codec()
	var body string
	switch format {
	case FormatJSON:
		body, err = c.ExportJSON(doc.Notebook, doc.Results, true)
	default:
		body, err = c.ExportYAML(doc.Notebook, doc.Results)
	}
	if err != nil {
		return nil, err
	}
	return &ExportPayload{
		FileName:    codec.ExportFileName(doc.Notebook, format.Ext()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// Import validates text, decodes it and stores it as a new file. When name
// is empty the notebook title is used.
func (s *NotebookService) Import(ctx context.Context, name string, format Format, text string) (*Document, error) {
	nb, err := s.decode(format, text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = nb.Title
	}
	name, err = NormalizeName(name)
	if err != nil {
		return nil, err
	}
	doc, err := s.Save(ctx, name, SaveInput{Notebook: nb})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("notebook imported",
		zap.String("file", name), zap.String("format", string(format)), zap.Int("cells", len(nb.Cells)))
	return doc, nil
}

// ApplyText replaces the working copy of name with hand edited .sqlnb text
// and writes it. Results of cells that survive the edit are kept.
func (s *NotebookService) ApplyText(ctx context.Context, name string, text string) (*Document, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	nb, err := s.decode(FormatYAML, text)
	if err != nil {
		return nil, err
	}
	results := model.Results{}
	s.mu.Lock()
	if wc, ok := s.open[name]; ok {
		for id, res := range wc.results {
			if _, exists := nb.CellByID(id); exists {
				results[id] = res
			}
		}
	}
	s.mu.Unlock()
	return s.Save(ctx, name, SaveInput{Notebook: nb, Results: results})
}

// Text renders the working copy of name for the YAML editor.
func (s *NotebookService) Text(ctx context.Context, name string) (string, error) {
	payload, err := s.Export(ctx, name, FormatYAML)
	if err != nil {
		return "", err
	}
	return payload.Body, nil
}

func (s *NotebookService) Validate(text string) validator.Result {
	return s.files.Validate(text)
}

func (s *NotebookService) decode(format Format, text string) (*model.Notebook, error) {
	var check validator.Result
	if format == FormatJSON {
		check = validator.ValidateJSON(text)
	} else {
		check = validator.ValidateText(text)
	}
	if !check.Valid {
		return nil, check.Err()
	}
	c := s.files.Codec()
	if format == FormatJSON {
		return c.ImportJSON(text)
	}
	return c.ImportYAML(text)
}
