// Package codec converts between the runtime Notebook and the persisted
// NotebookDocument, and between NotebookDocument and YAML or JSON text.
package codec

import (
	"fmt"
	"sort"
	"time"

	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	categoryExecuted = "executed"
	categoryDraft    = "draft"
)

type Codec struct {
	language    string
	environment string
	author      string
}

type Option func(*Codec)

func WithLanguage(lang string) Option {
	return func(c *Codec) { c.language = lang }
}

func WithEnvironment(env string) Option {
	return func(c *Codec) { c.environment = env }
}

func WithAuthor(author string) Option {
	return func(c *Codec) { c.author = author }
}

func New(opts ...Option) *Codec {
	c := &Codec{language: "en", environment: "development"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FormatTime writes ISO 8601 with milliseconds. A time carrying a finer
// fraction keeps all of it so decoding restores the same instant.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()%int(time.Millisecond) != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(timeLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Encode projects nb into a document. It never fails: missing parts of the
// notebook produce empty fields, and cells are emitted with dense orders.
func (c *Codec) Encode(nb *model.Notebook, results model.Results) *model.NotebookDocument {
	if nb == nil {
		nb = &model.Notebook{}
	}
	created := FormatTime(nb.CreatedAt)
	updated := FormatTime(nb.UpdatedAt)

	cells := make([]model.Cell, len(nb.Cells))
	copy(cells, nb.Cells)
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].Order < cells[j].Order })

	blocks := make([]model.Block, 0, len(cells))
	for i, cell := range cells {
		result, hasResult := results[cell.ID]
		blocks = append(blocks, encodeCell(cell, i, result, hasResult, created, updated))
	}
	return &model.NotebookDocument{
		Schema: &model.SchemaInfo{
			Version: model.SchemaVersion,
			Format:  model.SchemaFormat,
		},
		ID:    nb.ID,
		Title: nb.Title,
		Metadata: &model.DocumentMetadata{
			Created:     created,
			Updated:     updated,
			Author:      c.author,
			Language:    c.language,
			Environment: c.environment,
		},
		Blocks: blocks,
	}
}

func encodeCell(cell model.Cell, order int, result model.CellResult, hasResult bool, created, updated string) model.Block {
	errMsg := ""
	if hasResult {
		errMsg = result.Error
	}
	executed := cell.Metadata != nil && cell.Metadata.Executed
	category := categoryDraft
	if executed {
		category = categoryExecuted
	}
	raw := model.ContentText(cell.Content)
	block := model.Block{
		ID:      cell.ID,
		Type:    model.BlockType(cell.Type),
		Order:   order,
		Depth:   0,
		Content: model.BlockContent{Raw: raw},
		Metadata: model.BlockMetadata{
			Labels:   []string{string(cell.Type)},
			Category: category,
			Created:  created,
			Updated:  updated,
		},
		State: model.BlockState{Valid: errMsg == ""},
	}
	if cell.Type == model.CellTypeMarkdown {
		block.Content.Representations = &model.Representations{Text: raw}
	}
	if att, ok := cell.Content.(*model.Attachment); ok && att != nil {
		block.Content.Attachments = []model.BlockAttachment{encodeAttachment(cell, att)}
	}
	if cell.Type == model.CellTypeSQL {
		exec := &model.ExecutionInfo{Executed: executed}
		if cell.Metadata != nil {
			if cell.Metadata.ExecutionTime != nil {
				v := *cell.Metadata.ExecutionTime
				exec.ExecutionTimeMs = &v
			}
			if cell.Metadata.ResultCount != nil {
				v := *cell.Metadata.ResultCount
				exec.ResultCount = &v
			}
		}
		switch {
		case errMsg != "":
			exec.Status = model.ExecutionError
			exec.ErrorMessage = errMsg
		case executed:
			exec.Status = model.ExecutionSuccess
		default:
			exec.Status = model.ExecutionIdle
		}
		if hasResult && !result.ExecutedAt.IsZero() {
			exec.ExecutedAt = FormatTime(result.ExecutedAt)
		}
		block.Metadata.Execution = exec
	}
	if errMsg != "" {
		block.State.Errors = []model.Diagnostic{{Message: errMsg, Severity: model.SeverityError}}
	}
	return block
}

func encodeAttachment(cell model.Cell, att *model.Attachment) model.BlockAttachment {
	kind := "file"
	if cell.Type == model.CellTypeImage {
		kind = "image"
	}
	out := model.BlockAttachment{
		ID:       cell.ID + "-attachment",
		Type:     kind,
		URL:      att.URL,
		Filename: att.Filename,
		MimeType: att.MimeType,
		Size:     att.Size,
	}
	if att.DisplayConfig != nil {
		dc := *att.DisplayConfig
		out.DisplayConfig = &dc
	}
	return out
}

// Decode rebuilds the runtime notebook. Blocks whose type has no cell
// counterpart (code, chart, table, ...) are skipped.
func (c *Codec) Decode(doc *model.NotebookDocument) (*model.Notebook, error) {
	if doc == nil {
		return nil, appErr.NewFormatError("document is empty", nil)
	}
	if doc.ID == "" {
		return nil, appErr.NewFormatError("missing required field: id", nil)
	}
	if doc.Title == "" {
		return nil, appErr.NewFormatError("missing required field: title", nil)
	}
	if err := checkSchema(doc.Schema); err != nil {
		return nil, err
	}
	if doc.Metadata == nil {
		return nil, appErr.NewFormatError("missing required field: metadata", nil)
	}
	created, err := ParseTime(doc.Metadata.Created)
	if err != nil {
		return nil, appErr.NewFormatError("invalid metadata.created", err)
	}
	updated, err := ParseTime(doc.Metadata.Updated)
	if err != nil {
		return nil, appErr.NewFormatError("invalid metadata.updated", err)
	}

	cells := make([]model.Cell, 0, len(doc.Blocks))
	for _, block := range doc.Blocks {
		cellType, ok := cellTypeOf(block.Type)
		if !ok {
			continue
		}
		cells = append(cells, model.Cell{
			ID:       block.ID,
			Type:     cellType,
			Content:  decodeContent(cellType, block.Content),
			Order:    block.Order,
			Metadata: decodeExecution(block.Metadata.Execution),
		})
	}
	nb := &model.Notebook{
		ID:        doc.ID,
		Title:     doc.Title,
		Cells:     cells,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	nb.Normalize()
	return nb, nil
}

func checkSchema(schema *model.SchemaInfo) error {
	if schema == nil {
		return appErr.NewFormatError("missing required field: schema", nil)
	}
	if schema.Format != model.SchemaFormat {
		return appErr.NewFormatError(fmt.Sprintf("unsupported schema format %q", schema.Format), nil)
	}
	if schema.Version != "" && !model.SupportedSchemaVersion(schema.Version) {
		return appErr.NewFormatError(fmt.Sprintf("unsupported schema version %q", schema.Version), nil)
	}
	return nil
}

func cellTypeOf(t model.BlockType) (model.CellType, bool) {
	switch t {
	case model.BlockTypeMarkdown:
		return model.CellTypeMarkdown, true
	case model.BlockTypeSQL:
		return model.CellTypeSQL, true
	case model.BlockTypeImage:
		return model.CellTypeImage, true
	case model.BlockTypeFile:
		return model.CellTypeFile, true
	}
	return "", false
}

func decodeContent(cellType model.CellType, content model.BlockContent) model.Content {
	if !cellType.IsAttachment() {
		return model.Text(content.Raw)
	}
	if len(content.Attachments) == 0 {
		return &model.Attachment{URL: content.Raw}
	}
	src := content.Attachments[0]
	att := &model.Attachment{
		URL:      src.URL,
		Filename: src.Filename,
		MimeType: src.MimeType,
		Size:     src.Size,
	}
	if att.URL == "" {
		att.URL = content.Raw
	}
	if src.DisplayConfig != nil {
		dc := *src.DisplayConfig
		att.DisplayConfig = &dc
	}
	return att
}

// decodeExecution returns nil for an idle record that never ran, so a
// notebook without execution data round trips without gaining metadata.
func decodeExecution(exec *model.ExecutionInfo) *model.CellMetadata {
	if exec == nil {
		return nil
	}
	if !exec.Executed && exec.ExecutionTimeMs == nil && exec.ResultCount == nil {
		return nil
	}
	md := &model.CellMetadata{Executed: exec.Executed}
	if exec.ExecutionTimeMs != nil {
		v := *exec.ExecutionTimeMs
		md.ExecutionTime = &v
	}
	if exec.ResultCount != nil {
		v := *exec.ResultCount
		md.ResultCount = &v
	}
	return md
}
