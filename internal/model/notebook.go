package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

type CellType string

const (
	CellTypeMarkdown CellType = "markdown"
	CellTypeSQL      CellType = "sql"
	CellTypeImage    CellType = "image"
	CellTypeFile     CellType = "file"
)

func (t CellType) Valid() bool {
	switch t {
	case CellTypeMarkdown, CellTypeSQL, CellTypeImage, CellTypeFile:
		return true
	}
	return false
}

// IsAttachment reports whether cells of this type carry an Attachment.
func (t CellType) IsAttachment() bool {
	return t == CellTypeImage || t == CellTypeFile
}

type CellMetadata struct {
	Executed      bool   `json:"executed"`
	ExecutionTime *int64 `json:"executionTime,omitempty"`
	ResultCount   *int   `json:"resultCount,omitempty"`
}

type Cell struct {
	ID       string
	Type     CellType
	Content  Content
	Order    int
	Metadata *CellMetadata
}

type Notebook struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Cells     []Cell    `json:"cells"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewNotebookID() string {
	return "notebook-" + uuid.New().String()
}

func NewCellID() string {
	return "cell-" + uuid.New().String()
}

// Now returns the current time truncated to the precision kept by the document format.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func NewNotebook(title string) *Notebook {
	now := Now()
	return &Notebook{
		ID:        NewNotebookID(),
		Title:     title,
		Cells:     []Cell{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type cellJSON struct {
	ID       string          `json:"id"`
	Type     CellType        `json:"type"`
	Content  json.RawMessage `json:"content"`
	Order    int             `json:"order"`
	Metadata *CellMetadata   `json:"metadata,omitempty"`
}

func (c Cell) MarshalJSON() ([]byte, error) {
	var content []byte
	var err error
	switch v := c.Content.(type) {
	case *Attachment:
		if v == nil {
			content = []byte(`""`)
			break
		}
		content, err = json.Marshal(v)
	case Text:
		content, err = json.Marshal(string(v))
	default:
		content = []byte(`""`)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(cellJSON{
		ID:       c.ID,
		Type:     c.Type,
		Content:  content,
		Order:    c.Order,
		Metadata: c.Metadata,
	})
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = raw.ID
	c.Type = raw.Type
	c.Order = raw.Order
	c.Metadata = raw.Metadata
	content, err := DecodeContent(raw.Content)
	if err != nil {
		return fmt.Errorf("decode cell %s content: %w", raw.ID, err)
	}
	c.Content = content
	return nil
}

func (n *Notebook) Clone() *Notebook {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Cells = make([]Cell, len(n.Cells))
	for i, cell := range n.Cells {
		cell.Content = cloneContent(cell.Content)
		if cell.Metadata != nil {
			md := *cell.Metadata
			if md.ExecutionTime != nil {
				v := *md.ExecutionTime
				md.ExecutionTime = &v
			}
			if md.ResultCount != nil {
				v := *md.ResultCount
				md.ResultCount = &v
			}
			cell.Metadata = &md
		}
		cp.Cells[i] = cell
	}
	return &cp
}

func (n *Notebook) CellByID(id string) (*Cell, bool) {
	for i := range n.Cells {
		if n.Cells[i].ID == id {
			return &n.Cells[i], true
		}
	}
	return nil, false
}

// Normalize sorts cells by order and renumbers them 0..n-1, keeping the
// relative sequence of cells that share an order value.
func (n *Notebook) Normalize() {
	sort.SliceStable(n.Cells, func(i, j int) bool {
		return n.Cells[i].Order < n.Cells[j].Order
	})
	for i := range n.Cells {
		n.Cells[i].Order = i
	}
}

// AddCell appends a new cell, or inserts it right after afterID when given.
func (n *Notebook) AddCell(cellType CellType, afterID string, content Content) (Cell, error) {
	if !cellType.Valid() {
		return Cell{}, fmt.Errorf("unsupported cell type %q: %w", cellType, appErr.ErrInvalid)
	}
	if content == nil {
		content = Text("")
	}
	n.Normalize()
	cell := Cell{ID: NewCellID(), Type: cellType, Content: content}
	pos := len(n.Cells)
	if afterID != "" {
		found := false
		for i := range n.Cells {
			if n.Cells[i].ID == afterID {
				pos = i + 1
				found = true
				break
			}
		}
		if !found {
			return Cell{}, fmt.Errorf("cell %s: %w", afterID, appErr.ErrNotFound)
		}
	}
	n.Cells = append(n.Cells, Cell{})
	copy(n.Cells[pos+1:], n.Cells[pos:])
	n.Cells[pos] = cell
	for i := range n.Cells {
		n.Cells[i].Order = i
	}
	n.touch()
	return n.Cells[pos], nil
}

func (n *Notebook) UpdateCell(id string, content Content) error {
	cell, ok := n.CellByID(id)
	if !ok {
		return fmt.Errorf("cell %s: %w", id, appErr.ErrNotFound)
	}
	if content == nil {
		content = Text("")
	}
	cell.Content = content
	n.touch()
	return nil
}

func (n *Notebook) DeleteCell(id string) error {
	n.Normalize()
	idx := -1
	for i := range n.Cells {
		if n.Cells[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("cell %s: %w", id, appErr.ErrNotFound)
	}
	n.Cells = append(n.Cells[:idx], n.Cells[idx+1:]...)
	for i := range n.Cells {
		n.Cells[i].Order = i
	}
	n.touch()
	return nil
}

// ReorderCells places the listed cells first, in the given order. Unknown ids
// are ignored and unlisted cells keep their relative order after the listed ones.
func (n *Notebook) ReorderCells(ids []string) {
	n.Normalize()
	byID := make(map[string]Cell, len(n.Cells))
	for _, cell := range n.Cells {
		byID[cell.ID] = cell
	}
	out := make([]Cell, 0, len(n.Cells))
	for _, id := range ids {
		cell, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, cell)
		delete(byID, id)
	}
	for _, cell := range n.Cells {
		if _, ok := byID[cell.ID]; ok {
			out = append(out, cell)
		}
	}
	for i := range out {
		out[i].Order = i
	}
	n.Cells = out
	n.touch()
}

func (n *Notebook) SetTitle(title string) {
	n.Title = title
	n.touch()
}

// ApplyResult records a successful execution on the matching sql cell.
// Failed executions only live in the results map.
func (n *Notebook) ApplyResult(result CellResult) error {
	cell, ok := n.CellByID(result.CellID)
	if !ok {
		return fmt.Errorf("cell %s: %w", result.CellID, appErr.ErrNotFound)
	}
	if cell.Type != CellTypeSQL {
		return fmt.Errorf("cell %s is not a sql cell: %w", result.CellID, appErr.ErrInvalid)
	}
	if result.Error != "" {
		return nil
	}
	elapsed := result.ExecutionTimeMs
	count := len(result.Data)
	cell.Metadata = &CellMetadata{
		Executed:      true,
		ExecutionTime: &elapsed,
		ResultCount:   &count,
	}
	return nil
}

func (n *Notebook) touch() {
	n.UpdatedAt = Now()
}
