package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

func sampleNotebook() *model.Notebook {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &model.Notebook{
		ID:    "n1",
		Title: "T",
		Cells: []model.Cell{
			{ID: "c2", Type: model.CellTypeSQL, Content: model.Text("SELECT 1"), Order: 5},
			{ID: "c1", Type: model.CellTypeMarkdown, Content: model.Text("# Hi"), Order: 1},
			{ID: "c3", Type: model.CellTypeImage, Order: 9, Content: &model.Attachment{
				URL:           "https://example.com/a.png",
				Filename:      "a.png",
				MimeType:      "image/png",
				Size:          42,
				DisplayConfig: &model.DisplayConfig{Width: "50%", Alignment: "center"},
			}},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestEncodeProducesDenseOrderAndMetadata(t *testing.T) {
	c := New(WithAuthor("ana"), WithLanguage("de"), WithEnvironment("production"))
	doc := c.Encode(sampleNotebook(), nil)

	require.Equal(t, model.SchemaFormat, doc.Schema.Format)
	require.Equal(t, model.SchemaVersion, doc.Schema.Version)
	require.Equal(t, "ana", doc.Metadata.Author)
	require.Equal(t, "de", doc.Metadata.Language)
	require.Equal(t, "production", doc.Metadata.Environment)
	require.Equal(t, "2024-05-01T10:00:00.000Z", doc.Metadata.Created)

	require.Len(t, doc.Blocks, 3)
	require.Equal(t, "c1", doc.Blocks[0].ID)
	require.Equal(t, "c2", doc.Blocks[1].ID)
	require.Equal(t, "c3", doc.Blocks[2].ID)
	for i, block := range doc.Blocks {
		require.Equal(t, i, block.Order)
		require.Zero(t, block.Depth)
		require.True(t, block.State.Valid)
		require.Equal(t, "draft", block.Metadata.Category)
	}
	require.Equal(t, "# Hi", doc.Blocks[0].Content.Representations.Text)

	sql := doc.Blocks[1].Metadata.Execution
	require.NotNil(t, sql)
	require.False(t, sql.Executed)
	require.Equal(t, model.ExecutionIdle, sql.Status)

	img := doc.Blocks[2]
	require.Equal(t, "https://example.com/a.png", img.Content.Raw)
	require.Len(t, img.Content.Attachments, 1)
	require.Equal(t, "image", img.Content.Attachments[0].Type)
	require.Equal(t, "c3-attachment", img.Content.Attachments[0].ID)
}

func TestEncodeExecutionStates(t *testing.T) {
	nb := sampleNotebook()
	elapsed := int64(120)
	count := 3
	nb.Cells[0].Metadata = &model.CellMetadata{Executed: true, ExecutionTime: &elapsed, ResultCount: &count}
	executedAt := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	doc := New().Encode(nb, model.Results{"c2": {CellID: "c2", ExecutedAt: executedAt}})
	exec := doc.Blocks[1].Metadata.Execution
	require.True(t, exec.Executed)
	require.Equal(t, model.ExecutionSuccess, exec.Status)
	require.EqualValues(t, 120, *exec.ExecutionTimeMs)
	require.Equal(t, 3, *exec.ResultCount)
	require.Equal(t, "2024-05-01T11:00:00.000Z", exec.ExecutedAt)
	require.Equal(t, "executed", doc.Blocks[1].Metadata.Category)

	doc = New().Encode(nb, model.Results{"c2": {CellID: "c2", Error: "syntax error"}})
	block := doc.Blocks[1]
	require.Equal(t, model.ExecutionError, block.Metadata.Execution.Status)
	require.Equal(t, "syntax error", block.Metadata.Execution.ErrorMessage)
	require.False(t, block.State.Valid)
	require.Len(t, block.State.Errors, 1)
	require.Equal(t, model.SeverityError, block.State.Errors[0].Severity)
}

func TestEncodeNilNotebook(t *testing.T) {
	doc := New().Encode(nil, nil)
	require.NotNil(t, doc)
	require.Empty(t, doc.Blocks)
}

func TestTextRoundTrip(t *testing.T) {
	c := New()
	nb := sampleNotebook()
	text, err := c.ExportYAML(nb, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, textHeader))
	require.NotContains(t, text, "representations")

	back, err := c.ImportYAML(text)
	require.NoError(t, err)
	require.Equal(t, "n1", back.ID)
	require.Equal(t, "T", back.Title)
	require.True(t, nb.CreatedAt.Equal(back.CreatedAt))
	require.Len(t, back.Cells, 3)
	require.Equal(t, []string{"c1", "c2", "c3"}, []string{back.Cells[0].ID, back.Cells[1].ID, back.Cells[2].ID})
	require.Equal(t, model.Text("# Hi"), back.Cells[0].Content)
	require.Nil(t, back.Cells[1].Metadata)

	att, ok := back.Cells[2].Content.(*model.Attachment)
	require.True(t, ok)
	require.Equal(t, "a.png", att.Filename)
	require.EqualValues(t, 42, att.Size)
	require.Equal(t, "center", att.DisplayConfig.Alignment)
}

func TestTimestampPrecisionSurvivesRoundTrip(t *testing.T) {
	c := New()
	nb := sampleNotebook()
	nb.CreatedAt = time.Date(2024, 5, 1, 10, 0, 5, 123456789, time.UTC)
	nb.UpdatedAt = time.Date(2024, 5, 1, 10, 0, 5, 123000000, time.UTC)

	doc := c.Encode(nb, nil)
	require.Equal(t, "2024-05-01T10:00:05.123456789Z", doc.Metadata.Created)
	require.Equal(t, "2024-05-01T10:00:05.123Z", doc.Metadata.Updated)

	back, err := c.Decode(doc)
	require.NoError(t, err)
	require.True(t, nb.CreatedAt.Equal(back.CreatedAt))
	require.True(t, nb.UpdatedAt.Equal(back.UpdatedAt))
}

func TestJSONRoundTripKeepsExecution(t *testing.T) {
	c := New()
	nb := sampleNotebook()
	elapsed := int64(7)
	count := 0
	nb.Cells[0].Metadata = &model.CellMetadata{Executed: true, ExecutionTime: &elapsed, ResultCount: &count}

	text, err := c.ExportJSON(nb, nil, false)
	require.NoError(t, err)
	require.NotContains(t, text, "\n")

	back, err := c.ImportJSON(text)
	require.NoError(t, err)
	cell, ok := back.CellByID("c2")
	require.True(t, ok)
	require.NotNil(t, cell.Metadata)
	require.True(t, cell.Metadata.Executed)
	require.EqualValues(t, 7, *cell.Metadata.ExecutionTime)
	require.Equal(t, 0, *cell.Metadata.ResultCount)
}

func TestDecodeSkipsUnknownBlocks(t *testing.T) {
	doc := New().Encode(sampleNotebook(), nil)
	doc.Blocks = append(doc.Blocks, model.Block{ID: "x", Type: model.BlockTypeChart, Order: 10})
	nb, err := New().Decode(doc)
	require.NoError(t, err)
	require.Len(t, nb.Cells, 3)
}

func TestDecodeRejectsBrokenDocuments(t *testing.T) {
	c := New()
	cases := map[string]func(doc *model.NotebookDocument){
		"missing id":     func(doc *model.NotebookDocument) { doc.ID = "" },
		"missing title":  func(doc *model.NotebookDocument) { doc.Title = "" },
		"missing schema": func(doc *model.NotebookDocument) { doc.Schema = nil },
		"wrong format":   func(doc *model.NotebookDocument) { doc.Schema.Format = "other" },
		"future version": func(doc *model.NotebookDocument) { doc.Schema.Version = "2.0.0" },
		"bad timestamp":  func(doc *model.NotebookDocument) { doc.Metadata.Created = "yesterday" },
		"no metadata":    func(doc *model.NotebookDocument) { doc.Metadata = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			doc := c.Encode(sampleNotebook(), nil)
			mutate(doc)
			_, err := c.Decode(doc)
			require.Error(t, err)
			require.True(t, appErr.IsFormat(err))
		})
	}
	_, err := c.Decode(nil)
	require.True(t, appErr.IsFormat(err))
}

func TestFromTextErrors(t *testing.T) {
	_, err := FromText("# only a comment\n")
	require.True(t, appErr.IsFormat(err))

	_, err = FromText("title: [unclosed")
	require.True(t, appErr.IsFormat(err))

	_, err = ParseText("- a\n- b\n")
	require.True(t, appErr.IsFormat(err))

	_, err = FromJSON("{")
	require.True(t, appErr.IsFormat(err))
}

func TestParseTextKeepsValuesGeneric(t *testing.T) {
	tree, err := ParseText("id: n1\ntitle: T\nblocks: []\n")
	require.NoError(t, err)
	require.Equal(t, "n1", tree["id"])
	require.Equal(t, []any{}, tree["blocks"])
}

func TestExportFileName(t *testing.T) {
	nb := &model.Notebook{ID: "n1", Title: "  Sales  Report Q1 "}
	require.Equal(t, "Sales_Report_Q1_n1.json", ExportFileName(nb, "json"))
	nb.Title = ""
	require.Equal(t, "Untitled_n1.sqlnb", ExportFileName(nb, ".sqlnb"))
}

func TestChecksumStable(t *testing.T) {
	require.Equal(t, Checksum("abc"), Checksum("abc"))
	require.NotEqual(t, Checksum("abc"), Checksum("abd"))
	require.Len(t, Checksum(""), 64)
}
