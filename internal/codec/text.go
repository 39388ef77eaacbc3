package codec

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

const textHeader = "# SQL Notebook (.sqlnb)\n# Edit this file directly or use the visual editor\n\n"

// ToText renders doc as .sqlnb text. The parsed and representations caches
// are derivable from content.raw and are not written.
func ToText(doc *model.NotebookDocument) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("encode yaml: nil document")
	}
	var buf bytes.Buffer
	buf.WriteString(textHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(withoutCaches(doc)); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return buf.String(), nil
}

// FromText parses .sqlnb text into a typed document.
func FromText(text string) (*model.NotebookDocument, error) {
	body, err := stripHeader(text)
	if err != nil {
		return nil, err
	}
	doc := &model.NotebookDocument{}
	if err := yaml.Unmarshal([]byte(body), doc); err != nil {
		return nil, appErr.NewFormatError("YAML parsing failed", err)
	}
	return doc, nil
}

// ParseText parses .sqlnb text into a generic tree for validation.
func ParseText(text string) (map[string]any, error) {
	body, err := stripHeader(text)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, appErr.NewFormatError("YAML parsing failed", err)
	}
	tree, ok := parsed.(map[string]any)
	if !ok {
		return nil, appErr.NewFormatError("invalid YAML structure: top level must be a mapping", nil)
	}
	return tree, nil
}

func stripHeader(text string) (string, error) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	body := strings.Join(kept, "\n")
	if strings.TrimSpace(body) == "" {
		return "", appErr.NewFormatError("document is empty", nil)
	}
	return body, nil
}

func withoutCaches(doc *model.NotebookDocument) *model.NotebookDocument {
	out := *doc
	out.Blocks = make([]model.Block, len(doc.Blocks))
	for i, block := range doc.Blocks {
		block.Content.Parsed = nil
		block.Content.Representations = nil
		out.Blocks[i] = block
	}
	return &out
}
