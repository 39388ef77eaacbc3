package codec

import (
	"encoding/json"
	"fmt"

	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

func ToJSON(doc *model.NotebookDocument, pretty bool) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("encode json: nil document")
	}
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

func FromJSON(text string) (*model.NotebookDocument, error) {
	doc := &model.NotebookDocument{}
	if err := json.Unmarshal([]byte(text), doc); err != nil {
		return nil, appErr.NewFormatError("JSON parsing failed", err)
	}
	return doc, nil
}

func ParseJSON(text string) (map[string]any, error) {
	var tree map[string]any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, appErr.NewFormatError("JSON parsing failed", err)
	}
	if tree == nil {
		return nil, appErr.NewFormatError("invalid JSON structure: top level must be an object", nil)
	}
	return tree, nil
}
