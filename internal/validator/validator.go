// Package validator checks the structure of a parsed notebook document before
// it is trusted or persisted.
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xxxsen/sqlnb/internal/codec"
	"github.com/xxxsen/sqlnb/internal/model"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
)

type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns a *errors.ValidationError when the result is invalid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &appErr.ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}

type checker struct {
	errors   []string
	warnings []string
}

func (c *checker) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *checker) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *checker) result() Result {
	errs := c.errors
	if errs == nil {
		errs = []string{}
	}
	warns := c.warnings
	if warns == nil {
		warns = []string{}
	}
	return Result{Valid: len(c.errors) == 0, Errors: errs, Warnings: warns}
}

// Validate checks a generic document tree as produced by codec.ParseText or
// codec.ParseJSON. It never mutates tree.
func Validate(tree map[string]any) Result {
	c := &checker{}
	if tree == nil {
		c.errorf("Document is empty")
		return c.result()
	}
	c.checkSchema(tree["schema"])
	if !nonEmptyScalar(tree["id"]) {
		c.errorf("Missing required field: id")
	}
	if !nonEmptyScalar(tree["title"]) {
		c.errorf("Missing required field: title")
	}
	if _, ok := tree["metadata"].(map[string]any); !ok {
		c.warnf("Missing metadata section")
	}
	blocks, ok := tree["blocks"].([]any)
	if !ok {
		c.errorf("Missing or invalid blocks array")
		return c.result()
	}
	seen := make(map[string]int, len(blocks))
	for i, item := range blocks {
		c.checkBlock(i, item, seen)
	}
	return c.result()
}

func (c *checker) checkSchema(value any) {
	schema, ok := value.(map[string]any)
	if !ok {
		c.errorf("Missing required field: schema")
		return
	}
	format, ok := scalarString(schema["format"])
	switch {
	case !ok || format == "":
		c.errorf("Missing required field: schema.format")
	case format != model.SchemaFormat:
		c.errorf("Unsupported schema format: %s (expected %s)", format, model.SchemaFormat)
	}
	version, ok := scalarString(schema["version"])
	switch {
	case !ok || version == "":
		c.warnf("Missing schema version")
	case !model.SupportedSchemaVersion(version):
		c.errorf("Unsupported schema version: %s", version)
	}
}

func (c *checker) checkBlock(index int, item any, seen map[string]int) {
	block, ok := item.(map[string]any)
	if !ok {
		c.errorf("Block %d: must be a mapping", index)
		return
	}
	if id, ok := scalarString(block["id"]); !ok || id == "" {
		c.errorf("Block %d: missing id", index)
	} else if prev, dup := seen[id]; dup {
		c.errorf("Block %d: duplicate id %s (first used by block %d)", index, id, prev)
	} else {
		seen[id] = index
	}
	if !nonEmptyString(block["type"]) {
		c.errorf("Block %d: missing type", index)
	}
	if !isNumber(block["order"]) {
		c.errorf("Block %d: order must be a number", index)
	}
	if !isNumber(block["depth"]) {
		c.errorf("Block %d: depth must be a number", index)
	}
	content, _ := block["content"].(map[string]any)
	if _, ok := content["raw"].(string); !ok {
		c.errorf("Block %d: missing content.raw", index)
	}
	metadata, _ := block["metadata"].(map[string]any)
	if !present(metadata["created"]) {
		c.errorf("Block %d: missing metadata.created", index)
	}
	if !present(metadata["updated"]) {
		c.errorf("Block %d: missing metadata.updated", index)
	}
	if exec, ok := metadata["execution"].(map[string]any); ok {
		c.checkExecution(index, exec)
	}
	state, _ := block["state"].(map[string]any)
	if _, ok := state["editing"].(bool); !ok {
		c.errorf("Block %d: state.editing must be a boolean", index)
	}
	if _, ok := state["valid"].(bool); !ok {
		c.errorf("Block %d: state.valid must be a boolean", index)
	}
}

func (c *checker) checkExecution(index int, exec map[string]any) {
	if executed, _ := exec["executed"].(bool); executed && !isNumber(exec["executionTimeMs"]) {
		c.warnf("Block %d: executed without executionTimeMs", index)
	}
	if status, _ := exec["status"].(string); status == string(model.ExecutionError) && !nonEmptyString(exec["errorMessage"]) {
		c.warnf("Block %d: error status without errorMessage", index)
	}
}

// ValidateDocument validates a typed document through its JSON tree.
func ValidateDocument(doc *model.NotebookDocument) Result {
	if doc == nil {
		return Result{Valid: false, Errors: []string{"Document is empty"}, Warnings: []string{}}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Result{Valid: false, Errors: []string{"Encoding error: " + err.Error()}, Warnings: []string{}}
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return Result{Valid: false, Errors: []string{"Encoding error: " + err.Error()}, Warnings: []string{}}
	}
	return Validate(tree)
}

// ValidateText parses .sqlnb text and validates it. Parse failures are
// reported as errors, never returned.
func ValidateText(text string) Result {
	tree, err := codec.ParseText(text)
	if err != nil {
		return Result{Valid: false, Errors: []string{"YAML parsing error: " + err.Error()}, Warnings: []string{}}
	}
	return Validate(tree)
}

func ValidateJSON(text string) Result {
	tree, err := codec.ParseJSON(text)
	if err != nil {
		return Result{Valid: false, Errors: []string{"JSON parsing error: " + err.Error()}, Warnings: []string{}}
	}
	return Validate(tree)
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// nonEmptyScalar accepts unquoted numbers typed into the YAML editor.
func nonEmptyScalar(v any) bool {
	s, ok := scalarString(v)
	return ok && s != ""
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// scalarString accepts hand edited versions such as `version: 1.0` which YAML
// reads as a float.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
