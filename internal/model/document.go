package model

import "strings"

const (
	SchemaVersion = "1.0.0"
	SchemaFormat  = "notebook-v1"
)

type BlockType string

const (
	BlockTypeMarkdown BlockType = "markdown"
	BlockTypeSQL      BlockType = "sql"
	BlockTypeCode     BlockType = "code"
	BlockTypeImage    BlockType = "image"
	BlockTypeFile     BlockType = "file"
	BlockTypeChart    BlockType = "chart"
	BlockTypeTable    BlockType = "table"
	BlockTypeHeading  BlockType = "heading"
	BlockTypeDivider  BlockType = "divider"
	BlockTypeComment  BlockType = "comment"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
	ExecutionPending ExecutionStatus = "pending"
	ExecutionIdle    ExecutionStatus = "idle"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

type SchemaInfo struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
}

type NotebookDocument struct {
	Schema        *SchemaInfo         `json:"schema,omitempty" yaml:"schema,omitempty"`
	ID            string              `json:"id" yaml:"id"`
	Title         string              `json:"title" yaml:"title"`
	Description   string              `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata      *DocumentMetadata   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Blocks        []Block             `json:"blocks" yaml:"blocks"`
	Context       *DocumentContext    `json:"context,omitempty" yaml:"context,omitempty"`
	Relationships []BlockRelationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	History       []VersionHistory    `json:"history,omitempty" yaml:"history,omitempty"`
}

type DocumentMetadata struct {
	Created     string   `json:"created" yaml:"created"`
	Updated     string   `json:"updated" yaml:"updated"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	Environment string   `json:"environment,omitempty" yaml:"environment,omitempty"`
}

type Block struct {
	ID           string        `json:"id" yaml:"id"`
	Type         BlockType     `json:"type" yaml:"type"`
	Order        int           `json:"order" yaml:"order"`
	ParentID     string        `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Depth        int           `json:"depth" yaml:"depth"`
	Content      BlockContent  `json:"content" yaml:"content"`
	Metadata     BlockMetadata `json:"metadata" yaml:"metadata"`
	State        BlockState    `json:"state" yaml:"state"`
	Dependencies []string      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	References   []string      `json:"references,omitempty" yaml:"references,omitempty"`
}

type BlockContent struct {
	Raw             string            `json:"raw" yaml:"raw"`
	Parsed          any               `json:"parsed,omitempty" yaml:"parsed,omitempty"`
	Representations *Representations  `json:"representations,omitempty" yaml:"representations,omitempty"`
	Attachments     []BlockAttachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

type Representations struct {
	HTML string `json:"html,omitempty" yaml:"html,omitempty"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	AST  any    `json:"ast,omitempty" yaml:"ast,omitempty"`
}

type BlockAttachment struct {
	ID            string         `json:"id" yaml:"id"`
	Type          string         `json:"type" yaml:"type"`
	URL           string         `json:"url" yaml:"url"`
	Filename      string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	MimeType      string         `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Size          int64          `json:"size,omitempty" yaml:"size,omitempty"`
	DisplayConfig *DisplayConfig `json:"displayConfig,omitempty" yaml:"displayConfig,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type BlockMetadata struct {
	Labels      []string        `json:"labels,omitempty" yaml:"labels,omitempty"`
	Intent      string          `json:"intent,omitempty" yaml:"intent,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string          `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    *int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	Execution   *ExecutionInfo  `json:"execution,omitempty" yaml:"execution,omitempty"`
	Generation  *GenerationInfo `json:"generation,omitempty" yaml:"generation,omitempty"`
	Tags        map[string]any  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Created     string          `json:"created" yaml:"created"`
	Updated     string          `json:"updated" yaml:"updated"`
}

type ExecutionInfo struct {
	Executed        bool            `json:"executed" yaml:"executed"`
	ExecutedAt      string          `json:"executedAt,omitempty" yaml:"executedAt,omitempty"`
	ExecutionTimeMs *int64          `json:"executionTimeMs,omitempty" yaml:"executionTimeMs,omitempty"`
	ResultCount     *int            `json:"resultCount,omitempty" yaml:"resultCount,omitempty"`
	Status          ExecutionStatus `json:"status,omitempty" yaml:"status,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

type GenerationInfo struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	GeneratedAt string   `json:"generatedAt,omitempty" yaml:"generatedAt,omitempty"`
	Edited      bool     `json:"edited,omitempty" yaml:"edited,omitempty"`
}

// BlockState is transient editor state. Only Valid and Errors carry meaning
// once persisted: they describe the last execution.
type BlockState struct {
	Editing        bool         `json:"editing" yaml:"editing"`
	Focused        bool         `json:"focused" yaml:"focused"`
	Selected       bool         `json:"selected" yaml:"selected"`
	Collapsed      bool         `json:"collapsed" yaml:"collapsed"`
	Hidden         bool         `json:"hidden" yaml:"hidden"`
	Valid          bool         `json:"valid" yaml:"valid"`
	Errors         []Diagnostic `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings       []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Loading        bool         `json:"loading" yaml:"loading"`
	LoadingMessage string       `json:"loadingMessage,omitempty" yaml:"loadingMessage,omitempty"`
}

type Diagnostic struct {
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Severity string `json:"severity" yaml:"severity"`
}

type DocumentContext struct {
	Database     *DatabaseContext `json:"database,omitempty" yaml:"database,omitempty"`
	Variables    map[string]any   `json:"variables,omitempty" yaml:"variables,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

type DatabaseContext struct {
	ConnectionID string          `json:"connectionId" yaml:"connectionId"`
	Schema       string          `json:"schema,omitempty" yaml:"schema,omitempty"`
	Tables       []TableMetadata `json:"tables,omitempty" yaml:"tables,omitempty"`
}

type TableMetadata struct {
	Name    string           `json:"name" yaml:"name"`
	Schema  string           `json:"schema,omitempty" yaml:"schema,omitempty"`
	Columns []ColumnMetadata `json:"columns,omitempty" yaml:"columns,omitempty"`
}

type ColumnMetadata struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Nullable    *bool  `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type RelationType string

const (
	RelationDependsOn     RelationType = "depends_on"
	RelationReferences    RelationType = "references"
	RelationDerivedFrom   RelationType = "derived_from"
	RelationTransformedTo RelationType = "transformed_to"
)

type BlockRelationship struct {
	ID       string                `json:"id" yaml:"id"`
	Type     RelationType          `json:"type" yaml:"type"`
	SourceID string                `json:"sourceId" yaml:"sourceId"`
	TargetID string                `json:"targetId" yaml:"targetId"`
	Metadata *RelationshipMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type RelationshipMetadata struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Strength    *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
}

type VersionHistory struct {
	Version    int      `json:"version" yaml:"version"`
	Timestamp  string   `json:"timestamp" yaml:"timestamp"`
	Author     string   `json:"author,omitempty" yaml:"author,omitempty"`
	Changes    []Change `json:"changes" yaml:"changes"`
	Checkpoint bool     `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
}

type Change struct {
	Type    string `json:"type" yaml:"type"`
	BlockID string `json:"blockId" yaml:"blockId"`
	Before  any    `json:"before,omitempty" yaml:"before,omitempty"`
	After   any    `json:"after,omitempty" yaml:"after,omitempty"`
}

// SupportedSchemaVersion reports whether documents written with version v can
// be read. Any 1.x release is accepted.
func SupportedSchemaVersion(v string) bool {
	return v == "1" || strings.HasPrefix(v, "1.")
}
