package model

import (
	"bytes"
	"encoding/json"
)

// Content is the payload of a cell. It is either Text or *Attachment.
type Content interface {
	isContent()
}

type Text string

func (Text) isContent() {}

type Attachment struct {
	URL           string         `json:"url" yaml:"url"`
	Filename      string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	MimeType      string         `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Size          int64          `json:"size,omitempty" yaml:"size,omitempty"`
	DisplayConfig *DisplayConfig `json:"displayConfig,omitempty" yaml:"displayConfig,omitempty"`
}

func (*Attachment) isContent() {}

// DisplayConfig width and height hold either a CSS value or a pixel number.
type DisplayConfig struct {
	Width       any    `json:"width,omitempty" yaml:"width,omitempty"`
	Height      any    `json:"height,omitempty" yaml:"height,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty"`
	Alignment   string `json:"alignment,omitempty" yaml:"alignment,omitempty"`
}

// ContentText returns the text of c, or the attachment url.
func ContentText(c Content) string {
	switch v := c.(type) {
	case Text:
		return string(v)
	case *Attachment:
		if v == nil {
			return ""
		}
		return v.URL
	default:
		return ""
	}
}

func cloneContent(c Content) Content {
	att, ok := c.(*Attachment)
	if !ok || att == nil {
		return c
	}
	cp := *att
	if att.DisplayConfig != nil {
		dc := *att.DisplayConfig
		cp.DisplayConfig = &dc
	}
	return &cp
}

// DecodeContent reads the JSON form of a cell content: a string for Text or
// an object for an Attachment. null and empty input yield empty Text.
func DecodeContent(data json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return Text(""), nil
	case trimmed[0] == '{':
		att := &Attachment{}
		if err := json.Unmarshal(trimmed, att); err != nil {
			return nil, err
		}
		return att, nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, err
	}
	return Text(text), nil
}
