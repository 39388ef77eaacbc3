package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/xxxsen/sqlnb/internal/model"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func (c *Codec) ExportJSON(nb *model.Notebook, results model.Results, pretty bool) (string, error) {
	return ToJSON(c.Encode(nb, results), pretty)
}

func (c *Codec) ExportYAML(nb *model.Notebook, results model.Results) (string, error) {
	return ToText(c.Encode(nb, results))
}

func (c *Codec) ImportJSON(text string) (*model.Notebook, error) {
	doc, err := FromJSON(text)
	if err != nil {
		return nil, err
	}
	return c.Decode(doc)
}

func (c *Codec) ImportYAML(text string) (*model.Notebook, error) {
	doc, err := FromText(text)
	if err != nil {
		return nil, err
	}
	return c.Decode(doc)
}

// ExportFileName builds the download name used for exported notebooks.
func ExportFileName(nb *model.Notebook, ext string) string {
	title := strings.TrimSpace(nb.Title)
	if title == "" {
		title = "Untitled"
	}
	return whitespaceRegex.ReplaceAllString(title, "_") + "_" + nb.ID + "." + strings.TrimPrefix(ext, ".")
}

func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
