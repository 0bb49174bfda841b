package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is one search hit handed back to the model.
type Document struct {
	Source  string
	Page    string
	Title   string
	Content string
}

const documentSeparator = "\n\n---\n\n"

// FormatDocuments renders documents in the tagged layout the model is
// prompted with:
//
//	<Document source="..." page="..."/>
//	content
//	</Document>
func FormatDocuments(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf("<Document source=\"%s\" page=\"%s\"/>\n%s\n</Document>",
			doc.Source, doc.Page, doc.Content))
	}
	return strings.Join(parts, documentSeparator)
}

// wrapResults returns {"<key>": "<formatted documents>"} as JSON text.
func wrapResults(key string, docs []Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string{key: FormatDocuments(docs)}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
