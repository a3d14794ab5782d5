package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a schema-free JSON object: string keys, values are JSON scalars,
// []interface{} or nested Documents / map[string]interface{}.
type Document map[string]interface{}

// Clone returns a shallow copy. Nested objects are shared with the receiver.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes numbers as json.Number, so a Document embedded in a
// larger message keeps the same precision as one read by ParseDocument.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}
	var m map[string]interface{}
	if err := decodeJSON(data, &m); err != nil {
		return err
	}
	*d = Document(m)
	return nil
}

// ToDocument converts any JSON-marshalable value into a Document.
func ToDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a JSON object. Numbers are kept as json.Number so
// identifiers survive a round trip without float rounding.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := decodeJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
