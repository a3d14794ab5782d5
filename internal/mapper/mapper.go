// Package mapper reshapes an event document according to per-webhook
// dotted-path rules.
package mapper

import (
	"strings"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

const pathSeparator = "."

// ApplyMappings builds a new document by copying the value at each rule's
// FromKey to its ToKey. With no rules the result is a shallow copy of source.
// Later rules overwrite earlier ones on colliding paths. A rule that cannot be
// resolved or written yields nil at its target; it never aborts the transform.
// source is never modified.
func ApplyMappings(source model.Document, mappings []model.WebhookMapping) model.Document {
	if len(mappings) == 0 {
		return source.Clone()
	}

	out := model.Document{}
	for _, m := range mappings {
		value, _ := GetPath(source, m.FromKey)
		SetPath(out, m.ToKey, cloneValue(value))
	}
	return out
}

// GetPath resolves a dotted path. ok is false when any segment is missing or
// descends into a non-object.
func GetPath(source map[string]interface{}, path string) (interface{}, bool) {
	segments := splitPath(path)
	if len(segments) == 0 || source == nil {
		return nil, false
	}

	var current interface{} = source
	for _, segment := range segments {
		obj, isObj := asObject(current)
		if !isObj {
			return nil, false
		}
		next, exists := obj[segment]
		if !exists || next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// SetPath assigns value at a dotted path, creating intermediate objects and
// replacing any non-object found along the way. Writes into existing nested
// objects copy them first so shared maps are not modified.
func SetPath(target map[string]interface{}, path string, value interface{}) bool {
	segments := splitPath(path)
	if len(segments) == 0 || target == nil {
		return false
	}

	current := target
	for _, segment := range segments[:len(segments)-1] {
		child, isObj := asObject(current[segment])
		if !isObj {
			child = map[string]interface{}{}
		} else {
			child = copyObject(child)
		}
		current[segment] = child
		current = child
	}
	current[segments[len(segments)-1]] = value
	return true
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	segments := strings.Split(path, pathSeparator)
	for _, s := range segments {
		if s == "" {
			return nil
		}
	}
	return segments
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, true
	case model.Document:
		return obj, true
	}
	return nil, false
}

func copyObject(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// cloneValue copies nested objects and arrays so the result never aliases
// the source document.
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case model.Document:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	}
	return v
}
