package jsonval

import (
	"strings"
	"unicode/utf8"
)

// Texts collects every non-empty string leaf, trimmed, depth first in
// document order. Object keys and non-string leaves are ignored.
func Texts(v Value) []string {
	var out []string
	collectTexts(v, &out)
	return out
}

func collectTexts(v Value, out *[]string) {
	switch v.kind {
	case Object:
		for _, m := range v.members {
			collectTexts(m.Value, out)
		}
	case Array:
		for _, item := range v.items {
			collectTexts(item, out)
		}
	case String:
		if s := strings.TrimSpace(v.str); s != "" {
			*out = append(*out, s)
		}
	}
}

// Field is one flattened metadata entry.
type Field struct {
	Key   string
	Value Value
}

// Flatten joins nested object keys with "." and keeps every other value,
// arrays included, as-is. A non-object v yields a single field with an
// empty key. A key produced twice keeps its first position and last value.
func Flatten(v Value) []Field {
	var fields []Field
	if v.kind != Object {
		return []Field{{Key: "", Value: v}}
	}
	flattenInto(v, "", &fields)
	return dedupeFields(fields)
}

func flattenInto(v Value, prefix string, out *[]Field) {
	for _, m := range v.members {
		key := m.Key
		if prefix != "" {
			key = prefix + "." + m.Key
		}
		if m.Value.kind == Object {
			flattenInto(m.Value, key, out)
			continue
		}
		*out = append(*out, Field{Key: key, Value: m.Value})
	}
}

func dedupeFields(fields []Field) []Field {
	idx := make(map[string]int, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if i, ok := idx[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		idx[f.Key] = len(out)
		out = append(out, f)
	}
	return out
}

// SafeMetadata keeps the fields a vector store metadata column accepts:
// strings, numbers and booleans whose string form is shorter than maxLen
// characters.
func SafeMetadata(fields []Field, maxLen int) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Value.kind {
		case String, Number, Bool:
		default:
			continue
		}
		if utf8.RuneCountInString(f.Value.displayString()) >= maxLen {
			continue
		}
		out[f.Key] = f.Value.Scalar()
	}
	return out
}

// displayString is the textual form used for the metadata length cap.
func (v Value) displayString() string {
	switch v.kind {
	case Bool:
		if v.b {
			return "True"
		}
		return "False"
	case Number:
		return v.num
	}
	return v.str
}
