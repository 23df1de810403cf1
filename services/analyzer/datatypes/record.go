// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the analyzer service.
//
// This file contains the Record type, the unit of data flowing through
// the analysis pipeline. A Record starts as raw caller input (at minimum
// a "text" field) and is enriched in place by every annotation module
// that runs over the batch.
package datatypes

import "encoding/json"

// Record is one text entry plus all fields annotators attach to it.
//
// # Description
//
// Records are schemaless on the wire (arbitrary JSON objects) but the
// pipeline only ever reads a small set of well-known fields, always
// defensively: a missing or mis-typed field reads as its zero value and
// never fails the run. Identity is positional; a Record carries no key.
//
// # Thread Safety
//
// Record is NOT safe for concurrent mutation. The pipeline runs modules
// strictly sequentially over a batch; no module may assume exclusive
// ownership of a Record it did not create.
type Record map[string]any

// Well-known field names read or written by the core pipeline.
const (
	FieldText        = "text"
	FieldQuote       = "quote"
	FieldMirrorFlags = "mirror_flags"
	FieldShearIndex  = "shear_index_local"
)

// Text returns the record's text field, or "" when absent or non-string.
func (r Record) Text() string {
	return r.String(FieldText)
}

// String returns the named field as a string, or "" when absent or
// not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Has reports whether the field is present, regardless of type.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Float returns the named field as a float64. The second return value
// is false when the field is absent or not numeric. Booleans are not
// numbers.
func (r Record) Float(key string) (float64, bool) {
	return asFloat(r[key])
}

// FloatOr returns the named field as a float64, or def when absent or
// not numeric.
func (r Record) FloatOr(key string, def float64) float64 {
	if v, ok := asFloat(r[key]); ok {
		return v
	}
	return def
}

// FloatMap returns the named field as a label -> score mapping.
// Non-numeric values inside the mapping are skipped. Returns nil when
// the field is absent or not a mapping.
func (r Record) FloatMap(key string) map[string]float64 {
	switch m := r[key].(type) {
	case map[string]float64:
		return m
	case map[string]any:
		out := make(map[string]float64, len(m))
		for k, v := range m {
			if f, ok := asFloat(v); ok {
				out[k] = f
			}
		}
		return out
	default:
		return nil
	}
}

// Set stores a field value, allocating the map is the caller's job:
// a nil Record cannot be annotated.
func (r Record) Set(key string, value any) {
	r[key] = value
}

// asFloat converts the numeric types a Record can carry after JSON
// decoding or in-process construction. bool is explicitly excluded:
// true would otherwise read as a valid score.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
