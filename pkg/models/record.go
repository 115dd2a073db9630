// Package models provides the raw record model shared between the API
// client and the row transformation pipeline.
//
// Daktela returns JSON objects whose key order is meaningful for output
// column ordering, so Record preserves document order instead of using a
// plain Go map. Values are decoded with goccy/go-json's token API: nested
// objects become *Record, arrays become []interface{} (with object
// elements again as *Record), and numbers are kept as json.Number so
// identifiers survive round-tripping without float precision loss.
package models

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// Record is an ordered mapping of field name to value, as returned by
// the API. A field value is one of: nil, bool, string, json.Number,
// []interface{}, or *Record.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// Set stores a value, appending the key if it was not present yet.
func (r *Record) Set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key and whether the key is present.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns field names in document order. The returned slice is
// owned by the record and must not be modified.
func (r *Record) Keys() []string {
	return r.keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the record as a JSON object in document order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}

	rec, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// decodeObject consumes object members up to and including the closing
// brace. The opening brace must already have been consumed.
func decodeObject(dec *json.Decoder) (*Record, error) {
	rec := NewRecord()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		rec.Set(key, value)
	}
	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	var values []interface{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return values, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, &json.UnmarshalTypeError{Value: string(t)}
	default:
		return tok, nil
	}
}

// ValueString renders a field value for output. Absent values render as
// the empty string; composite values are re-encoded as JSON.
func ValueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
