package statement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonObject builds a JSON object whose fields keep their insertion order.
// The zero value is an empty object. The first error sticks and is returned
// by MarshalJSON.
type jsonObject struct {
	fields []jsonField
	err    error
}

type jsonField struct {
	key   string
	value json.RawMessage
}

// Set appends a field.
func (o *jsonObject) Set(key string, value any) *jsonObject {
	if o.err != nil {
		return o
	}
	raw, err := json.Marshal(value)
	if err != nil {
		o.err = fmt.Errorf("field %q: %w", key, err)
		return o
	}
	o.fields = append(o.fields, jsonField{key, raw})
	return o
}

// SetNonZero appends a field unless value is the zero value of its type.
func (o *jsonObject) SetNonZero(key string, value any) *jsonObject {
	if v := reflect.ValueOf(value); !v.IsValid() || v.IsZero() {
		return o
	}
	return o.Set(key, value)
}

// Inline appends the fields of v, which must marshal to a JSON object.
func (o *jsonObject) Inline(v any) *jsonObject {
	if o.err != nil {
		return o
	}
	raw, err := json.Marshal(v)
	if err != nil {
		o.err = fmt.Errorf("inlining %T: %w", v, err)
		return o
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		o.err = fmt.Errorf("inlining %T: not a JSON object", v)
		return o
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			o.err = err
			return o
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			o.err = err
			return o
		}
		o.fields = append(o.fields, jsonField{tok.(string), value})
	}
	return o
}

func (o *jsonObject) MarshalJSON() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(f.key)
		b.Write(key)
		b.WriteByte(':')
		b.Write(f.value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
