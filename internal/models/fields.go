package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidField = errors.New("invalid field path")

// Field is one leaf of a document body, addressed by a dot path such as
// "diagnostik.verfahren".
type Field struct {
	Path  string
	Value string
}

// Fields flattens the document body into leaves in their stored order.
// String leaves are returned as is, other scalars as JSON text.
func (d Document) Fields() ([]Field, error) {
	if len(d.Data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(d.Data))
	dec.UseNumber()
	var out []Field
	if err := walkValue(dec, "", &out); err != nil {
		return nil, fmt.Errorf("read fields: %w", err)
	}
	return out, nil
}

func walkValue(dec *json.Decoder, path string, out *[]Field) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := kt.(string)
				if !ok {
					return fmt.Errorf("unexpected token %v", kt)
				}
				if err := walkValue(dec, joinPath(path, key), out); err != nil {
					return err
				}
			}
		case '[':
			// arrays are kept whole
			var items []json.RawMessage
			for dec.More() {
				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					return err
				}
				items = append(items, raw)
			}
			b, err := json.Marshal(items)
			if err != nil {
				return err
			}
			*out = append(*out, Field{Path: path, Value: string(b)})
		}
		_, err := dec.Token()
		return err
	case string:
		*out = append(*out, Field{Path: path, Value: t})
	case nil:
		*out = append(*out, Field{Path: path, Value: ""})
	default:
		*out = append(*out, Field{Path: path, Value: fmt.Sprint(t)})
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// SetFields assigns string values to dot paths in the document body.
// Intermediate objects are created as needed. Bodies of a known kind are
// re-encoded through their typed struct so that field order stays stable.
func (d *Document) SetFields(values map[string]string) error {
	body := map[string]any{}
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &body); err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
	}
	for path, v := range values {
		if err := setPath(body, path, v); err != nil {
			return err
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if ptr := newTyped(d.Kind); ptr != nil {
		if err := json.Unmarshal(b, ptr); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		if b, err = json.Marshal(ptr); err != nil {
			return err
		}
	}
	d.Data = b
	return nil
}

func setPath(body map[string]any, path, value string) error {
	parts := strings.Split(path, ".")
	cur := body
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("%w: %q", ErrInvalidField, path)
		}
		if i == len(parts)-1 {
			cur[p] = value
			return nil
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			if _, exists := cur[p]; exists {
				return fmt.Errorf("%w: %q is not an object", ErrInvalidField, strings.Join(parts[:i+1], "."))
			}
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	return nil
}
