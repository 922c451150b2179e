package models

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a field was present in a partial update and, if
// so, whether it was an explicit null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked when the key is present, which is what makes
// absence distinguishable from null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Or returns the value when present and non-null, else fallback.
func (o Optional[T]) Or(fallback T) T {
	if o.Set && !o.Null {
		return o.Value
	}
	return fallback
}

// StringPtr maps an Optional string onto a nullable field: null and empty
// clear it, anything else sets it.
func StringPtr(o Optional[string]) *string {
	if o.Null || o.Value == "" {
		return nil
	}
	v := o.Value
	return &v
}
