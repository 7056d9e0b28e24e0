package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// Optional records whether a JSON key was present, explicitly null, or
// carried a value. The zero value means "absent".
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present, explicitly null Optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Present reports whether the key carried a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// UnmarshalJSON is only invoked when the key exists in the payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON renders absent and null values as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present() {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

// FlexInt accepts a JSON number or a numeric string. Fractions are truncated.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", raw)
	}
	*f = FlexInt(int64(n))
	return nil
}

// Int64 returns the underlying value.
func (f FlexInt) Int64() int64 { return int64(f) }

// FlexBool accepts a JSON boolean, a 0/1 number or a boolean-like string.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.ToLower(strings.TrimSpace(unquoted))
		if raw == "" {
			*b = false
			return nil
		}
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		*b = FlexBool(v)
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		*b = n != 0
		return nil
	}
	switch raw {
	case "yes", "on":
		*b = true
		return nil
	case "no", "off":
		*b = false
		return nil
	}
	return fmt.Errorf("%q is not a boolean", raw)
}

// Bool returns the underlying value.
func (b FlexBool) Bool() bool { return bool(b) }
