package vector

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
)

// Payload is the metadata stored with a vector. Values are normalized on insert so that
// integers compare equal regardless of their Go type or a JSON round-trip.
type Payload map[string]any

// Clone returns a normalized copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = normalizeValue(v)
	}
	return out
}

// String returns the value under key if it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the value under key as an int64 if it is integral.
func (p Payload) Int(key string) (int64, bool) {
	v, ok := normalizeValue(p[key]).(int64)
	return v, ok
}

// Matches reports whether payload[key] equals value.
func (p Payload) Matches(key string, value any) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	return valuesEqual(v, value)
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// normalizeValue folds integer kinds into int64 and integral floats into int64.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case Payload:
		return map[string]any(x.Clone())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// decodePayload unmarshals JSON payload bytes with numbers kept exact.
func decodePayload(data []byte) (Payload, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return Payload(raw).Clone(), nil
}
