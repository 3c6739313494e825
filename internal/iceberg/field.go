package iceberg

import (
	"encoding/json"
	"math"
	"strconv"

	"icescan/internal/domain"
)

// avroPrimitives are the branch names hamba/avro uses when a union value is
// decoded into a generic map.
var avroPrimitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true, "float": true,
	"double": true, "bytes": true, "string": true,
}

// GetUint returns obj[field] as a non-negative integer.
func GetUint(obj map[string]any, field string) (uint64, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return 0, domain.ErrSchema("missing required field %q", field)
	}
	n, err := toUint(unwrapUnion(v))
	if err != nil {
		return 0, domain.ErrSchema("field %q: %v", field, err)
	}
	return n, nil
}

// LookupUint is GetUint for optional fields: ok is false when the field is
// absent or null, and a present but mistyped value is still an error.
func LookupUint(obj map[string]any, field string) (n uint64, ok bool, err error) {
	v, present := obj[field]
	if !present {
		return 0, false, nil
	}
	v = unwrapUnion(v)
	if v == nil {
		return 0, false, nil
	}
	n, err = toUint(v)
	if err != nil {
		return 0, false, domain.ErrSchema("field %q: %v", field, err)
	}
	return n, true, nil
}

// GetString returns obj[field] as a string.
func GetString(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", domain.ErrSchema("missing required field %q", field)
	}
	s, ok := unwrapUnion(v).(string)
	if !ok {
		return "", domain.ErrSchema("field %q: expected string, got %T", field, v)
	}
	return s, nil
}

// GetObject returns obj[field] as a nested object.
func GetObject(obj map[string]any, field string) (map[string]any, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return nil, domain.ErrSchema("missing required field %q", field)
	}
	m, ok := unwrapUnion(v).(map[string]any)
	if !ok {
		return nil, domain.ErrSchema("field %q: expected object, got %T", field, v)
	}
	return m, nil
}

// GetArray returns obj[field] as an array. An absent or null field yields a
// nil slice; callers decide whether emptiness is an error.
func GetArray(obj map[string]any, field string) ([]any, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return nil, nil
	}
	a, ok := v.([]any)
	if !ok {
		return nil, domain.ErrSchema("field %q: expected array, got %T", field, v)
	}
	return a, nil
}

func unwrapUnion(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if avroPrimitives[k] {
			return inner
		}
	}
	return v
}

func toUint(v any) (uint64, error) {
	switch n := v.(type) {
	case json.Number:
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, errNotInteger(n.String())
		}
		return floatToUint(f, n.String())
	case float64:
		return floatToUint(n, strconv.FormatFloat(n, 'g', -1, 64))
	case float32:
		return floatToUint(float64(n), strconv.FormatFloat(float64(n), 'g', -1, 32))
	case int:
		return signedToUint(int64(n))
	case int32:
		return signedToUint(int64(n))
	case int64:
		return signedToUint(n)
	case uint:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, errNotInteger(typeName(v))
	}
}

func signedToUint(n int64) (uint64, error) {
	if n < 0 {
		return 0, errNegative(strconv.FormatInt(n, 10))
	}
	return uint64(n), nil
}

func floatToUint(f float64, text string) (uint64, error) {
	if f < 0 {
		return 0, errNegative(text)
	}
	if f != math.Trunc(f) || f >= 1<<64 {
		return 0, errNotInteger(text)
	}
	return uint64(f), nil
}

type errNotInteger string

func (e errNotInteger) Error() string { return "expected unsigned integer, got " + string(e) }

type errNegative string

func (e errNegative) Error() string { return "expected non-negative integer, got " + string(e) }

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "unsupported type"
	}
}
