package pagecontext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

// UndefinedValue marks a key that is present but has no value. It
// survives a Serialize/Parse round trip, unlike a nil map entry which
// becomes null.
type UndefinedValue struct{}

// Undefined is the UndefinedValue.
var Undefined = UndefinedValue{}

// Tagged strings used for values plain JSON cannot carry.
const (
	tagPrefix    = "!"
	tagNaN       = "!NaN"
	tagInf       = "!Infinity"
	tagNegInf    = "!-Infinity"
	tagUndefined = "!undefined"
	tagDate      = "!Date:"
)

// Serialize encodes v into JSON text that is safe inside a <script>
// element: <, >, & and the line separators U+2028 and U+2029 are escaped.
// Non-finite floats, Undefined and time.Time values are encoded as tagged
// strings; plain strings starting with "!" get an extra "!".
func Serialize(v any) (string, error) {
	tree, err := encode(v, "")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(tree); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Parse decodes text produced by Serialize. Numbers come back as float64,
// objects as map[string]any and arrays as []any.
func Parse(text string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, fmt.Errorf("pagecontext: parse: %w", err)
	}
	return decode(tree)
}

// ParseContext decodes a serialized page context.
func ParseContext(text string) (PageContext, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pagecontext: parse: expected an object, got %T", v)
	}
	return PageContext(m), nil
}

func encode(v any, path string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case UndefinedValue:
		return tagUndefined, nil
	case string:
		if strings.HasPrefix(x, tagPrefix) {
			return tagPrefix + x, nil
		}
		return x, nil
	case bool:
		return x, nil
	case float64:
		return encodeFloat(x), nil
	case float32:
		return encodeFloat(float64(x)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x, nil
	case json.Number:
		return x, nil
	case time.Time:
		return tagDate + x.Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return tagDate + x.Format(time.RFC3339Nano), nil
	case PageContext:
		return encodeMap(x, path)
	case map[string]any:
		return encodeMap(x, path)
	case []any:
		return encodeSlice(x, path)
	case json.Marshaler:
		return encodeViaJSON(x, path)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return encode(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return encodeViaJSON(v, path)
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return encodeSlice(items, path)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("pagecontext: %s: map keys must be strings, got %s", pathOrRoot(path), rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeMap(m, path)
	case reflect.String:
		return encode(rv.String(), path)
	case reflect.Float32, reflect.Float64:
		return encodeFloat(rv.Float()), nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("pagecontext: %s: cannot serialize a value of type %T", pathOrRoot(path), v)
	}
	return encodeViaJSON(v, path)
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return tagNaN
	case math.IsInf(f, 1):
		return tagInf
	case math.IsInf(f, -1):
		return tagNegInf
	}
	return f
}

func encodeMap(m map[string]any, path string) (any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		enc, err := encode(m[k], joinPath(path, k))
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

func encodeSlice(items []any, path string) (any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		enc, err := encode(item, fmt.Sprintf("%s[%d]", pathOrRoot(path), i))
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

// encodeViaJSON encodes structs and other values through their JSON
// representation.
func encodeViaJSON(v any, path string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pagecontext: %s: %w", pathOrRoot(path), err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("pagecontext: %s: %w", pathOrRoot(path), err)
	}
	return encode(generic, path)
}

func decode(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return decodeString(x)
	case map[string]any:
		for k, item := range x {
			dec, err := decode(item)
			if err != nil {
				return nil, err
			}
			x[k] = dec
		}
		return x, nil
	case []any:
		for i, item := range x {
			dec, err := decode(item)
			if err != nil {
				return nil, err
			}
			x[i] = dec
		}
		return x, nil
	}
	return v, nil
}

func decodeString(s string) (any, error) {
	if !strings.HasPrefix(s, tagPrefix) {
		return s, nil
	}
	switch {
	case strings.HasPrefix(s, tagPrefix+tagPrefix):
		return s[1:], nil
	case s == tagNaN:
		return math.NaN(), nil
	case s == tagInf:
		return math.Inf(1), nil
	case s == tagNegInf:
		return math.Inf(-1), nil
	case s == tagUndefined:
		return Undefined, nil
	case strings.HasPrefix(s, tagDate):
		t, err := time.Parse(time.RFC3339Nano, s[len(tagDate):])
		if err != nil {
			return nil, fmt.Errorf("pagecontext: invalid date %q: %w", s, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("pagecontext: unknown tag %q", s)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "value"
	}
	return path
}
