// Package llmformat renders arbitrary JSON-like values as an indented,
// LLM-readable outline. It is used wherever raw provider JSON (search
// results, shopping listings) is folded into a prompt.
package llmformat

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const indentUnit = "  "

// Options controls rendering. The zero value means: no starting indent,
// max depth 20, render a marker instead of failing when depth is exceeded.
type Options struct {
	Indent          int
	MaxDepth        int
	ErrorOnMaxDepth bool
}

// ErrMaxDepth is returned when Options.ErrorOnMaxDepth is set and the
// value nests deeper than Options.MaxDepth.
type ErrMaxDepth struct {
	MaxDepth int
}

func (e ErrMaxDepth) Error() string {
	return fmt.Sprintf("maximum depth of %d exceeded", e.MaxDepth)
}

// Format renders v as an outline. Primitives render as their string form
// (nil renders as "null"). Arrays render as "#n:" blocks unless every
// element is a single-key object sharing the same key, in which case only
// the values are emitted, one per line. Object keys become Title Case
// headers with the value indented one level deeper. Cycles render as a
// marker and never fail.
func Format(v interface{}, opts Options) (string, error) {
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = 20
	}
	f := formatter{maxDepth: maxDepth, strict: opts.ErrorOnMaxDepth, seen: map[uintptr]bool{}}
	out, err := f.format(v, opts.Indent, 0)
	if err != nil {
		return "", err
	}
	return out, nil
}

// MustFormat is Format with the zero options, for values known to be
// acyclic decoded JSON.
func MustFormat(v interface{}) string {
	out, _ := Format(v, Options{})
	return out
}

// JSON renders v after a JSON round-trip, so typed structs and slices
// format the same way their wire form would. Nil slices render as "[]".
func JSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var decoded interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return string(b)
	}
	if decoded == nil {
		if k := reflect.ValueOf(v).Kind(); k == reflect.Slice || k == reflect.Array {
			return "[]"
		}
	}
	return MustFormat(decoded)
}

type formatter struct {
	maxDepth int
	strict   bool
	seen     map[uintptr]bool
}

func (f *formatter) format(v interface{}, indent, depth int) (string, error) {
	if depth > f.maxDepth {
		if f.strict {
			return "", ErrMaxDepth{MaxDepth: f.maxDepth}
		}
		return pad(indent) + "[Max depth exceeded]", nil
	}

	if ptr, cyclic := f.enter(v); cyclic {
		return pad(indent) + "[Circular reference detected]", nil
	} else if ptr != 0 {
		defer delete(f.seen, ptr)
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return f.formatObject(val, indent, depth)
	case []interface{}:
		return f.formatArray(val, indent, depth)
	default:
		return pad(indent) + primitiveString(val), nil
	}
}

// primitiveString renders a scalar the way JSON text would show it:
// decoded numbers stay in plain decimal notation instead of Go's
// default exponent form for large float64 values.
func primitiveString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return fmt.Sprintf("%v", val)
		}
		if abs := math.Abs(val); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
			return strconv.FormatFloat(val, 'e', -1, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (f *formatter) formatArray(items []interface{}, indent, depth int) (string, error) {
	if len(items) == 0 {
		return pad(indent) + "[]", nil
	}

	// Arrays of single-key objects sharing one key flatten to a value list.
	if key, ok := commonSingleKey(items); ok {
		lines := make([]string, len(items))
		for i, item := range items {
			obj := item.(map[string]interface{})
			lines[i] = pad(indent) + primitiveString(obj[key])
		}
		return strings.Join(lines, "\n"), nil
	}

	blocks := make([]string, len(items))
	for i, item := range items {
		inner, err := f.format(item, indent+1, depth+1)
		if err != nil {
			return "", err
		}
		blocks[i] = fmt.Sprintf("%s#%d:\n%s", pad(indent), i+1, inner)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (f *formatter) formatObject(obj map[string]interface{}, indent, depth int) (string, error) {
	if len(obj) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(obj))
	for _, k := range keys {
		inner, err := f.format(obj[k], indent+1, depth+1)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s%s:\n%s", pad(indent), titleKey(k), inner))
	}
	return strings.Join(lines, "\n"), nil
}

// enter records container identity for cycle detection. Returns the
// container's pointer (0 for non-containers) and whether it was already
// on the current path.
func (f *formatter) enter(v interface{}) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return 0, false
		}
		ptr := rv.Pointer()
		if f.seen[ptr] {
			return 0, true
		}
		f.seen[ptr] = true
		return ptr, false
	default:
		return 0, false
	}
}

func commonSingleKey(items []interface{}) (string, bool) {
	first, ok := items[0].(map[string]interface{})
	if !ok || len(first) != 1 {
		return "", false
	}
	var key string
	for k := range first {
		key = k
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok || len(obj) != 1 {
			return "", false
		}
		if _, ok := obj[key]; !ok {
			return "", false
		}
	}
	return key, true
}

// titleKey turns a camelCase key into a spaced Title Case header:
// "phoneNumber" -> "Phone Number".
func titleKey(key string) string {
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func pad(indent int) string {
	return strings.Repeat(indentUnit, indent)
}
