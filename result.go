package clouddb

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entry is a single key-value pair stored in Cloud-DB.
type Entry struct {
	Name string
	// Value is the stored value as decoded from JSON: json.Number for
	// numbers, map[string]any for objects and []any for arrays.
	Value any
}

func (e Entry) String() string {
	if e.Value == nil {
		return ""
	}
	return fmt.Sprint(e.Value)
}

// Result is a decoded Cloud-DB response.
type Result struct {
	Success bool
	Message string
	// Number is the new value of the key after Add or Subtract. It is nil
	// when the response carries no number.
	Number *int64

	raw map[string]any
}

func newResult(raw map[string]any) (*Result, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	r := &Result{raw: raw}

	if success, ok := raw["success"].(bool); ok {
		r.Success = success
	}

	switch msg := raw["message"].(type) {
	case nil:
	case string:
		r.Message = msg
	default:
		r.Message = fmt.Sprint(msg)
	}

	if v := raw["number"]; !noNumber(v) {
		n, err := toNumber(v)
		if err != nil {
			return nil, &DecodeError{StatusCode: 200, Err: fmt.Errorf("number field: %w", err)}
		}
		r.Number = &n
	}

	return r, nil
}

// noNumber reports whether a number field carries no value. Zero is a value.
func noNumber(v any) bool {
	switch v {
	case nil, "", false:
		return true
	}
	return false
}

// toNumber coerces a decoded JSON value to int64. Floats are truncated.
func toNumber(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return truncate(f)
	case float64:
		return truncate(n)
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v out of int64 range", f)
	}
	return int64(f), nil
}

// Data derives the entries carried by the response. A response with a name
// or value field yields one entry; one with a data array yields an entry per
// object element, in server order. Otherwise Data returns nil.
func (r *Result) Data() []Entry {
	if entry, ok := r.Entry(); ok {
		return []Entry{entry}
	}
	return r.Entries()
}

// Entry returns the single entry of a get-style response.
func (r *Result) Entry() (Entry, bool) {
	name, hasName := r.raw["name"]
	value, hasValue := r.raw["value"]
	if (!hasName || name == nil) && (!hasValue || value == nil) {
		return Entry{}, false
	}

	entry := Entry{Value: value}
	if name != nil {
		entry.Name = fmt.Sprint(name)
	}
	return entry, true
}

// Entries returns the entries of a list-style response.
func (r *Result) Entries() []Entry {
	items, ok := r.raw["data"].([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := Entry{Value: obj["value"]}
		if name, ok := obj["name"]; ok && name != nil {
			entry.Name = fmt.Sprint(name)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Raw returns a shallow copy of the decoded response.
func (r *Result) Raw() map[string]any {
	out := make(map[string]any, len(r.raw))
	for k, v := range r.raw {
		out[k] = v
	}
	return out
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Result(success=%t, message=%q, data=%v", r.Success, r.Message, r.Data())
	if r.Number != nil {
		fmt.Fprintf(&b, ", number=%d", *r.Number)
	}
	b.WriteString(")")
	return b.String()
}

// ValueAs converts an entry value to T. Values are re-encoded as JSON and
// decoded into T, so a json.Number converts to any numeric type and a
// map[string]any to a struct.
func ValueAs[T any](v any) (T, error) {
	var out T
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("marshal value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("convert value to %T: %w", out, err)
	}
	return out, nil
}
