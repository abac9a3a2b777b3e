package render

import (
	"fmt"
	"reflect"
	"strings"
)

// Lookup returns the value bound to key. An exact match wins; otherwise a
// dotted key is resolved segment by segment through nested mappings.
func Lookup(vars map[string]any, key string) (any, bool) {
	if v, ok := vars[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var cur any = vars
	for _, part := range strings.Split(key, ".") {
		v, ok := field(cur, part)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// field returns m[key] for any mapping with string or interface keys,
// named map types included.
func field(m any, key string) (any, bool) {
	switch t := m.(type) {
	case map[string]any:
		v, ok := t[key]
		return v, ok
	case map[any]any:
		v, ok := t[key]
		return v, ok
	}

	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	kt := rv.Type().Key()
	var k reflect.Value
	switch {
	case kt.Kind() == reflect.String:
		k = reflect.ValueOf(key).Convert(kt)
	case kt.Kind() == reflect.Interface:
		k = reflect.ValueOf(key)
	default:
		return nil, false
	}
	v := rv.MapIndex(k)
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// Format renders a bound value as text. nil renders as the empty string.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
