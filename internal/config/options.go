// Package config defines the JSON configuration surface shared by the CLIs
// and the API server: free-form ingest options plus the typed app config,
// with validation that reports issues instead of failing fast.
package config

import "strings"

// Options carries free-form options as decoded from JSON, typically under an
// "ingest" or "options" key. Getters are lenient about the types JSON
// decoding produces and fall back to the given default on anything odd, so a
// sloppy config degrades instead of crashing.
type Options map[string]any

// Bool returns the option as a bool, or def when absent or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the option as an int. JSON numbers decode as float64; those
// are truncated toward zero.
func (o Options) Int(key string, def int) int {
	switch t := o[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

// String returns the option as a string, or def when absent or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of a string option ("comma": ";"), or def when
// the option is absent or empty. Extra characters are ignored.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns the option as a map of strings. Non-string values inside
// the map are skipped. Returns nil when the option is absent.
func (o Options) StringMap(key string) map[string]string {
	switch t := o[key].(type) {
	case map[string]string:
		return t
	case map[string]any:
		m := make(map[string]string, len(t))
		for k, v := range t {
			if s, ok := v.(string); ok {
				m[k] = s
			}
		}
		return m
	default:
		return nil
	}
}

// Any returns the raw option value and whether it is present.
func (o Options) Any(key string) (any, bool) {
	v, ok := o[key]
	return v, ok
}

// Strings returns the option as a list of strings. JSON arrays decode as
// []any; non-string elements are skipped.
func (o Options) Strings(key string) []string {
	switch t := o[key].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
