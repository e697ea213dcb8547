// Package records defines the data model shared across the pipeline: raw
// tables as parsed from uploaded files, canonical tractor records, and the
// warnings produced while turning one into the other.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MilestoneHours is the maintenance milestone the fleet tracks engine hours
// against. Tractors are serviced when they reach it.
const MilestoneHours float64 = 900

// Table is one raw table parsed from a single uploaded file, before any
// normalization. Columns preserves the header order from the file and Rows
// holds cell values aligned positionally to Columns.
//
// Cells are dynamically typed the way parsers produce them: string, float64,
// int64, or nil for an empty cell. Consumers must not assume more than that.
type Table struct {
	Source  string
	Columns []string
	Rows    [][]any
}

// Record is one canonical tractor reading. Records are immutable once
// produced: the normalizer builds them and later stages only copy them.
//
// Invariants:
//   - EngineHours is finite and >= 0.
//   - Nickname is non-empty (trimmed).
//   - HoursToMilestone == Remaining(EngineHours).
type Record struct {
	Nickname         string     `json:"nickname"`
	EngineHours      float64    `json:"engine_hours"`
	HoursToMilestone float64    `json:"hours_to_900"`
	SourceFile       string     `json:"source_file"`
	Date             *time.Time `json:"date,omitempty"`
	Location         string     `json:"location,omitempty"`
}

// Remaining returns the engine hours left until the maintenance milestone,
// clamped at zero once the milestone has been reached.
func Remaining(engineHours float64) float64 {
	if engineHours >= MilestoneHours {
		return 0
	}
	return MilestoneHours - engineHours
}

// Float coerces a raw cell value to a finite float64.
//
// Accepted inputs: float64, int64, int, and strings that strconv.ParseFloat
// understands after trimming. Everything else, including nil, empty strings,
// NaN and infinities, reports ok=false. This is the single place cell-to-
// number coercion happens; callers must not roll their own.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Text renders a raw cell value as text. Numeric cells come out in plain
// notation, never scientific, so identifiers like 8429529 survive intact.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(v)
	}
}

// Warning describes a non-fatal problem encountered while processing one
// table. Warnings are reported to the caller and never stop the pipeline.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Warnf builds a Warning for source with a printf-style message.
func Warnf(source, format string, args ...any) Warning {
	return Warning{Source: source, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	if w.Source == "" {
		return w.Message
	}
	return w.Source + ": " + w.Message
}
