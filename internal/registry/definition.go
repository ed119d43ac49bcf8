package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quantops/pipedash/internal/config"
)

// ExecutionPlan is the fully rendered, executable form of a job template.
// Rendering is a pure planning step: nothing is spawned here.
type ExecutionPlan struct {
	JobID        string
	Argv         []string
	Workdir      string
	Env          map[string]string
	PublicParams map[string]any // resolved params safe to display; secrets excluded
}

// Command returns the plan's argv as a single display string.
func (p ExecutionPlan) Command() string {
	return strings.Join(p.Argv, " ")
}

// DefinitionStatus is a job template annotated with live availability.
type DefinitionStatus struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Group    string      `json:"group"`
	Schedule string      `json:"schedule,omitempty"`
	Params   []ParamInfo `json:"params"`
	Enabled  bool        `json:"enabled"`
	Reason   string      `json:"reason,omitempty"`
	Missing  []string    `json:"missing,omitempty"`
}

// ParamInfo is the serialized view of a declared parameter.
type ParamInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

// coerceParam resolves one raw parameter value against its declaration.
// Values that fail type coercion fall back to the declared default; the
// caller handles required path params, which are the one case where a bad
// value must not be silently substituted.
func coerceParam(p config.Param, raw any, have bool) any {
	if !have || raw == nil {
		raw = p.Default
	}

	switch p.Type {
	case "int":
		v, ok := toInt(raw)
		if !ok {
			v, _ = toInt(p.Default)
		}
		if p.Min != nil && float64(v) < *p.Min {
			v = int(*p.Min)
		}
		return v
	case "float":
		v, ok := toFloat(raw)
		if !ok {
			v, _ = toFloat(p.Default)
		}
		if p.Min != nil && v < *p.Min {
			v = *p.Min
		}
		return v
	case "choice":
		s := toString(raw)
		for _, c := range p.Choices {
			if s == c {
				return s
			}
		}
		return toString(p.Default)
	default: // string, path
		return toString(raw)
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n, true
		}
		// tolerate "200.0" style numerics from JSON round-trips
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return int(f), true
		}
		return 0, false
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
		return 0, false
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// formatArg renders a resolved parameter value for the command line.
func formatArg(v any) string {
	return toString(v)
}
