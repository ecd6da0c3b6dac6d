package unit

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/procstep/internal/fault"
)

// ArgType is the declared type of a unit parameter.
type ArgType string

const (
	ArgInt   ArgType = "INT"
	ArgFloat ArgType = "FLOAT"
	ArgText  ArgType = "TEXT"
	ArgBool  ArgType = "BOOLEAN"
)

// Arg declares one parameter a unit accepts. Names lists the canonical name
// first, followed by aliases.
type Arg struct {
	Names       []string
	Type        ArgType
	Optional    bool
	Description string
}

// Name returns the canonical parameter name.
func (a Arg) Name() string {
	if len(a.Names) == 0 {
		return ""
	}
	return a.Names[0]
}

// String renders the argument in prototype notation, e.g. "? m|multiplier INT".
func (a Arg) String() string {
	var b strings.Builder
	if a.Optional {
		b.WriteString("? ")
	}
	names := make([]string, len(a.Names))
	copy(names, a.Names)
	// aliases first, canonical last
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	b.WriteString(strings.Join(names, "|"))
	b.WriteString(" ")
	b.WriteString(string(a.Type))
	return b.String()
}

// lookup returns the value for the first of names present in params.
func (a Arg) lookup(params map[string]any) (string, any, bool) {
	for _, n := range a.Names {
		if v, ok := params[n]; ok {
			return n, v, true
		}
	}
	return "", nil, false
}

// Configurator is implemented by units that accept parameters.
type Configurator interface {
	Configure(params map[string]any) error
}

// IntParam resolves an integer parameter from params. ok is false when none
// of the argument's names is present. Every present alias must coerce, even
// when an earlier name wins.
func IntParam(params map[string]any, arg Arg) (value int, ok bool, err error) {
	for _, n := range arg.Names {
		v, present := params[n]
		if !present {
			continue
		}
		if _, err := AsInt(n, v); err != nil {
			return 0, false, err
		}
	}
	name, raw, ok := arg.lookup(params)
	if !ok {
		return 0, false, nil
	}
	value, err = AsInt(name, raw)
	return value, err == nil, err
}

// AsInt coerces v to an int. Floats are truncated toward zero; strings must
// parse as a number. Anything else fails with CONFIGURATION.
func AsInt(name string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return checkedInt(name, v, float64(n))
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return checkedInt(name, v, float64(n))
	case float32:
		return checkedInt(name, v, float64(n))
	case float64:
		return checkedInt(name, v, n)
	case json.Number:
		return AsInt(name, string(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, configError(name, v, ArgInt)
		}
		return checkedInt(name, v, f)
	default:
		return 0, configError(name, v, ArgInt)
	}
}

func checkedInt(name string, raw any, f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, configError(name, raw, ArgInt)
	}
	return int(math.Trunc(f)), nil
}

func configError(name string, v any, want ArgType) error {
	return fault.Configuration(name, v, strings.ToLower(string(want)))
}
