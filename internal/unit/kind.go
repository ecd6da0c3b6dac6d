package unit

import (
	"fmt"
	"strings"
)

// Kind is the declared value kind of an input or output variable.
type Kind int

const (
	// KindNone means the variable carries no observer; it is accepted as
	// numeric.
	KindNone Kind = iota
	KindNumeric
	KindCategorical
	KindBoolean
	KindText
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindNumeric:     "numeric",
	KindCategorical: "categorical",
	KindBoolean:     "boolean",
	KindText:        "text",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Numeric reports whether values of this kind can be stored in a State.
func (k Kind) Numeric() bool {
	return k == KindNone || k == KindNumeric
}

// ParseKind parses a kind name. The empty string means KindNumeric.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindNumeric, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown variable kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Observable declares one variable a unit consumes or produces.
type Observable struct {
	Name string
	Kind Kind
}

// Numeric declares a numeric variable.
func Numeric(name string) Observable {
	return Observable{Name: name, Kind: KindNumeric}
}
