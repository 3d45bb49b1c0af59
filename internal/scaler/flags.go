package scaler

import (
	"sort"
	"strconv"
	"strings"
)

// FlagSet maps flag names to their value. Boolean flags such as "crop" map
// to the empty string; valued flags such as "z20" map to "20". Names are not
// checked against a vocabulary, unknown flags are kept and ignored.
type FlagSet map[string]string

// ParseFlags parses a "-" separated flag string. Each token is a name,
// optionally followed by digits which become its value: "fill-z20" yields
// {fill: "", z: "20"}.
func ParseFlags(s string) FlagSet {
	flags := FlagSet{}
	for tok := range strings.SplitSeq(s, "-") {
		if tok == "" {
			continue
		}
		i := strings.IndexAny(tok, "0123456789")
		switch {
		case i < 0:
			flags[tok] = ""
		case i == 0:
			// A bare number has no name to attach to.
			continue
		default:
			flags[tok[:i]] = tok[i:]
		}
	}
	return flags
}

// Has reports whether the flag is present, with or without a value.
func (f FlagSet) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Value returns the flag's value; ok is false when the flag is absent or boolean.
func (f FlagSet) Value(name string) (string, bool) {
	v, ok := f[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Int returns the flag's value as an integer.
func (f FlagSet) Int(name string) (int, bool) {
	v, ok := f.Value(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the set in flag-string form with names sorted.
func (f FlagSet) String() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		names[i] = name + f[name]
	}
	return strings.Join(names, "-")
}
