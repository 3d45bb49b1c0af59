package scaler

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPattern recognizes basename_WxH-flags.ext where the width, height
// and flags are each optional and ext is png, jpg or jpeg.
const DefaultPattern = `^(?P<base>.+)_(?P<width>\d+)?x(?P<height>\d+)?(?:-(?P<flags>[^./]+))?\.(?P<ext>png|jpe?g)$`

// ScaleRequest is the resolved set of parameters for one request.
// Width or Height of zero means the axis is unconstrained.
type ScaleRequest struct {
	Width     int
	Height    int
	Flags     FlagSet
	Extension string
}

// Match is a successful path match: the basename to look the original up
// under and the parsed request.
type Match struct {
	Basename string
	Request  ScaleRequest
}

// PathMatcher decides whether a request path asks for a scaled image.
type PathMatcher interface {
	Match(path string) (Match, bool)
}

// PatternMatcher matches paths with a regular expression. The expression
// must define the named groups "base" and "ext"; "width", "height" and
// "flags" are optional.
type PatternMatcher struct {
	re     *regexp.Regexp
	base   int
	width  int
	height int
	flags  int
	ext    int
}

// NewPatternMatcher compiles pattern. An empty pattern selects DefaultPattern.
func NewPatternMatcher(pattern string) (*PatternMatcher, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling match pattern: %w", err)
	}
	m := &PatternMatcher{
		re:     re,
		base:   re.SubexpIndex("base"),
		width:  re.SubexpIndex("width"),
		height: re.SubexpIndex("height"),
		flags:  re.SubexpIndex("flags"),
		ext:    re.SubexpIndex("ext"),
	}
	if m.base < 0 || m.ext < 0 {
		return nil, fmt.Errorf("match pattern %q must define the named groups \"base\" and \"ext\"", pattern)
	}
	return m, nil
}

// MustPatternMatcher is like NewPatternMatcher but panics on error.
func MustPatternMatcher(pattern string) *PatternMatcher {
	m, err := NewPatternMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *PatternMatcher) Match(p string) (Match, bool) {
	sub := m.re.FindStringSubmatch(p)
	if sub == nil {
		return Match{}, false
	}
	group := func(i int) string {
		if i < 0 {
			return ""
		}
		return sub[i]
	}
	if group(m.base) == "" || group(m.ext) == "" {
		return Match{}, false
	}
	return buildMatch(group(m.base), group(m.ext), group(m.width), group(m.height), group(m.flags))
}

// MatchFunc inspects a request path. It returns the path rewritten with the
// size and flag segment removed, and the positional values width, height and
// flags. Missing trailing values and empty strings leave the value unset.
// An empty values slice means the path does not match. An empty rewritten
// path keeps the original one.
type MatchFunc func(path string) (rewritten string, values []string)

// CallbackMatcher delegates matching to a MatchFunc. The output extension is
// taken from the original path; the basename is the rewritten path without
// that extension.
type CallbackMatcher struct {
	fn MatchFunc
}

// NewCallbackMatcher wraps fn as a PathMatcher.
func NewCallbackMatcher(fn MatchFunc) *CallbackMatcher {
	return &CallbackMatcher{fn: fn}
}

func (m *CallbackMatcher) Match(p string) (Match, bool) {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return Match{}, false
	}
	rewritten, values := m.fn(p)
	if len(values) == 0 {
		return Match{}, false
	}
	if rewritten == "" {
		rewritten = p
	}
	basename := strings.TrimSuffix(rewritten, "."+ext)

	var width, height, flags string
	for i, v := range values {
		switch i {
		case 0:
			width = v
		case 1:
			height = v
		case 2:
			flags = v
		}
	}
	return buildMatch(basename, ext, width, height, flags)
}

func buildMatch(basename, ext, width, height, flags string) (Match, bool) {
	w, ok := parseDimension(width)
	if !ok {
		return Match{}, false
	}
	h, ok := parseDimension(height)
	if !ok {
		return Match{}, false
	}
	return Match{
		Basename: basename,
		Request: ScaleRequest{
			Width:     w,
			Height:    h,
			Flags:     ParseFlags(flags),
			Extension: strings.ToLower(ext),
		},
	}, true
}

// parseDimension returns 0 for an empty string. Anything that is not a
// non-negative integer is rejected so the request passes through.
func parseDimension(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
