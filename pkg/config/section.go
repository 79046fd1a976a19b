package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section is one [NAME] block. Option names are case insensitive and
// every read is recorded so the loader can report options nobody used.
//
// The typed getters share one shape: an optional trailing fallback,
// and a missing option without a fallback is ErrMissingOption.
type Section struct {
	name   string
	values map[string]string

	mu   sync.Mutex
	read map[string]bool
}

func newSection(name string, options map[string]string) *Section {
	s := &Section{
		name:   name,
		values: make(map[string]string, len(options)),
		read:   make(map[string]bool),
	}
	for k, v := range options {
		s.values[strings.ToLower(k)] = v
	}
	return s
}

func (s *Section) GetName() string { return s.name }

func (s *Section) HasOption(option string) bool {
	_, ok := s.values[strings.ToLower(option)]
	return ok
}

// GetUnusedOptions lists, sorted, the options no getter has touched.
func (s *Section) GetUnusedOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unused []string
	for key := range s.values {
		if !s.read[key] {
			unused = append(unused, key)
		}
	}
	sort.Strings(unused)
	return unused
}

// raw fetches an option. Asking for an option with a default counts as
// a read even when the file leaves it out.
func (s *Section) raw(option string, defaulted bool) (string, bool) {
	key := strings.ToLower(option)
	v, ok := s.values[key]
	if ok || defaulted {
		s.mu.Lock()
		s.read[key] = true
		s.mu.Unlock()
	}
	return v, ok
}

// decode is the common body of the typed getters. parse returns false
// when the text is not a T; want names T in the resulting error.
func decode[T any](s *Section, option, want string, parse func(string) (T, bool), fallback []T) (T, error) {
	var zero T
	text, ok := s.raw(option, len(fallback) > 0)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return zero, ErrMissingOption(s.name, option)
	}
	v, ok := parse(text)
	if !ok {
		return zero, ErrInvalidValue(s.name, option, text, want)
	}
	return v, nil
}

func parseString(text string) (string, bool) { return text, true }

func parseInt(text string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(text))
	return i, err == nil
}

func parseFloat(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	return f, err == nil
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func parseFloats(text string) ([]float64, bool) {
	words := strings.Fields(text)
	out := make([]float64, len(words))
	for i, w := range words {
		f, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func (s *Section) Get(option string, fallback ...string) (string, error) {
	return decode(s, option, "string", parseString, fallback)
}

func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	return decode(s, option, "integer", parseInt, fallback)
}

func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	return decode(s, option, "float", parseFloat, fallback)
}

// GetBool accepts 1/0, true/false, yes/no and on/off in any case.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	return decode(s, option, "boolean (true/false/yes/no/on/off/1/0)", parseBool, fallback)
}

// GetFloatList reads a whitespace separated list of numbers.
func (s *Section) GetFloatList(option string, fallback ...[]float64) ([]float64, error) {
	return decode(s, option, "list of floats", parseFloats, fallback)
}

// GetFloatN is GetFloatList for an option that must hold exactly n
// numbers, such as a pose.
func (s *Section) GetFloatN(option string, n int, fallback ...[]float64) ([]float64, error) {
	vals, err := s.GetFloatList(option, fallback...)
	if err != nil {
		return nil, err
	}
	if len(vals) != n {
		text, _ := s.raw(option, false)
		return nil, ErrInvalidValue(s.name, option, strings.TrimSpace(text), strconv.Itoa(n)+" numbers")
	}
	return vals, nil
}

// GetChoice returns the entry of choices matching the option, ignoring
// case. The canonical spelling from choices is returned.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// GetIntWithBounds is GetInt restricted to [lo, hi].
func (s *Section) GetIntWithBounds(option string, lo, hi int, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	bounds := FloatBounds{MinVal: ptr(float64(lo)), MaxVal: ptr(float64(hi))}
	if msg := bounds.violation(float64(v)); msg != "" {
		return 0, ErrOutOfRange(s.name, option, float64(v), msg)
	}
	return v, nil
}

// FloatBounds constrains GetFloatWithBounds. Nil limits are not
// checked; MinVal and MaxVal are inclusive, Above and Below strict.
type FloatBounds struct {
	MinVal *float64
	MaxVal *float64
	Above  *float64
	Below  *float64
}

func ptr(v float64) *float64 { return &v }

// Above bounds a value strictly from below, e.g. a period or velocity.
func Above(v float64) FloatBounds { return FloatBounds{Above: ptr(v)} }

// AtLeast bounds a value inclusively from below.
func AtLeast(v float64) FloatBounds { return FloatBounds{MinVal: ptr(v)} }

// violation describes the first limit v breaks, or returns "".
func (b FloatBounds) violation(v float64) string {
	num := func(f *float64) string { return strconv.FormatFloat(*f, 'f', -1, 64) }
	switch {
	case b.MinVal != nil && v < *b.MinVal:
		return "must have minimum of " + num(b.MinVal)
	case b.MaxVal != nil && v > *b.MaxVal:
		return "must have maximum of " + num(b.MaxVal)
	case b.Above != nil && v <= *b.Above:
		return "must be above " + num(b.Above)
	case b.Below != nil && v >= *b.Below:
		return "must be below " + num(b.Below)
	}
	return ""
}

func (s *Section) GetFloatWithBounds(option string, bounds FloatBounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	if msg := bounds.violation(v); msg != "" {
		return 0, ErrOutOfRange(s.name, option, v, msg)
	}
	return v, nil
}
