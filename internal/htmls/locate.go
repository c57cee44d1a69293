package htmls

import (
	"errors"
	"iter"
)

// ErrEmptyName is returned by Compile when no element name is given.
var ErrEmptyName = errors.New("htmls: empty element name")

// Span is a balanced <name ...>...</name> region of a buffer.
type Span struct {
	Start int // byte offset of the opening '<'
	End   int // byte offset one past the closing '>'
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithHook registers fn to be called with every span the Matcher locates,
// before the span is handed to the consumer. It is meant for tracing.
func WithHook(fn func(Span)) Option {
	return func(m *Matcher) { m.hook = fn }
}

// Matcher locates elements by name and attribute filter. A Matcher holds no
// per-scan state and is safe for concurrent use.
type Matcher struct {
	name   string
	filter string
	hook   func(Span)
}

// Compile returns a Matcher for elements named name whose opening tag
// contains filter. An empty filter matches every element with that name.
func Compile(name, filter string, opts ...Option) (*Matcher, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	m := &Matcher{name: name, filter: filter}
	for _, opt := range opts {
		opt(m)
	}
	tagPattern(name)
	return m, nil
}

// MustCompile is like Compile but panics on an empty name.
func MustCompile(name, filter string, opts ...Option) *Matcher {
	m, err := Compile(name, filter, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the element name the Matcher scans for.
func (m *Matcher) Name() string { return m.name }

// Filter returns the attribute filter.
func (m *Matcher) Filter() string { return m.filter }

// Spans yields the spans of buf in document order.
//
// A span opens at the first opening tag that satisfies the filter. From then
// on every opening tag with the same name, filtered or not, increases the
// nesting depth and every closing tag decreases it; the span ends at the
// closing tag that brings the depth back to zero. Closing tags seen while no
// span is open are ignored, and a span still open at the end of buf is
// dropped.
//
// The sequence may be ranged over any number of times.
func (m *Matcher) Spans(buf string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		depth := 0
		start := -1
		for tok := range scan(buf, m.name) {
			switch tok.kind {
			case openTag:
				if start != -1 {
					depth++
				} else if matchesFilter(buf, tok, m.name, m.filter) {
					depth = 1
					start = tok.start
				}
			case closeTag:
				if start == -1 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				sp := Span{Start: start, End: tok.end}
				start = -1
				if m.hook != nil {
					m.hook(sp)
				}
				if !yield(sp) {
					return
				}
			}
		}
	}
}
