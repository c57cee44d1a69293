// Package htmls slices HTML by balanced tags.
//
// It is not an HTML parser. For a single element name it finds the opening
// tag whose attributes contain a literal filter string and follows the nesting
// of same-name tags to the matching closing tag. The resulting regions can be
// read, rewritten or removed:
//
//	body, ok := htmls.Find(page, "div", `class="di-body"`)
//	body = htmls.RemoveAll(body, "script", "")
//	body = htmls.Sub(body, unwrap, "a", "href=")
//
// All functions are pure and safe for concurrent use.
package htmls

import (
	"iter"
	"slices"
)

// FindAll yields the markup of every matching element, in document order.
func (m *Matcher) FindAll(buf string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for sp := range m.Spans(buf) {
			if !yield(buf[sp.Start:sp.End]) {
				return
			}
		}
	}
}

// Find returns the first matching element. ok is false when there is none.
func (m *Matcher) Find(buf string) (markup string, ok bool) {
	for s := range m.FindAll(buf) {
		return s, true
	}
	return "", false
}

// Sub replaces every matching element with fn applied to its markup and
// returns the edited buffer. Spans are collected first and rewritten from the
// last to the first, so the offsets of spans not yet rewritten stay valid.
func (m *Matcher) Sub(buf string, fn func(string) string) string {
	spans := slices.Collect(m.Spans(buf))
	if len(spans) == 0 {
		return buf
	}
	out := buf
	for _, sp := range slices.Backward(spans) {
		out = out[:sp.Start] + fn(out[sp.Start:sp.End]) + out[sp.End:]
	}
	return out
}

// RemoveAll deletes every matching element from buf.
func (m *Matcher) RemoveAll(buf string) string {
	return m.Sub(buf, func(string) string { return "" })
}

// FindAll yields the markup of every name element whose opening tag contains
// filter. It panics if name is empty.
func FindAll(buf, name, filter string) iter.Seq[string] {
	return MustCompile(name, filter).FindAll(buf)
}

// Find returns the first name element whose opening tag contains filter.
// It panics if name is empty.
func Find(buf, name, filter string) (string, bool) {
	return MustCompile(name, filter).Find(buf)
}

// Sub rewrites every name element whose opening tag contains filter with fn.
// It panics if name is empty.
func Sub(buf string, fn func(string) string, name, filter string) string {
	return MustCompile(name, filter).Sub(buf, fn)
}

// RemoveAll deletes every name element whose opening tag contains filter.
// It panics if name is empty.
func RemoveAll(buf, name, filter string) string {
	return MustCompile(name, filter).RemoveAll(buf)
}
