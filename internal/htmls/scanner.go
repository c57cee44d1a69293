package htmls

import (
	"iter"
	"regexp"
	"strings"
	"sync"
)

// tokenKind tells an opening tag from a closing one.
type tokenKind uint8

const (
	openTag tokenKind = iota + 1
	closeTag
)

// token is one occurrence of <name ...> or </name> in a buffer.
type token struct {
	kind  tokenKind
	start int // byte offset of '<'
	end   int // byte offset one past '>'
}

// tagPatterns caches the compiled "any occurrence of this tag" pattern per
// element name. Extractors scan the same few names for every page, so the
// cache stays small.
var tagPatterns sync.Map // name -> *regexp.Regexp

// tagPattern returns the pattern matching either a closing tag
// (</name followed by optional whitespace and '>') or an opening tag
// (<name followed by '>' or by whitespace and anything up to the first '>').
//
// The name must be followed by whitespace or '>', so scanning for "div" never
// picks up <divider> and never sees a bare self-closing <div/>.
func tagPattern(name string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`</` + q + `\s*>|<` + q + `(?:\s[^>]*)?>`)
	actual, _ := tagPatterns.LoadOrStore(name, re)
	return actual.(*regexp.Regexp)
}

// scan yields the tag tokens for name in document order. Matching is lazy:
// the buffer is searched one token at a time as the consumer pulls.
func scan(buf, name string) iter.Seq[token] {
	re := tagPattern(name)
	return func(yield func(token) bool) {
		pos := 0
		for pos < len(buf) {
			loc := re.FindStringIndex(buf[pos:])
			if loc == nil {
				return
			}
			tok := token{start: pos + loc[0], end: pos + loc[1], kind: openTag}
			if strings.HasPrefix(buf[tok.start:], "</") {
				tok.kind = closeTag
			}
			if !yield(tok) {
				return
			}
			pos = tok.end
		}
	}
}

// attrsOf returns the text of an opening tag between "<name" and ">".
func attrsOf(buf string, tok token, name string) string {
	return buf[tok.start+1+len(name) : tok.end-1]
}

// matchesFilter reports whether the opening tag tok carries filter somewhere
// in its attribute region. The test is a raw substring match; an empty filter
// accepts every opening tag.
func matchesFilter(buf string, tok token, name, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(attrsOf(buf, tok, name), filter)
}
