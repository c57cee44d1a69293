// Package cambridge extracts cards from the Cambridge English-Chinese
// (Simplified) dictionary.
package cambridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/dict2anki/dict2anki/internal/extractor"
	"github.com/dict2anki/dict2anki/internal/fetch"
	"github.com/dict2anki/dict2anki/internal/htmls"
	"github.com/dict2anki/dict2anki/internal/progress"
)

// Name is the extractor name used on the command line.
const Name = "cambridge"

const (
	DefaultRoot = "https://dictionary.cambridge.org/"

	queryPath = "zhs/%E8%AF%8D%E5%85%B8/%E8%8B%B1%E8%AF%AD-%E6%B1%89%E8%AF%AD-%E7%AE%80%E4%BD%93/"
	stylePath = "zhs/common.css"
	fontPath  = "zhs/external/fonts/cdoicons.woff"

	frontTemplate = "<hr>\n<div style=\"text-align:center\">{{正面}}</div>"
	largeIPAStyle = ".large-ipa { font-size: 24px; color: #333; margin: 10px 0; display: block; }"

	collapseThreshold = 4096
	collapseHeader    = `<header class="ca_h daccord_h"><i class="i i-plus ca_hi"></i>`
)

// DefaultScripts are the AMP runtime and the components the entries use.
var DefaultScripts = []string{
	"https://cdn.ampproject.org/v0.js",
	"https://cdn.ampproject.org/v0/amp-audio-0.1.js",
	"https://cdn.ampproject.org/v0/amp-accordion-0.1.js",
}

func match(name, filter string) *htmls.Matcher {
	return htmls.MustCompile(name, filter, htmls.WithHook(func(sp htmls.Span) {
		slog.Debug("cambridge: matched", "tag", name, "filter", filter, "start", sp.Start, "end", sp.End)
	}))
}

var (
	entryBody  = match("div", `class="di-body"`)
	entryTitle = match("div", `class="di-title"`)
	ipa        = match("span", `class="ipa"`)
	defBlock   = match("div", "def-block ddef_block")
	defBody    = match("div", "def-body ddef_b")
	defTrans   = match("span", "trans dtrans dtrans-se")

	// removed from the back
	clutter = []*htmls.Matcher{
		match("div", `class="xref`),
		match("div", `class="cid"`),
		match("div", `class="dwl hax"`),
		match("div", `class="hfr lpb-2"`),
		match("div", `class="daccord"`),
		match("script", ""),
		match("div", "ad_contentslot"),
		match("div", `class="bb hax"`),
	}

	// replaced by their content
	links = []*htmls.Matcher{
		match("a", `class="query"`),
		match("a", "href="),
		match("span", `class="x-h dx-h"`),
	}

	audioSrc = regexp.MustCompile(`src="(/zhs/media[^"]+)"`)
)

// Extractor looks words up on dictionary.cambridge.org.
type Extractor struct {
	extractor.Defaults

	client   *fetch.Client
	media    string
	root     string
	scripts  []string
	progress io.Writer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRoot replaces the site root. It must end with '/'.
func WithRoot(root string) Option {
	return func(e *Extractor) { e.root = root }
}

// WithScripts replaces the scripts inlined into the styling.
func WithScripts(urls ...string) Option {
	return func(e *Extractor) { e.scripts = urls }
}

// WithProgress sets where download progress is drawn (stdout by default).
func WithProgress(w io.Writer) Option {
	return func(e *Extractor) { e.progress = w }
}

// New creates an Extractor that saves media into mediaPath.
func New(client *fetch.Client, mediaPath string, opts ...Option) *Extractor {
	e := &Extractor{
		client:   client,
		media:    mediaPath,
		root:     DefaultRoot,
		scripts:  DefaultScripts,
		progress: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Name() string { return Name }

func (e *Extractor) FrontTemplate() string { return frontTemplate }

// Styling downloads the site stylesheet and icon font, points the font
// reference at the copy in the media folder (prefixed with '_' so Anki keeps
// it), and inlines the AMP scripts.
func (e *Extractor) Styling(ctx context.Context) (string, error) {
	slog.Info("cambridge: retrieving styling")
	style, err := e.client.GetText(ctx, e.root+stylePath)
	if err != nil {
		return "", err
	}

	fontURL := e.root + fontPath
	var font string
	bar := progress.New(e.progress, 0, progress.Bytes)
	saved, _, err := e.client.SaveNamed(ctx, fontURL, func(guessed string) string {
		font = guessed
		return filepath.Join(e.media, "_"+guessed)
	}, true, bar.Set)
	bar.Done()
	if err != nil {
		return "", err
	}
	slog.Info("cambridge: saved font", "path", saved)

	fontRef := regexp.MustCompile(`url\(\S*?/` + regexp.QuoteMeta(font))
	style = fontRef.ReplaceAllLiteralString(style, "url("+filepath.Base(saved))
	style += largeIPAStyle

	scripts := make([]string, 0, len(e.scripts))
	for _, u := range e.scripts {
		js, err := e.client.GetText(ctx, u)
		if err != nil {
			return "", err
		}
		scripts = append(scripts, `<script type="text/javascript">`+strings.ReplaceAll(js, "\n", " ")+`</script>`)
	}

	slog.Info("cambridge: retrieved styling")
	return "<style>" + style + "</style>\n" + strings.Join(scripts, "\n") + "\n", nil
}

// Card queries word. The headword is taken from the final URL, so a query
// that redirects to another entry yields that entry's headword.
func (e *Extractor) Card(ctx context.Context, word string) (extractor.Card, error) {
	slog.Debug("cambridge: querying", "word", word)
	page, err := e.client.Get(ctx, e.root+queryPath+url.PathEscape(strings.ReplaceAll(word, "/", " ")))
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return extractor.Card{}, fmt.Errorf("%w: %q", extractor.ErrWordNotFound, word)
		}
		return extractor.Card{}, err
	}

	p := page.URL.Path
	resolved := strings.ReplaceAll(p[strings.LastIndex(p, "/")+1:], "-", " ")
	if resolved == "" {
		return extractor.Card{}, fmt.Errorf("%w: %q", extractor.ErrWordNotFound, word)
	}
	if resolved != normalize(word) {
		slog.Info("cambridge: redirected", "word", word, "resolved", resolved)
	}

	fields, err := extractFields(page.Body, e.root)
	if err != nil {
		return extractor.Card{}, &extractor.ExtractError{Word: word, Err: err}
	}
	slog.Debug("cambridge: parsed", "word", resolved)
	return extractor.Card{Word: resolved, Fields: fields}, nil
}

var separators = strings.NewReplacer("/", " ", "-", " ", "'", " ")

// normalize spells word the way the site spells headwords in URLs.
func normalize(word string) string {
	return strings.Join(strings.Fields(strings.ToLower(separators.Replace(word))), " ")
}

// extractFields returns the front and back of a card from an entry page.
func extractFields(doc, root string) ([]string, error) {
	back, ok := entryBody.Find(doc)
	if !ok {
		return nil, errors.New("no entry body")
	}

	front, ok := entryTitle.Find(back)
	if !ok {
		return nil, errors.New("no entry title")
	}
	if pron, ok := ipa.Find(back); ok {
		front += `<div class="large-ipa">/` + pron + `/</div>`
	}
	if src := pickAudio(back); src != "" {
		front += `<audio src="` + html.EscapeString(html.UnescapeString(root+strings.TrimPrefix(src, "/"))) + `" autoplay controls></audio>`
	}

	back = entryTitle.RemoveAll(back)
	back = strings.ReplaceAll(back, `src="/zhs/media`, `src="`+root+`zhs/media`)
	for _, m := range clutter {
		back = m.RemoveAll(back)
	}
	for _, m := range links {
		back = m.Sub(back, unwrap)
	}
	if len(back) > collapseThreshold {
		back = collapse(back)
	}
	return []string{front, back}, nil
}

// pickAudio returns the first media source, preferring US pronunciation.
func pickAudio(back string) string {
	var first string
	for _, m := range audioSrc.FindAllStringSubmatch(back, -1) {
		if strings.Contains(m[1], "us_pron") {
			return m[1]
		}
		if first == "" {
			first = m[1]
		}
	}
	return first
}

// unwrap returns the content of element h without its own tags.
func unwrap(h string) string {
	open := strings.IndexByte(h, '>')
	end := strings.LastIndex(h, "</")
	if open < 0 || end <= open {
		return h
	}
	return h[open+1 : end]
}

// collapse folds every definition block into an accordion headed by its
// translation.
func collapse(back string) string {
	return defBlock.Sub(back, func(h string) string {
		var header string
		if b, ok := defBody.Find(h); ok {
			header, _ = defTrans.Find(b)
		}
		return "<amp-accordion><section>" + collapseHeader + header + "</header>" + h + "</section></amp-accordion>"
	})
}
