package cambridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dict2anki/dict2anki/internal/extractor"
	"github.com/dict2anki/dict2anki/internal/fetch"
)

const dictPath = "/zhs/词典/英语-汉语-简体/"

const entry = `<div class="di-body">` +
	`<div class="di-title"><span class="hw">color</span></div>` +
	`<span class="ipa">ˈkʌl.ɚ</span>` +
	`<source src="/zhs/media/english/uk_pron/color.mp3"/>` +
	`<source src="/zhs/media/english/us_pron/color.mp3"/>` +
	`<div class="xref synonyms"><div>hue</div></div>` +
	`<div class="cid" id="x"></div>` +
	`<script>ga("send")</script>` +
	`<div class="def-block ddef_block"><div class="def">the look of <a class="query" href="/q/red">red</a> or <a href="/q/blue">blue</a></div>` +
	`<div class="def-body ddef_b"><span class="trans dtrans dtrans-se">颜色</span><span class="eg"><span class="x-h dx-h">colour</span> chart</span></div></div>` +
	`<div id="ad_contentslot_1"><div>ad</div></div>` +
	`</div>`

func wantFields(root string) []string {
	return []string{
		`<div class="di-title"><span class="hw">color</span></div>` +
			`<div class="large-ipa">/<span class="ipa">ˈkʌl.ɚ</span>/</div>` +
			`<audio src="` + root + `zhs/media/english/us_pron/color.mp3" autoplay controls></audio>`,
		`<div class="di-body">` +
			`<span class="ipa">ˈkʌl.ɚ</span>` +
			`<source src="` + root + `zhs/media/english/uk_pron/color.mp3"/>` +
			`<source src="` + root + `zhs/media/english/us_pron/color.mp3"/>` +
			`<div class="def-block ddef_block"><div class="def">the look of red or blue</div>` +
			`<div class="def-body ddef_b"><span class="trans dtrans dtrans-se">颜色</span><span class="eg">colour chart</span></div></div>` +
			`</div>`,
	}
}

type site struct {
	*httptest.Server
	fontHits atomic.Int32
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zhs/common.css":
			_, _ = w.Write([]byte(`@font-face{src:url(/zhs/external/fonts/cdoicons.woff?v=1) format("woff")}`))
			return
		case "/zhs/external/fonts/cdoicons.woff":
			s.fontHits.Add(1)
			_, _ = w.Write([]byte("wOFF-font"))
			return
		case "/v0.js":
			_, _ = w.Write([]byte("a\nb"))
			return
		case "/v0/amp-audio-0.1.js":
			_, _ = w.Write([]byte("c"))
			return
		}

		word, ok := strings.CutPrefix(r.URL.Path, dictPath)
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch word {
		case "colour":
			http.Redirect(w, r, "/"+queryPath+"color", http.StatusFound)
		case "ice cream":
			http.Redirect(w, r, "/"+queryPath+"ice-cream", http.StatusFound)
		case "color", "ice-cream":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>" + entry + "</body></html>"))
		case "empty":
			_, _ = w.Write([]byte("<html></html>"))
		case "gone":
			http.NotFound(w, r)
		case "":
			_, _ = w.Write([]byte("<html>home</html>"))
		default:
			http.Redirect(w, r, "/"+queryPath, http.StatusFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newExtractor(t *testing.T, srv *site, media string) *Extractor {
	t.Helper()
	client := fetch.New(fetch.WithRetry(2), fetch.WithTimeout(5*time.Second))
	return New(client, media,
		WithRoot(srv.URL+"/"),
		WithScripts(srv.URL+"/v0.js", srv.URL+"/v0/amp-audio-0.1.js"),
		WithProgress(io.Discard),
	)
}

func TestCard(t *testing.T) {
	srv := newSite(t)
	ex := newExtractor(t, srv, t.TempDir())

	tests := []struct {
		word     string
		resolved string
	}{
		{word: "color", resolved: "color"},
		{word: "colour", resolved: "color"},
		{word: "ice cream", resolved: "ice cream"},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			card, err := ex.Card(context.Background(), tt.word)
			require.NoError(t, err)
			require.Equal(t, tt.resolved, card.Word)
			require.Equal(t, wantFields(srv.URL+"/"), card.Fields)
		})
	}
}

func TestCard_NotFound(t *testing.T) {
	srv := newSite(t)
	ex := newExtractor(t, srv, t.TempDir())

	for _, word := range []string{"qwertyuiop", "gone"} {
		_, err := ex.Card(context.Background(), word)
		require.ErrorIs(t, err, extractor.ErrWordNotFound, word)
	}
}

func TestCard_NoEntryBody(t *testing.T) {
	srv := newSite(t)
	ex := newExtractor(t, srv, t.TempDir())

	_, err := ex.Card(context.Background(), "empty")
	var ee *extractor.ExtractError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "empty", ee.Word)
}

func TestStyling(t *testing.T) {
	srv := newSite(t)
	media := filepath.Join(t.TempDir(), extractor.MediaFolder)
	ex := newExtractor(t, srv, media)

	styling, err := ex.Styling(context.Background())
	require.NoError(t, err)
	require.Equal(t,
		`<style>@font-face{src:url(_cdoicons.woff?v=1) format("woff")}`+largeIPAStyle+"</style>\n"+
			`<script type="text/javascript">a b</script>`+"\n"+
			`<script type="text/javascript">c</script>`+"\n",
		styling)

	font, err := os.ReadFile(filepath.Join(media, "_cdoicons.woff"))
	require.NoError(t, err)
	require.Equal(t, "wOFF-font", string(font))
	// One request to name the file, one to download it.
	require.Equal(t, int32(2), srv.fontHits.Load())

	// A second run overwrites the font instead of adding a copy.
	_, err = ex.Styling(context.Background())
	require.NoError(t, err)
	entries, err := os.ReadDir(media)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestTemplates(t *testing.T) {
	ex := New(fetch.New(), t.TempDir())
	require.Equal(t, Name, ex.Name())
	require.Equal(t, "<hr>\n<div style=\"text-align:center\">{{正面}}</div>", ex.FrontTemplate())
	require.Equal(t, extractor.DefaultBackTemplate, ex.BackTemplate())
}

func TestExtractFields_Collapse(t *testing.T) {
	const root = "https://example.org/"
	padding := `<p>` + strings.Repeat("x", collapseThreshold) + `</p>`
	doc := `<div class="di-body">` +
		`<div class="di-title">colour</div>` +
		`<div class="def-block ddef_block"><div class="def-body ddef_b"><span class="trans dtrans dtrans-se">颜色</span></div></div>` +
		`<div class="def-block ddef_block"><div class="def">no translation</div></div>` +
		padding +
		`</div>`

	fields, err := extractFields(doc, root)
	require.NoError(t, err)
	require.Equal(t, `<div class="di-title">colour</div>`, fields[0])
	require.Equal(t, `<div class="di-body">`+
		`<amp-accordion><section>`+collapseHeader+`<span class="trans dtrans dtrans-se">颜色</span></header>`+
		`<div class="def-block ddef_block"><div class="def-body ddef_b"><span class="trans dtrans dtrans-se">颜色</span></div></div>`+
		`</section></amp-accordion>`+
		`<amp-accordion><section>`+collapseHeader+`</header>`+
		`<div class="def-block ddef_block"><div class="def">no translation</div></div>`+
		`</section></amp-accordion>`+
		padding+
		`</div>`, fields[1])
}

func TestExtractFields_ShortNotCollapsed(t *testing.T) {
	fields, err := extractFields(`<div class="di-body"><div class="di-title">x</div><div class="def-block ddef_block">x</div></div>`, DefaultRoot)
	require.NoError(t, err)
	require.NotContains(t, fields[1], "amp-accordion")
}

func TestExtractFields_NoTitle(t *testing.T) {
	_, err := extractFields(`<div class="di-body"><span class="ipa">ˈkʌl.ɚ</span></div>`, DefaultRoot)
	require.ErrorContains(t, err, "no entry title")
}

func TestExtractFields_EscapedAudioURL(t *testing.T) {
	const root = "https://example.org/"
	doc := `<div class="di-body"><div class="di-title">a</div>` +
		`<source src="/zhs/media/x/us_pron/a.mp3?a=1&amp;b=2"/></div>`

	fields, err := extractFields(doc, root)
	require.NoError(t, err)

	const want = `src="https://example.org/zhs/media/x/us_pron/a.mp3?a=1&amp;b=2"`
	require.Contains(t, fields[0], want)
	require.Contains(t, fields[1], want)
	require.NotContains(t, fields[0], "&amp;amp;")
}

func TestPickAudio(t *testing.T) {
	tests := []struct {
		name string
		back string
		want string
	}{
		{name: "none", back: `<div>no audio</div>`, want: ""},
		{name: "first", back: `src="/zhs/media/a/uk_pron/1.mp3" src="/zhs/media/a/uk_pron/2.mp3"`, want: "/zhs/media/a/uk_pron/1.mp3"},
		{name: "prefers us", back: `src="/zhs/media/a/uk_pron/1.mp3" src="/zhs/media/a/us_pron/2.mp3"`, want: "/zhs/media/a/us_pron/2.mp3"},
		{name: "other paths ignored", back: `src="/img/x.png" src="/zhs/media/x.ogg"`, want: "/zhs/media/x.ogg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pickAudio(tt.back))
		})
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `<a class="query" href="/x">red</a>`, want: "red"},
		{in: `<span class="x-h dx-h"><b>bold</b></span>`, want: "<b>bold</b>"},
		{in: `<a href="/x"></a>`, want: ""},
		{in: `<a href="/x">`, want: `<a href="/x">`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, unwrap(tt.in), tt.in)
	}
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "rock n roll", normalize("Rock-'n'-Roll"))
	require.Equal(t, "and or", normalize("and/or"))
	require.Equal(t, "ice cream", normalize("  ice   cream "))
}
