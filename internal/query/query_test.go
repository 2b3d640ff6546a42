package query

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/catalog/catalogtest"
)

const sample = `<html><body>
<span id="collection_description">First line<br>Second <b>bold</b> line</span>
<ul><li><span class="a-list-item"><span class="a-text-bold">Publisher :</span>
  <span>Example House</span></span></li></ul>
<a id="itemBookTitle_1" href="/gp/product/B000000001">one</a>
<a id="itemBookTitle_x" href="/gp/product/B000000009">skip</a>
<a id="itemBookTitle_2" href="/gp/product/B000000002">two</a>
<div id="desc"><span class="a-expander">wrapped</span><span>plain text</span></div>
<script>var ignored = 1;</script>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse([]byte(sample))
	require.NoError(t, err)
	return doc
}

func TestTextJoinsNodesWithSeparator(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	got := Text(doc.ByID("span", "collection_description"), "\n")
	require.Equal(t, "First line\nSecond \nbold\n line", got)
}

func TestStrippedTextSkipsBlankNodes(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	got := StrippedText(doc.Find("span.a-list-item"), " ")
	require.Equal(t, "Publisher : Example House", got)
}

func TestMatchingIDKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	sel := doc.MatchingID("a", regexp.MustCompile(`^itemBookTitle_\d+$`))
	require.Equal(t, 2, sel.Length())
	require.Equal(t, "/gp/product/B000000001", Attr(sel.Eq(0), "href"))
	require.Equal(t, "/gp/product/B000000002", Attr(sel.Eq(1), "href"))
}

func TestBareAndOuterHTML(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	spans := doc.Find("div#desc span")
	require.False(t, Bare(spans.Eq(0)))
	require.True(t, Bare(spans.Eq(1)))
	require.Equal(t, `<span>plain text</span>`, OuterHTML(spans.Eq(1)))
	require.Empty(t, OuterHTML(doc.Find("table")))
}

func TestEmptySelection(t *testing.T) {
	t.Parallel()

	doc := mustParse(t)
	require.Empty(t, Text(doc.Find("#missing"), " "))
	require.Empty(t, Attr(doc.Find("#missing"), "src"))
	require.False(t, doc.Has("#missing"))
	require.True(t, doc.Has("script"))
}

func TestFetchParsesOKResponses(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().
		Page("https://example.test/ok", sample).
		Script("https://example.test/busy", catalogtest.Status(http.StatusServiceUnavailable)).
		Script("https://example.test/down", catalogtest.Reply{Err: errors.New("connection reset")})
	ctx := context.Background()

	doc, err := Fetch(ctx, src, catalog.FetchRequest{URL: "https://example.test/ok"})
	require.NoError(t, err)
	require.True(t, doc.Has("span#collection_description"))

	_, err = Fetch(ctx, src, catalog.FetchRequest{URL: "https://example.test/busy"})
	var te *catalog.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusServiceUnavailable, te.StatusCode)

	_, err = Fetch(ctx, src, catalog.FetchRequest{URL: "https://example.test/down"})
	require.ErrorIs(t, err, catalog.ErrTransport)
	require.ErrorContains(t, err, "connection reset")
}
