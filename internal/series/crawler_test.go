package series

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/catalog/catalogtest"
	"github.com/JakeFAU/series-collector/internal/clock/manual"
	"github.com/JakeFAU/series-collector/internal/identity"
	"github.com/JakeFAU/series-collector/internal/progress"
)

const seriesURL = "https://www.example.jp/dp/B0SERIES01?binding=kindle_edition"

func listingItems(ids ...string) string {
	var b strings.Builder
	for i, id := range ids {
		fmt.Fprintf(&b, `<a id="itemBookTitle_%d" href="/gp/product/%s?ref_=dbs_p_ebk_r00_abcntp00">Vol %d</a>`+"\n", i+1, id, i+1)
	}
	return b.String()
}

func firstPage(size string, ids ...string) string {
	return `<html><body>
<img id="seriesImageBlock" src="https://img.example.jp/series.jpg">
<span id="collection-title">
  Alpha Saga
</span>
<span id="collection_description">First paragraph.<br>Second <b>bold</b> paragraph.</span>
<span class="a-declarative" data-action="a-popover" data-a-popover="{&quot;name&quot;:&quot;contributor\r\nTaro Yamada (Author)&quot;}">Taro Yamada</span>
<span class="a-declarative" data-action="a-popover"><a href="/e/1">Hanako Sato</a>（イラスト）</span>
<span class="a-declarative" data-action="a-popover"><a href="/e/2">山田 太郎</a>（著）</span>
<span class="a-declarative" data-action="a-popover"><a href="/e/3">Taro Yamada</a> (Author)</span>
<span class="a-declarative" data-action="a-popover"><a href="/e/4">Jiro Suzuki</a> 著, 他</span>
<span class="a-declarative" data-action="a-popover">著者紹介</span>
<span class="a-declarative" data-action="a-popover">Sort by: Newest</span>
` + size + listingItems(ids...) + `
<a id="itemBookTitle_x" href="/gp/product/B0IGNORED1">no digits</a>
<a id="somethingElse_1" href="/gp/product/B0IGNORED2">wrong id</a>
<a id="itemBookTitle_99" href="/dp/B0IGNORED3">wrong href</a>
</body></html>`
}

func pageURL(n int) string {
	u, err := catalog.WithPage(seriesURL, n)
	if err != nil {
		panic(err)
	}
	return u
}

func newCrawler(src catalog.PageSource, clk catalog.Clock, rec progress.Emitter) *Crawler {
	return New(src, identity.NewRoundRobin("agent-test"), clk, DefaultConfig(), rec, nil)
}

func TestCrawlSinglePage(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(seriesURL,
		firstPage(`<span id="collection-size">(3 books)</span>`, "B000000001", "B000000002", "B000000001"))
	clk := manual.New(time.Unix(0, 0))
	rec := &progress.Recorder{}

	info, err := newCrawler(src, clk, rec).Crawl(context.Background(), seriesURL+"&language=en_US")
	require.NoError(t, err)

	want := catalog.SeriesInfo{
		Title:        "Alpha Saga",
		ImageURL:     "https://img.example.jp/series.jpg",
		Description:  "First paragraph.\nSecond \nbold\n paragraph.",
		Authors:      catalog.Names{"Taro Yamada", "山田 太郎", "Jiro Suzuki"},
		Illustrators: catalog.Names{"Hanako Sato"},
		BookIDs:      []string{"B000000001", "B000000002"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("series info mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, clk.Sleeps(), "single page needs no courtesy pause")
	require.Equal(t, []string{seriesURL}, src.URLs())
	require.Equal(t, 1, rec.Count(progress.StageSeriesPage))
}

func TestCrawlPaginatesWithDelay(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().
		Page(seriesURL, firstPage(`<span id="collection-size">全23巻</span>`, "B000000001", "B000000002")).
		Page(pageURL(2), `<html>`+listingItems("B000000002", "B000000003")+`</html>`).
		Page(pageURL(3), `<html>`+listingItems("B000000004")+`</html>`)
	clk := manual.New(time.Unix(0, 0))
	rec := &progress.Recorder{}

	info, err := newCrawler(src, clk, rec).Crawl(context.Background(), seriesURL)
	require.NoError(t, err)
	require.Equal(t, []string{"B000000001", "B000000002", "B000000003", "B000000004"}, info.BookIDs)
	require.Equal(t, []time.Duration{time.Second, time.Second}, clk.Sleeps())
	require.Equal(t, []string{seriesURL, pageURL(2), pageURL(3)}, src.URLs())
	require.Equal(t, 3, rec.Count(progress.StageSeriesPage))
	require.Contains(t, pageURL(2), "pageNumber=2")
	require.Contains(t, pageURL(2), "binding=kindle_edition")
}

func TestCrawlSkipsFailedLaterPage(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().
		Page(seriesURL, firstPage(`<span id="collection-size">30</span>`, "B000000001")).
		Script(pageURL(2), catalogtest.Status(http.StatusServiceUnavailable)).
		Page(pageURL(3), `<html>`+listingItems("B000000003")+`</html>`)

	info, err := newCrawler(src, manual.New(time.Unix(0, 0)), nil).Crawl(context.Background(), seriesURL)
	require.NoError(t, err)
	require.Equal(t, []string{"B000000001", "B000000003"}, info.BookIDs)
	require.Equal(t, 1, src.Count(pageURL(2)), "failed pages are not retried")
}

func TestCrawlExactlyOnePageAtBoundary(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(seriesURL, firstPage(`<span id="collection-size">10</span>`, "B000000001"))
	clk := manual.New(time.Unix(0, 0))

	_, err := newCrawler(src, clk, nil).Crawl(context.Background(), seriesURL)
	require.NoError(t, err)
	require.Len(t, src.URLs(), 1)
	require.Empty(t, clk.Sleeps())
}

func TestCrawlFirstPageFailure(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Script(seriesURL, catalogtest.Status(http.StatusInternalServerError))
	_, err := newCrawler(src, manual.New(time.Unix(0, 0)), nil).Crawl(context.Background(), seriesURL)
	require.ErrorIs(t, err, catalog.ErrTransport)
}

func TestCrawlCanceledBetweenPagesKeepsFirstPage(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(seriesURL, firstPage(`<span id="collection-size">25</span>`, "B000000001"))
	ctx, cancel := context.WithCancel(context.Background())
	clk := manual.New(time.Unix(0, 0))
	clk.OnSleep = func(int, time.Duration) { cancel() }

	info, err := newCrawler(src, clk, nil).Crawl(ctx, seriesURL)
	require.NoError(t, err)
	require.Equal(t, "Alpha Saga", info.Title)
	require.Equal(t, []string{"B000000001"}, info.BookIDs)
	require.Equal(t, []string{seriesURL}, src.URLs())
}

func TestNameBefore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: `<span>Jane Doe (Author)</span>`, want: "Jane Doe", ok: true},
		{raw: `{"x":"a\r\nJane Doe (Author)"}`, want: "Jane Doe", ok: true},
		{raw: `<a>Tom &amp; Jerry</a>（著）`, want: "Tom & Jerry", ok: true},
		{raw: `<span data-x="{&#34;n&#34;:&#34;Jane Doe (Author)&#34;}">x</span>`, want: "Jane Doe", ok: true},
		{raw: `<span>(Author)</span>`, ok: false},
		{raw: `<span>Jane Doe</span>`, ok: false},
	}
	for _, tt := range tests {
		got, ok := nameBefore(tt.raw, authorMarkers)
		require.Equal(t, tt.ok, ok, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}
}
