package resolver

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/catalog/catalogtest"
	"github.com/JakeFAU/series-collector/internal/identity"
)

const base = "https://www.example.jp"

const seriesPage = `<html><body><span id="collection-title">Series</span></body></html>`

const productPage = `<html><body>
<a class="a-link-normal" href="/gp/help">help</a>
<a class="a-link-normal" href="/dp/B0SERIES01?binding=kindle_edition&ref_=dbs_m_mng_rwt_sft_tkin_tpbk">more in series</a>
<a class="a-link-normal" href="/dp/B0OTHER001?ref_=dbs_second">second</a>
</body></html>`

const searchPage = `<html><body>
<div data-component-type="s-search-result">
  <img class="s-image" alt="Alpha Saga 1">
  <a class="a-link-normal s-underline-text s-underline-link-text s-link-style" href="/dp/ALPHA00001">x</a>
</div>
<div data-component-type="s-search-result">
  <img class="s-image" alt="no link here">
</div>
<div data-component-type="s-search-result">
  <img class="s-image" alt="Alpha Saga (文庫)">
  <a class="a-link-normal s-underline-text s-underline-link-text s-link-style" href="/dp/ALPHA00002">x</a>
</div>
<div data-component-type="s-search-result">
  <img class="s-image" alt="Beta">
  <a class="a-link-normal s-underline-text s-underline-link-text s-link-style" href="https://other.example.jp/dp/BETA000001">x</a>
</div>
</body></html>`

func searchURL(text string) string {
	return base + "/s?k=" + url.QueryEscape(text) + "&i=digital-text"
}

func newResolver(src catalog.PageSource, sim SimilarityFunc) *Resolver {
	cfg := DefaultConfig(base)
	cfg.Similarity = sim
	return New(src, identity.NewRoundRobin("agent-test"), cfg, nil)
}

func fixedScores(scores map[string]float64) SimilarityFunc {
	return func(_, label string) float64 {
		return scores[label]
	}
}

func TestResolveSeriesURLStripsLocale(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(base+"/dp/B0SERIES01?binding=kindle_edition", seriesPage)
	got, err := newResolver(src, nil).Resolve(context.Background(),
		base+"/dp/B0SERIES01?binding=kindle_edition&language=zh_TW")
	require.NoError(t, err)
	require.Equal(t, base+"/dp/B0SERIES01?binding=kindle_edition", got)
}

func TestResolveProductURLFollowsSeriesLink(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(base+"/dp/B0BOOK0001", productPage)
	got, err := newResolver(src, nil).Resolve(context.Background(), base+"/dp/B0BOOK0001")
	require.NoError(t, err)
	require.Equal(t, base+"/dp/B0SERIES01?binding=kindle_edition&ref_=dbs_m_mng_rwt_sft_tkin_tpbk", got)
}

func TestResolveProductURLWithoutSeriesLink(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(base+"/dp/B0BOOK0001", `<html><a class="a-link-normal" href="/x">x</a></html>`)
	_, err := newResolver(src, nil).Resolve(context.Background(), base+"/dp/B0BOOK0001")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveURLTransportFailure(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Script(base+"/dp/B0BOOK0001", catalogtest.Status(http.StatusServiceUnavailable))
	_, err := newResolver(src, nil).Resolve(context.Background(), base+"/dp/B0BOOK0001")
	require.ErrorIs(t, err, catalog.ErrTransport)
	require.Equal(t, 1, src.Count(base+"/dp/B0BOOK0001"), "transport failures are not retried here")
}

func TestResolveEmptyQuery(t *testing.T) {
	t.Parallel()

	_, err := newResolver(catalogtest.NewSource(), nil).Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveSearchPrefersPaperbackWithinWindow(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(searchURL("Alpha Saga"), searchPage)
	sim := fixedScores(map[string]float64{
		"Alpha Saga 1":      0.9,
		"Alpha Saga (文庫)": 0.75,
		"Beta":              0.1,
	})
	got, err := newResolver(src, sim).Resolve(context.Background(), "  Alpha   Saga ")
	require.NoError(t, err)
	require.Equal(t, base+"/dp/ALPHA00002", got)

	calls := src.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "agent-test", calls[0].Headers.Get("User-Agent"))
}

func TestResolveSearchTopWinsOutsideWindow(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(searchURL("Alpha Saga"), searchPage)
	sim := fixedScores(map[string]float64{
		"Alpha Saga 1":      0.9,
		"Alpha Saga (文庫)": 0.7,
	})
	got, err := newResolver(src, sim).Resolve(context.Background(), "Alpha Saga")
	require.NoError(t, err)
	require.Equal(t, base+"/dp/ALPHA00001", got)
}

func TestSelectThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{{Label: "only", URL: base + "/dp/ONLY000001"}}

	r := newResolver(nil, fixedScores(map[string]float64{"only": 0.3}))
	_, err := r.Select("query", candidates)
	require.ErrorIs(t, err, catalog.ErrNoMatch)

	r = newResolver(nil, fixedScores(map[string]float64{"only": 0.31}))
	got, err := r.Select("query", candidates)
	require.NoError(t, err)
	require.Equal(t, base+"/dp/ONLY000001", got.URL)
	require.InDelta(t, 0.31, got.Score, 1e-9)
}

func TestSelectNoCandidates(t *testing.T) {
	t.Parallel()

	_, err := newResolver(nil, nil).Select("query", nil)
	require.ErrorIs(t, err, catalog.ErrNoMatch)
}

func TestSelectStableForEqualScores(t *testing.T) {
	t.Parallel()

	r := newResolver(nil, fixedScores(map[string]float64{"a": 0.8, "b": 0.8}))
	got, err := r.Select("q", []Candidate{{Label: "a", URL: "u1"}, {Label: "b", URL: "u2"}})
	require.NoError(t, err)
	require.Equal(t, "u1", got.URL)
}

func TestResolveSearchWithDefaultSimilarity(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(searchURL("Beta"), searchPage)
	got, err := newResolver(src, nil).Resolve(context.Background(), "Beta")
	require.NoError(t, err)
	require.Equal(t, "https://other.example.jp/dp/BETA000001", got)
}

func TestResolveSearchNoResults(t *testing.T) {
	t.Parallel()

	src := catalogtest.NewSource().Page(searchURL("zzz"), `<html><body></body></html>`)
	_, err := newResolver(src, nil).Resolve(context.Background(), "zzz")
	require.ErrorIs(t, err, catalog.ErrNoMatch)
}

func TestResolveSearchAcceptsLongStorefrontLabel(t *testing.T) {
	t.Parallel()

	const query = "魔法科高校の劣等生"
	src := catalogtest.NewSource().Page(searchURL(query), `<html><body>
<div data-component-type="s-search-result">
  <img class="s-image" alt="魔法科高校の劣等生 (1) 入学編〈上〉 (電撃文庫) Kindle版">
  <a class="a-link-normal s-underline-text s-underline-link-text s-link-style" href="/dp/B00MAHOUKA">x</a>
</div>
</body></html>`)

	got, err := newResolver(src, nil).Resolve(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, base+"/dp/B00MAHOUKA", got)
}
