package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/diogo/streamchat/internal/models"
)

func src(url, title string) models.Source {
	return models.Source{URL: url, Title: title}
}

func TestFilterSourcesCollapsesDuplicates(t *testing.T) {
	sources := []models.Source{
		src("https://a", "A"),
		src("https://b", "B"),
		src("https://a", "A again"),
		src("https://c", "C"),
		src("https://b", "B again"),
	}

	filtered, indexMap := FilterSources(sources)

	require.Len(t, filtered, 3)
	assert.Equal(t, "A", filtered[0].Title, "first occurrence wins")
	assert.Equal(t, "B", filtered[1].Title)
	assert.Equal(t, "C", filtered[2].Title)

	assert.Equal(t, map[int]int{0: 0, 1: 1, 2: 0, 3: 2, 4: 1}, indexMap)
}

func TestFilterSourcesEmpty(t *testing.T) {
	filtered, indexMap := FilterSources(nil)
	assert.Empty(t, filtered)
	assert.Empty(t, indexMap)
}

func TestResolveDuplicatesShareIndex(t *testing.T) {
	set := New([]models.Source{
		src("https://a", "A"),
		src("https://b", "B"),
		src("https://a", "A dup"),
	})

	segs := set.Resolve("x [0] y [2] z [^1]")

	var cites []int
	for _, s := range segs {
		if s.Cite {
			cites = append(cites, s.Index)
		}
	}
	assert.Equal(t, []int{0, 0, 1}, cites)
	assert.Equal(t, []int{0, 1}, set.Cited("x [0] y [2] z [^1]"))
}

func TestResolveOutOfRangeStaysText(t *testing.T) {
	set := New([]models.Source{src("https://a", "A")})

	segs := set.Resolve("ok [0] bad [7] also [${12}]")

	require.Len(t, segs, 3)
	assert.Equal(t, "ok ", segs[0].Text)
	assert.True(t, segs[1].Cite)
	assert.Equal(t, " bad [7] also [${12}]", segs[2].Text)
}

func TestResolveMarkerForms(t *testing.T) {
	set := New([]models.Source{src("https://a", ""), src("https://b", "")})

	tests := []struct {
		in   string
		want int
	}{
		{"[1]", 1},
		{"[^1]", 1},
		{"[$1]", 1},
		{"[${1}]", 1},
		{"[^1^]", 1},
		{"[^${0}^]", 0},
	}
	for _, tt := range tests {
		segs := set.Resolve(tt.in)
		require.Len(t, segs, 1, tt.in)
		assert.True(t, segs[0].Cite, tt.in)
		assert.Equal(t, tt.want, segs[0].Index, tt.in)
	}
}

func TestResolveNoSources(t *testing.T) {
	set := New(nil)
	segs := set.Resolve("plain [0] text")
	require.Len(t, segs, 1)
	assert.Equal(t, "plain [0] text", segs[0].Text)
	assert.Empty(t, set.Legend())
	assert.Empty(t, set.HTMLLegend())
}

func TestHTMLProducesCitationLinks(t *testing.T) {
	set := New([]models.Source{
		src("https://a.example/?q=1&r=2", `A "quoted"`),
		src("https://a.example/?q=1&r=2", "dup"),
	})

	out := set.HTML("<p>Claim [1] and [5].</p>")

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)

	var links []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			links = append(links, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	require.Len(t, links, 1)
	attrs := map[string]string{}
	for _, a := range links[0].Attr {
		attrs[a.Key] = a.Val
	}
	assert.Equal(t, "citation", attrs["class"])
	assert.Equal(t, "https://a.example/?q=1&r=2", attrs["href"])
	assert.Equal(t, `A "quoted"`, attrs["title"])
	assert.Equal(t, "[0]", links[0].FirstChild.Data)
	assert.Contains(t, out, "[5]")
}

func TestMarkdownAndLegend(t *testing.T) {
	set := New([]models.Source{src("https://a", "Alpha"), src("https://b", "")})

	assert.Equal(t, `see **\[1\]** and [9]`, set.Markdown("see [^1] and [9]"))

	legend := set.Legend()
	assert.Contains(t, legend, `\[0\] Alpha <https://a>`)
	assert.Contains(t, legend, `\[1\] <https://b>`)
}

func TestMarkdownLeavesCodeAlone(t *testing.T) {
	set := New([]models.Source{src("https://a", "Alpha"), src("https://b", "Beta")})

	in := "Use this [0]:\n\n" +
		"```go\nfirst := items[1]\n```\n\n" +
		"    second := items[0]\n\n" +
		"Index with `items[1]` as shown [1].\n"
	want := "Use this **\\[0\\]**:\n\n" +
		"```go\nfirst := items[1]\n```\n\n" +
		"    second := items[0]\n\n" +
		"Index with `items[1]` as shown **\\[1\\]**.\n"

	assert.Equal(t, want, set.Markdown(in))
	assert.Equal(t, []int{0, 1}, set.Cited(in))
	assert.Empty(t, set.Cited("```\nx[1]\n```\n"))
}

func TestHTMLLeavesCodeAlone(t *testing.T) {
	set := New([]models.Source{src("https://a", "Alpha"), src("https://b", "Beta")})

	in := `<p>See [1] and <code>items[0]</code>.</p>` +
		`<pre class="chroma"><code><span>first := items[1]</span></code></pre>`
	out := set.HTML(in)

	assert.Equal(t, 1, strings.Count(out, `class="citation"`))
	assert.Contains(t, out, `<code>items[0]</code>`)
	assert.Contains(t, out, `<span>first := items[1]</span>`)
}
