package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/inview/internal/inview"
)

const sample = `
[viewport]
width = 80
height = 24

[[node]]
id = "header"
class = "banner"
x = 0
y = 0
width = 80
height = 3

[[node]]
id = "first"
kind = "card"
class = "card wide"
label = "First card"
x = 2
y = 10
width = 40
height = 6

[[node]]
id = "second"
kind = "card"
class = "card"
x = 2
y = 40
width = 40
height = 6

[[node]]
class = "footer"
x = 0
y = 95
width = 80
height = 5
`

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ElementID()
	}
	return out
}

func TestParse(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)

	nodes := d.Nodes()
	require.Len(t, nodes, 4)
	assert.Equal(t, "header", nodes[0].ElementID())
	assert.Equal(t, DefaultKind, nodes[0].Kind())
	assert.Equal(t, "card", nodes[1].Kind())
	assert.Equal(t, []string{"card", "wide"}, nodes[1].Classes())
	assert.Equal(t, "First card", nodes[1].Label())
	assert.Equal(t, "second", nodes[2].Label(), "label falls back to id")
	assert.NotEmpty(t, nodes[3].ElementID(), "missing ids are generated")
	assert.Equal(t, inview.RectFromXYWH(2, 10, 40, 6), nodes[1].Rect())
	assert.Equal(t, inview.Size{Width: 80, Height: 24}, d.Viewport())

	w, h := d.Extent()
	assert.Equal(t, 80.0, w)
	assert.Equal(t, 100.0, h)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "[[node]\nid = 1"},
		{"duplicate id", "[[node]]\nid = \"a\"\n[[node]]\nid = \"a\""},
		{"negative size", "[[node]]\nid = \"a\"\nwidth = -1"},
		{"wrong type", "[[node]]\nx = \"left\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.toml", []byte(tt.data))
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "bad.toml", perr.Path)
			assert.Contains(t, err.Error(), "bad.toml")
		})
	}
}

func TestParse_DefaultViewport(t *testing.T) {
	d, err := Parse("empty", nil)
	require.NoError(t, err)
	assert.Equal(t, inview.Size{Width: DefaultWidth, Height: DefaultHeight}, d.Viewport())
	assert.Empty(t, d.Nodes())
}

func TestDocument_Select(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []string
	}{
		{"#header", []string{"header"}},
		{".card", []string{"first", "second"}},
		{".card.wide", []string{"first"}},
		{"card", []string{"first", "second"}},
		{"card#second", []string{"second"}},
		{"box.banner", []string{"header"}},
		{".wide, #header", []string{"header", "first"}},
		{"#second,#second", []string{"second"}},
		{".missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			nodes, err := d.Select(tt.query)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, nodes)
				return
			}
			assert.Equal(t, tt.want, ids(nodes))
		})
	}

	all, err := d.Select("*")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDocument_SelectInvalid(t *testing.T) {
	d := New(10, 10)
	for _, q := range []string{"", ",", "#", ".a.", "#a#b", "div > p", "a[href]", ".a b"} {
		_, err := d.Select(q)
		var serr *SelectorError
		assert.ErrorAs(t, err, &serr, "%q", q)
		assert.Nil(t, d.Query(q))
	}
}

func TestDocument_QueryReturnsStableElements(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)

	first := d.Query(".card")
	second := d.Query(".card")
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Same(t, first[0].(*Node), second[0].(*Node))
}

func TestDocument_BoundsFollowScroll(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)
	n, ok := d.Node("second")
	require.True(t, ok)

	assert.Equal(t, 40.0, d.Bounds(n).Top)

	assert.True(t, d.ScrollBy(0, 30))
	assert.Equal(t, inview.RectFromXYWH(2, 10, 40, 6), d.Bounds(n))

	assert.False(t, d.ScrollBy(0, 0))
	assert.Equal(t, inview.Rect{}, d.Bounds(fakeElement("x")))
}

func TestDocument_ScrollClamps(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)

	d.ScrollTo(-10, 1000)
	x, y := d.Scroll()
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 76.0, y, "content height 100 minus viewport 24")

	d.Resize(100, 50)
	_, y = d.Scroll()
	assert.Equal(t, 50.0, y)

	d.Resize(0, -1)
	assert.Equal(t, inview.Size{Width: DefaultWidth, Height: DefaultHeight}, d.Viewport())
}

func TestDocument_VisibilityThroughController(t *testing.T) {
	d, err := Parse("sample", []byte(sample))
	require.NoError(t, err)

	c := inview.New(inview.WithSource(d), inview.WithGeometry(d))
	var entered, exited []string
	c.Resolve(".card").
		On(inview.EventEnter, inview.Notify(func(el inview.Element) { entered = append(entered, el.ElementID()) })).
		On(inview.EventExit, inview.Notify(func(el inview.Element) { exited = append(exited, el.ElementID()) }))

	require.NoError(t, c.CheckAll())
	assert.Equal(t, []string{"first"}, entered)

	d.ScrollTo(0, 30)
	require.NoError(t, c.CheckAll())
	assert.Equal(t, []string{"first", "second"}, entered)
	assert.Equal(t, []string{"first"}, exited)
}

func TestDocument_AddRemove(t *testing.T) {
	d := New(80, 24)
	n, err := d.Add("", "", "card new", inview.RectFromXYWH(0, 0, 5, 5))
	require.NoError(t, err)
	assert.NotEmpty(t, n.ElementID())
	assert.Equal(t, DefaultKind, n.Kind())
	assert.True(t, n.HasClass("new"))

	_, err = d.Add(n.ElementID(), "", "", inview.Rect{})
	assert.Error(t, err)

	assert.True(t, d.Remove(n.ElementID()))
	assert.False(t, d.Remove(n.ElementID()))
	assert.Empty(t, d.Nodes())
}

func TestDocument_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())
	first, _ := d.Node("first")
	d.ScrollTo(0, 70)

	updated := `
[[node]]
id = "first"
class = "card moved"
x = 2
y = 12
width = 40
height = 6

[[node]]
id = "third"
class = "card"
x = 0
y = 30
width = 10
height = 2
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, d.Reload())

	again, ok := d.Node("first")
	require.True(t, ok)
	assert.Same(t, first, again, "surviving nodes keep their identity")
	assert.Equal(t, 12.0, again.Rect().Top)
	assert.True(t, again.HasClass("moved"))

	_, ok = d.Node("second")
	assert.False(t, ok)
	assert.Equal(t, []string{"first", "third"}, ids(d.Nodes()))

	_, y := d.Scroll()
	assert.Equal(t, 8.0, y, "scroll clamped to the smaller extent")
	assert.Equal(t, inview.Size{Width: 80, Height: 24}, d.Viewport(), "viewport kept")
}

func TestDocument_ReloadErrors(t *testing.T) {
	assert.Error(t, New(10, 10).Reload())

	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	d, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[[node"), 0o644))
	var perr *ParseError
	assert.ErrorAs(t, d.Reload(), &perr)
	assert.Len(t, d.Nodes(), 4, "failed reload keeps the previous nodes")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeElement string

func (f fakeElement) ElementID() string { return string(f) }
