package section

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildScenario() *Section {
	root := New[string]()
	root.AddField("a", "1")
	root.AddField("a", "2")
	child := New[string]()
	child.AddField("x", "3")
	root.AddSection("b", child)
	return root
}

func TestFieldsPreserveOrder(t *testing.T) {
	s := New[string]()
	s.AddField("k", "v1")
	s.AddField("other", "o")
	s.AddField("k", "v2")
	s.AddField("k", "v3")

	assert.Equal(t, []string{"v1", "v2", "v3"}, s.Values("k"))
	assert.Equal(t, []string{"k", "other"}, s.Keys())
	assert.Equal(t, map[string][]string{"k": {"v1", "v2", "v3"}, "other": {"o"}}, s.Fields())
}

func TestScenarioShape(t *testing.T) {
	root := buildScenario()

	assert.Equal(t, map[string][]string{"a": {"1", "2"}}, root.Fields())

	subs := root.Subsections()
	require.Len(t, subs, 1)
	require.Len(t, subs["b"], 1)

	node := subs["b"][0]
	assert.Equal(t, map[string][]string{"x": {"3"}}, node.Fields())
	assert.Empty(t, node.Subsections())
	assert.Equal(t, 2, root.Count())
}

func TestFieldsIsACopy(t *testing.T) {
	s := New[string]()
	s.AddField("k", "v")

	f := s.Fields()
	f["k"][0] = "changed"
	f["new"] = []string{"x"}

	assert.Equal(t, []string{"v"}, s.Values("k"))
	_, ok := s.Value("new")
	assert.False(t, ok)

	vals := s.Values("k")
	vals[0] = "changed"
	assert.Equal(t, "v", mustValue(t, s, "k"))
}

func TestRepeatedSubsections(t *testing.T) {
	root := New[string]()
	for i := range 3 {
		c := New[string]()
		c.AddField("n", strconv.Itoa(i))
		root.AddSection("server", c)
	}

	secs := root.Sections("server")
	require.Len(t, secs, 3)
	for i, c := range secs {
		assert.Equal(t, strconv.Itoa(i), mustValue(t, c, "n"))
	}

	first, ok := root.Section("server")
	require.True(t, ok)
	assert.Same(t, secs[0], first)
}

func TestAddSectionNilIgnored(t *testing.T) {
	s := New[string]()
	s.AddSection("x", nil)
	assert.True(t, s.IsEmpty())
}

func TestFind(t *testing.T) {
	root := New[string]()
	mid := New[string]()
	leaf := New[string]()
	leaf.AddField("deep", "yes")
	mid.AddSection("leaf", leaf)
	root.AddSection("mid", mid)

	got, ok := root.Find("mid", "leaf")
	require.True(t, ok)
	assert.Equal(t, "yes", mustValue(t, got, "deep"))

	_, ok = root.Find("mid", "missing")
	assert.False(t, ok)

	self, ok := root.Find()
	require.True(t, ok)
	assert.Same(t, root, self)
}

func TestWalkOrderAndPaths(t *testing.T) {
	root := New[string]()
	a := New[string]()
	a1 := New[string]()
	a.AddSection("inner", a1)
	root.AddSection("a", a)
	root.AddSection("b", New[string]())

	var paths [][]string
	err := root.Walk(func(path []string, _ *Section) error {
		paths = append(paths, append([]string(nil), path...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{nil, {"a"}, {"a", "inner"}, {"b"}}, paths)

	stop := errors.New("stop")
	visited := 0
	err = root.Walk(func([]string, *Section) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, visited)
}

func TestMapPreservesShape(t *testing.T) {
	root := buildScenario()

	mapped := Map(root, func(v string) int {
		n, _ := strconv.Atoi(v)
		return n * 10
	})

	assert.Equal(t, []int{10, 20}, mapped.Values("a"))
	child, ok := mapped.Section("b")
	require.True(t, ok)
	assert.Equal(t, []int{30}, child.Values("x"))
	assert.Equal(t, root.Keys(), mapped.Keys())
	assert.Equal(t, root.SectionKeys(), mapped.SectionKeys())

	// source untouched
	assert.Equal(t, []string{"1", "2"}, root.Values("a"))
}

func TestMapErrReportsPath(t *testing.T) {
	root := New[string]()
	child := New[string]()
	child.AddField("port", "80")
	child.AddField("port", "eighty")
	root.AddSection("server", child)

	_, err := MapErr(root, strconv.Atoi)
	require.Error(t, err)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"server"}, pe.Path)
	assert.Equal(t, "port", pe.Key)
	assert.Equal(t, 1, pe.Index)
	assert.ErrorIs(t, err, strconv.ErrSyntax)
	assert.Contains(t, err.Error(), "server.port[1]")
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(buildScenario(), buildScenario()))

	other := buildScenario()
	other.AddField("a", "3")
	assert.False(t, Equal(buildScenario(), other))

	reordered := New[string]()
	reordered.AddField("a", "2")
	reordered.AddField("a", "1")
	c := New[string]()
	c.AddField("x", "3")
	reordered.AddSection("b", c)
	assert.False(t, Equal(buildScenario(), reordered))

	assert.True(t, Equal[string](nil, nil))
	assert.False(t, Equal(buildScenario(), nil))
	assert.True(t, Equal(New[string](), New[string]()))
}

func mustValue[T any](t *testing.T, s *MultiSection[T], key string) T {
	t.Helper()
	v, ok := s.Value(key)
	require.True(t, ok, "missing key %q", key)
	return v
}
