package section

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MultiSection is a node of the parse result tree.
type MultiSection[T any] struct {
	keys     map[string][]T
	sec      map[string][]*MultiSection[T]
	keyOrder []string
	secOrder []string
}

// Section is the tree shape plugins produce: every value is raw text.
type Section = MultiSection[string]

// New creates an empty section.
func New[T any]() *MultiSection[T] {
	return &MultiSection[T]{}
}

// AddField appends value to the values of key.
func (s *MultiSection[T]) AddField(key string, value T) {
	if s.keys == nil {
		s.keys = make(map[string][]T)
	}
	vals, ok := s.keys[key]
	if !ok {
		s.keyOrder = append(s.keyOrder, key)
	}
	s.keys[key] = append(vals, value)
}

// AddSection appends child to the subsections named key.
// The caller hands over ownership of child.
func (s *MultiSection[T]) AddSection(key string, child *MultiSection[T]) {
	if child == nil {
		return
	}
	if s.sec == nil {
		s.sec = make(map[string][]*MultiSection[T])
	}
	secs, ok := s.sec[key]
	if !ok {
		s.secOrder = append(s.secOrder, key)
	}
	s.sec[key] = append(secs, child)
}

// Fields returns the key to values mapping.
// The result is a copy; modifying it does not affect s.
func (s *MultiSection[T]) Fields() map[string][]T {
	out := make(map[string][]T, len(s.keys))
	for k, v := range s.keys {
		out[k] = slices.Clone(v)
	}
	return out
}

// Subsections returns the key to child sections mapping.
// The mapping is a copy but the children are shared with s.
func (s *MultiSection[T]) Subsections() map[string][]*MultiSection[T] {
	out := make(map[string][]*MultiSection[T], len(s.sec))
	for k, v := range s.sec {
		out[k] = slices.Clone(v)
	}
	return out
}

// Keys returns field keys in first-insertion order.
func (s *MultiSection[T]) Keys() []string {
	return slices.Clone(s.keyOrder)
}

// SectionKeys returns subsection names in first-insertion order.
func (s *MultiSection[T]) SectionKeys() []string {
	return slices.Clone(s.secOrder)
}

// Values returns the values recorded for key, in insertion order.
func (s *MultiSection[T]) Values(key string) []T {
	return slices.Clone(s.keys[key])
}

// Value returns the first value recorded for key.
func (s *MultiSection[T]) Value(key string) (T, bool) {
	vals := s.keys[key]
	if len(vals) == 0 {
		var zero T
		return zero, false
	}
	return vals[0], true
}

// Sections returns the subsections named key, in insertion order.
func (s *MultiSection[T]) Sections(key string) []*MultiSection[T] {
	return slices.Clone(s.sec[key])
}

// Section returns the first subsection named key.
func (s *MultiSection[T]) Section(key string) (*MultiSection[T], bool) {
	secs := s.sec[key]
	if len(secs) == 0 {
		return nil, false
	}
	return secs[0], true
}

// Find follows path through first-matching subsections.
func (s *MultiSection[T]) Find(path ...string) (*MultiSection[T], bool) {
	cur := s
	for _, name := range path {
		next, ok := cur.Section(name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Len returns the number of field keys plus subsection names.
func (s *MultiSection[T]) Len() int {
	return len(s.keyOrder) + len(s.secOrder)
}

// IsEmpty reports whether s has neither fields nor subsections.
func (s *MultiSection[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Count returns the number of nodes in the tree rooted at s.
func (s *MultiSection[T]) Count() int {
	n := 1
	for _, k := range s.secOrder {
		for _, child := range s.sec[k] {
			n += child.Count()
		}
	}
	return n
}

// Walk visits s and every descendant depth-first in insertion order.
// path holds the subsection names from s to the visited node.
// Returning an error from fn stops the walk.
func (s *MultiSection[T]) Walk(fn func(path []string, node *MultiSection[T]) error) error {
	return s.walk(nil, fn)
}

func (s *MultiSection[T]) walk(path []string, fn func([]string, *MultiSection[T]) error) error {
	if err := fn(path, s); err != nil {
		return err
	}
	for _, k := range s.secOrder {
		for _, child := range s.sec[k] {
			if err := child.walk(append(slices.Clip(path), k), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Map returns a new tree with f applied to every value.
// Keys, ordering and nesting are preserved; s is not modified.
func Map[T, U any](s *MultiSection[T], f func(T) U) *MultiSection[U] {
	out, _ := MapErr(s, func(v T) (U, error) { return f(v), nil })
	return out
}

// PathError reports the value MapErr failed to convert.
type PathError struct {
	Err   error
	Key   string
	Path  []string
	Index int
}

func (e *PathError) Error() string {
	loc := e.Key
	if len(e.Path) > 0 {
		loc = strings.Join(e.Path, ".") + "." + e.Key
	}
	return fmt.Sprintf("convert %s[%d]: %v", loc, e.Index, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// MapErr is Map with a fallible conversion. The first failure stops the
// conversion and is returned as a *PathError.
func MapErr[T, U any](s *MultiSection[T], f func(T) (U, error)) (*MultiSection[U], error) {
	return mapErr(s, nil, f)
}

func mapErr[T, U any](s *MultiSection[T], path []string, f func(T) (U, error)) (*MultiSection[U], error) {
	out := &MultiSection[U]{
		keyOrder: slices.Clone(s.keyOrder),
		secOrder: slices.Clone(s.secOrder),
	}
	if len(s.keys) > 0 {
		out.keys = make(map[string][]U, len(s.keys))
		for _, k := range s.keyOrder {
			src := s.keys[k]
			dst := make([]U, len(src))
			for i, v := range src {
				u, err := f(v)
				if err != nil {
					return nil, &PathError{Path: slices.Clone(path), Key: k, Index: i, Err: err}
				}
				dst[i] = u
			}
			out.keys[k] = dst
		}
	}
	if len(s.sec) > 0 {
		out.sec = make(map[string][]*MultiSection[U], len(s.sec))
		for _, k := range s.secOrder {
			src := s.sec[k]
			dst := make([]*MultiSection[U], len(src))
			for i, child := range src {
				c, err := mapErr(child, append(slices.Clip(path), k), f)
				if err != nil {
					return nil, err
				}
				dst[i] = c
			}
			out.sec[k] = dst
		}
	}
	return out, nil
}

// Equal reports whether a and b hold the same keys, values and nesting in
// the same order.
func Equal[T comparable](a, b *MultiSection[T]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !slices.Equal(a.keyOrder, b.keyOrder) || !slices.Equal(a.secOrder, b.secOrder) {
		return false
	}
	if !maps.EqualFunc(a.keys, b.keys, slices.Equal[[]T]) {
		return false
	}
	return maps.EqualFunc(a.sec, b.sec, func(x, y []*MultiSection[T]) bool {
		return slices.EqualFunc(x, y, Equal[T])
	})
}
