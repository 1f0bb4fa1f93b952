package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/dyparser/section"
)

const (
	formatTree = "tree"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

var (
	rootStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	enumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func render(w io.Writer, root *section.Section, format string) error {
	switch format {
	case formatTree:
		_, err := fmt.Fprintln(w, treeOf(rootStyle.Render("."), root))
		return err
	case formatJSON:
		out, err := sonic.ConfigStd.MarshalIndent(plain(root), "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case formatYAML:
		out, err := yaml.Marshal(ordered(root))
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case formatTOML:
		out, err := toml.Marshal(plain(root))
		if err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

func treeOf(label string, s *section.Section) *tree.Tree {
	t := tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumStyle)
	for _, k := range s.Keys() {
		for _, v := range s.Values(k) {
			t.Child(keyStyle.Render(k) + " = " + valueStyle.Render(strconv.Quote(v)))
		}
	}
	for _, k := range s.SectionKeys() {
		for _, child := range s.Sections(k) {
			t.Child(treeOf(sectionStyle.Render("["+k+"]"), child))
		}
	}
	return t
}

// plain converts s to maps of lists. A key used for both fields and
// subsections lists the field values first.
func plain(s *section.Section) map[string]any {
	out := make(map[string]any, s.Len())
	for _, k := range s.Keys() {
		vals := s.Values(k)
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		out[k] = list
	}
	for _, k := range s.SectionKeys() {
		list, _ := out[k].([]any)
		for _, child := range s.Sections(k) {
			list = append(list, plain(child))
		}
		out[k] = list
	}
	return out
}

// ordered is plain with insertion order kept.
func ordered(s *section.Section) yaml.MapSlice {
	var out yaml.MapSlice
	index := make(map[string]int)
	for _, k := range s.Keys() {
		vals := s.Values(k)
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		index[k] = len(out)
		out = append(out, yaml.MapItem{Key: k, Value: list})
	}
	for _, k := range s.SectionKeys() {
		var list []any
		i, ok := index[k]
		if ok {
			list = out[i].Value.([]any)
		}
		for _, child := range s.Sections(k) {
			list = append(list, ordered(child))
		}
		if ok {
			out[i].Value = list
			continue
		}
		out = append(out, yaml.MapItem{Key: k, Value: list})
	}
	return out
}
