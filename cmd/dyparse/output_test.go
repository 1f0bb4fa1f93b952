package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/dyparser/section"
)

func sample() *section.Section {
	root := section.New[string]()
	root.AddField("name", "demo")
	root.AddField("port", "80")
	root.AddField("port", "81")
	db := section.New[string]()
	db.AddField("driver", "sqlite")
	root.AddSection("database", db)
	return root
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sample(), formatJSON); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `{
  "database": [
    {
      "driver": [
        "sqlite"
      ]
    }
  ],
  "name": [
    "demo"
  ],
  "port": [
    "80",
    "81"
  ]
}
`
	if buf.String() != want {
		t.Errorf("json:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRender_YAMLKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sample(), formatYAML); err != nil {
		t.Fatalf("render: %v", err)
	}

	var back yaml.MapSlice
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("yaml output does not parse: %v\n%s", err, buf.String())
	}
	var keys []string
	for _, item := range back {
		keys = append(keys, item.Key.(string))
	}
	if got := strings.Join(keys, ","); got != "name,port,database" {
		t.Errorf("key order = %s", got)
	}
}

func TestRender_TOML(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sample(), formatTOML); err != nil {
		t.Fatalf("render: %v", err)
	}

	var back map[string]any
	if err := toml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("toml output does not parse: %v\n%s", err, buf.String())
	}
	ports, _ := back["port"].([]any)
	if len(ports) != 2 || ports[0] != "80" || ports[1] != "81" {
		t.Errorf("port = %v", back["port"])
	}
}

func TestRender_Tree(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, sample(), formatTree); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`name = "demo"`, `port = "81"`, "[database]", `driver = "sqlite"`} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	if err := render(&bytes.Buffer{}, sample(), "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPlain_SharedKey(t *testing.T) {
	s := section.New[string]()
	s.AddField("k", "v")
	s.AddSection("k", section.New[string]())

	list := plain(s)["k"].([]any)
	if len(list) != 2 || list[0] != "v" {
		t.Fatalf("k = %v", list)
	}
	if _, ok := list[1].(map[string]any); !ok {
		t.Errorf("second entry is %T, want map", list[1])
	}
}
