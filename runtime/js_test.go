package runtime

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/dyparser/engine"
	"github.com/wippyai/dyparser/errors"
)

func loadINI(t *testing.T, rt *Runtime) *Plugin {
	t.Helper()
	p, err := rt.Load(context.Background(), filepath.Join("testdata", "plugins", "ini.js"))
	if err != nil {
		t.Fatalf("load ini.js: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestINI_ParseFile(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	p := loadINI(t, rt)
	if p.Name() != "ini" || p.Kind() != engine.KindJS {
		t.Errorf("name=%q kind=%q", p.Name(), p.Kind())
	}

	root, err := p.ParseFile(context.Background(), filepath.Join("testdata", "configs", "app.ini"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := root.Values("name"); !slices.Equal(got, []string{"demo"}) {
		t.Errorf("name = %v", got)
	}
	if got := root.Values("mode"); !slices.Equal(got, []string{"production"}) {
		t.Errorf("mode = %v", got)
	}

	servers := root.Sections("server")
	if len(servers) != 2 {
		t.Fatalf("got %d server sections", len(servers))
	}
	if got := servers[0].Values("host"); !slices.Equal(got, []string{"127.0.0.1"}) {
		t.Errorf("server[0].host = %v", got)
	}
	if got := servers[0].Values("port"); !slices.Equal(got, []string{"8080", "8081"}) {
		t.Errorf("server[0].port = %v", got)
	}
	if got := servers[1].Values("host"); !slices.Equal(got, []string{"::1"}) {
		t.Errorf("server[1].host = %v", got)
	}

	db, ok := root.Find("database")
	if !ok {
		t.Fatal("database section not found")
	}
	if driver, _ := db.Value("driver"); driver != "sqlite" {
		t.Errorf("driver = %q", driver)
	}
}

func TestINI_Empty(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	p := loadINI(t, rt)

	root, err := p.ParseFile(context.Background(), filepath.Join("testdata", "configs", "empty.ini"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !root.IsEmpty() {
		t.Fatal("expected empty root")
	}
}

func TestINI_ForcedEncoding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputEncoding = "windows-1252"
	rt := newRuntime(t, cfg)
	p := loadINI(t, rt)

	root, err := p.ParseFile(context.Background(), filepath.Join("testdata", "configs", "latin1.ini"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if title, _ := root.Value("title"); title != "café" {
		t.Errorf("title = %q", title)
	}
	if owner, _ := root.Value("owner"); owner != "Müller" {
		t.Errorf("owner = %q", owner)
	}
}

func TestINI_ParseReader(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	p := loadINI(t, rt)

	root, err := p.ParseReader(context.Background(), strings.NewReader("\ufeff[a]\nk = v\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a, ok := root.Section("a")
	if !ok {
		t.Fatal("section a not found")
	}
	if v, _ := a.Value("k"); v != "v" {
		t.Errorf("k = %q", v)
	}
}

func TestINI_InputErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInputSize = 8
	rt := newRuntime(t, cfg)
	p := loadINI(t, rt)
	ctx := context.Background()

	_, err := p.ParseFile(ctx, filepath.Join("testdata", "configs", "missing.ini"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing file: got %v", err)
	}

	_, err = p.ParseReader(ctx, strings.NewReader("key = a value longer than eight bytes"))
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("oversized input: got %v", err)
	}

	var ee *errors.Error
	if !errors.As(err, &ee) {
		t.Fatalf("not an *errors.Error: %v", err)
	}
	if ee.Plugin != "ini" {
		t.Errorf("plugin = %q", ee.Plugin)
	}
}

func TestINI_Compressed(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "plugins", "ini.js"))
	if err != nil {
		t.Fatal(err)
	}

	rt := newRuntime(t, DefaultConfig())
	p := loadBytes(t, rt, "ini", gzipBytes(t, src))
	if p.Kind() != engine.KindJS {
		t.Errorf("kind = %q", p.Kind())
	}

	root, err := p.Parse(context.Background(), "x = 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if x, _ := root.Value("x"); x != "1" {
		t.Errorf("x = %q", x)
	}
}

func TestJS_ViolationFaultsSession(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	p := loadBytes(t, rt, "bad", []byte(`
function parse() {
	var root = section.new();
	try {
		section.addSection(root, "self", root);
	} catch (e) {}
	return root;
}
`))

	s := p.NewSession(strings.NewReader(""))
	root, err := s.Run(context.Background())
	if root != nil {
		t.Error("no tree may be returned after a fault")
	}
	if !errors.Is(err, errors.ErrSelfAttach) {
		t.Fatalf("expected self attach, got %v", err)
	}
	if s.State() != StateFaulted {
		t.Errorf("state = %s", s.State())
	}
}

func TestJS_BadArgumentFaultsSession(t *testing.T) {
	rt := newRuntime(t, DefaultConfig())
	p := loadBytes(t, rt, "coerce", []byte(`
function parse() {
	var root = section.new();
	section.addField(root, "port", 8080);
	return root;
}
`))

	_, err := p.Parse(context.Background(), "")
	if !errors.Is(err, errors.ErrSandboxFault) {
		t.Fatalf("expected sandbox fault, got %v", err)
	}
}
