package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/wippyai/dyparser/errors"
)

// PluginsDir is the directory below the data directory holding plugins.
const PluginsDir = "plugins"

// Extensions lists plugin file extensions in resolution order.
var Extensions = []string{".wasm", ".wasm.zst", ".wasm.gz", ".js"}

// Resolver maps a plugin name to the path of its file.
type Resolver func(name string) (string, error)

// Dirs names the application for per-OS directory conventions.
type Dirs struct {
	Qualifier    string
	Organization string
	Application  string
}

// Default returns the application identity dyparser installs under.
func Default() Dirs {
	return Dirs{Qualifier: "org", Organization: "loara", Application: "dyparser"}
}

// DataDir returns the per-user data directory of the application.
func (d Dirs) DataDir() string {
	return d.dataDir(goruntime.GOOS, dataHome(goruntime.GOOS))
}

// dataHome is the base of DataDir. On Windows that is the roaming
// %APPDATA%, which xdg reports as ConfigHome.
func dataHome(goos string) string {
	if goos == "windows" {
		return xdg.ConfigHome
	}
	return xdg.DataHome
}

func (d Dirs) dataDir(goos, home string) string {
	switch goos {
	case "darwin", "ios":
		return filepath.Join(home, strings.Join([]string{d.Qualifier, d.Organization, d.Application}, "."))
	case "windows":
		return filepath.Join(home, d.Organization, d.Application, "data")
	default:
		return filepath.Join(home, strings.ToLower(d.Application))
	}
}

// PluginDir returns the per-user plugin directory.
func (d Dirs) PluginDir() string {
	return filepath.Join(d.DataDir(), PluginsDir)
}

// SearchDirs returns the per-user plugin directory followed by the system
// wide ones.
func (d Dirs) SearchDirs() []string {
	dirs := []string{d.PluginDir()}
	for _, base := range xdg.DataDirs {
		dir := filepath.Join(base, strings.ToLower(d.Application), PluginsDir)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Resolver resolves names in SearchDirs.
func (d Dirs) Resolver() Resolver {
	return func(name string) (string, error) {
		return resolveIn(name, d.SearchDirs())
	}
}

// Dir resolves names inside a single directory.
func Dir(path string) Resolver {
	return func(name string) (string, error) {
		return resolveIn(name, []string{path})
	}
}

// Chain tries each resolver in turn and returns the first hit. Failures
// other than not found stop the search.
func Chain(resolvers ...Resolver) Resolver {
	return func(name string) (string, error) {
		var last error = errors.NotFound(errors.PhaseResolve, "plugin", name)
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			path, err := r(name)
			if err == nil {
				return path, nil
			}
			if !errors.Is(err, errors.ErrNotFound) {
				return "", err
			}
			last = err
		}
		return "", last
	}
}

// ValidName reports whether name can name a plugin file.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\:`) && !strings.ContainsRune(name, 0)
}

func resolveIn(name string, dirs []string) (string, error) {
	if !ValidName(name) {
		return "", errors.InvalidInput(errors.PhaseResolve, "invalid plugin name "+strconv.Quote(name))
	}
	for _, dir := range dirs {
		for _, ext := range Extensions {
			path := filepath.Join(dir, name+ext)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, nil
			}
		}
	}
	return "", errors.NotFound(errors.PhaseResolve, "plugin", name)
}

// Plugin is an installed plugin file.
type Plugin struct {
	Name string
	Path string
	Ext  string
}

var listPattern = "*{" + strings.Join(Extensions, ",") + "}"

// List returns the plugins found in dirs. A name present in several
// directories, or with several extensions, is reported once: the one
// resolution would pick.
func List(dirs ...string) ([]Plugin, error) {
	var out []Plugin
	seen := make(map[string]bool)
	for _, dir := range dirs {
		matches, err := doublestar.Glob(os.DirFS(dir), listPattern)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.Wrap(errors.PhaseResolve, errors.KindInvalidInput, err, "list "+dir)
		}

		found := make(map[string]string)
		for _, m := range matches {
			name, ext := splitExt(m)
			if name == "" || !ValidName(name) {
				continue
			}
			if prev, ok := found[name]; !ok || rank(ext) < rank(prev) {
				found[name] = ext
			}
		}

		names := make([]string, 0, len(found))
		for name := range found {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			ext := found[name]
			out = append(out, Plugin{Name: name, Path: filepath.Join(dir, name+ext), Ext: ext})
		}
	}
	return out, nil
}

// List returns the plugins in SearchDirs.
func (d Dirs) List() ([]Plugin, error) {
	return List(d.SearchDirs()...)
}

func splitExt(file string) (name, ext string) {
	// longest extension first so "x.wasm.gz" is not read as "x.wasm" + ".gz"
	best := ""
	for _, e := range Extensions {
		if strings.HasSuffix(file, e) && len(e) > len(best) {
			best = e
		}
	}
	return strings.TrimSuffix(file, best), best
}

func rank(ext string) int {
	return slices.Index(Extensions, ext)
}
