package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/wippyai/dyparser/engine"
	"github.com/wippyai/dyparser/errors"
)

// MaxPluginSize bounds a plugin binary after decompression.
const MaxPluginSize = 256 << 20

const (
	mimeWasm = "application/wasm"
	mimeZstd = "application/zstd"
	mimeGzip = "application/gzip"
)

// Load reads and compiles the plugin file at path. The plugin is named
// after the file without its extensions.
func (r *Runtime) Load(ctx context.Context, path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPluginLoad).
			Plugin(pluginName(path)).
			Detail("read %s", path).
			Cause(err).
			Build()
	}
	p, err := r.LoadBytes(ctx, pluginName(path), data)
	if err != nil {
		return nil, err
	}
	p.path = path
	return p, nil
}

// LoadPlugin resolves name and loads the file it resolves to.
func (r *Runtime) LoadPlugin(ctx context.Context, name string) (*Plugin, error) {
	path, err := r.resolver(name)
	if err != nil {
		return nil, err
	}
	r.log.Debug("resolved plugin", zap.String("plugin", name), zap.String("path", path))

	p, err := r.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	p.name = name
	return p, nil
}

// LoadDefault loads the configured default plugin.
func (r *Runtime) LoadDefault(ctx context.Context) (*Plugin, error) {
	return r.LoadPlugin(ctx, r.cfg.DefaultPlugin)
}

// LoadBytes compiles plugin data. Compressed modules are inflated first;
// the format is sniffed from the content.
func (r *Runtime) LoadBytes(ctx context.Context, name string, data []byte) (*Plugin, error) {
	src, kind, err := unpack(data)
	if err != nil {
		if ee, ok := err.(*errors.Error); ok {
			ee.Plugin = name
		}
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var eng engine.Engine = r.wasm
	if kind == engine.KindJS {
		eng = r.js
	}
	artifact, err := eng.Compile(ctx, name, src)
	if err != nil {
		r.log.Debug("plugin rejected", zap.String("plugin", name), zap.Error(err))
		return nil, err
	}

	r.log.Debug("loaded plugin",
		zap.String("plugin", name),
		zap.String("engine", string(kind)),
		zap.Int("size", len(src)))

	return &Plugin{
		rt:       r,
		artifact: artifact,
		name:     name,
		kind:     kind,
		size:     len(src),
	}, nil
}

// unpack inflates compressed data and decides which engine runs it.
func unpack(data []byte) ([]byte, engine.Kind, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is(mimeZstd):
		out, err := inflateZstd(data)
		if err != nil {
			return nil, "", loadError("inflate zstd plugin", err)
		}
		data = out
	case mt.Is(mimeGzip):
		out, err := inflateGzip(data, MaxPluginSize)
		if err != nil {
			return nil, "", loadError("inflate gzip plugin", err)
		}
		data = out
	}

	mt = mimetype.Detect(data)
	switch {
	case mt.Is(mimeWasm):
		return data, engine.KindWasm, nil
	case len(data) > 0 && utf8.Valid(data) && strings.HasPrefix(mt.String(), "text/"):
		return data, engine.KindJS, nil
	case mt.Is("application/javascript"):
		return data, engine.KindJS, nil
	}
	return nil, "", loadError("unrecognized plugin format "+mt.String(), nil)
}

func inflateZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPluginSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// inflateGzip decompresses data, failing once the output passes limit bytes.
func inflateGzip(data []byte, limit int) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, loadError(fmt.Sprintf("plugin exceeds maximum size of %d bytes", limit), nil)
	}
	return out, nil
}

func loadError(detail string, cause error) *errors.Error {
	return errors.PluginLoad(detail, cause)
}

// pluginName strips directories and plugin extensions from path.
func pluginName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".zst", ".wasm", ".js"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
