package input

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/wippyai/dyparser/errors"
)

// Auto selects BOM sniffing and charset detection.
const Auto = "auto"

// DefaultMaxSize bounds the size of a configuration file.
const DefaultMaxSize = 64 << 20

// Decoder converts raw configuration bytes to UTF-8 text.
type Decoder struct {
	encoding string
	maxSize  int64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithEncoding forces a WHATWG encoding label. Empty or Auto detects.
func WithEncoding(label string) Option {
	return func(d *Decoder) {
		d.encoding = strings.ToLower(strings.TrimSpace(label))
	}
}

// WithMaxSize rejects inputs larger than n bytes. n <= 0 means DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(d *Decoder) {
		d.maxSize = n
	}
}

// NewDecoder creates a decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{encoding: Auto}
	for _, opt := range opts {
		opt(d)
	}
	if d.encoding == "" {
		d.encoding = Auto
	}
	if d.maxSize <= 0 {
		d.maxSize = DefaultMaxSize
	}
	return d
}

// Result is decoded text and the encoding it was decoded from.
type Result struct {
	Text     string
	Encoding string
}

// ReadFile reads and decodes the file at path.
func (d *Decoder) ReadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errors.New(errors.PhaseInput, errors.KindNotFound).
				Detail("configuration file %s", path).
				Cause(err).
				Build()
		}
		return Result{}, errors.Wrap(errors.PhaseInput, errors.KindInvalidInput, err, "open "+path)
	}
	defer f.Close()
	return d.Read(f)
}

// Read reads r to the end and decodes it.
func (d *Decoder) Read(r io.Reader) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return Result{}, errors.Wrap(errors.PhaseInput, errors.KindInvalidInput, err, "read input")
	}
	if int64(len(data)) > d.maxSize {
		return Result{}, errors.InvalidInput(errors.PhaseInput, fmt.Sprintf("input exceeds %d bytes", d.maxSize))
	}
	return d.Decode(data)
}

// Decode converts data to UTF-8.
func (d *Decoder) Decode(data []byte) (Result, error) {
	if d.encoding != Auto {
		enc, err := lookup(d.encoding)
		if err != nil {
			return Result{}, err
		}
		return transcode(data, enc, d.encoding)
	}

	if enc, name, ok := sniffBOM(data); ok {
		return transcode(data, enc, name)
	}
	if utf8.Valid(data) {
		return Result{Text: string(data), Encoding: "utf-8"}, nil
	}

	detected, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || detected == nil {
		return Result{}, errors.New(errors.PhaseInput, errors.KindInvalidInput).
			Detail("input is not UTF-8 and its encoding could not be detected").
			Cause(err).
			Build()
	}
	name := strings.ToLower(detected.Charset)
	enc, err := lookup(name)
	if err != nil {
		return Result{}, err
	}
	return transcode(data, enc, name)
}

// Text is a convenience for NewDecoder(opts...).Decode(data).
func Text(data []byte, opts ...Option) (string, error) {
	res, err := NewDecoder(opts...).Decode(data)
	return res.Text, err
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func sniffBOM(data []byte) (encoding.Encoding, string, bool) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return unicode.UTF8BOM, "utf-8", true
	case bytes.HasPrefix(data, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le", true
	case bytes.HasPrefix(data, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be", true
	}
	return nil, "", false
}

func lookup(label string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.New(errors.PhaseInput, errors.KindInvalidInput).
			Detail("unknown encoding %q", label).
			Cause(err).
			Build()
	}
	return enc, nil
}

func transcode(data []byte, enc encoding.Encoding, name string) (Result, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return Result{}, errors.New(errors.PhaseInput, errors.KindInvalidInput).
			Detail("decode %s", name).
			Cause(err).
			Build()
	}
	if !utf8.Valid(out) {
		return Result{}, errors.InvalidInput(errors.PhaseInput, fmt.Sprintf("input is not valid %s", name))
	}
	return Result{Text: string(out), Encoding: name}, nil
}
