// Package pipeline adapts the block transform and the reference rewriter
// to a module bundler: a loader hook for translation blocks, a parser hook
// for compiled component code and a directory build driving both.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/romshark/scopei18n/internal/block"
	"github.com/romshark/scopei18n/internal/fileid"
	"github.com/romshark/scopei18n/internal/refscan"
	"github.com/romshark/scopei18n/internal/registry"
	"github.com/romshark/scopei18n/internal/rewrite"
)

const (
	// LoaderVersion is the integration API version implemented by Host.
	LoaderVersion = 2

	// MinLoaderVersion is the oldest integration API version supported.
	MinLoaderVersion = 2
)

// ErrUnsupportedVersion is returned by LoadBlock when the bundler
// requests a version older than MinLoaderVersion.
var ErrUnsupportedVersion = errors.New("unsupported loader API version")

// Module is a module handed over by the bundler.
type Module struct {
	// Resource is the module path optionally followed by a query:
	// "/src/App.vue?vue&type=custom&index=0&blockType=i18n&lang=yaml".
	Resource string
	Content  []byte
}

// Path returns the resource without the query.
func (m Module) Path() string {
	p, _, _ := strings.Cut(m.Resource, "?")
	return p
}

// Query returns the parsed resource query.
// Malformed pairs are dropped.
func (m Module) Query() url.Values {
	_, q, ok := strings.Cut(m.Resource, "?")
	if !ok {
		return url.Values{}
	}
	v, _ := url.ParseQuery(q)
	return v
}

// FileError is an error scoped to a single file.
// Line and Column are zero when the position is unknown.
type FileError struct {
	File         string
	Line, Column int
	Err          error
}

func (e FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.File, e.Err.Error())
}

func (e FileError) Unwrap() error { return e.Err }

// Statistics are the counters of a Host, safe for concurrent use.
type Statistics struct {
	FilesTraversed atomic.Int64
	BlocksTotal    atomic.Int64
	PathsTotal     atomic.Int64
	ScopeCallTotal atomic.Int64
	ThisCallTotal  atomic.Int64
	ElementTotal   atomic.Int64
	DirectiveTotal atomic.Int64
	Rewrites       atomic.Int64
	Errors         atomic.Int64
}

// References returns the number of references found of any shape.
func (s *Statistics) References() int64 {
	return s.ScopeCallTotal.Load() + s.ThisCallTotal.Load() +
		s.ElementTotal.Load() + s.DirectiveTotal.Load()
}

func (s *Statistics) countReference(shape refscan.Shape) {
	switch shape {
	case refscan.ShapeScopeCall:
		s.ScopeCallTotal.Add(1)
	case refscan.ShapeThisCall:
		s.ThisCallTotal.Add(1)
	case refscan.ShapeElement:
		s.ElementTotal.Add(1)
	case refscan.ShapeDirective:
		s.DirectiveTotal.Add(1)
	}
}

// Host holds the state shared by all hooks of one build.
// Scoping is disabled when Registry is nil.
type Host struct {
	Root     string
	Version  int
	Registry *registry.Registry
	Scan     refscan.Options
	Log      zerolog.Logger
	Jobs     int
	Stats    *Statistics

	// FS is the file system components and block sources are read from.
	FS afero.Fs
}

// Option configures a Host created by NewHost.
type Option func(*Host)

// WithVersion sets the integration API version requested by the bundler.
func WithVersion(v int) Option { return func(h *Host) { h.Version = v } }

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l zerolog.Logger) Option { return func(h *Host) { h.Log = l } }

// WithScan sets the reference scanner options.
func WithScan(o refscan.Options) Option { return func(h *Host) { h.Scan = o } }

// WithJobs limits the number of files processed concurrently by Build.
// Values below 1 select the number of CPUs.
func WithJobs(n int) Option { return func(h *Host) { h.Jobs = n } }

// WithFS sets the file system components are read from.
func WithFS(fs afero.Fs) Option { return func(h *Host) { h.FS = fs } }

// WithoutScoping disables message scoping and reference rewriting.
func WithoutScoping() Option { return func(h *Host) { h.Registry = nil } }

// NewHost creates a host for the project at root.
func NewHost(root string, opts ...Option) *Host {
	h := &Host{
		Root:     root,
		Version:  LoaderVersion,
		Registry: registry.New(),
		Log:      zerolog.Nop(),
		Stats:    new(Statistics),
		FS:       afero.NewOsFs(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Host) jobs() int {
	if h.Jobs < 1 {
		return runtime.NumCPU()
	}
	return h.Jobs
}

// LoadBlock is the loader hook. It transforms the translation block m
// using the query keys lang and locale.
func (h *Host) LoadBlock(m Module) (block.Result, error) {
	file := m.Path()
	if h.Version < MinLoaderVersion {
		h.Stats.Errors.Add(1)
		return block.Result{}, FileError{File: file, Err: fmt.Errorf(
			"%w %d: supports loader API version %d and later",
			ErrUnsupportedVersion, h.Version, MinLoaderVersion,
		)}
	}

	q := m.Query()
	opts := block.Options{Lang: q.Get("lang"), Locale: q.Get("locale")}
	res, err := block.Transform(m.Content, opts, h.Registry, block.Identity{
		Root: h.Root,
		File: file,
	})
	if err != nil {
		h.Stats.Errors.Add(1)
		return block.Result{}, FileError{File: file, Err: err}
	}

	h.Stats.BlocksTotal.Add(1)
	h.Stats.PathsTotal.Add(int64(len(res.Paths)))
	h.Log.Debug().
		Str("file", file).
		Str("id", res.ID).
		Strs("locales", res.Locales).
		Int("paths", len(res.Paths)).
		Msg("translation block")
	return res, nil
}

// TransformModule is the parser hook. Compiled templates and scripts of
// component files get their references rewritten, any other module is
// returned unchanged.
func (h *Host) TransformModule(ctx context.Context, m Module) ([]byte, error) {
	file := m.Path()
	if filepath.Ext(file) != ".vue" {
		return m.Content, nil
	}
	switch m.Query().Get("type") {
	case "template", "script":
	default:
		return m.Content, nil
	}
	return h.Rewrite(ctx, file, m.Content)
}

// Rewrite rewrites the references in src that file declares in its own
// translation blocks.
func (h *Host) Rewrite(ctx context.Context, file string, src []byte) ([]byte, error) {
	if h.Registry == nil {
		return src, nil
	}
	refs, err := refscan.Collect(ctx, src, h.Scan)
	if err != nil {
		h.Stats.Errors.Add(1)
		return nil, FileError{File: file, Err: err}
	}
	for _, r := range refs {
		h.Stats.countReference(r.Shape)
	}

	id := fileid.For(h.Root, file)
	edits := refscan.Edits(refs, id, h.Registry)
	out, err := rewrite.Apply(src, edits)
	if err != nil {
		h.Stats.Errors.Add(1)
		return nil, FileError{File: file, Err: err}
	}

	h.Stats.Rewrites.Add(int64(len(edits)))
	if len(refs) > 0 {
		h.Log.Debug().
			Str("file", file).
			Str("id", id).
			Int("references", len(refs)).
			Int("rewrites", len(edits)).
			Msg("references")
	}
	return out, nil
}
