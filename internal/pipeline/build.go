package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/romshark/scopei18n/internal/block"
	"github.com/romshark/scopei18n/internal/sfc"
	"github.com/romshark/scopei18n/internal/strfmt"
)

// IgnoredDirs are directories never descended into by Build.
var IgnoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
}

// Sink receives the modules generated by Build.
type Sink interface {
	// WriteFile writes a module. name is slash-separated and relative
	// to the project root.
	WriteFile(name string, content []byte) error
}

// FSSink writes modules under directory Dir of file system FS.
type FSSink struct {
	FS  afero.Fs
	Dir string
}

func (s FSSink) WriteFile(name string, content []byte) error {
	p := filepath.Join(s.Dir, filepath.FromSlash(name))
	if err := s.FS.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.FS, p, content, 0o644)
}

// DirSink writes modules under a directory of the OS file system.
type DirSink string

func (d DirSink) WriteFile(name string, content []byte) error {
	return FSSink{FS: afero.NewOsFs(), Dir: string(d)}.WriteFile(name, content)
}

// Report is the outcome of Build.
type Report struct {
	Stats *Statistics

	// Components are the component files built, relative to the root.
	Components []string

	// Locales are the locales declared by any translation block
	// in canonical form, sorted.
	Locales []string

	// Errors are sorted by file.
	Errors []FileError
}

type collector struct {
	lock    sync.Mutex
	locales map[string]struct{}
	errs    []FileError
}

func (c *collector) addLocales(l []string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, l := range l {
		c.locales[l] = struct{}{}
	}
}

func (c *collector) addErr(file string, err error) {
	fe := FileError{File: file, Err: err}
	var sfcErr sfc.Error
	switch {
	case errors.As(err, &fe):
		fe.File = file
	case errors.As(err, &sfcErr):
		fe = FileError{
			File:   file,
			Line:   sfcErr.Pos.Line,
			Column: sfcErr.Pos.Column,
			Err:    sfcErr.Err,
		}
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.errs = append(c.errs, fe)
}

// component is a component file that passed phase one.
type component struct {
	path, rel string
	desc      *sfc.Descriptor
}

// Build transforms all component files under the root and writes the
// generated modules to sink. The translation blocks of all components are
// processed before any reference is rewritten.
// Errors scoped to a single file are reported and don't abort the build,
// a failing sink or a canceled context does.
func (h *Host) Build(ctx context.Context, sink Sink) (*Report, error) {
	files, err := h.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering components: %w", err)
	}
	h.Log.Info().Str("root", h.Root).Int("components", len(files)).Msg("building")

	c := &collector{locales: make(map[string]struct{})}
	components := make([]*component, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.jobs())
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h.Stats.FilesTraversed.Add(1)
			comp, err := h.buildBlocks(path, sink, c)
			components[i] = comp
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(h.jobs())
	for _, comp := range components {
		if comp == nil {
			continue
		}
		comp := comp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return h.buildCode(gctx, comp, sink, c)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Report{Stats: h.Stats, Errors: c.errs}
	for _, comp := range components {
		if comp != nil {
			r.Components = append(r.Components, comp.rel)
		}
	}
	slices.SortStableFunc(r.Errors, func(a, b FileError) int {
		return strings.Compare(a.File, b.File)
	})
	r.Locales = h.normalizeLocales(c.locales)

	h.Log.Info().
		Int64("blocks", h.Stats.BlocksTotal.Load()).
		Int64("paths", h.Stats.PathsTotal.Load()).
		Int64("references", h.Stats.References()).
		Int64("rewrites", h.Stats.Rewrites.Load()).
		Int("errors", len(r.Errors)).
		Msg("build finished")
	return r, nil
}

// discover returns the component files under the root in lexical order.
func (h *Host) discover(ctx context.Context) ([]string, error) {
	gitignore := h.loadGitignore()
	var files []string
	err := afero.Walk(h.FS, h.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(h.Root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && IgnoredDirs[info.Name()] {
			return filepath.SkipDir
		}
		if gitignore != nil && gitignore.MatchesPath(filepath.ToSlash(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && filepath.Ext(path) == ".vue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadGitignore loads .gitignore from the root if it exists.
func (h *Host) loadGitignore() *ignore.GitIgnore {
	b, err := afero.ReadFile(h.FS, filepath.Join(h.Root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(b), "\n")...)
}

func (h *Host) rel(path string) string {
	rel, err := filepath.Rel(h.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// blockModule is a translation block of a component ready for LoadBlock.
type blockModule struct {
	index int
	Module
}

// blockModules returns the translation blocks of the component at path.
// Inline content is dedented, blocks with a src attribute are read from
// disk and take their lang from the file extension unless specified.
// Blocks that can't be read are passed to failed.
func (h *Host) blockModules(path string, d *sfc.Descriptor, failed func(error)) []blockModule {
	var modules []blockModule
	for k, b := range d.CustomBlocks("i18n") {
		content, lang := []byte(strfmt.Dedent(b.Content)), b.Lang()
		if s := b.Src(); s != "" {
			p := filepath.Join(filepath.Dir(path), filepath.FromSlash(s))
			var err error
			if content, err = afero.ReadFile(h.FS, p); err != nil {
				failed(fmt.Errorf("reading block source: %w", err))
				continue
			}
			if lang == "" {
				lang = strings.TrimPrefix(filepath.Ext(p), ".")
			}
		}

		q := url.Values{
			"vue":       {""},
			"type":      {"custom"},
			"index":     {strconv.Itoa(k)},
			"blockType": {"i18n"},
		}
		if lang != "" {
			q.Set("lang", lang)
		}
		if l := b.Attrs["locale"]; l != "" {
			q.Set("locale", l)
		}
		modules = append(modules, blockModule{
			index:  k,
			Module: Module{Resource: path + "?" + q.Encode(), Content: content},
		})
	}
	return modules
}

// LoadComponent parses the component at path and loads all of its
// translation blocks. Blocks failing to load are skipped and their errors
// joined into err.
func (h *Host) LoadComponent(path string) (*sfc.Descriptor, []block.Result, error) {
	src, err := afero.ReadFile(h.FS, path)
	if err != nil {
		return nil, nil, err
	}
	d, err := sfc.Parse(path, src)
	if err != nil {
		return nil, nil, err
	}
	var errs []error
	var results []block.Result
	for _, m := range h.blockModules(path, d, func(err error) { errs = append(errs, err) }) {
		res, err := h.LoadBlock(m.Module)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return d, results, errors.Join(errs...)
}

// buildBlocks parses the component at path and writes the module of each
// of its translation blocks. Returns nil if the component can't be parsed.
func (h *Host) buildBlocks(path string, sink Sink, c *collector) (*component, error) {
	comp := &component{path: path, rel: h.rel(path)}
	src, err := afero.ReadFile(h.FS, path)
	if err != nil {
		h.Stats.Errors.Add(1)
		c.addErr(comp.rel, err)
		return nil, nil
	}
	if comp.desc, err = sfc.Parse(path, src); err != nil {
		h.Stats.Errors.Add(1)
		c.addErr(comp.rel, err)
		return nil, nil
	}

	modules := h.blockModules(path, comp.desc, func(err error) {
		h.Stats.Errors.Add(1)
		c.addErr(comp.rel, err)
	})
	for _, m := range modules {
		res, err := h.LoadBlock(m.Module)
		if err != nil {
			c.addErr(comp.rel, err)
			continue
		}
		c.addLocales(res.Locales)

		name := fmt.Sprintf("%s.i18n-%d.js", comp.rel, m.index)
		if err := sink.WriteFile(name, []byte(res.Code)); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return comp, nil
}

// buildCode rewrites the script block of the component and its
// precompiled render module <Name>.render.js if one exists.
func (h *Host) buildCode(ctx context.Context, comp *component, sink Sink, c *collector) error {
	if s := comp.desc.Script; s != nil {
		out, err := h.TransformModule(ctx, Module{
			Resource: comp.path + "?vue&type=script",
			Content:  []byte(s.Content),
		})
		if err != nil {
			c.addErr(comp.rel, err)
		} else if err := sink.WriteFile(comp.rel+".script.js", out); err != nil {
			return fmt.Errorf("writing %s.script.js: %w", comp.rel, err)
		}
	}

	renderPath := strings.TrimSuffix(comp.path, ".vue") + ".render.js"
	render, err := afero.ReadFile(h.FS, renderPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		h.Stats.Errors.Add(1)
		c.addErr(comp.rel, err)
		return nil
	}
	out, err := h.TransformModule(ctx, Module{
		Resource: comp.path + "?vue&type=template",
		Content:  render,
	})
	if err != nil {
		c.addErr(comp.rel, err)
		return nil
	}
	if err := sink.WriteFile(comp.rel+".render.js", out); err != nil {
		return fmt.Errorf("writing %s.render.js: %w", comp.rel, err)
	}
	return nil
}

// normalizeLocales canonicalizes and sorts locales.
// Locales that aren't valid BCP 47 tags are kept verbatim.
func (h *Host) normalizeLocales(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(set))
	for l := range set {
		tag, err := language.Parse(l)
		if err != nil {
			h.Log.Warn().Str("locale", l).Err(err).Msg("invalid locale")
			unique[l] = struct{}{}
			continue
		}
		unique[tag.String()] = struct{}{}
	}
	locales := make([]string, 0, len(unique))
	for l := range unique {
		locales = append(locales, l)
	}
	slices.Sort(locales)
	return locales
}
