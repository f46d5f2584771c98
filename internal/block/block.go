// Package block implements the translation block transform: it decodes a
// block, registers the leaf paths it declares under the owning file's
// identifier and generates the module installing the messages.
package block

import (
	"fmt"

	"github.com/romshark/scopei18n/internal/fileid"
	"github.com/romshark/scopei18n/internal/genjs"
	"github.com/romshark/scopei18n/internal/msgtree"
	"github.com/romshark/scopei18n/internal/registry"
)

// Options are the options recognized on a translation block.
type Options struct {
	// Lang selects the decoder: "yaml", "yml", "json5", "toml" or JSON otherwise.
	Lang string

	// Locale, if set, declares the block content to be the message tree
	// of this single locale.
	Locale string
}

// Identity identifies the file owning a translation block.
type Identity struct {
	Root string
	File string

	// ID overrides the identifier computed from Root and File.
	ID string
}

// FileID returns the identifier of the owning file.
func (i Identity) FileID() string {
	if i.ID != "" {
		return i.ID
	}
	return fileid.For(i.Root, i.File)
}

// Result is the outcome of Transform.
type Result struct {
	// Code is the generated module source.
	Code string

	// ID is the file identifier the messages were scoped to.
	// Empty when scoping is disabled.
	ID string

	// Paths are the leaf paths declared by the block.
	Paths []string

	// Locales are the locales declared by the block.
	Locales []string
}

// Transform decodes content and generates the installer module.
// Scoping is enabled when reg is not nil: the messages of every locale are
// moved under the file's identifier and the declared paths are registered.
// Decoding errors wrap msgtree.ErrDecode, no output is produced on error.
func Transform(
	content []byte, opts Options, reg *registry.Registry, ident Identity,
) (Result, error) {
	tree, err := msgtree.DecodeMessages(content, msgtree.ParseLang(opts.Lang), opts.Locale)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Paths:   tree.Paths(),
		Locales: tree.Locales(),
	}

	if reg != nil {
		res.ID = ident.FileID()
		reg.AddPaths(res.ID, res.Paths)
		tree = tree.Prefix(res.ID)
	}

	payload, err := tree.JSON()
	if err != nil {
		return Result{}, fmt.Errorf("encoding messages: %w", err)
	}
	if res.Code, err = genjs.Installer(payload); err != nil {
		return Result{}, err
	}
	return res, nil
}
