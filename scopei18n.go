// Package scopei18n scopes the translation messages of component files.
//
// Every message a component declares in its translation blocks is moved
// under an identifier derived from the component's project-relative path,
// and references to these messages in the component's compiled code are
// rewritten to the scoped path "<fileId>.<path>". References to paths the
// component doesn't declare itself are left alone so they keep resolving
// against the global messages at runtime.
package scopei18n

import (
	"context"

	"github.com/romshark/scopei18n/internal/block"
	"github.com/romshark/scopei18n/internal/fileid"
	"github.com/romshark/scopei18n/internal/refscan"
	"github.com/romshark/scopei18n/internal/registry"
	"github.com/romshark/scopei18n/internal/rewrite"
)

// Registry records the message paths each file declares.
// A Registry must be shared by all blocks and modules of a build
// and is safe for concurrent use.
type Registry = registry.Registry

// Edit replaces the half-open byte range [Start, End) with Text.
type Edit = rewrite.Edit

// BlockOptions are the options of a translation block.
type BlockOptions = block.Options

// Identity identifies the file owning a translation block.
type Identity = block.Identity

// RewriteOptions configure which identifiers are recognized in compiled code.
type RewriteOptions = refscan.Options

// Errors returned by ApplyEdits.
var (
	ErrOverlap    = rewrite.ErrOverlap
	ErrOutOfRange = rewrite.ErrOutOfRange
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return registry.New() }

// FileID returns the identifier of file relative to the project root.
func FileID(root, file string) string { return fileid.For(root, file) }

// ProcessTranslationBlock decodes a translation block and returns the
// generated module installing its messages. If reg is not nil the
// messages are scoped to the owning file and their paths registered.
// Decoding errors wrap msgtree.ErrDecode.
func ProcessTranslationBlock(
	content []byte, opts BlockOptions, reg *Registry, ident Identity,
) (string, error) {
	res, err := block.Transform(content, opts, reg, ident)
	if err != nil {
		return "", err
	}
	return res.Code, nil
}

// RewriteReferences returns the edits turning every reference in src to a
// path registered for id into the scoped path. Edits are in source order.
func RewriteReferences(
	ctx context.Context, src []byte, id string, reg *Registry, opts RewriteOptions,
) ([]Edit, error) {
	refs, err := refscan.Collect(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	return refscan.Edits(refs, id, reg), nil
}

// ApplyEdits applies non-overlapping edits to src.
func ApplyEdits(src []byte, edits []Edit) ([]byte, error) {
	return rewrite.Apply(src, edits)
}

// Rewrite rewrites the references in src declared by the file identified
// by id.
func Rewrite(
	ctx context.Context, src []byte, id string, reg *Registry, opts RewriteOptions,
) ([]byte, error) {
	edits, err := RewriteReferences(ctx, src, id, reg, opts)
	if err != nil {
		return nil, err
	}
	return ApplyEdits(src, edits)
}
