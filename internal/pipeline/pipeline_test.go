package pipeline_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/romshark/scopei18n/internal/fileid"
	"github.com/romshark/scopei18n/internal/msgtree"
	"github.com/romshark/scopei18n/internal/pipeline"
	"github.com/romshark/scopei18n/internal/refscan"
)

func installer(payload string) string {
	return "module.exports = function (component) {\n" +
		"  component.options.__i18n = component.options.__i18n || []\n" +
		"  component.options.__i18n.push('" + payload + "')\n" +
		"  delete component.options._Ctor\n" +
		"}\n"
}

func TestModule(t *testing.T) {
	t.Parallel()

	m := pipeline.Module{
		Resource: "/p/App.vue?vue&type=custom&index=0&blockType=i18n&lang=yaml",
	}
	require.Equal(t, "/p/App.vue", m.Path())
	require.Equal(t, url.Values{
		"vue":       {""},
		"type":      {"custom"},
		"index":     {"0"},
		"blockType": {"i18n"},
		"lang":      {"yaml"},
	}, m.Query())

	m = pipeline.Module{Resource: "/p/App.vue"}
	require.Equal(t, "/p/App.vue", m.Path())
	require.Empty(t, m.Query())
}

func TestLoadBlock(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p")
	res, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/src/App.vue?vue&type=custom&index=0&blockType=i18n&lang=yaml&locale=en",
		Content:  []byte("hello: Hello\nnested:\n  bye: Bye\n"),
	})
	require.NoError(t, err)

	id := fileid.For("/p", "/p/src/App.vue")
	require.Equal(t, id, res.ID)
	require.Equal(t, []string{"hello", "nested.bye"}, res.Paths)
	require.Equal(t, []string{"en"}, res.Locales)
	require.Equal(t, installer(
		`{"en":{"`+id+`":{"hello":"Hello","nested":{"bye":"Bye"}}}}`,
	), res.Code)
	require.Equal(t, []string{"hello", "nested.bye"}, h.Registry.Paths(id))
	require.Equal(t, int64(1), h.Stats.BlocksTotal.Load())
	require.Equal(t, int64(2), h.Stats.PathsTotal.Load())
}

func TestLoadBlockErr(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p")
	_, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/App.vue?lang=json",
		Content:  []byte(`{"en": [`),
	})
	require.ErrorIs(t, err, msgtree.ErrDecode)

	var fe pipeline.FileError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "/p/App.vue", fe.File)
	require.Equal(t, int64(1), h.Stats.Errors.Load())
	require.Empty(t, h.Registry.IDs())
}

func TestLoadBlockUnsupportedVersion(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p", pipeline.WithVersion(1))
	_, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/App.vue",
		Content:  []byte(`{"en":{"a":"A"}}`),
	})
	require.ErrorIs(t, err, pipeline.ErrUnsupportedVersion)
	require.Equal(t,
		"/p/App.vue: unsupported loader API version 1: "+
			"supports loader API version 2 and later",
		err.Error())
	require.Empty(t, h.Registry.IDs())
}

func TestTransformModule(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p")
	_, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/App.vue?vue&type=custom&index=0&blockType=i18n",
		Content:  []byte(`{"en":{"hello":"Hello"}}`),
	})
	require.NoError(t, err)
	id := fileid.For("/p", "/p/App.vue")

	const render = `_c('p', [_vm._v(_vm._s(_vm.$t("hello") + _vm.$t("other")))])`

	f := func(t *testing.T, expect, resource, input string) {
		t.Helper()
		out, err := h.TransformModule(context.Background(), pipeline.Module{
			Resource: resource,
			Content:  []byte(input),
		})
		require.NoError(t, err)
		require.Equal(t, expect, string(out))
	}

	f(t, `_c('p', [_vm._v(_vm._s(_vm.$t("`+id+`.hello") + _vm.$t("other")))])`,
		"/p/App.vue?vue&type=template&id=1", render)
	f(t, `this.$i18n.t("`+id+`.hello")`,
		"/p/App.vue?vue&type=script", `this.$i18n.t('hello')`)

	// Not a compiled template or script.
	f(t, render, "/p/App.vue?vue&type=style&index=0", render)
	f(t, render, "/p/App.vue", render)
	f(t, render, "/p/render.js?type=template", render)

	// Paths are only rewritten in the file declaring them.
	f(t, render, "/p/Other.vue?vue&type=template", render)

	require.Equal(t, int64(2), h.Stats.Rewrites.Load())
}

func TestTransformModuleWithoutScoping(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p", pipeline.WithoutScoping())
	res, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/App.vue",
		Content:  []byte(`{"en":{"hello":"Hello"}}`),
	})
	require.NoError(t, err)
	require.Empty(t, res.ID)
	require.Equal(t, installer(`{"en":{"hello":"Hello"}}`), res.Code)

	in := []byte(`_vm.$t("hello")`)
	out, err := h.TransformModule(context.Background(), pipeline.Module{
		Resource: "/p/App.vue?vue&type=template",
		Content:  in,
	})
	require.NoError(t, err)
	require.Equal(t, string(in), string(out))
}

func TestTransformModuleScanOptions(t *testing.T) {
	t.Parallel()

	h := pipeline.NewHost("/p", pipeline.WithScan(refscan.Options{
		ScopeIdents: []string{"ctx"},
	}))
	_, err := h.LoadBlock(pipeline.Module{
		Resource: "/p/App.vue",
		Content:  []byte(`{"en":{"hello":"Hello"}}`),
	})
	require.NoError(t, err)
	id := fileid.For("/p", "/p/App.vue")

	out, err := h.TransformModule(context.Background(), pipeline.Module{
		Resource: "/p/App.vue?vue&type=template",
		Content:  []byte(`ctx.$t('hello'); _vm.$t('hello')`),
	})
	require.NoError(t, err)
	require.Equal(t, `ctx.$t("`+id+`.hello"); _vm.$t('hello')`, string(out))
	require.Equal(t, int64(1), h.Stats.ScopeCallTotal.Load())
}
