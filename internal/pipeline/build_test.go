package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/romshark/scopei18n/internal/fileid"
	"github.com/romshark/scopei18n/internal/msgtree"
	"github.com/romshark/scopei18n/internal/pipeline"
	"github.com/romshark/scopei18n/internal/projecttest"
	"github.com/romshark/scopei18n/internal/sfc"
)

type memSink struct {
	lock  sync.Mutex
	files map[string]string
}

func (s *memSink) WriteFile(name string, content []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.files == nil {
		s.files = make(map[string]string)
	}
	s.files[name] = string(content)
	return nil
}

var errSinkFull = errors.New("sink full")

type failingSink struct{}

func (failingSink) WriteFile(string, []byte) error { return errSinkFull }


func testSetup(t *testing.T) string {
	return projecttest.New(t, map[string]string{
		".gitignore": "ignored/\n",
		"src/Hello.vue": `<template>
  <p>{{ $t('hello') }}</p>
</template>

<script>
export default {
  methods: {
    greet () { return this.$i18n.t('hello') + this.$i18n.t('missing') }
  }
}
</script>

<i18n lang="yaml">
  en:
    hello: Hello
  de:
    hello: Hallo
</i18n>
`,
		"src/Hello.render.js": `var render = function () {
  var _vm = this
  var _c = _vm._self._c
  return _c('p', [_vm._v(_vm._s(_vm.$t("hello")))])
}
`,
		"src/Ext.vue": `<template><i18n path="title" tag="h1"/></template>
<i18n src="./ext.json5" locale="fr"/>
`,
		"src/ext.json5": `{title: 'Titre'}`,
		"src/Broken.vue": "<i18n>{\"en\": </i18n>\n<script>\nthis.$i18n.t('x')\n</script>\n",
		"src/Bad.vue":    `<i18n>{}`,

		"node_modules/lib/Lib.vue": `<i18n>{"en":{"a":"A"}}</i18n>`,
		"ignored/Ignored.vue":      `<i18n>{"en":{"a":"A"}}</i18n>`,
	})
}

func TestBuild(t *testing.T) {
	t.Parallel()
	root := testSetup(t)
	idHello := fileid.For(root, filepath.Join(root, "src", "Hello.vue"))
	idExt := fileid.For(root, filepath.Join(root, "src", "Ext.vue"))

	h := pipeline.NewHost(root, pipeline.WithJobs(2))
	var sink memSink
	r, err := h.Build(context.Background(), &sink)
	require.NoError(t, err)

	require.Equal(t, map[string]string{
		"src/Hello.vue.i18n-0.js": installer(`{"en":{"` + idHello +
			`":{"hello":"Hello"}},"de":{"` + idHello + `":{"hello":"Hallo"}}}`),
		"src/Hello.vue.script.js": `
export default {
  methods: {
    greet () { return this.$i18n.t("` + idHello + `.hello") + this.$i18n.t('missing') }
  }
}
`,
		"src/Hello.vue.render.js": `var render = function () {
  var _vm = this
  var _c = _vm._self._c
  return _c('p', [_vm._v(_vm._s(_vm.$t("` + idHello + `.hello")))])
}
`,
		"src/Ext.vue.i18n-0.js": installer(
			`{"fr":{"` + idExt + `":{"title":"Titre"}}}`,
		),
		"src/Broken.vue.script.js": "\nthis.$i18n.t('x')\n",
	}, sink.files)

	require.Equal(t, []string{
		"src/Broken.vue", "src/Ext.vue", "src/Hello.vue",
	}, r.Components)
	require.Equal(t, []string{"de", "en", "fr"}, r.Locales)

	require.Len(t, r.Errors, 2)
	require.Equal(t, "src/Bad.vue", r.Errors[0].File)
	require.Equal(t, 1, r.Errors[0].Line)
	require.Equal(t, 1, r.Errors[0].Column)
	require.ErrorIs(t, r.Errors[0], sfc.ErrUnterminated)
	require.Equal(t, "src/Broken.vue", r.Errors[1].File)
	require.ErrorIs(t, r.Errors[1], msgtree.ErrDecode)

	require.Equal(t, int64(4), r.Stats.FilesTraversed.Load())
	require.Equal(t, int64(2), r.Stats.BlocksTotal.Load())
	require.Equal(t, int64(2), r.Stats.PathsTotal.Load())
	require.Equal(t, int64(1), r.Stats.ScopeCallTotal.Load())
	require.Equal(t, int64(3), r.Stats.ThisCallTotal.Load())
	require.Equal(t, int64(4), r.Stats.References())
	require.Equal(t, int64(2), r.Stats.Rewrites.Load())
	require.Equal(t, int64(2), r.Stats.Errors.Load())
}

func TestBuildWithoutScoping(t *testing.T) {
	t.Parallel()
	root := projecttest.New(t, map[string]string{
		"App.vue": "<script>\nthis.$i18n.t('a')\n</script>\n" +
			`<i18n>{"en":{"a":"A"}}</i18n>`,
	})

	h := pipeline.NewHost(root, pipeline.WithoutScoping())
	var sink memSink
	r, err := h.Build(context.Background(), &sink)
	require.NoError(t, err)
	require.Empty(t, r.Errors)
	require.Equal(t, map[string]string{
		"App.vue.i18n-0.js": installer(`{"en":{"a":"A"}}`),
		"App.vue.script.js": "\nthis.$i18n.t('a')\n",
	}, sink.files)
}

func TestBuildDirSink(t *testing.T) {
	t.Parallel()
	root := projecttest.New(t, map[string]string{
		"a/App.vue": `<i18n>{"en":{"a":"A"}}</i18n>`,
	})
	out := t.TempDir()

	h := pipeline.NewHost(root)
	_, err := h.Build(context.Background(), pipeline.DirSink(out))
	require.NoError(t, err)

	id := fileid.For(root, filepath.Join(root, "a", "App.vue"))
	b, err := os.ReadFile(filepath.Join(out, "a", "App.vue.i18n-0.js"))
	require.NoError(t, err)
	require.Equal(t, installer(`{"en":{"`+id+`":{"a":"A"}}}`), string(b))
}

func TestBuildSinkErr(t *testing.T) {
	t.Parallel()
	root := projecttest.New(t, map[string]string{
		"App.vue": `<i18n>{"en":{"a":"A"}}</i18n>`,
	})

	h := pipeline.NewHost(root)
	r, err := h.Build(context.Background(), failingSink{})
	require.ErrorIs(t, err, errSinkFull)
	require.Nil(t, r)
}

func TestBuildCanceled(t *testing.T) {
	t.Parallel()
	root := testSetup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := pipeline.NewHost(root)
	r, err := h.Build(ctx, new(memSink))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, r)
}

func TestBuildLocales(t *testing.T) {
	t.Parallel()
	root := projecttest.New(t, map[string]string{
		"A.vue": `<i18n>{"en_GB":{"a":"A"},"not a locale!":{"a":"A"}}</i18n>`,
		"B.vue": `<i18n locale="en-gb">{"a":"A"}</i18n>`,
	})

	h := pipeline.NewHost(root)
	r, err := h.Build(context.Background(), new(memSink))
	require.NoError(t, err)
	require.Empty(t, r.Errors)
	require.Equal(t, []string{"en-GB", "not a locale!"}, r.Locales)
}

func TestLoadComponent(t *testing.T) {
	t.Parallel()
	root := testSetup(t)
	h := pipeline.NewHost(root)

	path := filepath.Join(root, "src", "Ext.vue")
	d, results, err := h.LoadComponent(path)
	require.NoError(t, err)
	require.NotNil(t, d.Template)
	require.Len(t, results, 1)
	require.Equal(t, []string{"fr"}, results[0].Locales)
	require.Equal(t, []string{"title"}, h.Registry.Paths(fileid.For(root, path)))

	d, results, err = h.LoadComponent(filepath.Join(root, "src", "Broken.vue"))
	require.ErrorIs(t, err, msgtree.ErrDecode)
	require.NotNil(t, d.Script)
	require.Empty(t, results)

	_, _, err = h.LoadComponent(filepath.Join(root, "src", "Bad.vue"))
	require.ErrorIs(t, err, sfc.ErrUnterminated)

	_, _, err = h.LoadComponent(filepath.Join(root, "src", "Missing.vue"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildMemFS(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	write := func(name, content string) {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	write("/project/src/Menu.vue", `<i18n lang="toml" locale="en">
  [menu]
  open = "Open"
  close = "Close"
</i18n>
`)
	write("/project/src/Menu.render.js",
		`_c('i18n', {attrs: {"path": "menu.open", "tag": "span"}})`)

	h := pipeline.NewHost("/project", pipeline.WithFS(fs))
	r, err := h.Build(context.Background(), pipeline.FSSink{FS: fs, Dir: "/out"})
	require.NoError(t, err)
	require.Empty(t, r.Errors)
	require.Equal(t, []string{"src/Menu.vue"}, r.Components)

	id := fileid.For("/project", "/project/src/Menu.vue")
	require.Equal(t, []string{"menu.open", "menu.close"}, h.Registry.Paths(id))

	b, err := afero.ReadFile(fs, "/out/src/Menu.vue.i18n-0.js")
	require.NoError(t, err)
	require.Equal(t, installer(
		`{"en":{"`+id+`":{"menu":{"open":"Open","close":"Close"}}}}`,
	), string(b))

	b, err = afero.ReadFile(fs, "/out/src/Menu.vue.render.js")
	require.NoError(t, err)
	require.Equal(t,
		`_c('i18n', {attrs: {"path": "`+id+`.menu.open", "tag": "span"}})`,
		string(b))
	require.Equal(t, int64(1), r.Stats.ElementTotal.Load())
}
