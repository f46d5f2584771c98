package refscan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnquote(t *testing.T) {
	t.Parallel()
	f := func(t *testing.T, expect, input string) {
		t.Helper()
		a, ok := unquote(input)
		require.True(t, ok)
		require.Equal(t, expect, a)
	}

	f(t, "", `''`)
	f(t, "", `""`)
	f(t, "test", `'test'`)
	f(t, "test", `"test"`)
	f(t, `say "hi"`, `'say "hi"'`)
	f(t, "it's", `'it\'s'`)
	f(t, `it"s`, `"it\"s"`)
	f(t, `back\slash`, `'back\\slash'`)
	f(t, "a\nb\tc", `'a\nb\tc'`)
	f(t, "\x00", `'\0'`)
	f(t, "A", `'\x41'`)
	f(t, "Тест", `'Тест'`)
	f(t, "😀", `'\u{1F600}'`)
	f(t, "😀", `'😀'`)
	f(t, "ab", "'a\\\nb'")
	f(t, "ab", "'a\\\r\nb'")
	f(t, "ab", "'a\\\u2028b'")
	f(t, "q", `'\q'`)
	f(t, "Тест", `'\u0422\u0435\u0441\u0442'`)
	f(t, "😀", `'\uD83D\uDE00'`)
}

func TestUnquoteErr(t *testing.T) {
	t.Parallel()
	f := func(t *testing.T, input string) {
		t.Helper()
		_, ok := unquote(input)
		require.False(t, ok)
	}

	f(t, ``)
	f(t, `'`)
	f(t, `'abc"`)
	f(t, "`abc`")
	f(t, `abc`)
	f(t, `'\'`)
	f(t, `'\01'`)
	f(t, `'\7'`)
	f(t, `'\x4'`)
	f(t, `'\xZZ'`)
	f(t, `'\u12'`)
	f(t, `'\u{}'`)
	f(t, `'\u{110000}'`)
	f(t, `'\uD83D'`)
	f(t, `'\uDE00\uD83D'`)
}
