package refscan

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// unquote decodes a single- or double-quoted JavaScript string literal.
// Returns false for malformed literals, legacy octal escapes and
// unpaired surrogates, none of which can name a known path.
func unquote(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	q := raw[0]
	if (q != '"' && q != '\'') || raw[len(raw)-1] != q {
		return "", false
	}
	body := raw[1 : len(raw)-1]
	if strings.IndexByte(body, '\\') == -1 {
		return body, true
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		switch c = body[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			if i+1 < len(body) && body[i+1] >= '0' && body[i+1] <= '9' {
				return "", false
			}
			b.WriteByte(0)
		case '1', '2', '3', '4', '5', '6', '7', '8', '9':
			return "", false
		case 'x':
			r, ok := parseHex(body, i+1, 2)
			if !ok {
				return "", false
			}
			b.WriteRune(r)
			i += 2
		case 'u':
			r, n, ok := readUnicodeEscape(body, i+1)
			if !ok {
				return "", false
			}
			i += n
			if utf16.IsSurrogate(r) {
				// Must be followed by the low half: \uXXXX.
				if i+2 >= len(body) || body[i+1] != '\\' || body[i+2] != 'u' {
					return "", false
				}
				lo, n, ok := readUnicodeEscape(body, i+3)
				if !ok {
					return "", false
				}
				r = utf16.DecodeRune(r, lo)
				if r == utf8.RuneError {
					return "", false
				}
				i += 2 + n
			}
			b.WriteRune(r)
		case '\r':
			// Line continuation.
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			if strings.HasPrefix(body[i:], "\u2028") || strings.HasPrefix(body[i:], "\u2029") {
				i += len("\u2028") - 1 // Line continuation.
				continue
			}
			// Identity escape: \' \" \\ and any other character.
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

// readUnicodeEscape reads the part of a \u escape following the 'u' at
// body[start:], either XXXX or {X...}. Returns the number of bytes read.
func readUnicodeEscape(body string, start int) (r rune, n int, ok bool) {
	if start < len(body) && body[start] == '{' {
		end := strings.IndexByte(body[start:], '}')
		if end < 2 {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(body[start+1:start+end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, false
		}
		return rune(v), end + 1, true
	}
	r, ok = parseHex(body, start, 4)
	return r, 4, ok
}

func parseHex(s string, start, digits int) (rune, bool) {
	if start+digits > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+digits], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
