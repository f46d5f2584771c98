// Package genjs provides the JavaScript generator for translation block modules.
package genjs

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"text/template"
)

//go:embed installer.js.tmpl
var installerTmpl string

var tmpl = template.Must(template.New("installer").Parse(installerTmpl))

var payloadReplacer = strings.NewReplacer(
	"\u2028", `\\u2028`,
	"\u2029", `\\u2029`,
	`\`, `\\`,
	`'`, `\u0027`,
)

// EscapePayload makes a JSON document safe to embed
// in a single-quoted JavaScript string literal.
func EscapePayload(json []byte) string {
	return payloadReplacer.Replace(string(json))
}

// WriteInstaller writes a CommonJS module that appends the JSON payload to
// the translation block list of the component passed to it and drops the
// component's cached constructor.
func WriteInstaller(w io.Writer, json []byte) error {
	err := tmpl.Execute(w, struct{ Payload string }{Payload: EscapePayload(json)})
	if err != nil {
		return fmt.Errorf("rendering installer: %w", err)
	}
	return nil
}

// Installer is like WriteInstaller but returns the module source.
func Installer(json []byte) (string, error) {
	var b strings.Builder
	if err := WriteInstaller(&b, json); err != nil {
		return "", err
	}
	return b.String(), nil
}
