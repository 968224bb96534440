package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var styleCSS string

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToHTML converts markdown to an HTML fragment. Raw HTML in the input is
// not passed through.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return buf.String(), nil
}

// Document wraps rendered markdown in a standalone printable page.
func Document(title, md string) (string, error) {
	content, err := ToHTML(md)
	if err != nil {
		return "", err
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + styleCSS + "</style></head><body>" +
		"<div class='page'><section class='report'>" + content + "</section></div>" +
		"</body></html>", nil
}
