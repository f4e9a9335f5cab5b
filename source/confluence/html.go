package confluence

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements dropped with their whole subtree.
var skippedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Nav:    true,
	atom.Header: true,
	atom.Footer: true,
}

var (
	metadataClass = regexp.MustCompile(`confluence-metadata|page-metadata|breadcrumbs`)
	blankLines    = regexp.MustCompile(`\n\s*\n\s*\n+`)
	repeatedSpace = regexp.MustCompile(` +`)
)

// cleanHTML renders storage-format HTML as plain text. Headings, paragraphs
// and list items keep their line structure; list items get a bullet.
func cleanHTML(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var b strings.Builder
	renderText(&b, doc)
	return normalizeWhitespace(b.String())
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] || metadataClass.MatchString(attr(n, "class")) {
			return
		}
	}

	before, after := blockBreaks(n)
	b.WriteString(before)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	b.WriteString(after)
}

// blockBreaks returns the text written around an element's content.
func blockBreaks(n *html.Node) (before, after string) {
	if n.Type != html.ElementNode {
		return "", ""
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return "\n\n", "\n"
	case atom.Li:
		return "\n• ", ""
	case atom.Br:
		return "\n", ""
	case atom.P, atom.Div, atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Pre, atom.Blockquote:
		return "\n", "\n"
	case atom.Td, atom.Th:
		return " ", " "
	}
	return "", ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = repeatedSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
