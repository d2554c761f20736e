package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under node, skipping script and style contents.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "noscript", "template":
			return
		case "br", "p", "div", "li", "tr", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6":
			buffer.WriteByte('\n')
			defer buffer.WriteByte('\n')
		case "td", "th":
			buffer.WriteByte(' ')
			defer buffer.WriteByte(' ')
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

// VisibleText returns the rendered text of every node in the selection with block elements
// mapped to newlines and runs of blank space collapsed.
func VisibleText(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
		out.WriteByte('\n')
	}
	lines := strings.Split(out.String(), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		l = CleanText(l)
		if l == "" {
			continue
		}
		cleaned = append(cleaned, l)
	}
	return strings.Join(cleaned, "\n")
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable characters, trims and collapses inner whitespace.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n\r")
	return innerWhitespace.ReplaceAllString(s, " ")
}

type Anchor struct {
	Name string
	Href string
	// Url is Href resolved against the base given to GetAnchors, nil if Href does not parse.
	Url *url.URL
}

func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		var resolved *url.URL
		link, err := url.Parse(href)
		if err == nil {
			resolved = link
			if base != nil {
				resolved = base.ResolveReference(link)
			}
		}

		anchors = append(anchors, Anchor{
			Name: CleanText(GetText(n)),
			Href: href,
			Url:  resolved,
		})
	}
	return anchors
}

// Ancestors returns up to max ancestors of sel's first node, nearest first.
func Ancestors(sel *goquery.Selection, max int) []*goquery.Selection {
	out := []*goquery.Selection{}
	current := sel.First()
	for i := 0; i < max; i++ {
		current = current.Parent()
		if current.Length() == 0 {
			break
		}
		out = append(out, current)
	}
	return out
}
