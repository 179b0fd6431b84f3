package pricing

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Passage length bounds, in characters: the fetcher decodes pages to UTF-8,
// so byte length would mis-measure non-ASCII text. Shorter fragments are
// navigation noise; longer ones are off-topic boilerplate.
const (
	minPassageLen = 25
	maxPassageLen = 600
)

// Structural content tags whose text becomes candidate passages.
var contentTags = map[string]bool{
	"p": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"span": true, "strong": true, "div": true,
	"td": true, "th": true, "dd": true, "dt": true,
}

// Tags whose subtrees never contribute text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
}

// ExtractPassages walks the page's structural content nodes in document
// order, collapses whitespace, keeps fragments within the length bounds,
// and deduplicates exact text. Parse errors yield an empty slice; x/net/html
// is lenient, so that only happens on truly unreadable input.
func ExtractPassages(pageHTML, sourceURL string) []model.Passage {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var passages []model.Passage

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if contentTags[n.Data] {
				text := collapseWhitespace(nodeText(n))
				runes := utf8.RuneCountInString(text)
				if runes >= minPassageLen && runes <= maxPassageLen && !seen[text] {
					seen[text] = true
					passages = append(passages, model.Passage{Text: text, Source: sourceURL})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return passages
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
