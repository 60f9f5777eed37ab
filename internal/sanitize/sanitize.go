package sanitize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultMaxLength bounds sanitized text so it fits a model prompt.
const DefaultMaxLength = 15_000

// noiseTags are dropped together with everything inside them.
var noiseTags = map[string]struct{}{
	"nav":      {},
	"footer":   {},
	"header":   {},
	"aside":    {},
	"form":     {},
	"script":   {},
	"style":    {},
	"svg":      {},
	"noscript": {},
}

// rawTextNoise are noise tags the tokenizer reads as raw text even when
// written self-closing, so their content runs to the matching end tag.
var rawTextNoise = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
}

// entities are decoded one after another in this order, so "&amp;lt;"
// ends up as "<".
var entities = [][2]string{
	{"&nbsp;", " "},
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
}

// Sanitize turns raw page markup into plain text. Noise blocks (navigation,
// headers, footers, asides, forms, scripts, styles, inline SVG and noscript)
// are removed with their content, every other tag becomes a single space,
// the common entities are decoded, whitespace is collapsed and the result is
// cut to maxLength characters. maxLength <= 0 selects DefaultMaxLength.
func Sanitize(raw string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	// open noise blocks by tag name; text is kept only when all are zero
	depth := make(map[string]int, len(noiseTags))
	skipping := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a read error; either way keep what was collected
			break
		}
		switch tt {
		case html.TextToken:
			if skipping > 0 {
				continue
			}
			b.Write(z.Raw())
		case html.StartTagToken:
			name, _ := z.TagName()
			if _, ok := noiseTags[string(name)]; ok {
				depth[string(name)]++
				skipping++
				continue
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if _, ok := noiseTags[string(name)]; ok {
				if depth[string(name)] > 0 {
					depth[string(name)]--
					skipping--
				}
				continue
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if _, ok := rawTextNoise[string(name)]; ok {
				depth[string(name)]++
				skipping++
				continue
			}
			b.WriteByte(' ')
		default:
			// comments and doctype
			b.WriteByte(' ')
		}
	}
	return truncate(collapseSpaces(decodeEntities(b.String())), maxLength)
}

func decodeEntities(s string) string {
	for _, e := range entities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}

// collapseSpaces joins whitespace-separated fields with single spaces, which
// also trims both ends.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Title returns the trimmed <title> text of a document, or "".
func Title(raw string) string {
	node, err := html.Parse(strings.NewReader(raw))
	if err != nil || node == nil {
		return ""
	}
	head := findFirst(node, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return collapseSpaces(t.FirstChild.Data)
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}
