package crawl

import (
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{
	"script": true, "style": true,
}

// Prettify renders a parsed HTML tree with one tag or text run per line,
// indented by one space per nesting level.
func Prettify(root *html.Node) string {
	var sb strings.Builder
	prettyNode(&sb, root, 0)
	return sb.String()
}

func prettyNode(sb *strings.Builder, n *html.Node, depth int) {
	indent := strings.Repeat(" ", depth)

	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			prettyNode(sb, c, depth)
		}
	case html.DoctypeNode:
		sb.WriteString("<!DOCTYPE " + n.Data + ">\n")
	case html.CommentNode:
		sb.WriteString(indent + "<!--" + n.Data + "-->\n")
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" {
			return
		}
		if n.Parent != nil && rawTextElements[n.Parent.Data] {
			sb.WriteString(indent + text + "\n")
			return
		}
		sb.WriteString(indent + html.EscapeString(text) + "\n")
	case html.ElementNode:
		sb.WriteString(indent + "<" + n.Data)
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			sb.WriteString(" " + key + `="` + html.EscapeString(a.Val) + `"`)
		}
		sb.WriteString(">\n")
		if voidElements[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			prettyNode(sb, c, depth+1)
		}
		sb.WriteString(indent + "</" + n.Data + ">\n")
	}
}
