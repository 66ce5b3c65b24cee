package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// GetText returns the concatenated text content of a node and
// all of its descendants.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FragmentText parses an HTML fragment (a table cell from an AJAX
// response, typically) and returns its visible text. A fragment that
// fails to parse is returned as-is.
func FragmentText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return GetText(doc)
}

// FirstAttr returns the value of the first attribute named key found
// in the fragment, walking depth-first.
func FirstAttr(fragment, key string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return firstAttrRecursive(doc, key)
}

func firstAttrRecursive(node *html.Node, key string) string {
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if v := firstAttrRecursive(child, key); v != "" {
			return v
		}
	}
	return ""
}
