package webtext

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// Document is the readable content extracted from a page.
type Document struct {
	Title string
	Text  string
}

// Extract reduces raw page HTML to its readable article text. The article
// body is isolated with readability, then converted to markdown so headings
// and list structure survive as plain text for the annotators.
func Extract(body []byte, pageURL *url.URL) (*Document, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract readable content: %w", err)
	}

	title := article.Title
	if title == "" {
		title = htmlTitle(body)
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	text, err := converter.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(text) == "" {
		// Fall back to readability's own plain text rendering.
		text = article.TextContent
	}
	text = excessiveLinesRe.ReplaceAllString(strings.TrimSpace(text), "\n\n")

	return &Document{Title: title, Text: text}, nil
}

// htmlTitle pulls the <title> element out of raw HTML.
func htmlTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
