package chat

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// PlainText strips markup from a message body for terminal output.
func PlainText(body string) string {
	if !strings.ContainsAny(body, "<&") {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, pre, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})

	text := blankLines.ReplaceAllString(doc.Text(), "\n\n")
	return strings.TrimSpace(text)
}
