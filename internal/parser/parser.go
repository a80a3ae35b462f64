package parser

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Document is the visible text of a page and its anchors in document order.
type Document struct {
	Text  string
	Links []Link
}

// Link is one anchor as written in the page. Href is not resolved.
type Link struct {
	Href string
	Text string
}

type Parser struct {
	policy *bluemonday.Policy
}

func New() *Parser {
	return &Parser{policy: bluemonday.StrictPolicy()}
}

// Parse extracts text and anchors from raw markup. It never fails: broken
// markup yields whatever could be recovered.
func (p *Parser) Parse(raw []byte) Document {
	doc := Document{Text: p.plainText(raw)}

	root, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return doc
	}
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		doc.Links = append(doc.Links, Link{
			Href: strings.TrimSpace(href),
			Text: collapse(s.Text()),
		})
	})
	return doc
}

func (p *Parser) plainText(raw []byte) string {
	// Block boundaries must not glue neighbouring words together once tags
	// are stripped.
	spaced := bytes.ReplaceAll(raw, []byte("<"), []byte(" <"))
	return collapse(html.UnescapeString(string(p.policy.SanitizeBytes(spaced))))
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Resolve turns href into an absolute URL relative to base. The fragment is
// dropped. URLs containing quote characters are rejected.
func Resolve(base, href string) (string, bool) {
	if href == "" || strings.ContainsAny(href, `'"`) {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := baseURL.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""

	resolved := abs.String()
	if resolved == "" || strings.ContainsAny(resolved, `'"`) {
		return "", false
	}
	return resolved, true
}

// IsCrawlable reports whether rawURL uses a scheme the crawler can follow.
func IsCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
