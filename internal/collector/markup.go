package collector

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type markupPage struct {
	src   SourceConfig
	base  *url.URL
	nodes *goquery.Selection
}

func parseMarkup(src SourceConfig, raw []byte) (*markupPage, error) {
	base, err := url.Parse(strings.TrimSpace(src.BaseURL))
	if err != nil || base.Host == "" {
		return nil, &ParseError{Err: fmt.Errorf("invalid base url %q", src.BaseURL)}
	}
	listSel := strings.TrimSpace(src.Selectors.List)
	if listSel == "" {
		return nil, fmt.Errorf("source %s has no list selector: %w", src.Name, ErrNoItems)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	nodes := doc.Find(listSel)
	if nodes.Length() == 0 {
		return nil, fmt.Errorf("selector %q: %w", listSel, ErrNoItems)
	}
	return &markupPage{src: src, base: base, nodes: nodes}, nil
}

func (p *markupPage) candidates() iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for i := 0; i < p.nodes.Length(); i++ {
			node := p.nodes.Eq(i)
			c, err := guard(i, func() (Candidate, bool, error) {
				return p.nodeToCandidate(node)
			})
			if err == nil && c == nil {
				continue
			}
			var out Candidate
			if c != nil {
				out = *c
			}
			if !yield(out, err) {
				return
			}
		}
	}
}

func (p *markupPage) nodeToCandidate(node *goquery.Selection) (Candidate, bool, error) {
	sel := p.src.Selectors

	title := selectText(node, sel.Title)
	c := Candidate{
		Summary:  selectText(node, sel.Summary),
		Author:   selectText(node, sel.Author),
		DateText: selectText(node, sel.Date),
		Category: selectText(node, sel.Category),
		Strategy: StrategyMarkup,
	}

	anchor := node
	if goquery.NodeName(node) != "a" {
		anchor = node.Find("a").First()
	}
	var href string
	if anchor.Length() > 0 {
		href, _ = anchor.Attr("href")
		if title == "" {
			title = collapse(anchor.Text())
		}
	}
	if title == "" || strings.TrimSpace(href) == "" {
		return Candidate{}, false, nil
	}

	link, err := ResolveURL(p.base, href)
	if err != nil {
		return Candidate{}, false, err
	}
	c.Title = title
	c.URL = link

	if img := selectImage(node, sel.Image); img != "" {
		// 图片地址解析失败只丢图片，不丢整条
		if abs, err := ResolveURL(p.base, img); err == nil {
			c.ImageURL = abs
		}
	}
	return c, true, nil
}

// selectText 取第一个匹配后代的文本；选择器为空或未匹配时返回空串
func selectText(node *goquery.Selection, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	target := node.Find(selector).First()
	if target.Length() == 0 {
		return ""
	}
	return collapse(target.Text())
}

// selectImage 懒加载图片优先取 data-src，其次 src
func selectImage(node *goquery.Selection, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return imageSrc(node.Find(selector).First())
}

func imageSrc(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
