package collector

import (
	"bytes"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const DefaultCategory = "General"

var prologEncoding = regexp.MustCompile(`(?i)^(\x{FEFF}?\s*<\?xml[^>]*?\sencoding\s*=\s*)["'][^"']*["']`)

// parseFeed 先清洗再交给 gofeed，gofeed 同时兼容 RSS 与 Atom
func parseFeed(raw []byte) (*gofeed.Feed, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(utf8Prolog(Sanitize(raw))))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return feed, nil
}

// utf8Prolog 在内容已是 UTF-8 时把 XML 声明里的编码改为 UTF-8。
// colly 会按响应头转码正文，但不会改写声明，gofeed 再按声明解码就会出现乱码
func utf8Prolog(b []byte) []byte {
	if !utf8.Valid(b) {
		return b
	}
	return prologEncoding.ReplaceAll(b, []byte(`${1}"UTF-8"`))
}

func feedCandidates(src SourceConfig, feed *gofeed.Feed) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for i, item := range feed.Items {
			c, err := guard(i, func() (Candidate, bool, error) {
				return feedItemToCandidate(src, item)
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

func feedItemToCandidate(src SourceConfig, item *gofeed.Item) (Candidate, bool, error) {
	if item == nil {
		return Candidate{}, false, nil
	}
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return Candidate{}, false, nil
	}

	c := Candidate{
		Title:    title,
		URL:      link,
		Author:   feedAuthor(item),
		Category: strings.TrimSpace(strings.Join(nonEmpty(item.Categories), ", ")),
		Strategy: StrategyFeed,
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		c.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		c.PublishedAt = &t
	} else {
		c.DateText = strings.TrimSpace(item.Published)
	}

	if item.Description != "" {
		img, text, err := splitDescription(item.Description)
		if err != nil {
			return Candidate{}, false, fmt.Errorf("description: %w", err)
		}
		c.ImageURL = img
		c.Summary = text
	}
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	return c, true, nil
}

// splitDescription 取描述片段中的第一张图片（优先 data-src），删除所有 img 后剩余文本作为摘要
func splitDescription(fragment string) (image, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", "", err
	}
	image = imageSrc(doc.Find("img").First())
	doc.Find("img").Remove()
	text = collapse(doc.Text())
	return image, text, nil
}

func feedAuthor(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if strings.TrimSpace(creator) != "" {
				return strings.TrimSpace(creator)
			}
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
