package collector

import (
	"errors"
	"fmt"
	"iter"
)

// ErrNoItems 表示整个数据源没有匹配到任何条目（选择器失效或订阅源为空）
var ErrNoItems = errors.New("no items matched")

// ParseError 表示订阅源或页面整体无法解析
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ElementError 表示单个条目抽取失败，只跳过该条目，不影响同批其它条目
type ElementError struct {
	Index int
	Err   error
}

func (e *ElementError) Error() string { return fmt.Sprintf("element %d: %v", e.Index, e.Err) }
func (e *ElementError) Unwrap() error { return e.Err }

// Extract 按数据源策略解析原始内容。
// 整体性失败（解析失败、零匹配）在第二个返回值中立即给出；
// 返回的序列只能遍历一次，单条失败以 *ElementError 的形式产出，缺标题或链接的条目直接丢弃。
func Extract(src SourceConfig, raw []byte) (iter.Seq2[Candidate, error], error) {
	switch src.Strategy() {
	case StrategyFeed:
		feed, err := parseFeed(raw)
		if err != nil {
			return nil, err
		}
		if len(feed.Items) == 0 {
			return nil, fmt.Errorf("feed %s: %w", src.Name, ErrNoItems)
		}
		return feedCandidates(src, feed), nil
	default:
		page, err := parseMarkup(src, raw)
		if err != nil {
			return nil, err
		}
		return page.candidates(), nil
	}
}

// Collect 把序列展开为切片，单条错误只计数；主要给预览和测试使用
func Collect(seq iter.Seq2[Candidate, error]) (out []Candidate, skipped int) {
	for c, err := range seq {
		if err != nil {
			skipped++
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}

// guard 包住单条抽取，panic 与错误都转成 *ElementError；返回 nil, nil 表示该条被丢弃
func guard(index int, fn func() (Candidate, bool, error)) (c *Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = &ElementError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	cand, ok, ferr := fn()
	if ferr != nil {
		return nil, &ElementError{Index: index, Err: ferr}
	}
	if !ok {
		return nil, nil
	}
	return &cand, nil
}
