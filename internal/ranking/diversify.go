package ranking

import (
	"slices"
	"time"
)

// Rankable 是参与混排的条目：来源标识、浏览量、发布时间（可为空）
type Rankable interface {
	SourceKey() string
	Views() int
	Published() *time.Time
}

// Diversify 按来源均衡地从 pool 中选出至多 targetSize 条，避免单一来源霸屏。
// pool 需已按相关性排好序；结果最终仍按相关性重新排序。
//
//  1. 按来源分组，组内保持 pool 中的相对顺序，组按首次出现的顺序排列
//  2. maxPerSource = max(1, targetSize / 来源数)
//  3. 第一轮：每组最多取 maxPerSource 条，名额用完即停
//  4. 第二轮：仍有名额时，按 pool 原顺序补齐未选中的条目
//  5. 稳定排序：浏览量降序，其次发布时间降序，空时间排最后
//  6. 截断到 targetSize
func Diversify[T Rankable](pool []T, targetSize int) []T {
	if targetSize <= 0 || len(pool) == 0 {
		return []T{}
	}

	var order []string
	groups := make(map[string][]int)
	for i, it := range pool {
		key := it.SourceKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	maxPerSource := max(1, targetSize/len(order))
	remaining := targetSize
	selected := make([]bool, len(pool))
	picked := make([]int, 0, min(targetSize, len(pool)))

	// 第一轮：按来源均分
	for _, key := range order {
		idx := groups[key]
		take := min(maxPerSource, len(idx), remaining)
		for _, i := range idx[:take] {
			selected[i] = true
			picked = append(picked, i)
		}
		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	// 第二轮：来源条目不足时按相关性补齐
	for i := 0; i < len(pool) && remaining > 0; i++ {
		if selected[i] {
			continue
		}
		selected[i] = true
		picked = append(picked, i)
		remaining--
	}

	out := make([]T, 0, len(picked))
	for _, i := range picked {
		out = append(out, pool[i])
	}
	slices.SortStableFunc(out, Compare[T])

	if len(out) > targetSize {
		out = out[:targetSize]
	}
	return out
}

// Compare 定义相关性顺序：浏览量降序，发布时间降序，空时间排在所有非空时间之后
func Compare[T Rankable](a, b T) int {
	if va, vb := a.Views(), b.Views(); va != vb {
		if va > vb {
			return -1
		}
		return 1
	}
	pa, pb := a.Published(), b.Published()
	switch {
	case pa == nil && pb == nil:
		return 0
	case pa == nil:
		return 1
	case pb == nil:
		return -1
	}
	return pb.Compare(*pa)
}
