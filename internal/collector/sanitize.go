package collector

import (
	"regexp"
	"strings"
)

var (
	commentRe  = regexp.MustCompile(`<!--[\s\S]*?-->`)
	startTagRe = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9:_.-]*)(\s[^<>]*?)?\s*(/?)>`)
	attrRe     = regexp.MustCompile(`\s*([^\s"'<>/=]+)(?:\s*=\s*("[^"]*"|'[^']*'|[^\s"'=<>` + "`" + `]+))?`)
)

// 只对这几个空元素补自闭合；link/source/meta 在 RSS 里是普通元素，不能动
var voidTags = map[string]bool{"br": true, "hr": true, "img": true, "input": true}

// Sanitize 修复订阅源里常见的非法 XML：注释、无值属性（<img defer>）、未闭合的空元素。
// 只改写起始标签，结束标签、CDATA 标记、处理指令保持原样。
func Sanitize(raw []byte) []byte {
	s := commentRe.ReplaceAllString(string(raw), "")
	s = startTagRe.ReplaceAllStringFunc(s, fixStartTag)
	return []byte(s)
}

func fixStartTag(tag string) string {
	m := startTagRe.FindStringSubmatch(tag)
	if m == nil {
		return tag
	}
	name, rawAttrs, selfClose := m[1], m[2], m[3] == "/"

	attrs, ok := fixAttrs(rawAttrs)
	if !ok {
		return tag
	}

	var b strings.Builder
	b.Grow(len(tag) + 16)
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteString(attrs)
	if selfClose || voidTags[strings.ToLower(name)] {
		b.WriteByte('/')
	}
	b.WriteByte('>')
	return b.String()
}

// fixAttrs 为每个属性补全带引号的值；无法完整识别的属性串返回 false，由调用方保留原标签
func fixAttrs(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}

	var b strings.Builder
	pos := 0
	for _, loc := range attrRe.FindAllStringSubmatchIndex(raw, -1) {
		if loc[0] != pos {
			return "", false
		}
		pos = loc[1]

		name := raw[loc[2]:loc[3]]
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		switch {
		case loc[4] < 0:
			// 布尔属性：defer -> defer="defer"
			b.WriteString(name)
		default:
			v := raw[loc[4]:loc[5]]
			if v[0] == '"' || v[0] == '\'' {
				v = v[1 : len(v)-1]
			}
			b.WriteString(strings.ReplaceAll(v, `"`, "&quot;"))
		}
		b.WriteByte('"')
	}
	if strings.TrimSpace(raw[pos:]) != "" {
		return "", false
	}
	return b.String(), true
}
