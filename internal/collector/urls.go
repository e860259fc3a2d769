package collector

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// ResolveURL 把相对地址拼到数据源的 scheme://host 上（与页面路径无关），绝对地址原样返回
func ResolveURL(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}

	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("%q: %w", ref, ErrUnsupportedScheme)
		}
		return u.String(), nil
	}
	if base == nil || base.Host == "" {
		return "", fmt.Errorf("resolve %q: base url has no host", ref)
	}
	// 协议相对地址 //cdn.example.com/a.jpg 沿用数据源的 scheme
	if u.Host != "" {
		u.Scheme = base.Scheme
		return u.String(), nil
	}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}
	return root.ResolveReference(u).String(), nil
}
