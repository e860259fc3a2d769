package collector

import (
	"net/url"
	"testing"
	"time"
)

func TestSourceStrategy(t *testing.T) {
	cases := []struct {
		name string
		src  SourceConfig
		want Strategy
	}{
		{"marker", SourceConfig{BaseURL: "https://example.com/news", Selectors: Selectors{List: FeedMarker}}, StrategyFeed},
		{"feed path", SourceConfig{BaseURL: "https://peru21.pe/feed/", Selectors: Selectors{List: "article"}}, StrategyFeed},
		{"rss suffix", SourceConfig{BaseURL: "https://example.com/portada.rss"}, StrategyFeed},
		{"xml suffix with query", SourceConfig{BaseURL: "https://example.com/rss.xml?x=1"}, StrategyFeed},
		{"html page", SourceConfig{BaseURL: "https://gestion.pe/economia", Selectors: Selectors{List: ".story-item"}}, StrategyMarkup},
	}
	for _, c := range cases {
		if got := c.src.Strategy(); got != c.want {
			t.Fatalf("%s: Strategy() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestSourceIsDue(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	src := SourceConfig{Interval: 30 * time.Minute}

	if !src.IsDue(now) {
		t.Fatalf("never scraped source should be due")
	}

	last := now
	src.LastScrapedAt = &last
	if src.IsDue(now.Add(10 * time.Minute)) {
		t.Fatalf("source should not be due 10 minutes after a scrape")
	}
	if src.IsDue(now.Add(30 * time.Minute)) {
		t.Fatalf("due check is strict: exactly one interval later is not due yet")
	}
	if !src.IsDue(now.Add(31 * time.Minute)) {
		t.Fatalf("source should be due once the interval elapsed")
	}
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://gestion.pe/economia/portada")
	cases := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"https://otro.pe/a", "https://otro.pe/a", false},
		{"/peru/nota", "https://gestion.pe/peru/nota", false},
		{"peru/nota", "https://gestion.pe/peru/nota", false},
		{"//cdn.gestion.pe/x.jpg", "https://cdn.gestion.pe/x.jpg", false},
		{"/a/../b", "https://gestion.pe/b", false},
		{"", "", true},
		{"#top", "", true},
		{"javascript:void(0)", "", true},
		{"mailto:a@b.pe", "", true},
	}
	for _, c := range cases {
		got, err := ResolveURL(base, c.ref)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ResolveURL(%q) expected error, got %q", c.ref, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ResolveURL(%q) error: %v", c.ref, err)
		}
		if got != c.want {
			t.Fatalf("ResolveURL(%q) = %q, want %q", c.ref, got, c.want)
		}
	}
}
