package processor

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

var lima = time.FixedZone("PET", -5*3600)

func fixedNormalizer(now time.Time) *Normalizer {
	n := NewNormalizer(lima)
	n.Now = func() time.Time { return now }
	return n
}

func gestion() collector.SourceConfig {
	return collector.SourceConfig{
		ID:         "src-gestion",
		Name:       "Gestión",
		BaseURL:    "https://gestion.pe/economia",
		DateFormat: "02/01/2006 15:04",
	}
}

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://example.com/a"
	url2 := "https://example.com/b"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
}

func TestTruncateRunesKeepsLimitIncludingEllipsis(t *testing.T) {
	s := "Congreso aprueba la reforma constitucional en primera votación"
	out := truncateRunes(s, 10)
	if n := len([]rune(out)); n > 10 {
		t.Fatalf("truncateRunes length = %d, want <= 10: %q", n, out)
	}
	if []rune(out)[len([]rune(out))-1] != '…' {
		t.Fatalf("truncateRunes should append ellipsis: %q", out)
	}

	// limit 大于长度时不应截断
	if full := truncateRunes("corto", 10); full != "corto" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}
}

func TestNormalizeAppliesDefaultsAndTrims(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	n := fixedNormalizer(now)

	out, err := n.Normalize(gestion(), collector.Candidate{
		Title:    "  Dólar hoy  ",
		URL:      "/economia/dolar-hoy/#comentarios",
		Summary:  "  Cierra a la baja ",
		ImageURL: "/img/dolar.jpg",
		Strategy: collector.StrategyMarkup,
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if out.Title != "Dólar hoy" || out.Summary != "Cierra a la baja" {
		t.Fatalf("text not trimmed: %+v", out)
	}
	if out.URL != "https://gestion.pe/economia/dolar-hoy/" {
		t.Fatalf("URL = %q", out.URL)
	}
	if out.ImageURL != "https://gestion.pe/img/dolar.jpg" {
		t.Fatalf("ImageURL = %q", out.ImageURL)
	}
	if out.Author != DefaultAuthor || out.Category != DefaultCategory {
		t.Fatalf("defaults not applied: author=%q category=%q", out.Author, out.Category)
	}
	if out.SourceID != "src-gestion" || out.SourceName != "Gestión" {
		t.Fatalf("source not copied: %+v", out)
	}
	if out.ID != hashURL(out.URL) {
		t.Fatalf("ID should be derived from canonical URL")
	}
	if !out.DateEstimated || !out.PublishedAt.Equal(now) {
		t.Fatalf("missing date should fall back to now: %v estimated=%v", out.PublishedAt, out.DateEstimated)
	}
}

func TestNormalizeSourceDefaultAuthor(t *testing.T) {
	src := gestion()
	src.DefaultAuthor = "Redacción PERÚ21"
	out, err := fixedNormalizer(time.Now()).Normalize(src, collector.Candidate{Title: "a", URL: "https://peru21.pe/a"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if out.Author != "Redacción PERÚ21" {
		t.Fatalf("Author = %q", out.Author)
	}
}

func TestNormalizeParsesDateWithSourceLayout(t *testing.T) {
	n := fixedNormalizer(time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC))
	out, err := n.Normalize(gestion(), collector.Candidate{
		Title:    "a",
		URL:      "https://gestion.pe/a",
		DateText: "05/01/2025 09:15",
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	want := time.Date(2025, 1, 5, 9, 15, 0, 0, lima)
	if out.DateEstimated || !out.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v (estimated=%v), want %v", out.PublishedAt, out.DateEstimated, want)
	}
	if out.RawData["raw_date"] != "05/01/2025 09:15" {
		t.Fatalf("raw date not kept: %v", out.RawData)
	}
}

func TestNormalizeUnparsableDateFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	out, err := fixedNormalizer(now).Normalize(gestion(), collector.Candidate{
		Title:    "a",
		URL:      "https://gestion.pe/a",
		DateText: "hace 5 minutos",
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if !out.DateEstimated || !out.PublishedAt.Equal(now) {
		t.Fatalf("expected estimated now, got %v estimated=%v", out.PublishedAt, out.DateEstimated)
	}
}

func TestNormalizeRejectsEmptyTitleOrURL(t *testing.T) {
	n := fixedNormalizer(time.Now())
	for _, c := range []collector.Candidate{
		{Title: "   ", URL: "https://gestion.pe/a"},
		{Title: "a", URL: ""},
	} {
		if _, err := n.Normalize(gestion(), c); !errors.Is(err, ErrInvalidCandidate) {
			t.Fatalf("Normalize(%+v) err = %v, want ErrInvalidCandidate", c, err)
		}
	}
}

func TestNormalizeRejectsInvalidSourceBaseURL(t *testing.T) {
	src := gestion()
	src.BaseURL = "http://%zz/economia"
	_, err := fixedNormalizer(time.Now()).Normalize(src, collector.Candidate{Title: "Nota", URL: "/peru/nota"})
	if err == nil {
		t.Fatalf("expected error for invalid base url")
	}
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *url.Error", err)
	}
}

func TestCanonicalURL(t *testing.T) {
	base, _ := url.Parse("https://gestion.pe/economia")
	cases := map[string]string{
		"HTTPS://Gestion.PE/Peru/Nota?id=1#top": "https://gestion.pe/Peru/Nota?id=1",
		"https://gestion.pe":                    "https://gestion.pe/",
		"/peru":                                 "https://gestion.pe/peru",
	}
	for in, want := range cases {
		got, err := CanonicalURL(base, in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProcessDeduplicateByURL(t *testing.T) {
	items := []ProcessedNews{
		{ID: hashURL("https://example.com/1"), Title: "Title 1", URL: "https://example.com/1"},
		{ID: hashURL("https://example.com/1"), Title: "Title 1 duplicate by URL", URL: "https://example.com/1"},
		{ID: hashURL("https://example.com/2"), Title: "Title 2", URL: "https://example.com/2"},
	}

	out := Process(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 processed items after dedupe, got %d", len(out))
	}
	if out[0].Title != "Title 1" {
		t.Fatalf("first occurrence should win: %q", out[0].Title)
	}
}
