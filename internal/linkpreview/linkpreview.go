// Package linkpreview extracts Open Graph metadata for a URL, the
// supplemented PreviewLink operation (spec §6 "Link unfurling supplement").
// The original Rust client has no such feature; it is carried forward from
// the teacher's own pkg/connector/linkpreview.go because the spec's
// Non-goals exclude rendering, image manipulation, and file upload I/O —
// not link metadata extraction.
package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// Preview is the metadata extracted for one URL.
type Preview struct {
	MatchedURL   string
	CanonicalURL string
	Title        string
	Description  string
	SiteName     string
	Type         string
	ImageURL     string
}

// Options tunes fetch behavior.
type Options struct {
	FetchTimeout    time.Duration
	MaxPageBytes    int64
	MaxContentChars int
	CacheTTL        time.Duration
}

// DefaultOptions mirrors the teacher's DefaultLinkPreviewConfig.
func DefaultOptions() Options {
	return Options{
		FetchTimeout:    10 * time.Second,
		MaxPageBytes:    10 * 1024 * 1024,
		MaxContentChars: 500,
		CacheTTL:        time.Hour,
	}
}

type cacheEntry struct {
	preview   *Preview
	expiresAt time.Time
}

// Previewer fetches and caches link previews.
type Previewer struct {
	opts       Options
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func New(opts Options) *Previewer {
	return &Previewer{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.FetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		cache: map[string]cacheEntry{},
	}
}

var markdownLinkRegex = regexp.MustCompile(`\[[^\]]*]\((https?://\S+?)\)`)
var urlRegex = regexp.MustCompile(`https?://[^\s<>\[\]()'"]+[^\s<>\[\]()'",.:;!?]`)

// ExtractURLs pulls up to maxURLs unique, non-local http(s) URLs out of
// text, stripping markdown link syntax first so `[label](url)` doesn't
// also match as a bare URL.
func ExtractURLs(text string, maxURLs int) []string {
	if maxURLs <= 0 {
		return nil
	}
	sanitized := markdownLinkRegex.ReplaceAllString(text, " $1 ")
	matches := urlRegex.FindAllString(sanitized, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var urls []string
	for _, m := range matches {
		cleaned := strings.TrimRight(m, ".,;:!?")
		if seen[cleaned] || !isFetchableURL(cleaned) {
			continue
		}
		seen[cleaned] = true
		urls = append(urls, cleaned)
		if len(urls) >= maxURLs {
			break
		}
	}
	return urls
}

func isFetchableURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false
	}
	if strings.HasPrefix(host, "192.168.") || strings.HasPrefix(host, "10.") || strings.HasPrefix(host, "172.") {
		return false
	}
	return true
}

// Fetch retrieves a link preview for rawURL, serving from cache within
// Options.CacheTTL when available.
func (p *Previewer) Fetch(ctx context.Context, rawURL string) (*Preview, error) {
	if cached := p.fromCache(rawURL); cached != nil {
		return cached, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("linkpreview: invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("linkpreview: unsupported scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; prose-core-go link preview)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkpreview: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("linkpreview: http %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return nil, fmt.Errorf("linkpreview: unsupported content type %q", contentType)
	}

	maxBytes := p.opts.MaxPageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultOptions().MaxPageBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("linkpreview: read failed: %w", err)
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(string(body))); err != nil {
		return nil, fmt.Errorf("linkpreview: opengraph parse failed: %w", err)
	}

	if og.Title == "" || og.Description == "" {
		if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(string(body))); derr == nil {
			if og.Title == "" {
				og.Title = extractTitle(doc)
			}
			if og.Description == "" {
				og.Description = extractDescription(doc)
			}
		}
	}

	maxChars := p.opts.MaxContentChars
	if maxChars <= 0 {
		maxChars = DefaultOptions().MaxContentChars
	}
	preview := &Preview{
		MatchedURL:   rawURL,
		CanonicalURL: og.URL,
		Title:        summarize(og.Title, maxChars/3),
		Description:  summarize(og.Description, maxChars),
		SiteName:     og.SiteName,
		Type:         og.Type,
	}
	if preview.CanonicalURL == "" {
		preview.CanonicalURL = rawURL
	}
	if len(og.Images) > 0 && og.Images[0].URL != "" {
		preview.ImageURL = resolveImageURL(rawURL, og.Images[0].URL)
	}

	p.toCache(rawURL, preview)
	return preview, nil
}

// FetchAll fetches previews for every URL concurrently, skipping any that
// fail rather than failing the whole batch.
func (p *Previewer) FetchAll(ctx context.Context, urls []string) []*Preview {
	if len(urls) == 0 {
		return nil
	}
	results := make([]*Preview, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			if preview, err := p.Fetch(ctx, u); err == nil {
				results[idx] = preview
			}
		}(i, u)
	}
	wg.Wait()

	out := make([]*Preview, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (p *Previewer) fromCache(rawURL string) *Preview {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.cache[rawURL]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.preview
}

func (p *Previewer) toCache(rawURL string, preview *Preview) {
	ttl := p.opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultOptions().CacheTTL
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[rawURL] = cacheEntry{preview: preview, expiresAt: time.Now().Add(ttl)}
	if len(p.cache) > 1000 {
		now := time.Now()
		for k, v := range p.cache {
			if now.After(v.expiresAt) {
				delete(p.cache, k)
			}
		}
	}
}

func resolveImageURL(pageURL, imageURL string) string {
	if strings.HasPrefix(imageURL, "http") {
		return imageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return imageURL
	}
	rel, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}
	return base.ResolveReference(rel).String()
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find("meta[name='description']").First().Attr("content"); ok && desc != "" {
		return strings.TrimSpace(desc)
	}
	if p := strings.TrimSpace(doc.Find("p").First().Text()); p != "" {
		return p
	}
	return ""
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func summarize(text string, maxLength int) string {
	text = whitespaceRegex.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" || maxLength <= 0 || len(text) <= maxLength {
		return text
	}
	cut := text[:maxLength]
	if lastSpace := strings.LastIndex(cut, " "); lastSpace > maxLength/2 {
		cut = cut[:lastSpace]
	}
	return cut + "..."
}
