package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/devflow/internal/models"
	"github.com/hyperjump/devflow/internal/ratelimit"
	"github.com/hyperjump/devflow/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultSearchURL   = "https://api.search.brave.com/res/v1/web/search"
	defaultMaxContent  = 5000
	defaultWebTimeout  = 10 * time.Second
	scrapeUserAgent    = "Mozilla/5.0 (compatible; devflow/1.0)"
	maxScrapeBodyBytes = 8 << 20
)

// WebConfig configures a WebClient.
type WebConfig struct {
	SearchURL         string
	APIKey            string
	MaxContentLength  int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// SearchResult is one web search hit, with Content filled in by SearchAndScrape.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// WebClient searches the web through the Brave Search API and scrapes result pages.
type WebClient struct {
	cfg     WebConfig
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewWebClient creates a web client. The API key is only required by Search.
func NewWebClient(cfg WebConfig, logger *zap.Logger) *WebClient {
	if cfg.SearchURL == "" {
		cfg.SearchURL = defaultSearchURL
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RequestsPerSecond, 1),
		logger:  logger,
	}
}

type braveResponse struct {
	Web struct {
		Results []SearchResult `json:"results"`
	} `json:"web"`
}

// Search returns up to count results for query.
func (w *WebClient) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if w.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: web search API key is not set", models.ErrConfiguration)
	}
	if count <= 0 {
		count = 3
	}
	u, err := url.Parse(w.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: search url: %v", models.ErrConfiguration, err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", w.cfg.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		w.limiter.Backoff(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("web search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("web search: decode: %w", err)
	}
	results := out.Web.Results
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// Scrape fetches pageURL and returns its visible text, one block per line, truncated to the
// configured maximum length with a trailing "...".
func (w *WebClient) Scrape(ctx context.Context, pageURL string) (string, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("scrape %s: status %d", pageURL, resp.StatusCode)
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxScrapeBodyBytes))
	if err != nil {
		return "", fmt.Errorf("scrape %s: parse: %w", pageURL, err)
	}
	return utils.Truncate(VisibleText(doc), w.cfg.MaxContentLength), nil
}

// SearchAndScrape searches and scrapes each result, keeping only results that yielded content.
// Scrape failures are logged and skipped.
func (w *WebClient) SearchAndScrape(ctx context.Context, query string, count int) ([]SearchResult, error) {
	results, err := w.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}
	enriched := make([]SearchResult, 0, len(results))
	for _, r := range results {
		content, err := w.Scrape(ctx, r.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.logger.Warn("scrape failed", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		if content == "" {
			continue
		}
		r.Content = content
		enriched = append(enriched, r)
	}
	return enriched, nil
}

// skippedElements never contribute visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Noscript: true,
	atom.Head:     true,
}

// blockElements end the current line.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Pre: true, atom.Blockquote: true, atom.Title: true,
}

// VisibleText returns the text of an HTML tree with non-content elements removed and
// blank lines collapsed.
func VisibleText(doc *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(strings.Map(func(r rune) rune {
				if r == '\n' || r == '\r' {
					return ' '
				}
				return r
			}, n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
