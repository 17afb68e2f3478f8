package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pbaille/nipslock/internal/domain"
	"github.com/pbaille/nipslock/internal/nips"
	"golang.org/x/net/html"
)

const (
	DefaultBaseURL   = "https://raw.githubusercontent.com/nostr-protocol/nips"
	DefaultUserAgent = "nips-lock-sync/1.0"
	DefaultTimeout   = 20 * time.Second
	DefaultMaxBody   = 5 * 1024 * 1024
)

// Options configures a Fetcher. Zero values fall back to the defaults above.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	MaxBody   int64
}

// Fetcher retrieves raw NIP markdown over HTTP
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	maxBody   int64
}

// New creates a Fetcher
func New(opts Options) (*Fetcher, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	return &Fetcher{client: &http.Client{Timeout: timeout}, baseURL: base, userAgent: ua, maxBody: maxBody}, nil
}

// URL returns the raw document location of a NIP at ref
func (f *Fetcher) URL(nip int, ref string) string {
	return BuildURL(f.baseURL, ref, nip)
}

// BuildURL interpolates <base>/<ref>/<two-digit-nip>.md
func BuildURL(base, ref string, nip int) string {
	return fmt.Sprintf("%s/%s/%s.md", strings.TrimRight(base, "/"), ref, nips.Pad(nip))
}

// Fetch performs a single GET for the NIP and returns its body as text.
// Any failure is reported as a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, nip int, ref string) (string, error) {
	target := f.URL(nip, ref)
	text, err := f.get(ctx, target)
	if err != nil {
		return "", &domain.FetchError{NIP: nip, URL: target, Err: err}
	}
	return text, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// One byte past the limit tells an oversized body apart from an exact fit
	limited := io.LimitReader(resp.Body, f.maxBody+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return "", fmt.Errorf("body exceeds %d bytes", f.maxBody)
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		return "", fmt.Errorf("got HTML page instead of markdown: %q", pageTitle(body))
	}

	if !utf8.Valid(body) {
		return "", errors.New("body is not valid UTF-8")
	}

	return string(body), nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// pageTitle returns the <title> text of an HTML page, if any
func pageTitle(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	var title string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	return title
}
