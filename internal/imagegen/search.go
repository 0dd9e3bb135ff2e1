package imagegen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/neuroasura/neuroasura/internal/logger"
)

const (
	DefaultSearchURL = "https://www.bing.com/images/search"

	searchSuffix     = " AI generated art"
	searchCandidates = 5
)

// SearchProvider scrapes an image search page for pictures matching the prompt.
type SearchProvider struct {
	baseProvider
	searchURL string
}

func NewSearchProvider(searchURL string, client HTTPClient, maxSize int, l logger.Logger) *SearchProvider {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return &SearchProvider{
		baseProvider: newBaseProvider(ProviderNameSearch, client, maxSize, l),
		searchURL:    searchURL,
	}
}

func (p *SearchProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	u, err := url.Parse(p.searchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search URL: %w", err)
	}
	query := u.Query()
	query.Set("q", prompt+searchSuffix)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset detection failed: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	candidates := imageURLs(doc, u)
	if len(candidates) == 0 {
		return nil, ErrNoImage
	}
	if len(candidates) > searchCandidates {
		candidates = candidates[:searchCandidates]
	}

	imageURL := candidates[rand.IntN(len(candidates))]
	p.logger.WithField("url", imageURL).Debug("Downloading found image")
	return p.download(ctx, imageURL, map[string]string{"Referer": u.String()})
}

// imageURLs collects absolute http(s) image links in document order, without duplicates.
func imageURLs(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var urls []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-src", "src"} {
			src, ok := s.Attr(attr)
			if !ok {
				continue
			}
			src = strings.TrimSpace(src)
			ref, err := url.Parse(src)
			if err != nil || src == "" {
				continue
			}
			abs := base.ResolveReference(ref)
			if abs.Scheme != "http" && abs.Scheme != "https" {
				continue
			}
			link := abs.String()
			if _, dup := seen[link]; dup {
				break
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			break
		}
	})
	return urls
}
