package websearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"github.com/baibhavbaidya/researchmind-backend/utils"
)

const DefaultDuckDuckGoURL = "https://lite.duckduckgo.com/lite/"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the DuckDuckGo Lite HTML endpoint. It needs no API key
// and serves as the fallback when Tavily is unavailable.
type DuckDuckGo struct {
	baseURL string
	timeout time.Duration
}

func NewDuckDuckGo(baseURL string, timeout time.Duration) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGo{baseURL: baseURL, timeout: timeout}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	searchURL := d.baseURL + "?q=" + url.QueryEscape(query)

	c := colly.NewCollector(colly.StdlibContext(ctx))
	c.SetRequestTimeout(d.timeout)
	c.UserAgent = browserUserAgent

	var (
		results  []Result
		parseErr error
		visitErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnResponse(func(r *colly.Response) {
		body := decodeBody(r.Body, r.Headers.Get("Content-Encoding"), r.Headers.Get("Content-Type"))
		results, parseErr = parseLiteResults(body, maxResults)
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("duckduckgo request failed (status %d): %w", r.StatusCode, err)
	})

	if err := c.Visit(searchURL); err != nil && visitErr == nil {
		visitErr = err
	}
	c.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return results, nil
}

// decodeBody undoes content encodings the standard transport leaves alone,
// such as brotli, and converts the page to UTF-8.
func decodeBody(body []byte, contentEncoding, contentType string) []byte {
	body = utils.DecodeContent(body, contentEncoding)
	if len(body) == 0 {
		return body
	}
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
		return decoded
	}
	return body
}

// parseLiteResults extracts result links and their snippets. Each result is an
// anchor with class result-link; its snippet sits in the following table row.
func parseLiteResults(body []byte, maxResults int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []Result
	doc.Find("a.result-link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		link := cleanRedirectURL(href)
		if link == "" {
			return true
		}

		snippet := s.Closest("tr").NextAllFiltered("tr").Find("td.result-snippet").First().Text()
		results = append(results, Result{
			Title:    strings.TrimSpace(s.Text()),
			URL:      link,
			Snippet:  strings.Join(strings.Fields(snippet), " "),
			Provider: "duckduckgo",
		})
		return maxResults <= 0 || len(results) < maxResults
	})
	return results, nil
}

// cleanRedirectURL extracts the target from DuckDuckGo's /l/?uddg= redirect links.
func cleanRedirectURL(raw string) string {
	if !strings.Contains(raw, "uddg=") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("uddg")
}
