// Package remote lists and downloads tracks served from an HTTP directory index.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebovdev/cookie-player/internal/track"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"golang.org/x/net/html"
)

const (
	listTimeout  = 30 * time.Second
	fetchTimeout = 5 * time.Minute
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Status)
}

// Client talks to one server, optionally with basic auth. Credentials stay in
// memory for the life of the client.
type Client struct {
	client *resty.Client
}

func NewClient(username, password string) *Client {
	c := resty.New().SetTimeout(fetchTimeout)
	if username != "" {
		c.SetBasicAuth(username, password)
	}
	return &Client{client: c}
}

// ListTracks fetches the index page at listingURL and returns the hrefs of
// music files it links to, in page order without duplicates.
func (c *Client) ListTracks(ctx context.Context, listingURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	body, err := c.get(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	links, err := ParseLinks(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	files := lo.Filter(links, func(link string, _ int) bool {
		return link != "../" && !strings.HasSuffix(link, "/") && track.IsMusicFile(link)
	})
	return lo.Uniq(files), nil
}

// Fetch downloads the whole resource at url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode(), Status: resp.Status()}
	}

	return resp.Body(), nil
}

// ParseLinks returns the href of every anchor in an HTML document.
func ParseLinks(page []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					links = append(links, attr.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links, nil
}
