package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	xhttp "NewsDesk/pkg/http"

	readability "github.com/go-shiori/go-readability"
)

var (
	// ErrNoArticle is returned when a page has no readable text.
	ErrNoArticle = errors.New("no readable article text")
	// ErrUnsupportedURL rejects anything but absolute http(s) URLs.
	ErrUnsupportedURL = errors.New("article url must be absolute http or https")
)

// MaxArticleBytes caps a downloaded page.
const MaxArticleBytes = 5 << 20

// ArticleExtractor turns a page URL into plain article text.
type ArticleExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// ReadabilityExtractor downloads a page through the shared HTTP client and
// keeps only the main article text. The client should carry
// xhttp.WithMaxBodySize; NewReadabilityExtractor's default client does.
type ReadabilityExtractor struct {
	client *xhttp.Client
}

func NewReadabilityExtractor(client *xhttp.Client) *ReadabilityExtractor {
	if client == nil {
		client = xhttp.NewClient(xhttp.WithMaxBodySize(MaxArticleBytes))
	}
	return &ReadabilityExtractor{client: client}
}

func (r *ReadabilityExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, u.Scheme)
	}

	var page []byte
	err = r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     pageURL,
		Headers: map[string]string{"Accept": "text/html"},
	}, &page)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(page), u)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", ErrNoArticle
	}
	return text, nil
}
