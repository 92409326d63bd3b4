package sources

import (
	"bytes"
	"context"
	"net/http"

	"proxyfinder/internal/model"
	"proxyfinder/internal/scraper"
)

// TextFeedSource scrapes proxies from a plain-text "host:port" list. Every
// entry gets the feed's protocol.
type TextFeedSource struct {
	name     string
	url      string
	protocol model.Protocol
	client   *http.Client
}

func NewTextFeedSource(name, url string, protocol model.Protocol, client *http.Client) *TextFeedSource {
	return &TextFeedSource{
		name:     name,
		url:      url,
		protocol: protocol,
		client:   client,
	}
}

func (s *TextFeedSource) Name() string {
	return s.name
}

func (s *TextFeedSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	body, err := get(ctx, s.client, s.url)
	if err != nil {
		return nil, err
	}
	return scraper.ParseLines(bytes.NewReader(body), s.protocol)
}
