package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"proxyfinder/internal/model"
)

// ProxyScanSource reads the ProxyScan JSON API.
type ProxyScanSource struct {
	baseURL   string
	limit     int
	proxyType string // optional server-side type filter
	client    *http.Client
}

type proxyScanProxy struct {
	IP       *string  `json:"Ip"`
	Port     *int     `json:"Port"`
	Type     []string `json:"Type"`
	Location *struct {
		Country *string `json:"country"`
	} `json:"Location"`
}

func NewProxyScanSource(baseURL string, limit int, proxyType string, client *http.Client) *ProxyScanSource {
	if limit <= 0 {
		limit = 100
	}
	return &ProxyScanSource{
		baseURL:   baseURL,
		limit:     limit,
		proxyType: proxyType,
		client:    client,
	}
}

func (s *ProxyScanSource) Name() string {
	return "proxyscan"
}

func (s *ProxyScanSource) requestURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(s.limit))
	if s.proxyType != "" {
		q.Set("type", s.proxyType)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *ProxyScanSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	reqURL, err := s.requestURL()
	if err != nil {
		return nil, err
	}

	body, err := get(ctx, s.client, reqURL)
	if err != nil {
		return nil, err
	}

	var records []proxyScanProxy
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	proxies := make([]model.Candidate, 0, len(records))
	for _, r := range records {
		if r.IP == nil || r.Port == nil {
			continue
		}
		ip := strings.TrimSpace(*r.IP)
		if ip == "" || !model.ValidPort(*r.Port) {
			continue
		}
		c := model.NewCandidate(ip, *r.Port, firstProtocol(r.Type))
		if r.Location != nil {
			c.Country = orUnknown(r.Location.Country)
		}
		proxies = append(proxies, c)
	}
	return proxies, nil
}
