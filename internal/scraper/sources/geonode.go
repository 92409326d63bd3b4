package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"proxyfinder/internal/model"
)

// GeonodeSource reads the Geonode proxy-list API.
type GeonodeSource struct {
	baseURL string
	limit   int
	client  *http.Client
}

type geonodeResponse struct {
	Data []geonodeProxy `json:"data"`
}

type geonodeProxy struct {
	IP             string   `json:"ip"`
	Port           flexPort `json:"port"`
	Country        *string  `json:"country"`
	Protocols      []string `json:"protocols"`
	AnonymityLevel *string  `json:"anonymityLevel"`
}

// flexPort accepts a port encoded either as a JSON number or a string.
type flexPort int

func (p *flexPort) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Left at zero so the record is dropped as malformed.
		*p = 0
		return nil
	}
	*p = flexPort(n)
	return nil
}

func NewGeonodeSource(baseURL string, limit int, client *http.Client) *GeonodeSource {
	if limit <= 0 {
		limit = 500
	}
	return &GeonodeSource{
		baseURL: baseURL,
		limit:   limit,
		client:  client,
	}
}

func (s *GeonodeSource) Name() string {
	return "geonode"
}

func (s *GeonodeSource) requestURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(s.limit))
	q.Set("page", "1")
	q.Set("sort_by", "lastChecked")
	q.Set("sort_type", "desc")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *GeonodeSource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	reqURL, err := s.requestURL()
	if err != nil {
		return nil, err
	}

	body, err := get(ctx, s.client, reqURL)
	if err != nil {
		return nil, err
	}

	var resp geonodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	proxies := make([]model.Candidate, 0, len(resp.Data))
	for _, r := range resp.Data {
		ip := strings.TrimSpace(r.IP)
		if ip == "" || !model.ValidPort(int(r.Port)) {
			continue
		}
		c := model.NewCandidate(ip, int(r.Port), firstProtocol(r.Protocols))
		c.Country = orUnknown(r.Country)
		c.Anonymity = orUnknown(r.AnonymityLevel)
		proxies = append(proxies, c)
	}
	return proxies, nil
}

func firstProtocol(protocols []string) model.Protocol {
	if len(protocols) == 0 {
		return model.ProtocolHTTP
	}
	return model.ParseProtocol(protocols[0])
}

func orUnknown(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return model.Unknown
	}
	return strings.TrimSpace(*s)
}
