package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyfinder/internal/model"
)

const geonodePayload = `{"data":[
	{"ip":"1.1.1.1","port":"80","country":"US","protocols":["http","https"],"anonymityLevel":"elite"},
	{"ip":"2.2.2.2","port":1080,"country":null,"protocols":["socks5"],"anonymityLevel":null},
	{"ip":"3.3.3.3","port":"abc","protocols":["http"]},
	{"ip":"","port":"80"},
	{"ip":"4.4.4.4","port":"3128"}
]}`

func TestGeonodeSource_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/proxy-list", r.URL.Path)
		assert.Equal(t, "500", q.Get("limit"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "lastChecked", q.Get("sort_by"))
		assert.Equal(t, "desc", q.Get("sort_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geonodePayload))
	}))
	defer ts.Close()

	proxies, err := NewGeonodeSource(ts.URL+"/api/proxy-list", 0, ts.Client()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	assert.Equal(t, model.Candidate{
		IP: "1.1.1.1", Port: 80, Protocol: model.ProtocolHTTP, Country: "US", Anonymity: "elite",
	}, proxies[0])
	assert.Equal(t, model.ProtocolSOCKS5, proxies[1].Protocol)
	assert.Equal(t, model.Unknown, proxies[1].Country)
	assert.Equal(t, model.Unknown, proxies[1].Anonymity)
	assert.Equal(t, model.ProtocolHTTP, proxies[2].Protocol, "missing protocols default to HTTP")
}

func TestGeonodeSource_MalformedPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))
	defer ts.Close()

	_, err := NewGeonodeSource(ts.URL, 10, ts.Client()).Fetch(context.Background())
	assert.ErrorContains(t, err, "decode response")
}
