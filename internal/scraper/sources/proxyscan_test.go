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

func TestProxyScanSource_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "socks5", q.Get("type"))
		_, _ = w.Write([]byte(`[
			{"Ip":"2.2.2.2","Port":8080,"Type":["SOCKS5"],"Location":{"country":"DE"}},
			{"Ip":"5.5.5.5","Port":3128,"Type":[],"Location":null},
			{"Ip":null,"Port":80},
			{"Ip":"6.6.6.6"}
		]`))
	}))
	defer ts.Close()

	proxies, err := NewProxyScanSource(ts.URL, 100, "socks5", ts.Client()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 2)

	assert.Equal(t, "2.2.2.2:8080", proxies[0].Address())
	assert.Equal(t, model.ProtocolSOCKS5, proxies[0].Protocol)
	assert.Equal(t, "DE", proxies[0].Country)
	assert.Equal(t, model.Unknown, proxies[0].Anonymity)

	assert.Equal(t, model.ProtocolHTTP, proxies[1].Protocol)
	assert.Equal(t, model.Unknown, proxies[1].Country)
}

func TestProxyScanSource_OmitsEmptyType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["type"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	proxies, err := NewProxyScanSource(ts.URL, 0, "", ts.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, proxies)
}
