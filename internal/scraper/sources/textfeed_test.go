package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyfinder/internal/model"
)

func TestTextFeedSource_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprintln(w, "1.1.1.1:8080")
		fmt.Fprintln(w, "2.2.2.2:9000")
		fmt.Fprintln(w, "invalid_line")
		fmt.Fprintln(w, "3.3.3.3:1:2")
		fmt.Fprintln(w, "# comment")
	}))
	defer ts.Close()

	source := NewTextFeedSource("test_source", ts.URL, model.ProtocolSOCKS4, ts.Client())

	proxies, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 2)

	assert.Equal(t, "1.1.1.1", proxies[0].IP)
	assert.Equal(t, 8080, proxies[0].Port)
	assert.Equal(t, model.ProtocolSOCKS4, proxies[0].Protocol)
	assert.Equal(t, "2.2.2.2:9000", proxies[1].Address())
}

func TestTextFeedSource_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewTextFeedSource("down", ts.URL, model.ProtocolHTTP, ts.Client()).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
