package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Lookup(t *testing.T) {
	// Skips unless the GeoLite database has been downloaded into data/.
	dbPath := "../../data/GeoLite2-Country.mmdb"

	svc, err := New(dbPath, 0)
	if err != nil {
		t.Skipf("Skipping test: DB file not found at %s: %v", dbPath, err)
	}
	defer svc.Close()

	tests := []struct {
		ip      string
		wantISO string
	}{
		{"8.8.8.8", "US"},
	}

	for _, tt := range tests {
		iso, name, err := svc.Lookup(tt.ip)
		if err != nil {
			t.Errorf("Lookup(%s) error = %v", tt.ip, err)
			continue
		}
		if iso != tt.wantISO {
			t.Errorf("Lookup(%s) ISO = %v, want %v (Name: %s)", tt.ip, iso, tt.wantISO, name)
		}
	}
}

func TestService_CachesLookups(t *testing.T) {
	calls := 0
	svc, err := newService(func(ip net.IP) (string, string, error) {
		calls++
		if ip.Equal(net.ParseIP("10.0.0.1")) {
			return "", "", nil
		}
		return "DE", "Germany", nil
	}, 8)
	require.NoError(t, err)
	defer svc.Close()

	for i := 0; i < 3; i++ {
		iso, name, err := svc.Lookup("1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "DE", iso)
		assert.Equal(t, "Germany", name)
	}
	assert.Equal(t, 1, calls)

	country, ok := svc.Country("1.2.3.4")
	assert.True(t, ok)
	assert.Equal(t, "DE", country)

	_, ok = svc.Country("10.0.0.1")
	assert.False(t, ok, "no country record")
	_, ok = svc.Country("proxy.example.com")
	assert.False(t, ok, "hostnames are not resolved")
}

func TestService_LookupError(t *testing.T) {
	svc, err := newService(func(net.IP) (string, string, error) {
		return "", "", errors.New("corrupt db")
	}, 0)
	require.NoError(t, err)

	_, _, err = svc.Lookup("1.2.3.4")
	assert.ErrorContains(t, err, "geoip lookup failed")
	_, ok := svc.Country("1.2.3.4")
	assert.False(t, ok)
}
