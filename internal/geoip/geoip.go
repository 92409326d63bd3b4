package geoip

import (
	"fmt"
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"

	"proxyfinder/internal/logger"
)

const defaultCacheSize = 4096

type entry struct {
	iso  string
	name string
}

type lookupFunc func(ip net.IP) (iso, name string, err error)

// Service resolves IP addresses to countries using a MaxMind database.
type Service struct {
	db     *geoip2.Reader
	lookup lookupFunc
	cache  *lru.Cache[string, entry]
}

func New(dbPath string, cacheSize int) (*Service, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip db: %w", err)
	}

	s, err := newService(func(ip net.IP) (string, string, error) {
		record, err := db.Country(ip)
		if err != nil {
			return "", "", err
		}
		return record.Country.IsoCode, record.Country.Names["en"], nil
	}, cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func newService(lookup lookupFunc, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, entry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Service{lookup: lookup, cache: cache}, nil
}

func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the ISO code and English name of the country of ipStr.
func (s *Service) Lookup(ipStr string) (string, string, error) {
	if e, ok := s.cache.Get(ipStr); ok {
		return e.iso, e.name, nil
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", "", fmt.Errorf("invalid IP address: %s", ipStr)
	}

	iso, name, err := s.lookup(ip)
	if err != nil {
		return "", "", fmt.Errorf("geoip lookup failed: %w", err)
	}

	s.cache.Add(ipStr, entry{iso: iso, name: name})
	return iso, name, nil
}

// Country implements scraper.CountryResolver. Hostnames and addresses
// without a country record resolve to nothing.
func (s *Service) Country(ip string) (string, bool) {
	iso, _, err := s.Lookup(ip)
	if err != nil {
		l := logger.WithComponent("GeoIP")
		l.Debug().Err(err).Str("ip", ip).Msg("Country lookup failed.")
		return "", false
	}
	if iso == "" {
		return "", false
	}
	return iso, true
}
