package model

import (
	"fmt"
	"strings"
	"time"
)

// Protocol is the proxy protocol a candidate claims to speak.
type Protocol string

// Protocol types
const (
	ProtocolHTTP   Protocol = "HTTP"
	ProtocolHTTPS  Protocol = "HTTPS"
	ProtocolSOCKS4 Protocol = "SOCKS4"
	ProtocolSOCKS5 Protocol = "SOCKS5"
)

// Unknown is the placeholder for metadata a source did not provide.
const Unknown = "Unknown"

// ParseProtocol maps a source-provided protocol label to a Protocol.
// Matching is case-insensitive; empty or unrecognized labels default to HTTP.
func ParseProtocol(s string) Protocol {
	switch Protocol(strings.ToUpper(strings.TrimSpace(s))) {
	case ProtocolHTTPS:
		return ProtocolHTTPS
	case ProtocolSOCKS4:
		return ProtocolSOCKS4
	case ProtocolSOCKS5:
		return ProtocolSOCKS5
	default:
		return ProtocolHTTP
	}
}

// ValidationState is the result of probing a candidate.
type ValidationState int

const (
	StateUnknown ValidationState = iota
	StateValid
	StateInvalid
)

func (s ValidationState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Candidate is a proxy endpoint under consideration.
//
// Candidates are values: a probe never mutates the candidate it was given,
// it returns an updated copy through WithResult.
type Candidate struct {
	IP        string          `json:"ip"`
	Port      int             `json:"port"`
	Protocol  Protocol        `json:"protocol"`
	Country   string          `json:"country"`
	Anonymity string          `json:"anonymity"`
	State     ValidationState `json:"state"`
	Latency   time.Duration   `json:"latency"` // only set when State == StateValid
}

// NewCandidate builds a candidate with metadata defaults applied.
func NewCandidate(ip string, port int, protocol Protocol) Candidate {
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	return Candidate{
		IP:        ip,
		Port:      port,
		Protocol:  protocol,
		Country:   Unknown,
		Anonymity: Unknown,
	}
}

// Address returns the "ip:port" string. Two candidates with the same
// address are the same entity regardless of their metadata.
func (c Candidate) Address() string {
	return fmt.Sprintf("%s:%d", c.IP, c.Port)
}

// LatencyMillis reports the measured latency in milliseconds. ok is false
// unless the candidate has been validated successfully.
func (c Candidate) LatencyMillis() (ms int64, ok bool) {
	if c.State != StateValid {
		return 0, false
	}
	return c.Latency.Milliseconds(), true
}

// WithResult returns a copy of c carrying the outcome of a probe.
func (c Candidate) WithResult(valid bool, latency time.Duration) Candidate {
	if valid {
		c.State = StateValid
		c.Latency = latency
	} else {
		c.State = StateInvalid
		c.Latency = 0
	}
	return c
}

// Reset returns a copy of c with its validation result cleared.
func (c Candidate) Reset() Candidate {
	c.State = StateUnknown
	c.Latency = 0
	return c
}

// ValidPort reports whether p is a usable TCP port.
func ValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
