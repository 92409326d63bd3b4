package scraper

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"proxyfinder/internal/model"
)

// ParseLine parses a "host:port" line. ok is false for anything that does
// not split into exactly two non-empty tokens with a valid port.
func ParseLine(line string, protocol model.Protocol) (c model.Candidate, ok bool) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) != 2 {
		return model.Candidate{}, false
	}
	host := strings.TrimSpace(parts[0])
	portStr := strings.TrimSpace(parts[1])
	if host == "" || portStr == "" {
		return model.Candidate{}, false
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || !model.ValidPort(port) {
		return model.Candidate{}, false
	}

	return model.NewCandidate(host, port, protocol), true
}

// ParseLines reads newline-delimited "host:port" pairs. Blank lines and
// lines starting with '#' are skipped, malformed lines are dropped.
func ParseLines(r io.Reader, protocol model.Protocol) ([]model.Candidate, error) {
	var candidates []model.Candidate
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if c, ok := ParseLine(line, protocol); ok {
			candidates = append(candidates, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}

	return candidates, nil
}
