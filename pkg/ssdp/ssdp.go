// Package ssdp implements the wire codec for the simplified SSDP probe
// protocol used to discover cast receivers: M-SEARCH requests multicast over
// UDP and the unicast 200 OK responses devices answer with. The package is
// transport-free; socket ownership lives with the discovery engine.
package ssdp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MulticastAddr is the well-known SSDP multicast group and port.
	MulticastAddr = "239.255.255.250:1900"

	// DefaultMaxWait is the MX value (seconds) advertised in search
	// requests when none is set.
	DefaultMaxWait = 3

	searchStartLine   = "M-SEARCH * HTTP/1.1"
	responseStartLine = "HTTP/1.1 200 OK"
	discoverMan       = `"ssdp:discover"`
)

var (
	ErrNotSearchRequest  = errors.New("ssdp: not an M-SEARCH request")
	ErrNotSearchResponse = errors.New("ssdp: not a search response")
	ErrMissingLocation   = errors.New("ssdp: response has no LOCATION header")
	ErrMissingUSN        = errors.New("ssdp: response has no USN header")
	ErrNoDeviceID        = errors.New("ssdp: USN carries no uuid")
)

// SearchRequest is an outgoing discovery probe for one search target.
type SearchRequest struct {
	Host         string // defaults to MulticastAddr
	MaxSeconds   int    // MX header, defaults to DefaultMaxWait
	SearchTarget string // ST header
}

// Bytes renders the request in wire form.
func (r SearchRequest) Bytes() []byte {
	host := r.Host
	if host == "" {
		host = MulticastAddr
	}
	mx := r.MaxSeconds
	if mx <= 0 {
		mx = DefaultMaxWait
	}
	var b strings.Builder
	b.WriteString(searchStartLine + "\r\n")
	b.WriteString("HOST: " + host + "\r\n")
	b.WriteString("MAN: " + discoverMan + "\r\n")
	b.WriteString("MX: " + strconv.Itoa(mx) + "\r\n")
	b.WriteString("ST: " + r.SearchTarget + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseSearchRequest decodes an inbound M-SEARCH. Used by responders (the
// device emulator); controllers only ever parse responses.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	start, headers, err := splitMessage(data)
	if err != nil {
		return nil, err
	}
	if start != searchStartLine {
		return nil, ErrNotSearchRequest
	}
	if headers["man"] != discoverMan {
		return nil, fmt.Errorf("ssdp: bad MAN header %q", headers["man"])
	}
	req := &SearchRequest{
		Host:         headers["host"],
		SearchTarget: headers["st"],
	}
	if mx, err := strconv.Atoi(headers["mx"]); err == nil {
		req.MaxSeconds = mx
	}
	return req, nil
}

// SearchResponse is a device's answer to a probe.
type SearchResponse struct {
	Location     string // URL of the device description
	Server       string
	SearchTarget string // ST echoed back
	USN          string // unique service name, carries the device uuid
}

// Bytes renders the response in wire form.
func (r SearchResponse) Bytes() []byte {
	var b strings.Builder
	b.WriteString(responseStartLine + "\r\n")
	b.WriteString("LOCATION: " + r.Location + "\r\n")
	b.WriteString("CACHE-CONTROL: max-age=1800\r\n")
	b.WriteString("EXT:\r\n")
	b.WriteString("SERVER: " + r.Server + "\r\n")
	b.WriteString("ST: " + r.SearchTarget + "\r\n")
	b.WriteString("USN: " + r.USN + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseSearchResponse decodes a probe response. LOCATION and USN are
// mandatory since the discovery engine cannot act without them.
func ParseSearchResponse(data []byte) (*SearchResponse, error) {
	start, headers, err := splitMessage(data)
	if err != nil {
		return nil, err
	}
	if start != responseStartLine {
		return nil, ErrNotSearchResponse
	}
	resp := &SearchResponse{
		Location:     headers["location"],
		Server:       headers["server"],
		SearchTarget: headers["st"],
		USN:          headers["usn"],
	}
	if resp.Location == "" {
		return nil, ErrMissingLocation
	}
	if resp.USN == "" {
		return nil, ErrMissingUSN
	}
	return resp, nil
}

// DeviceID extracts the stable device id from a USN value of the form
// "uuid:<id>" optionally followed by "::<suffix>".
func DeviceID(usn string) (string, error) {
	rest, ok := strings.CutPrefix(usn, "uuid:")
	if !ok {
		return "", ErrNoDeviceID
	}
	if i := strings.Index(rest, "::"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", ErrNoDeviceID
	}
	return rest, nil
}

// splitMessage separates the start line from the header block. Lines are
// CRLF-separated on the wire but bare LF is tolerated.
func splitMessage(data []byte) (string, map[string]string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return "", nil, errors.New("ssdp: empty message")
	}
	headers := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return strings.TrimSpace(lines[0]), headers, nil
}
