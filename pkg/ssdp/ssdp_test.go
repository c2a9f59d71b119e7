package ssdp

import (
	"errors"
	"strings"
	"testing"
)

func TestSearchRequestRoundTrip(t *testing.T) {
	req := SearchRequest{
		SearchTarget: "urn:cast-ocast-org:service:cast:1",
		MaxSeconds:   5,
	}
	wire := string(req.Bytes())

	if !strings.HasPrefix(wire, "M-SEARCH * HTTP/1.1\r\n") {
		t.Errorf("Expected M-SEARCH start line, got %q", wire)
	}
	if !strings.Contains(wire, "HOST: "+MulticastAddr+"\r\n") {
		t.Error("Request should default HOST to the multicast group")
	}
	if !strings.HasSuffix(wire, "\r\n\r\n") {
		t.Error("Request should end with an empty line")
	}

	parsed, err := ParseSearchRequest(req.Bytes())
	if err != nil {
		t.Fatalf("Failed to parse rendered request: %v", err)
	}
	if parsed.SearchTarget != req.SearchTarget {
		t.Errorf("Expected search target %q, got %q", req.SearchTarget, parsed.SearchTarget)
	}
	if parsed.MaxSeconds != 5 {
		t.Errorf("Expected MX 5, got %d", parsed.MaxSeconds)
	}
	if parsed.Host != MulticastAddr {
		t.Errorf("Expected host %q, got %q", MulticastAddr, parsed.Host)
	}
}

func TestSearchRequestDefaultMaxWait(t *testing.T) {
	wire := string(SearchRequest{SearchTarget: "ssdp:all"}.Bytes())
	if !strings.Contains(wire, "MX: 3\r\n") {
		t.Errorf("Expected default MX %d in %q", DefaultMaxWait, wire)
	}
}

func TestParseSearchRequestRejectsResponse(t *testing.T) {
	resp := SearchResponse{
		Location:     "http://10.0.0.5/dd.xml",
		SearchTarget: "ssdp:all",
		USN:          "uuid:abc",
	}
	if _, err := ParseSearchRequest(resp.Bytes()); !errors.Is(err, ErrNotSearchRequest) {
		t.Errorf("Expected ErrNotSearchRequest, got %v", err)
	}
}

func TestParseSearchRequestBadMan(t *testing.T) {
	raw := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:something\"\r\n" +
		"MX: 3\r\n" +
		"ST: ssdp:all\r\n\r\n"
	if _, err := ParseSearchRequest([]byte(raw)); err == nil {
		t.Error("Expected an error for a bad MAN header")
	}
}

func TestSearchResponseRoundTrip(t *testing.T) {
	resp := SearchResponse{
		Location:     "http://10.0.0.5:8008/dd.xml",
		Server:       "ocast-sim",
		SearchTarget: "urn:cast-ocast-org:service:cast:1",
		USN:          "uuid:device-1::urn:cast-ocast-org:service:cast:1",
	}
	parsed, err := ParseSearchResponse(resp.Bytes())
	if err != nil {
		t.Fatalf("Failed to parse rendered response: %v", err)
	}
	if parsed.Location != resp.Location {
		t.Errorf("Expected location %q, got %q", resp.Location, parsed.Location)
	}
	if parsed.Server != resp.Server {
		t.Errorf("Expected server %q, got %q", resp.Server, parsed.Server)
	}
	if parsed.SearchTarget != resp.SearchTarget {
		t.Errorf("Expected ST %q, got %q", resp.SearchTarget, parsed.SearchTarget)
	}
	if parsed.USN != resp.USN {
		t.Errorf("Expected USN %q, got %q", resp.USN, parsed.USN)
	}
}

func TestParseSearchResponseHeaderFolding(t *testing.T) {
	// Header names are case-insensitive and bare LF line endings are
	// tolerated.
	raw := "HTTP/1.1 200 OK\n" +
		"location:  http://10.0.0.5/dd.xml \n" +
		"usn: uuid:abc\n" +
		"st: ssdp:all\n\n"
	parsed, err := ParseSearchResponse([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if parsed.Location != "http://10.0.0.5/dd.xml" {
		t.Errorf("Expected trimmed location, got %q", parsed.Location)
	}
	if parsed.USN != "uuid:abc" {
		t.Errorf("Expected USN uuid:abc, got %q", parsed.USN)
	}
}

func TestParseSearchResponseMandatoryHeaders(t *testing.T) {
	noLocation := "HTTP/1.1 200 OK\r\nUSN: uuid:abc\r\nST: ssdp:all\r\n\r\n"
	if _, err := ParseSearchResponse([]byte(noLocation)); !errors.Is(err, ErrMissingLocation) {
		t.Errorf("Expected ErrMissingLocation, got %v", err)
	}

	noUSN := "HTTP/1.1 200 OK\r\nLOCATION: http://10.0.0.5/dd.xml\r\nST: ssdp:all\r\n\r\n"
	if _, err := ParseSearchResponse([]byte(noUSN)); !errors.Is(err, ErrMissingUSN) {
		t.Errorf("Expected ErrMissingUSN, got %v", err)
	}
}

func TestParseSearchResponseRejectsRequest(t *testing.T) {
	req := SearchRequest{SearchTarget: "ssdp:all"}
	if _, err := ParseSearchResponse(req.Bytes()); !errors.Is(err, ErrNotSearchResponse) {
		t.Errorf("Expected ErrNotSearchResponse, got %v", err)
	}
}

func TestDeviceID(t *testing.T) {
	id, err := DeviceID("uuid:device-1::urn:cast-ocast-org:service:cast:1")
	if err != nil {
		t.Fatalf("Failed to extract id: %v", err)
	}
	if id != "device-1" {
		t.Errorf("Expected device-1, got %q", id)
	}

	id, err = DeviceID("uuid:device-2")
	if err != nil {
		t.Fatalf("Failed to extract bare id: %v", err)
	}
	if id != "device-2" {
		t.Errorf("Expected device-2, got %q", id)
	}

	if _, err := DeviceID("device-3"); !errors.Is(err, ErrNoDeviceID) {
		t.Errorf("Expected ErrNoDeviceID without uuid prefix, got %v", err)
	}
	if _, err := DeviceID("uuid:"); !errors.Is(err, ErrNoDeviceID) {
		t.Errorf("Expected ErrNoDeviceID for empty id, got %v", err)
	}
	if _, err := DeviceID("uuid:::suffix"); !errors.Is(err, ErrNoDeviceID) {
		t.Errorf("Expected ErrNoDeviceID for empty id before separator, got %v", err)
	}
}
