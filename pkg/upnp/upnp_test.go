package upnp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const descriptionBody = `<?xml version="1.0" encoding="UTF-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <friendlyName>Living Room Stick</friendlyName>
    <manufacturer>Orange SA</manufacturer>
    <modelName>cast-stick-v2</modelName>
    <UDN>uuid:device-1</UDN>
  </device>
</root>`

func descriptionServer(t *testing.T, header, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header != "" {
			w.Header().Set(header, "http://10.0.0.5:8008/apps")
		}
		w.Write([]byte(body))
	}))
}

func TestDeviceDescription(t *testing.T) {
	srv := descriptionServer(t, "Application-DIAL-URL", descriptionBody)
	defer srv.Close()

	dev, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL+"/dd.xml")
	if err != nil {
		t.Fatalf("Failed to resolve description: %v", err)
	}
	if dev.ID != "device-1" {
		t.Errorf("Expected id device-1, got %q", dev.ID)
	}
	if dev.ApplicationURL != "http://10.0.0.5:8008/apps" {
		t.Errorf("Expected application URL from header, got %q", dev.ApplicationURL)
	}
	if dev.FriendlyName != "Living Room Stick" {
		t.Errorf("Expected friendly name, got %q", dev.FriendlyName)
	}
	if dev.Manufacturer != "Orange SA" {
		t.Errorf("Expected manufacturer, got %q", dev.Manufacturer)
	}
	if dev.ModelName != "cast-stick-v2" {
		t.Errorf("Expected model name, got %q", dev.ModelName)
	}
}

func TestDeviceDescriptionHeaderFallback(t *testing.T) {
	// Devices predating the DIAL-specific header advertise Application-URL.
	srv := descriptionServer(t, "Application-URL", descriptionBody)
	defer srv.Close()

	dev, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Failed to resolve description: %v", err)
	}
	if dev.ApplicationURL != "http://10.0.0.5:8008/apps" {
		t.Errorf("Expected fallback application URL, got %q", dev.ApplicationURL)
	}
}

func TestDeviceDescriptionNoApplicationURL(t *testing.T) {
	srv := descriptionServer(t, "", descriptionBody)
	defer srv.Close()

	if _, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL); err == nil {
		t.Error("Expected an error without an application URL header")
	}
}

func TestDeviceDescriptionMissingElement(t *testing.T) {
	body := strings.Replace(descriptionBody, "<modelName>cast-stick-v2</modelName>", "", 1)
	srv := descriptionServer(t, "Application-DIAL-URL", body)
	defer srv.Close()

	_, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected an error for a description without modelName")
	}
	if !strings.Contains(err.Error(), "modelName") {
		t.Errorf("Expected the error to name the missing element, got %v", err)
	}
}

func TestDeviceDescriptionBadUDN(t *testing.T) {
	body := strings.Replace(descriptionBody, "uuid:device-1", "device-1", 1)
	srv := descriptionServer(t, "Application-DIAL-URL", body)
	defer srv.Close()

	if _, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL); err == nil {
		t.Error("Expected an error for a UDN without uuid prefix")
	}
}

func TestDeviceDescriptionHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewClient(nil, nil).DeviceDescription(context.Background(), srv.URL); err == nil {
		t.Error("Expected an error for a 404 response")
	}
}

func TestDeviceHost(t *testing.T) {
	dev := Device{ApplicationURL: "http://192.168.1.40:8008/apps"}
	if host := dev.Host(); host != "192.168.1.40" {
		t.Errorf("Expected host 192.168.1.40, got %q", host)
	}
	if host := (Device{}).Host(); host != "" {
		t.Errorf("Expected empty host for empty URL, got %q", host)
	}
}
