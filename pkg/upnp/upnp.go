// Package upnp holds the device descriptor model and the HTTP fetch that
// resolves an SSDP probe response's LOCATION into a full descriptor.
package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/ssdp"
)

// Device is the immutable descriptor of one network-visible receiver.
// Equality is by value; discovery swaps the whole record when a device's
// description changes.
type Device struct {
	ID             string // stable uuid extracted from the UDN element
	ApplicationURL string // base control URL for application launch
	FriendlyName   string
	Manufacturer   string
	ModelName      string
}

// Host returns the hostname part of the control URL, used to derive the
// default websocket endpoint.
func (d Device) Host() string {
	u, err := url.Parse(d.ApplicationURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

const (
	// Primary and alternate response headers carrying the control URL.
	applicationDialURLHeader = "Application-DIAL-URL"
	applicationURLHeader     = "Application-URL"

	descriptionTimeout = 5 * time.Second
	maxDescriptionSize = 256 << 10
)

// description mirrors the required elements of the descriptor XML.
type description struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

// Client fetches and decodes device descriptions.
type Client struct {
	http   *http.Client
	logger *Logger.Logger
}

// NewClient builds a description client. A nil httpClient gets a default
// with a bounded timeout; a nil logger is silenced.
func NewClient(httpClient *http.Client, logger *Logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: descriptionTimeout}
	}
	return &Client{http: httpClient, logger: Logger.OrNop(logger)}
}

// DeviceDescription GETs the given LOCATION and decodes the descriptor.
// Any missing required header or element fails the whole fetch; the
// discovery engine then simply does not add the device.
func (c *Client) DeviceDescription(ctx context.Context, location string) (*Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("upnp: bad location %q: %w", location, err)
	}
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upnp: description fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upnp: description fetch returned %d", resp.StatusCode)
	}

	appURL := resp.Header.Get(applicationDialURLHeader)
	if appURL == "" {
		appURL = resp.Header.Get(applicationURLHeader)
	}
	if appURL == "" {
		return nil, fmt.Errorf("upnp: response from %s has no application URL header", location)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return nil, fmt.Errorf("upnp: reading description: %w", err)
	}
	var desc description
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("upnp: decoding description: %w", err)
	}
	for name, value := range map[string]string{
		"friendlyName": desc.Device.FriendlyName,
		"manufacturer": desc.Device.Manufacturer,
		"modelName":    desc.Device.ModelName,
		"UDN":          desc.Device.UDN,
	} {
		if value == "" {
			return nil, fmt.Errorf("upnp: description missing %s element", name)
		}
	}
	id, err := ssdp.DeviceID(desc.Device.UDN)
	if err != nil {
		return nil, fmt.Errorf("upnp: bad UDN %q: %w", desc.Device.UDN, err)
	}

	c.logger.Debugf("resolved description for %s (%s)", desc.Device.FriendlyName, id)
	return &Device{
		ID:             id,
		ApplicationURL: appURL,
		FriendlyName:   desc.Device.FriendlyName,
		Manufacturer:   desc.Device.Manufacturer,
		ModelName:      desc.Device.ModelName,
	}, nil
}
