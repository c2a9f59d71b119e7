// Package dial implements the HTTP application-launch client: it resolves a
// remote application's descriptor and issues start/stop requests against the
// device's application control URL.
package dial

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/goocast/pkg/Logger"
)

// State of a remote application as reported by its descriptor.
type State string

const (
	StateRunning     State = "running"
	StateStopped     State = "stopped"
	StateHidden      State = "hidden"
	StateInstallable State = "installable"
)

// Application is the decoded DIAL descriptor of one application.
type Application struct {
	Name       string
	AllowStop  bool
	State      State
	InstallURL string // set when State is StateInstallable
	RunLink    string // href of the run link, may be relative
	App2AppURL string // websocket endpoint advertised in additionalData
	Version    string
}

// HTTPError reports a non-success status from the remote endpoint.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("dial: unexpected HTTP status %d", e.StatusCode)
}

const requestTimeout = 5 * time.Second

// Client talks to one device's application control endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *Logger.Logger
}

// NewClient builds a client rooted at the device's application control URL.
func NewClient(baseURL string, httpClient *http.Client, logger *Logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  Logger.OrNop(logger),
	}
}

// serviceDesc mirrors the descriptor XML. Namespace prefixes on the
// additionalData children are matched by local name.
type serviceDesc struct {
	XMLName xml.Name `xml:"service"`
	Name    string   `xml:"name"`
	Options struct {
		AllowStop bool `xml:"allowStop,attr"`
	} `xml:"options"`
	State string `xml:"state"`
	Link  struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Additional struct {
		App2AppURL string `xml:"X_OCAST_App2AppURL"`
		Version    string `xml:"X_OCAST_Version"`
	} `xml:"additionalData"`
}

// Application fetches and decodes the descriptor for the named application.
func (c *Client) Application(ctx context.Context, name string) (*Application, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.applicationURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dial: descriptor fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("dial: reading descriptor: %w", err)
	}

	var desc serviceDesc
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("dial: decoding descriptor: %w", err)
	}
	app := &Application{
		Name:       desc.Name,
		AllowStop:  desc.Options.AllowStop,
		RunLink:    desc.Link.Href,
		App2AppURL: desc.Additional.App2AppURL,
		Version:    desc.Additional.Version,
	}
	// state is either a bare word or "installable=<url>".
	state, installURL, _ := strings.Cut(desc.State, "=")
	app.State = State(state)
	if app.State == StateInstallable {
		app.InstallURL = installURL
	}
	c.logger.Debugf("application %s is %s", app.Name, app.State)
	return app, nil
}

// Start launches the named application. The DIAL contract reports success
// with 200 (already running) or 201 (started).
func (c *Client) Start(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.applicationURL(name), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial: start request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Stop fetches the application descriptor, verifies stopping is allowed and
// DELETEs the run instance.
func (c *Client) Stop(ctx context.Context, name string) error {
	app, err := c.Application(ctx, name)
	if err != nil {
		return err
	}
	if !app.AllowStop {
		return fmt.Errorf("dial: application %s does not allow stop", name)
	}
	instance, err := c.runInstanceURL(name, app.RunLink)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, instance, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial: stop request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) applicationURL(name string) string {
	return c.baseURL + "/" + name
}

// runInstanceURL resolves the run link against the application URL. An
// absolute href is used as-is, a relative one is appended, a missing one
// falls back to the conventional "run" segment.
func (c *Client) runInstanceURL(name, href string) (string, error) {
	if href == "" {
		href = "run"
	}
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href, nil
	}
	return c.applicationURL(name) + "/" + href, nil
}
