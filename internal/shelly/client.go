package shelly

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second
)

// Client represents an HTTP client for one device on a routable network.
type Client struct {
	// BaseURL is the base URL for the device (e.g., "http://192.168.1.57")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool
}

// NewClient creates a new device client for an address or hostname.
func NewClient(addr string) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s", addr))
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               baseURL,
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Ping performs a simple health check on the device.
// Returns nil if the device is reachable and responding.
func (c *Client) Ping() error {
	_, err := c.fetch(StatusURL(c.BaseURL))
	return err
}

// Status retrieves the device's live state.
func (c *Client) Status() (*Status, error) {
	body, err := c.get(StatusURL(c.BaseURL))
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, NewParseError(c.BaseURL, "failed to parse status response", err)
	}
	return &st, nil
}

// Settings retrieves the device's persistent configuration.
func (c *Client) Settings() (*Settings, error) {
	body, err := c.get(SettingsURL(c.BaseURL))
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, NewParseError(c.BaseURL, "failed to parse settings response", err)
	}
	return &s, nil
}

// Join pushes target-network parameters. The device stores them and
// reboots onto the new network; the response only acknowledges storage.
func (c *Client) Join(p JoinParams) error {
	_, err := c.get(JoinURL(c.BaseURL, p))
	return err
}

// ApplySettings reads the device's configuration back, applying any
// supplied metadata in the same call.
func (c *Client) ApplySettings(m MetaParams) (json.RawMessage, error) {
	body, err := c.get(SettingsApplyURL(c.BaseURL, m))
	if err != nil {
		return nil, err
	}
	var probe map[string]interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, NewParseError(c.BaseURL, "failed to parse settings response", err)
	}
	return json.RawMessage(body), nil
}

// StatusRaw retrieves the live state as uninterpreted JSON for the
// device record.
func (c *Client) StatusRaw() (json.RawMessage, error) {
	body, err := c.get(StatusURL(c.BaseURL))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// OTA retrieves the firmware updater state.
func (c *Client) OTA() (*OTAStatus, error) {
	body, err := c.get(OTAStatusURL(c.BaseURL))
	if err != nil {
		return nil, err
	}
	var o OTAStatus
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, NewParseError(c.BaseURL, "failed to parse updater response", err)
	}
	return &o, nil
}

// TriggerOTA asks the device to fetch and install its standard firmware.
func (c *Client) TriggerOTA() error {
	_, err := c.get(OTATriggerURL(c.BaseURL))
	return err
}

// TriggerOTAFrom asks the device to install firmware from an explicit URL.
func (c *Client) TriggerOTAFrom(imageURL string) error {
	_, err := c.get(OTASourceURL(c.BaseURL, imageURL))
	return err
}

// FactoryReset wipes the device's settings. The device reboots back into
// its factory setup network.
func (c *Client) FactoryReset() error {
	_, err := c.get(FactoryResetURL(c.BaseURL))
	return err
}

// Toggle flips the device relay once, for physical identification.
func (c *Client) Toggle() error {
	return c.ToggleChannel("relay")
}

// ToggleChannel flips a specific channel kind ("relay" or "light").
func (c *Client) ToggleChannel(channel string) error {
	_, err := c.get(ChannelToggleURL(c.BaseURL, channel))
	return err
}

// get fetches a URL with retries and exponential backoff. Only network
// failures retry; HTTP-level errors return immediately.
func (c *Client) get(rawURL string) ([]byte, error) {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(currentDelay)
			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		body, err := c.fetch(rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !IsNetworkError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// fetch performs a single GET against the device
func (c *Client) fetch(rawURL string) ([]byte, error) {
	resp, err := c.HTTPClient.Get(rawURL)
	if err != nil {
		return nil, NewNetworkError(c.BaseURL, "device unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(c.BaseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(c.BaseURL, "failed to read response body", err)
	}
	return body, nil
}
