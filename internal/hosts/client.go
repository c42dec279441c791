package hosts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"leasesync/pkg/models"
)

// BlankName stands in for an empty name, the service needs a path segment
const BlankName = "-"

// ErrStatus is returned when the tracking service answers with a non-2xx code
var ErrStatus = errors.New("hosts: unexpected status")

// Service is the part of the tracking service the runner talks to
type Service interface {
	Hosts(ctx context.Context) ([]models.TrackedHost, error)
	Apply(ctx context.Context, action PresenceAction) error
}

// Client talks to a WatchYourLAN instance over its HTTP API
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a client for the instance at baseURL
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("target", baseURL).Logger(),
	}
}

// Hosts fetches every host the instance tracks
func (c *Client) Hosts(ctx context.Context) ([]models.TrackedHost, error) {
	body, err := c.get(ctx, "/api/all")
	if err != nil {
		return nil, err
	}

	var hosts []models.TrackedHost
	if err := json.Unmarshal(body, &hosts); err != nil {
		return nil, fmt.Errorf("decode host list: %w", err)
	}

	c.logger.Debug().Int("hosts", len(hosts)).Msg("Fetched tracked hosts")
	return hosts, nil
}

// Rename sets the display name of a host
func (c *Client) Rename(ctx context.Context, id models.HostID, name string) error {
	_, err := c.get(ctx, editPath(id, name))
	return err
}

// Toggle flips the known flag of a host and sets its name
func (c *Client) Toggle(ctx context.Context, id models.HostID, name string) error {
	_, err := c.get(ctx, editPath(id, name)+"/toggle")
	return err
}

// Apply performs one presence action
func (c *Client) Apply(ctx context.Context, action PresenceAction) error {
	if action.Kind.IsToggle() {
		return c.Toggle(ctx, action.ID, action.Name)
	}
	return c.Rename(ctx, action.ID, action.Name)
}

func editPath(id models.HostID, name string) string {
	if strings.TrimSpace(name) == "" {
		name = BlankName
	}
	return "/api/edit/" + url.PathEscape(string(id)) + "/" + url.PathEscape(name)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("url", reqURL).Msg("Tracking service request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, path)
	}
	return body, nil
}
