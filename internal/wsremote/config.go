package wsremote

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config locates a hub project.
type Config struct {
	// URL of the hub, e.g. ws://localhost:8787. The /ws path is added when
	// missing; http and https are accepted and converted.
	URL string

	// Project names the shared planner on the hub.
	Project string

	// DialTimeout bounds the initial connection (default 10s).
	DialTimeout time.Duration

	// RequestTimeout bounds each request when the caller's context has no
	// deadline (default 15s).
	RequestTimeout time.Duration
}

// Validate reports whether the config can produce a collaborator. URL and
// project are required.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.URL) == "" {
		errs = append(errs, errors.New("remote url is required"))
	} else if _, err := c.endpoint(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Project) == "" {
		errs = append(errs, errors.New("remote project is required"))
	}
	return errors.Join(errs...)
}

// endpoint builds the websocket URL including the project query.
func (c Config) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return "", fmt.Errorf("invalid remote url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid remote url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("invalid remote url: missing host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("project", strings.TrimSpace(c.Project))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 10 * time.Second
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return 15 * time.Second
}
