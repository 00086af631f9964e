package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/daemon"
	"github.com/google/uuid"
)

// client calls the daemon on behalf of one learner.
type client struct {
	base    string
	learner uuid.UUID
	http    *http.Client
}

// apiError is the daemon's error body.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// daemonAddr resolves the daemon base URL from the environment, then the
// local config, then the default port.
func daemonAddr() string {
	if addr := os.Getenv(daemonAddrEnv); addr != "" {
		return addr
	}
	if cfg, err := config.LoadLocalConfig(); err == nil {
		return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
	}
	return defaultDaemon
}

func newClient(base string, learner uuid.UUID) *client {
	return &client{
		base:    base,
		learner: learner,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// learnerClient parses the shared -learner flag plus any command flags
// registered on fs, then returns a client for the daemon.
func learnerClient(fs *flag.FlagSet, args []string) (*client, error) {
	raw := fs.String("learner", os.Getenv(learnerEnvVar), "learner UUID")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	learner, err := uuid.Parse(*raw)
	if err != nil || learner == uuid.Nil {
		return nil, fmt.Errorf("a learner UUID is required (-learner or %s)", learnerEnvVar)
	}
	if !isRunning() {
		return nil, fmt.Errorf("daemon not running (run 'cyberquest start' first)")
	}
	return newClient(daemonAddr(), learner), nil
}

// get decodes the JSON response of path into out.
func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.learner != uuid.Nil {
		req.Header.Set(daemon.LearnerIDHeader, c.learner.String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	c := &http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(daemonAddr() + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
