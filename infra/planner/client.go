// Package planner is the REST client for the mission planning collaborator:
// mission definitions by id and the fleet reposition capability.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aeroswarm/aeroswarm/core/logger"
	"github.com/aeroswarm/aeroswarm/core/model"
)

// Config defines the planner endpoint.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:7011"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Client talks to the planner REST surface.
type Client struct {
	client *http.Client
	base   string
	log    logger.Logger
}

// New creates a planner client.
func New(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	return &Client{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		base:   cfg.BaseURL,
		log:    log,
	}
}

// FetchMission retrieves a mission definition by id.
func (c *Client) FetchMission(ctx context.Context, id string) (*model.Mission, error) {
	u := fmt.Sprintf("%s/missions/%s", c.base, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch mission %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch mission %s: unexpected status %s", id, resp.Status)
	}
	var m model.Mission
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("fetch mission %s: decode: %w", id, err)
	}
	if m.ID == "" {
		m.ID = id
	}
	return &m, nil
}

type repositionRequest struct {
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Radius  float64 `json:"radius"`
}

// Reposition teleports the fleet around the given center within the radius.
func (c *Client) Reposition(ctx context.Context, centerX, centerY, radius float64) error {
	body, err := json.Marshal(repositionRequest{CenterX: centerX, CenterY: centerY, Radius: radius})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/reposition", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reposition: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reposition: unexpected status %s", resp.Status)
	}
	return nil
}
