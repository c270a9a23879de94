// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"golang.org/x/time/rate"
)

// ErrNotProfileLink reports text that is not a Steam community
// profile link.
var ErrNotProfileLink = errors.New("steam: not a profile link")

// ErrNoSuchProfile reports a well-formed link behind which the Web API
// finds no account.
var ErrNoSuchProfile = errors.New("steam: no such profile")

const defaultBaseURL = "https://api.steampowered.com"

// maxResponseSize bounds Web API response reads. Summaries for a
// single account are a few hundred bytes.
const maxResponseSize = 1 << 20

// profilePattern matches the two community URL shapes. The scheme and
// host prefix are optional; people paste links both ways.
var profilePattern = regexp.MustCompile(`^(?:https?://)?steamcommunity\.com/(profiles|id)/([A-Za-z0-9_-]+)/?$`)

// id64Pattern is the 17-digit SteamID64 format.
var id64Pattern = regexp.MustCompile(`^\d{17}$`)

// ProfileRef is a parsed profile link: exactly one of ID64 or Vanity
// is set.
type ProfileRef struct {
	ID64   string
	Vanity string
}

// ParseProfileLink validates link syntax and extracts the account
// reference. Purely local; no network.
func ParseProfileLink(link string) (ProfileRef, error) {
	match := profilePattern.FindStringSubmatch(link)
	if match == nil {
		return ProfileRef{}, fmt.Errorf("steam: %q: %w", link, ErrNotProfileLink)
	}
	switch match[1] {
	case "profiles":
		if !id64Pattern.MatchString(match[2]) {
			return ProfileRef{}, fmt.Errorf("steam: %q is not a SteamID64: %w", match[2], ErrNotProfileLink)
		}
		return ProfileRef{ID64: match[2]}, nil
	default:
		return ProfileRef{Vanity: match[2]}, nil
	}
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// APIKey is the Steam Web API key.
	APIKey string
	// BaseURL overrides the Web API endpoint, for tests.
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// RequestsPerSecond caps the call rate. Default: 1.
	RequestsPerSecond float64
}

// Client calls the Steam Web API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// NewClient creates a Web API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("steam: APIKey is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perSecond := config.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}, nil
}

// Player is the subset of a player summary the lobby consumes.
type Player struct {
	ID64        string `json:"steamid"`
	PersonaName string `json:"personaname"`
}

// ResolveVanityURL resolves a vanity name to a SteamID64. Returns
// ErrNoSuchProfile when the name matches no account.
func (c *Client) ResolveVanityURL(ctx context.Context, vanity string) (string, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("vanityurl", vanity)

	var response struct {
		Response struct {
			Success int    `json:"success"`
			SteamID string `json:"steamid"`
		} `json:"response"`
	}
	if err := c.get(ctx, "/ISteamUser/ResolveVanityURL/v1/", query, &response); err != nil {
		return "", fmt.Errorf("steam: resolving vanity %q: %w", vanity, err)
	}

	// The API reports "no match" as success code 42 with HTTP 200.
	if response.Response.Success != 1 || response.Response.SteamID == "" {
		return "", fmt.Errorf("steam: vanity %q: %w", vanity, ErrNoSuchProfile)
	}
	return response.Response.SteamID, nil
}

// PlayerSummary fetches the public summary for one SteamID64. Returns
// ErrNoSuchProfile when the API knows no such account.
func (c *Client) PlayerSummary(ctx context.Context, id64 string) (Player, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamids", id64)

	var response struct {
		Response struct {
			Players []Player `json:"players"`
		} `json:"response"`
	}
	if err := c.get(ctx, "/ISteamUser/GetPlayerSummaries/v2/", query, &response); err != nil {
		return Player{}, fmt.Errorf("steam: fetching summary for %s: %w", id64, err)
	}

	if len(response.Response.Players) == 0 {
		return Player{}, fmt.Errorf("steam: id64 %s: %w", id64, ErrNoSuchProfile)
	}
	return response.Response.Players[0], nil
}

// Resolve takes a parsed profile reference all the way to a Player,
// resolving the vanity name first when needed.
func (c *Client) Resolve(ctx context.Context, profile ProfileRef) (Player, error) {
	id64 := profile.ID64
	if id64 == "" {
		resolved, err := c.ResolveVanityURL(ctx, profile.Vanity)
		if err != nil {
			return Player{}, err
		}
		id64 = resolved
	}
	return c.PlayerSummary(ctx, id64)
}

// get performs one rate-limited Web API call and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
