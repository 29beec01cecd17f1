package nba

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the balldontlie v1 API.
	DefaultBaseURL = "https://api.balldontlie.io/v1"

	gamesPerPage = 100
	maxGamePages = 10
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API address.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is a Provider backed by the balldontlie.io API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient creates a balldontlie API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type page[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		NextCursor *int `json:"next_cursor"`
	} `json:"meta"`
}

func (c *Client) Players(ctx context.Context, q PlayerQuery) ([]Player, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.FirstName != "" {
		params.Set("first_name", q.FirstName)
	}
	if q.LastName != "" {
		params.Set("last_name", q.LastName)
	}
	var p page[Player]
	if err := c.get(ctx, "/players", params, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var p page[Team]
	if err := c.get(ctx, "/teams", nil, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) Standings(ctx context.Context, season int) ([]Standing, error) {
	params := url.Values{"season": {strconv.Itoa(season)}}
	var p page[Standing]
	if err := c.get(ctx, "/standings", params, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) Leaders(ctx context.Context, season int, statType string) ([]Leader, error) {
	params := url.Values{
		"season":    {strconv.Itoa(season)},
		"stat_type": {statType},
	}
	var p page[Leader]
	if err := c.get(ctx, "/leaders", params, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) Odds(ctx context.Context, q OddsQuery) ([]Odds, error) {
	params := url.Values{}
	switch {
	case q.Date != "":
		params.Set("date", q.Date)
	case q.GameID != 0:
		params.Set("game_id", strconv.Itoa(q.GameID))
	default:
		return nil, fmt.Errorf("odds query needs a date or game id")
	}
	var p page[Odds]
	if err := c.get(ctx, "/odds", params, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

func (c *Client) Injuries(ctx context.Context) ([]Injury, error) {
	var p page[Injury]
	if err := c.get(ctx, "/player_injuries", nil, &p); err != nil {
		return nil, err
	}
	return p.Data, nil
}

// Games follows the cursor until all matching games are read, up to a fixed
// page limit.
func (c *Client) Games(ctx context.Context, q GamesQuery) ([]Game, error) {
	params := url.Values{"per_page": {strconv.Itoa(gamesPerPage)}}
	for _, id := range q.TeamIDs {
		params.Add("team_ids[]", strconv.Itoa(id))
	}
	for _, s := range q.Seasons {
		params.Add("seasons[]", strconv.Itoa(s))
	}

	var games []Game
	for i := 0; i < maxGamePages; i++ {
		var p page[Game]
		if err := c.get(ctx, "/games", params, &p); err != nil {
			return nil, err
		}
		games = append(games, p.Data...)
		if p.Meta.NextCursor == nil {
			break
		}
		params.Set("cursor", strconv.Itoa(*p.Meta.NextCursor))
	}
	return games, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("balldontlie request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("balldontlie API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
