package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"rift-tracker/internal/logging"
	"rift-tracker/internal/metrics"
)

const (
	// API base URLs
	americasBaseURL = "https://americas.api.riotgames.com"
	na1BaseURL      = "https://na1.api.riotgames.com"

	defaultTimeout = 30 * time.Second
)

// Client is a Riot API client. The API key is fixed at construction.
type Client struct {
	apiKey      string
	regionalURL string // account-v1, match-v5
	platformURL string // summoner-v4
	httpClient  *http.Client
	cache       MatchCache
	log         *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRegionalURL overrides the regional routing host (account and match endpoints).
func WithRegionalURL(u string) ClientOption {
	return func(c *Client) {
		c.regionalURL = u
	}
}

// WithPlatformURL overrides the platform host (summoner endpoints).
func WithPlatformURL(u string) ClientOption {
	return func(c *Client) {
		c.platformURL = u
	}
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMatchCache enables cache-aside lookups for match details.
func WithMatchCache(cache MatchCache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger; the default logger is used otherwise.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = logging.Tagged(logger, "riot")
	}
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("riot API key must not be empty")
	}

	c := &Client{
		apiKey:      apiKey,
		regionalURL: americasBaseURL,
		platformURL: na1BaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: logging.Tagged(nil, "riot"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log.Info("client ready", "key", MaskAPIKey(apiKey), "regional", c.regionalURL, "platform", c.platformURL)
	return c, nil
}

// fetch performs a GET and returns the body of a 200 response.
// Non-200 responses become *StatusError; transport failures wrap ErrUnavailable.
func (c *Client) fetch(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRiotRequest(endpoint, "error")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.RecordRiotRequest(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				statusErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return body, nil
}

// doRequest fetches rawURL and decodes the JSON body into result.
func (c *Client) doRequest(ctx context.Context, endpoint, rawURL string, result interface{}) error {
	body, err := c.fetch(ctx, endpoint, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, endpoint, err)
	}
	return nil
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, "account", u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetSummonerByPUUID fetches summoner level and icon for a player
func (c *Client) GetSummonerByPUUID(ctx context.Context, puuid string) (*SummonerResponse, error) {
	u := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s", c.platformURL, url.PathEscape(puuid))

	var summoner SummonerResponse
	if err := c.doRequest(ctx, "summoner", u, &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}

// GetMatchHistory fetches up to count match IDs for a player, most recent first
func (c *Client) GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.regionalURL, url.PathEscape(puuid), count)

	var matchIDs []string
	if err := c.doRequest(ctx, "match_ids", u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatchRaw fetches the match detail payload without decoding it.
// Details never change once a match is over, so the cache is consulted first.
func (c *Client) GetMatchRaw(ctx context.Context, matchID string) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, matchID)
		if err != nil {
			c.log.Warn("match cache read failed", "match", matchID, "err", err)
		} else if ok {
			return body, nil
		}
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))
	body, err := c.fetch(ctx, "match", u)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, matchID, body); err != nil {
			c.log.Warn("match cache write failed", "match", matchID, "err", err)
		}
	}
	return body, nil
}

// GetMatch fetches match details
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	body, err := c.GetMatchRaw(ctx, matchID)
	if err != nil {
		return nil, err
	}

	match, err := DecodeMatch(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding match %s: %v", ErrUnavailable, matchID, err)
	}
	return match, nil
}

// MaskAPIKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI-...xxxx")
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
