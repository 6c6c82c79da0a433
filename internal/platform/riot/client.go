// Package riot is an HTTP client for the Riot API endpoints the engine needs:
// account resolution, live game lookup, and finished match results.
package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// Provider team ids. Blue side maps to Side A, red to Side B; the mapping
// stops at this package boundary.
const (
	teamBlue = 100
	teamRed  = 200
)

// Shared API budget enforced across processes when a rate limiter is set.
// Matches the Riot development key ceiling of 20 requests per second.
const (
	rateLimitKey    = "riot"
	rateLimitMax    = 20
	rateLimitWindow = time.Second
)

// Client calls the Riot API. PlatformHost serves platform-routed endpoints
// (spectator); RegionalHost serves regionally-routed ones (account, match).
type Client struct {
	platformHost string
	regionalHost string
	apiKey       string
	httpClient   *http.Client
	limiter      domain.RateLimiter
}

// NewClient creates a Riot API client. limiter may be nil, in which case no
// client-side rate limiting is applied.
func NewClient(platformHost, regionalHost, apiKey string, timeout time.Duration, limiter domain.RateLimiter) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		platformHost: platformHost,
		regionalHost: regionalHost,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
	}
}

// AccountByRiotID resolves a "gameName#tagLine" pair to a puuid.
func (c *Client) AccountByRiotID(ctx context.Context, gameName, tagLine string) (puuid string, err error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalHost, url.PathEscape(gameName), url.PathEscape(tagLine))

	var acct accountDTO
	status, err := c.get(ctx, u, &acct)
	if err != nil {
		return "", fmt.Errorf("riot: account %s#%s: %w", gameName, tagLine, err)
	}
	switch status {
	case http.StatusOK:
		return acct.PUUID, nil
	case http.StatusNotFound:
		return "", fmt.Errorf("riot: account %s#%s: %w", gameName, tagLine, domain.ErrNotFound)
	default:
		return "", fmt.Errorf("riot: account %s#%s: status %d: %w", gameName, tagLine, status, domain.ErrProvider)
	}
}

// ActiveMatch looks up the live game of the given participant. A participant
// not currently in game is reported as (zero, false, nil); that absence signal
// drives settlement, so it is not an error.
func (c *Client) ActiveMatch(ctx context.Context, puuid string) (domain.ActiveMatch, bool, error) {
	u := fmt.Sprintf("%s/lol/spectator/v5/active-games/by-summoner/%s",
		c.platformHost, url.PathEscape(puuid))

	var game activeGameDTO
	status, err := c.get(ctx, u, &game)
	if err != nil {
		return domain.ActiveMatch{}, false, fmt.Errorf("riot: active match: %w", err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ActiveMatch{}, false, nil
	default:
		return domain.ActiveMatch{}, false, fmt.Errorf("riot: active match: status %d: %w", status, domain.ErrProvider)
	}

	am := domain.ActiveMatch{
		ExternalID: fmt.Sprintf("%s_%d", game.PlatformID, game.GameID),
		StartedAt:  time.UnixMilli(game.GameStartTime),
	}
	for _, p := range game.Participants {
		if p.PUUID != puuid {
			continue
		}
		am.ChampionID = p.ChampionID
		if p.TeamID == teamRed {
			am.Team = domain.SideB
		} else {
			am.Team = domain.SideA
		}
		return am, true, nil
	}
	return domain.ActiveMatch{}, false, fmt.Errorf("riot: active match: participant missing from spectator payload: %w", domain.ErrProvider)
}

// MatchResult fetches the per-participant outcomes of a finished match. A
// result not yet published is domain.ErrNotFound; callers retry on the next
// cycle.
func (c *Client) MatchResult(ctx context.Context, externalID string) ([]domain.MatchOutcome, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalHost, url.PathEscape(externalID))

	var match matchDTO
	status, err := c.get(ctx, u, &match)
	if err != nil {
		return nil, fmt.Errorf("riot: match result %s: %w", externalID, err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("riot: match result %s: %w", externalID, domain.ErrNotFound)
	default:
		return nil, fmt.Errorf("riot: match result %s: status %d: %w", externalID, status, domain.ErrProvider)
	}

	outcomes := make([]domain.MatchOutcome, 0, len(match.Info.Participants))
	for _, p := range match.Info.Participants {
		outcomes = append(outcomes, domain.MatchOutcome{PUUID: p.PUUID, Won: p.Win})
	}
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("riot: match result %s: empty participant list: %w", externalID, domain.ErrProvider)
	}
	return outcomes, nil
}

// get performs one authenticated GET and decodes a 200 body into out. Non-200
// statuses are returned to the caller undecoded; 429 and 5xx map to
// domain.ErrProvider here so every caller treats them as transient.
func (c *Client) get(ctx context.Context, u string, out any) (int, error) {
	if c.limiter != nil {
		allowed, err := c.limiter.Allow(ctx, rateLimitKey, rateLimitMax, rateLimitWindow)
		if err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}
		if !allowed {
			return 0, fmt.Errorf("local rate limit exceeded: %w", domain.ErrProvider)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
