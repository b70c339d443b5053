package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fh-draw-bot/internal/metrics"
	"fh-draw-bot/internal/odds"
)

const (
	matchListPath   = "/v1/uo/matches?sport_id=5&page=1&limit=100&tab=upcoming&sub_type_id=1,186&language=en"
	matchDetailPath = "/v1/uo/match?id=%s&language=en"

	// firstHalf1X2Tag identifies the first-half 1X2 market in the match
	// detail response.
	firstHalf1X2Tag = "60"

	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// Match is one upcoming fixture from the provider's match list.
type Match struct {
	ID   string
	Name string
}

// Client fetches matches and first-half odds from the provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

// NewClient creates a provider client against baseURL with a per-attempt
// transport timeout.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		log:        log,
	}
}

// ListMatches fetches the upcoming match list. Any transport or status
// failure is logged and collapses to an empty list; the caller sees no
// error and no retry happens at this level.
func (c *Client) ListMatches(ctx context.Context) []Match {
	body, err := c.get(ctx, c.baseURL+matchListPath)
	if err != nil {
		c.log.Error("fetching match list", zap.Error(err))
		return nil
	}

	var payload struct {
		Data []struct {
			MatchID  json.Number `json:"match_id"`
			HomeTeam string      `json:"home_team"`
			AwayTeam string      `json:"away_team"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Error("decoding match list", zap.Error(err))
		return nil
	}

	matches := make([]Match, 0, len(payload.Data))
	for _, m := range payload.Data {
		matches = append(matches, Match{
			ID:   m.MatchID.String(),
			Name: m.HomeTeam + " vs " + m.AwayTeam,
		})
	}
	return matches
}

// FetchFirstHalfOdds fetches first-half 1X2 odds for a match. Transport
// and status failures are retried with a fixed delay up to the retry
// bound; a missing or malformed market is not a transient condition and
// returns nil immediately. Exhausted retries also collapse to nil.
func (c *Client) FetchFirstHalfOdds(ctx context.Context, matchID string) *odds.Odds {
	url := c.baseURL + fmt.Sprintf(matchDetailPath, matchID)

	for attempt := 0; ; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return c.parseFirstHalfOdds(body, matchID)
		}

		if attempt >= c.maxRetries {
			metrics.OddsFetchFailures.Inc()
			c.log.Error("fetching first-half odds",
				zap.String("match_id", matchID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return nil
		}

		c.log.Warn("retrying first-half odds fetch",
			zap.String("match_id", matchID),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Client) parseFirstHalfOdds(body []byte, matchID string) *odds.Odds {
	var payload struct {
		Data []struct {
			SubTypeID string `json:"sub_type_id"`
			Odds      []struct {
				OddValue string `json:"odd_value"`
			} `json:"odds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.log.Warn("decoding match detail", zap.String("match_id", matchID), zap.Error(err))
		return nil
	}

	for _, market := range payload.Data {
		if market.SubTypeID != firstHalf1X2Tag {
			continue
		}
		if len(market.Odds) < 3 {
			c.log.Warn("first-half market malformed", zap.String("match_id", matchID))
			return nil
		}

		// home, draw, away in that order
		values := make([]float64, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(market.Odds[i].OddValue, 64)
			if err != nil {
				c.log.Warn("unparsable odd value",
					zap.String("match_id", matchID),
					zap.String("value", market.Odds[i].OddValue))
				return nil
			}
			values[i] = v
		}

		o := odds.Odds{Home: values[0], Draw: values[1], Away: values[2]}
		if !o.Valid() {
			c.log.Warn("first-half odds out of range", zap.String("match_id", matchID))
			return nil
		}
		return &o
	}

	// No first-half market listed for this fixture.
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
