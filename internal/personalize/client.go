package personalize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxStatsDays caps how far back the tracker stats API is queried.
const maxStatsDays = 120

// StatsClient fetches click statistics from the tracker's stats API.
// A client without both base URL and token is disabled and returns empty
// histories rather than failing the run.
type StatsClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewStatsClient creates a StatsClient for the given tracker endpoint.
func NewStatsClient(baseURL, apiToken string, timeout time.Duration) *StatsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatsClient{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the client has enough configuration to query.
func (c *StatsClient) Enabled() bool {
	return c.baseURL != "" && c.apiToken != ""
}

// SourceDailyClicks returns per-source click counts by day.
func (c *StatsClient) SourceDailyClicks(ctx context.Context, days int) (DailyClicks, error) {
	return c.fetchDaily(ctx, "/api/stats/sources", "source_id", days)
}

// TypeDailyClicks returns per-primary-type click counts by day.
func (c *StatsClient) TypeDailyClicks(ctx context.Context, days int) (DailyClicks, error) {
	return c.fetchDaily(ctx, "/api/stats/types", "primary_type", days)
}

func (c *StatsClient) fetchDaily(ctx context.Context, path, idField string, days int) (DailyClicks, error) {
	if !c.Enabled() {
		return DailyClicks{}, nil
	}
	if days < 1 {
		days = 1
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	endpoint := fmt.Sprintf("%s%s?days=%s", c.baseURL, path, url.QueryEscape(strconv.Itoa(days)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("stats request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stats %s: unexpected status %d", path, resp.StatusCode)
	}

	var payload struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stats payload: %w", err)
	}

	daily := DailyClicks{}
	for _, row := range payload.Rows {
		id, _ := row[idField].(string)
		date, _ := row["date"].(string)
		clicks := asInt(row["clicks"])
		if id == "" || date == "" || clicks <= 0 {
			continue
		}
		if daily[id] == nil {
			daily[id] = map[string]int{}
		}
		daily[id][date] += clicks
	}
	return daily, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
