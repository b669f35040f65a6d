package clicks

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxStatsDays bounds how much counter history a stats query may scan.
const maxStatsDays = 120

// DailyRow is one (date, key, clicks) triple from the daily counters.
type DailyRow struct {
	Date   string `json:"date"`
	Key    string `json:"-"`
	Clicks int    `json:"clicks"`
}

// Reader queries the daily click hashes.
type Reader struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewReader creates a Reader on the given Redis client.
func NewReader(rdb redis.Cmdable) *Reader {
	return &Reader{rdb: rdb, now: time.Now}
}

// SourceDaily returns per-source clicks for the last days days.
func (r *Reader) SourceDaily(ctx context.Context, days int) ([]DailyRow, error) {
	return r.readDaily(ctx, "clicks:source:", days)
}

// TypeDaily returns per-primary-type clicks for the last days days.
func (r *Reader) TypeDaily(ctx context.Context, days int) ([]DailyRow, error) {
	return r.readDaily(ctx, "clicks:type:", days)
}

func (r *Reader) readDaily(ctx context.Context, prefix string, days int) ([]DailyRow, error) {
	if days < 1 {
		days = 1
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	now := r.now().UTC()
	dateKeys := make([]string, 0, days)
	for offset := 0; offset < days; offset++ {
		dateKeys = append(dateKeys, DateKey(now.AddDate(0, 0, -offset)))
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(dateKeys))
	for _, dateKey := range dateKeys {
		cmds = append(cmds, pipe.HGetAll(ctx, prefix+dateKey))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var rows []DailyRow
	for i, cmd := range cmds {
		date := isoDate(dateKeys[i])
		for key, raw := range cmd.Val() {
			clicks, err := strconv.Atoi(raw)
			if err != nil || clicks <= 0 || key == "" {
				continue
			}
			rows = append(rows, DailyRow{Date: date, Key: key, Clicks: clicks})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}

// isoDate converts a YYYYMMDD date key to YYYY-MM-DD.
func isoDate(dateKey string) string {
	if len(dateKey) != 8 {
		return dateKey
	}
	return dateKey[0:4] + "-" + dateKey[4:6] + "-" + dateKey[6:8]
}
