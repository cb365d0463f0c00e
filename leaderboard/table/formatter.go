// leaderboard/table/formatter.go
package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Ftotnem/isabot-go/shared/models"
)

const (
	playerHeader = "battletag"
	separator    = " | "
)

// column maps a metric to its display header and the entry field it ranks by
// (number_of_mounts, bg_total_won).
type column struct {
	header string
	value  func(e models.Entry, accountID string) (int, bool)
}

var columns = map[models.Metric]column{
	models.MetricMounts: {
		header: "Number of Mounts",
		value: func(e models.Entry, id string) (int, bool) {
			v, ok := e.Mounts[id]
			return v.NumberOfMounts, ok
		},
	},
	models.MetricNormalBGWins: {
		header: "Total Normal BG Wins",
		value: func(e models.Entry, id string) (int, bool) {
			v, ok := e.NormalBGWins[id]
			return v.BGTotalWon, ok
		},
	},
}

// Header returns the metric's display column name.
func Header(metric models.Metric) (string, error) {
	col, ok := columns[metric]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownMetric, metric)
	}
	return col.header, nil
}

type row struct {
	battleTag string
	value     int
}

// Format renders the entry as a ranked two-column table for metric.
//
// Rows are ordered by value descending. Ties keep ascending account id order.
// Accounts missing from either the players map or the metric's map are left out.
func Format(e models.Entry, metric models.Metric) (string, error) {
	col, ok := columns[metric]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownMetric, metric)
	}

	ids := make([]string, 0, len(e.Players))
	for id := range e.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	playerWidth := utf8.RuneCountInString(playerHeader)
	for _, p := range e.Players {
		playerWidth = max(playerWidth, utf8.RuneCountInString(p.BattleTag))
	}

	valueWidth := utf8.RuneCountInString(col.header)
	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		v, ok := col.value(e, id)
		if !ok {
			continue
		}
		rows = append(rows, row{battleTag: e.Players[id].BattleTag, value: v})
	}
	for _, id := range metricKeys(e, metric) {
		v, _ := col.value(e, id)
		valueWidth = max(valueWidth, len(strconv.Itoa(v)))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].value > rows[j].value
	})

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatLine([]string{playerHeader, col.header}, []int{playerWidth, valueWidth}))
	for _, r := range rows {
		lines = append(lines, formatLine([]string{r.battleTag, strconv.Itoa(r.value)}, []int{playerWidth, valueWidth}))
	}
	return strings.Join(lines, "\n"), nil
}

func metricKeys(e models.Entry, metric models.Metric) []string {
	var keys []string
	switch metric {
	case models.MetricMounts:
		for id := range e.Mounts {
			keys = append(keys, id)
		}
	case models.MetricNormalBGWins:
		for id := range e.NormalBGWins {
			keys = append(keys, id)
		}
	}
	return keys
}

// formatLine left-justifies each cell to its width and joins them with the separator.
func formatLine(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", max(0, widths[i]-utf8.RuneCountInString(c)))
	}
	return strings.Join(padded, separator)
}

// Chunk splits a rendered table into pieces of at most limit bytes, breaking
// on line boundaries and repeating the header line at the top of each piece.
// A single row longer than the limit is truncated.
func Chunk(table string, limit int) []string {
	if len(table) <= limit {
		return []string{table}
	}

	lines := strings.Split(table, "\n")
	header := truncate(lines[0], limit)

	var (
		chunks  []string
		current strings.Builder
	)
	current.WriteString(header)
	for _, line := range lines[1:] {
		line = truncate(line, limit-len(header)-1)
		if current.Len()+1+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(header)
		}
		current.WriteByte('\n')
		current.WriteString(line)
	}
	chunks = append(chunks, current.String())
	return chunks
}

func truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
