package assessment

import "time"

const dateLayout = "2006-01-02"

// FallbackTrendApps are charted when real telemetry is too sparse.
var FallbackTrendApps = []string{"ChatGPT", "Claude", "Gemini", "Copilot", "Perplexity"}

// DateKey formats t as a calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// WindowDates returns the calendar dates of the lookback window, oldest
// first, ending on the day of now.
func WindowDates(now time.Time, days int, loc *time.Location) []string {
	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		dates = append(dates, DateKey(now.AddDate(0, 0, -i), loc))
	}
	return dates
}

// BuildTrend produces one row per window date with the distinct-user
// count of every top app, zero when the app was absent that day.
func BuildTrend(index *ForensicsIndex, topApps []string, dates []string) []TrendPoint {
	points := make([]TrendPoint, 0, len(dates))
	for _, date := range dates {
		counts := make(map[string]int, len(topApps))
		for _, app := range topApps {
			counts[app] = index.Count(date, app)
		}
		points = append(points, TrendPoint{Date: date, Counts: counts})
	}
	return points
}

// SyntheticTrend builds a placeholder series for FallbackTrendApps. Values
// depend only on the app position and day offset so repeated runs agree.
func SyntheticTrend(dates []string) []TrendPoint {
	base := []int{12, 9, 6, 4, 2}
	points := make([]TrendPoint, 0, len(dates))
	for day, date := range dates {
		counts := make(map[string]int, len(FallbackTrendApps))
		for i, app := range FallbackTrendApps {
			counts[app] = base[i] + (day*(i+3)+i)%5
		}
		points = append(points, TrendPoint{Date: date, Counts: counts})
	}
	return points
}
