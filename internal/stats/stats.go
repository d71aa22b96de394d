package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/studybudd/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// FormatMinutes renders minutes as "1h 05m" or "45m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// RenderSummary prints totals and streaks for the report window.
func RenderSummary(w io.Writer, r Report) error {
	lines := []string{
		"Summary",
		fmt.Sprintf("Window: %s to %s", r.Heatmap.Start.Format(model.DayLayout), r.Heatmap.End.Format(model.DayLayout)),
		fmt.Sprintf("Focus sessions: %d", r.TotalSessions),
		fmt.Sprintf("Focus time: %s", FormatMinutes(r.TotalMinutes)),
		fmt.Sprintf("Active days: %d", r.ActiveDays),
		fmt.Sprintf("Current streak: %d day(s)", r.CurrentStreak),
		fmt.Sprintf("Longest streak: %d day(s)", r.LongestStreak),
	}
	if r.Best.FocusMinutes > 0 {
		lines = append(lines, fmt.Sprintf("Best day: %s (%s)", r.Best.Key(), FormatMinutes(r.Best.FocusMinutes)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrend prints the weekly focus minutes as a smoothed sparkline.
func RenderTrend(w io.Writer, r Report, window int) error {
	weekly := r.Heatmap.WeeklyMinutes()
	if len(weekly) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Weekly trend: [%s]\n\n", Sparkline(MovingAverage(weekly, window))); err != nil {
		return err
	}
	return nil
}

// RenderDayTable prints the most recent active days, newest first.
func RenderDayTable(w io.Writer, days []model.DayAggregate, limit int) error {
	if len(days) == 0 {
		_, err := fmt.Fprintln(w, "No focus sessions found.")
		return err
	}
	rows := DayRows(days, limit)
	if _, err := fmt.Fprintln(w, "Recent Days"); err != nil {
		return err
	}
	headers := []string{"Day", "Sessions", "Minutes", "Avg/Session"}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// DayRows formats days as table rows, newest first. A non-positive limit
// keeps every day.
func DayRows(days []model.DayAggregate, limit int) [][]string {
	sorted := make([]model.DayAggregate, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Day.After(sorted[j].Day)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	rows := make([][]string, 0, len(sorted))
	for _, d := range sorted {
		avg := 0.0
		if d.FocusSessions > 0 {
			avg = float64(d.FocusMinutes) / float64(d.FocusSessions)
		}
		rows = append(rows, []string{
			d.Key(),
			fmt.Sprintf("%d", d.FocusSessions),
			fmt.Sprintf("%d", d.FocusMinutes),
			fmt.Sprintf("%.1f", avg),
		})
	}
	return rows
}

// RenderSessionTable prints individual focus sessions in the order given.
func RenderSessionTable(w io.Writer, sessions []model.FocusSession) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No focus sessions found.")
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.LocalDay,
			s.EndedAt.Local().Format("15:04"),
			fmt.Sprintf("%d", s.Minutes),
		})
	}
	for _, line := range formatTable([]string{"Day", "Ended", "Minutes"}, rows, map[int]bool{2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
