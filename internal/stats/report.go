// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/studybudd/internal/model"
)

// Source lists per-day focus aggregates.
type Source interface {
	ListDays(ctx context.Context, since, until time.Time) ([]model.DayAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Heatmap       Heatmap
	Days          []model.DayAggregate
	TotalSessions int
	TotalMinutes  int
	ActiveDays    int
	CurrentStreak int
	LongestStreak int
	Best          model.DayAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src Source, cfg model.StatsConfig) (Report, error) {
	end := cfg.Until
	if end.IsZero() {
		end = time.Now()
	}
	end = startOfDay(end)
	start := HeatmapStart(end, cfg.Weeks)

	days, err := src.ListDays(ctx, start, end)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Heatmap:       BuildHeatmap(days, end, cfg.Weeks),
		Days:          days,
		CurrentStreak: CurrentStreak(days, end),
		LongestStreak: LongestStreak(days),
	}
	for _, d := range days {
		report.TotalSessions += d.FocusSessions
		report.TotalMinutes += d.FocusMinutes
		if d.FocusMinutes > 0 {
			report.ActiveDays++
		}
		if d.FocusMinutes > report.Best.FocusMinutes {
			report.Best = d
		}
	}
	return report, nil
}

// CurrentStreak counts consecutive days with focus minutes ending on end.
func CurrentStreak(days []model.DayAggregate, end time.Time) int {
	minutes := make(map[string]int, len(days))
	for _, d := range days {
		minutes[d.Key()] = d.FocusMinutes
	}
	streak := 0
	day := startOfDay(end)
	for minutes[day.Format(model.DayLayout)] > 0 {
		streak++
		day = time.Date(day.Year(), day.Month(), day.Day()-1, 0, 0, 0, 0, day.Location())
	}
	return streak
}

// LongestStreak returns the longest run of consecutive days with focus
// minutes. days must be sorted by day.
func LongestStreak(days []model.DayAggregate) int {
	longest, run := 0, 0
	var prev time.Time
	for _, d := range days {
		if d.FocusMinutes <= 0 {
			run = 0
			continue
		}
		if run > 0 && nextDay(prev).Format(model.DayLayout) == d.Key() {
			run++
		} else {
			run = 1
		}
		prev = d.Day
		if run > longest {
			longest = run
		}
	}
	return longest
}

func nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}
