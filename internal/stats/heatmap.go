package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/studybudd/internal/model"
)

// DefaultWeeks shows the last 52 weeks plus the current one.
const DefaultWeeks = 53

const dayLabelWidth = 4

var levelGlyphs = []string{"·", "░", "▒", "▓", "█"}

var levelColors = []lipgloss.Color{"#3A3A3A", "#1E4D3A", "#1F6F4A", "#2FA36B", "#4ADE80"}

// Cell is one day of the heatmap.
type Cell struct {
	Day      time.Time
	Minutes  int
	Sessions int
	Level    int
	Future   bool
}

// Heatmap is a grid of weeks, each holding seven days from Sunday to Saturday.
type Heatmap struct {
	Start time.Time
	End   time.Time
	Max   int
	Weeks [][]Cell
}

// StartOfWeek returns midnight of the Sunday on or before day.
func StartOfWeek(day time.Time) time.Time {
	d := startOfDay(day)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HeatmapStart returns the first day of a heatmap of the given width ending
// on end.
func HeatmapStart(end time.Time, weeks int) time.Time {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	return StartOfWeek(end).AddDate(0, 0, -7*(weeks-1))
}

// Level maps minutes to an intensity between 0 and 4 relative to max.
func Level(minutes, max int) int {
	if minutes <= 0 {
		return 0
	}
	if max < 1 {
		max = 1
	}
	ratio := float64(minutes) / float64(max)
	switch {
	case ratio < 0.25:
		return 1
	case ratio < 0.5:
		return 2
	case ratio < 0.75:
		return 3
	default:
		return 4
	}
}

// BuildHeatmap lays out days on a weeks-wide grid whose last column contains
// end. Days after end are marked as future.
func BuildHeatmap(days []model.DayAggregate, end time.Time, weeks int) Heatmap {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	end = startOfDay(end)
	start := HeatmapStart(end, weeks)
	byDay := make(map[string]model.DayAggregate, len(days))
	for _, d := range days {
		byDay[d.Key()] = d
	}

	hm := Heatmap{Start: start, End: end, Max: 1}
	hm.Weeks = make([][]Cell, weeks)
	for w := 0; w < weeks; w++ {
		hm.Weeks[w] = make([]Cell, 7)
		for d := 0; d < 7; d++ {
			day := time.Date(start.Year(), start.Month(), start.Day()+w*7+d, 0, 0, 0, 0, start.Location())
			cell := Cell{Day: day, Future: day.After(end)}
			if agg, ok := byDay[day.Format(model.DayLayout)]; ok && !cell.Future {
				cell.Minutes = agg.FocusMinutes
				cell.Sessions = agg.FocusSessions
			}
			if cell.Minutes > hm.Max {
				hm.Max = cell.Minutes
			}
			hm.Weeks[w][d] = cell
		}
	}
	for w := range hm.Weeks {
		for d := range hm.Weeks[w] {
			hm.Weeks[w][d].Level = Level(hm.Weeks[w][d].Minutes, hm.Max)
		}
	}
	return hm
}

// WeeklyMinutes returns the focus minutes of each heatmap column.
func (h Heatmap) WeeklyMinutes() []float64 {
	out := make([]float64, len(h.Weeks))
	for i, week := range h.Weeks {
		for _, c := range week {
			out[i] += float64(c.Minutes)
		}
	}
	return out
}

// RenderHeatmap prints the grid with month and weekday labels. Colors are
// used only when w is a color-capable terminal.
func RenderHeatmap(w io.Writer, h Heatmap) error {
	renderer := lipgloss.NewRenderer(w)
	styles := make([]lipgloss.Style, len(levelColors))
	for i, c := range levelColors {
		styles[i] = renderer.NewStyle().Foreground(c)
	}

	if _, err := fmt.Fprintln(w, monthHeader(h)); err != nil {
		return err
	}
	for d := 0; d < 7; d++ {
		var row strings.Builder
		label := ""
		if d%2 == 1 {
			label = time.Weekday(d).String()[:3]
		}
		row.WriteString(padCell(label, dayLabelWidth, false))
		for _, week := range h.Weeks {
			cell := week[d]
			if cell.Future {
				row.WriteString("  ")
				continue
			}
			row.WriteString(styles[cell.Level].Render(levelGlyphs[cell.Level]))
			row.WriteByte(' ')
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(row.String(), " ")); err != nil {
			return err
		}
	}

	var legend strings.Builder
	legend.WriteString(strings.Repeat(" ", dayLabelWidth))
	legend.WriteString("Less ")
	for i, glyph := range levelGlyphs {
		legend.WriteString(styles[i].Render(glyph))
		legend.WriteByte(' ')
	}
	legend.WriteString("More")
	if _, err := fmt.Fprintln(w, legend.String()); err != nil {
		return err
	}
	return nil
}

func monthHeader(h Heatmap) string {
	header := []rune(strings.Repeat(" ", dayLabelWidth+2*len(h.Weeks)))
	nextFree := 0
	prevMonth := time.Month(0)
	for i, week := range h.Weeks {
		month := week[0].Day.Month()
		if month == prevMonth {
			continue
		}
		prevMonth = month
		pos := dayLabelWidth + 2*i
		label := month.String()[:3]
		if pos < nextFree || pos+len(label) > len(header) {
			continue
		}
		copy(header[pos:], []rune(label))
		nextFree = pos + len(label) + 1
	}
	return strings.TrimRight(string(header), " ")
}
