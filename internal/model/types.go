// Package model defines shared data structures.
package model

import "time"

// DayLayout is the format of a local calendar day key.
const DayLayout = "2006-01-02"

// FocusSession is one finished focus interval.
type FocusSession struct {
	ID       string
	Mode     string
	Minutes  int
	EndedAt  time.Time
	LocalDay string
}

// DayAggregate summarizes the focus sessions of one local day.
type DayAggregate struct {
	Day           time.Time
	FocusSessions int
	FocusMinutes  int
}

// Key returns the YYYY-MM-DD key of the day.
func (d DayAggregate) Key() string {
	return d.Day.Format(DayLayout)
}

// StatsConfig defines the window and options for stats output.
type StatsConfig struct {
	// Weeks is the number of heatmap columns, the current week included.
	Weeks int
	// Until is the last day shown; zero means today.
	Until time.Time
	Last  int
}
