package dto

import "time"

// RunFilters narrow the detection history list.
type RunFilters struct {
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
