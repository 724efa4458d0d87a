package models

import "time"

// Week is one bootcamp week. Start and End are midnight of the first and last
// day in US Eastern time.
type Week struct {
	Number int       `json:"week"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Label  string    `json:"label"`
}
