// Package v1 contains the v1 export format for recorded chase runs.
// Frames and events are compact positional arrays to keep long runs small.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root structure for the v1 format
type Export struct {
	Version     int     `json:"version" yaml:"version"`
	RunID       string  `json:"runId" yaml:"runId"`
	StartTime   string  `json:"startTime" yaml:"startTime"`
	EndTime     string  `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Seed        uint64  `json:"seed" yaml:"seed"`
	CatchMode   string  `json:"catchMode" yaml:"catchMode"`
	ScoreMode   string  `json:"scoreMode" yaml:"scoreMode"`
	SpawnPolicy string  `json:"spawnPolicy" yaml:"spawnPolicy"`
	SpeedFactor float64 `json:"speedFactor" yaml:"speedFactor"`
	CarColor    string  `json:"carColor" yaml:"carColor"`
	Result      *Result `json:"result,omitempty" yaml:"result,omitempty"`
	// Frames rows: [frame, x, z, heading, speed, score, difficulty, activePursuers, caughtProgress]
	Frames [][]any `json:"frames" yaml:"frames"`
	// Events rows: [frame, time, kind, slot, value, detail]
	Events [][]any `json:"events" yaml:"events"`
	// Track is the down-sampled vehicle path as [x, z] pairs.
	Track [][2]float64 `json:"track,omitempty" yaml:"track,omitempty"`
}

// Result is the final chase state.
type Result struct {
	Reason      string  `json:"reason" yaml:"reason"`
	Frames      uint64  `json:"frames" yaml:"frames"`
	Score       int     `json:"score" yaml:"score"`
	ElapsedTime float64 `json:"elapsedTime" yaml:"elapsedTime"`
	Distance    float64 `json:"distance" yaml:"distance"`
	Difficulty  int     `json:"difficulty" yaml:"difficulty"`
	Caught      bool    `json:"caught" yaml:"caught"`
}
