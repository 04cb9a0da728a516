// pkg/core/modes.go
package core

import (
	"fmt"
	"strings"
)

// CatchMode selects how a run ends.
type CatchMode string

const (
	// CatchContact ends the run once a single pursuer holds continuous contact
	// for the maximum caught time.
	CatchContact CatchMode = "contact"
	// CatchCollision ends the run once any-pursuer collision has lasted the
	// maximum caught time without interruption.
	CatchCollision CatchMode = "collision"
)

// ScoreMode selects what the score is derived from.
type ScoreMode string

const (
	ScoreSurvival ScoreMode = "survival"
	ScoreDistance ScoreMode = "distance"
)

// SpawnPolicy selects how pursuers are introduced.
type SpawnPolicy string

const (
	// SpawnLevel keeps the active count equal to the difficulty target.
	SpawnLevel SpawnPolicy = "level"
	// SpawnReinforcement adds fresh pursuers on a shrinking interval.
	SpawnReinforcement SpawnPolicy = "reinforcement"
)

// ParseCatchMode converts a config string to a CatchMode.
func ParseCatchMode(s string) (CatchMode, error) {
	switch CatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case CatchContact, "":
		return CatchContact, nil
	case CatchCollision:
		return CatchCollision, nil
	}
	return "", fmt.Errorf("unknown catch mode %q", s)
}

// ParseScoreMode converts a config string to a ScoreMode.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch ScoreMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScoreSurvival, "":
		return ScoreSurvival, nil
	case ScoreDistance:
		return ScoreDistance, nil
	}
	return "", fmt.Errorf("unknown score mode %q", s)
}

// ParseSpawnPolicy converts a config string to a SpawnPolicy.
func ParseSpawnPolicy(s string) (SpawnPolicy, error) {
	switch SpawnPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case SpawnLevel, "":
		return SpawnLevel, nil
	case SpawnReinforcement:
		return SpawnReinforcement, nil
	}
	return "", fmt.Errorf("unknown spawn policy %q", s)
}
