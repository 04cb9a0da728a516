package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Installation{},
	&Run{},
	&FrameSample{},
	&RunEvent{},
	&RunPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// Installation identifies the recorder that wrote the database
type Installation struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
}

func (*Installation) TableName() string {
	return "installations"
}

// RunPerformance is the model for recorder performance metrics
type RunPerformance struct {
	Time                time.Time         `json:"time" gorm:"index:idx_perf_time"`
	RunID               string            `json:"runId" gorm:"size:64;index:idx_perf_run_id"`
	Frame               uint64            `json:"frame"`
	FPS                 float32           `json:"fps"`
	BufferLengths       BufferLengths     `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*RunPerformance) TableName() string {
	return "run_performances"
}

// BufferLengths are the recorder's in-memory queues
type BufferLengths struct {
	Frames  uint32 `json:"frames"`
	Events  uint32 `json:"events"`
	Dropped uint32 `json:"dropped"`
}

// WriteQueueLengths are the storage backend's pending writes
type WriteQueueLengths struct {
	Frames uint32 `json:"frames"`
	Events uint32 `json:"events"`
}

////////////////////////
// RUN DATA
////////////////////////

// Run is one chase from start to game over or reset
type Run struct {
	ID          string         `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartTime   time.Time      `json:"startTime" gorm:"index:idx_run_start_time"`
	EndTime     sql.NullTime   `json:"endTime"`
	Seed        int64          `json:"seed"` // bit pattern of the uint64 seed
	CatchMode   string         `json:"catchMode" gorm:"size:32"`
	ScoreMode   string         `json:"scoreMode" gorm:"size:32"`
	SpawnPolicy string         `json:"spawnPolicy" gorm:"size:32"`
	SpeedFactor float64        `json:"speedFactor"`
	CarColor    string         `json:"carColor" gorm:"size:16"`
	Config      datatypes.JSON `json:"config" gorm:"default:'{}'"`

	// set by EndRun
	Frames      uint64        `json:"frames"`
	Score       int           `json:"score"`
	ElapsedTime float64       `json:"elapsedTime"`
	Distance    float64       `json:"distance"`
	Difficulty  int           `json:"difficulty"`
	GameOver    bool          `json:"gameOver"`
	Reason      string        `json:"reason" gorm:"size:32"`
	Track       geom.Geometry `json:"-"` // LineString of the down-sampled vehicle path

	FrameSamples []FrameSample `json:"-" gorm:"foreignkey:RunID"`
	Events       []RunEvent    `json:"-" gorm:"foreignkey:RunID"`
}

func (*Run) TableName() string {
	return "runs"
}

// FrameSample is a down-sampled vehicle and chase state
type FrameSample struct {
	ID             uint       `json:"id" gorm:"primarykey;autoIncrement"`
	Time           time.Time  `json:"time"`
	RunID          string     `json:"runId" gorm:"size:64;index:idx_frame_run_id"`
	Frame          uint64     `json:"frame" gorm:"index:idx_frame"`
	Position       geom.Point `json:"position"`
	Heading        float64    `json:"heading"`
	Speed          float64    `json:"speed"`
	Score          int        `json:"score"`
	Difficulty     int        `json:"difficulty"`
	ActivePursuers int        `json:"activePursuers"`
	CaughtProgress float64    `json:"caughtProgress"`
	GameOver       bool       `json:"gameOver"`
}

func (*FrameSample) TableName() string {
	return "frame_samples"
}

// RunEvent is a notable frame event
type RunEvent struct {
	ID      uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time    time.Time `json:"time"`
	RunID   string    `json:"runId" gorm:"size:64;index:idx_event_run_id"`
	Frame   uint64    `json:"frame" gorm:"index:idx_event_frame"`
	SimTime float64   `json:"simTime"`
	Kind    string    `json:"kind" gorm:"size:32;index:idx_event_kind"`
	Slot    int       `json:"slot"`
	Value   float64   `json:"value"`
	Detail  string    `json:"detail" gorm:"size:255"`
}

func (*RunEvent) TableName() string {
	return "run_events"
}
