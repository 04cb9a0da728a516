package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "roadchase.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	Format         string `json:"format" mapstructure:"format"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// StorageConfig selects and configures the run storage backend.
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
	// SampleEvery writes one point per N frames.
	SampleEvery int
}

// StreamConfig holds multiplayer pose streaming settings.
type StreamConfig struct {
	Enabled      bool
	URL          string
	PlayerID     string
	PoseInterval time.Duration
	GhostTTL     time.Duration
	MaxBackoff   time.Duration
}

// LoopConfig holds frame loop settings.
type LoopConfig struct {
	TickRate    int
	Seed        uint64
	Autopilot   bool
	MaxDuration time.Duration
}

// APIConfig holds the status server settings.
type APIConfig struct {
	Enabled bool
	Address string
}

// LiveSettings are the run settings that can change while the loop is running.
type LiveSettings struct {
	SpeedFactor float64
	CarColor    string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./chaselogs")

	d := engine.DefaultConfig()
	viper.SetDefault("sim.catchMode", string(d.Chase.CatchMode))
	viper.SetDefault("sim.scoreMode", string(d.Chase.ScoreMode))
	viper.SetDefault("sim.spawnPolicy", string(d.Spawn.Policy))
	viper.SetDefault("sim.speedFactor", d.Vehicle.SpeedFactor)
	viper.SetDefault("sim.carColor", d.CarColor)
	viper.SetDefault("sim.maxFrameDelta", d.MaxFrameDelta)
	viper.SetDefault("sim.startHeading", d.StartHeading)
	viper.SetDefault("sim.vehicleRadius", d.VehicleRadius)
	viper.SetDefault("sim.lightFlashPeriod", d.LightFlashPeriod)
	viper.SetDefault("sim.contactThreshold", d.ContactThreshold)

	viper.SetDefault("sim.vehicle.baseMaxSpeed", d.Vehicle.BaseMaxSpeed)
	viper.SetDefault("sim.vehicle.acceleration", d.Vehicle.Acceleration)
	viper.SetDefault("sim.vehicle.deceleration", d.Vehicle.Deceleration)
	viper.SetDefault("sim.vehicle.turnRate", d.Vehicle.TurnRate)
	viper.SetDefault("sim.vehicle.turnEpsilon", d.Vehicle.TurnEpsilon)
	viper.SetDefault("sim.vehicle.minSpeedFactor", d.Vehicle.MinSpeedFactor)
	viper.SetDefault("sim.vehicle.maxSpeedFactor", d.Vehicle.MaxSpeedFactor)

	viper.SetDefault("sim.ai.yawRate", d.AI.YawRate)
	viper.SetDefault("sim.ai.yawScale", d.AI.YawScale)
	viper.SetDefault("sim.ai.speedScale", d.AI.SpeedScale)
	viper.SetDefault("sim.ai.closeBoost", d.AI.CloseBoost)
	viper.SetDefault("sim.ai.closeRange", d.AI.CloseRange)
	viper.SetDefault("sim.ai.holdBack", d.AI.HoldBack)
	viper.SetDefault("sim.ai.speedMin", d.AI.SpeedMin)
	viper.SetDefault("sim.ai.speedMax", d.AI.SpeedMax)
	viper.SetDefault("sim.ai.chaseMin", d.AI.ChaseMin)
	viper.SetDefault("sim.ai.chaseMax", d.AI.ChaseMax)
	viper.SetDefault("sim.ai.respawnMin", d.AI.RespawnMin)
	viper.SetDefault("sim.ai.respawnMax", d.AI.RespawnMax)

	viper.SetDefault("sim.pool.size", d.Pool.Size)
	viper.SetDefault("sim.pool.capacity", d.Pool.Capacity)
	viper.SetDefault("sim.pool.base", d.Pool.Base)
	viper.SetDefault("sim.pool.ringStart", d.Pool.RingStart)
	viper.SetDefault("sim.pool.ringStep", d.Pool.RingStep)

	viper.SetDefault("sim.road.segments", d.Road.Segments)
	viper.SetDefault("sim.road.segmentLength", d.Road.SegmentLength)

	viper.SetDefault("sim.field.maxObjects", d.Field.MaxObjects)
	viper.SetDefault("sim.field.spawnInterval", d.Field.SpawnInterval)
	viper.SetDefault("sim.field.roadWidth", d.Field.RoadWidth)
	viper.SetDefault("sim.field.shoulder", d.Field.Shoulder)
	viper.SetDefault("sim.field.lateralSpread", d.Field.LateralSpread)
	viper.SetDefault("sim.field.lead", d.Field.Lead)
	viper.SetDefault("sim.field.leadSpread", d.Field.LeadSpread)
	viper.SetDefault("sim.field.trailRemove", d.Field.TrailRemove)

	viper.SetDefault("sim.spawn.baseCount", d.Spawn.BaseCount)
	viper.SetDefault("sim.spawn.tiersPerPursuer", d.Spawn.TiersPerPursuer)
	viper.SetDefault("sim.spawn.baseInterval", d.Spawn.BaseInterval)
	viper.SetDefault("sim.spawn.minInterval", d.Spawn.MinInterval)
	viper.SetDefault("sim.spawn.spawnDistance", d.Spawn.SpawnDistance)

	viper.SetDefault("sim.chase.maxCaughtTime", d.Chase.MaxCaughtTime)
	viper.SetDefault("sim.chase.tierDuration", d.Chase.TierDuration)
	viper.SetDefault("sim.chase.distanceScale", d.Chase.DistanceScale)
	viper.SetDefault("sim.chase.distancePrecision", d.Chase.DistancePrecision)

	viper.SetDefault("loop.tickRate", 60)
	viper.SetDefault("loop.seed", 0)
	viper.SetDefault("loop.autopilot", false)
	viper.SetDefault("loop.maxDuration", "0s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.memory.format", "json")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./runs/roadchase.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "roadchase")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "roadchase")
	viper.SetDefault("influx.bucket", "chase")
	viper.SetDefault("influx.sampleEvery", 6)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "roadchase")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/ws")
	viper.SetDefault("stream.playerId", "")
	viper.SetDefault("stream.poseInterval", "100ms")
	viper.SetDefault("stream.ghostTTL", "5s")
	viper.SetDefault("stream.maxBackoff", "30s")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.address", "127.0.0.1:8095")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig builds the engine configuration from the sim.* keys.
// Mode strings are parsed here so a typo fails at startup, not mid-run.
func GetSimConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()

	catch, err := core.ParseCatchMode(viper.GetString("sim.catchMode"))
	if err != nil {
		return cfg, fmt.Errorf("sim.catchMode: %w", err)
	}
	score, err := core.ParseScoreMode(viper.GetString("sim.scoreMode"))
	if err != nil {
		return cfg, fmt.Errorf("sim.scoreMode: %w", err)
	}
	policy, err := core.ParseSpawnPolicy(viper.GetString("sim.spawnPolicy"))
	if err != nil {
		return cfg, fmt.Errorf("sim.spawnPolicy: %w", err)
	}

	cfg.Chase.CatchMode = catch
	cfg.Chase.ScoreMode = score
	cfg.Spawn.Policy = policy
	cfg.CarColor = viper.GetString("sim.carColor")
	cfg.MaxFrameDelta = viper.GetFloat64("sim.maxFrameDelta")
	cfg.StartHeading = viper.GetFloat64("sim.startHeading")
	cfg.VehicleRadius = viper.GetFloat64("sim.vehicleRadius")
	cfg.LightFlashPeriod = viper.GetFloat64("sim.lightFlashPeriod")
	cfg.ContactThreshold = viper.GetFloat64("sim.contactThreshold")

	cfg.Vehicle.BaseMaxSpeed = viper.GetFloat64("sim.vehicle.baseMaxSpeed")
	cfg.Vehicle.Acceleration = viper.GetFloat64("sim.vehicle.acceleration")
	cfg.Vehicle.Deceleration = viper.GetFloat64("sim.vehicle.deceleration")
	cfg.Vehicle.TurnRate = viper.GetFloat64("sim.vehicle.turnRate")
	cfg.Vehicle.TurnEpsilon = viper.GetFloat64("sim.vehicle.turnEpsilon")
	cfg.Vehicle.MinSpeedFactor = viper.GetFloat64("sim.vehicle.minSpeedFactor")
	cfg.Vehicle.MaxSpeedFactor = viper.GetFloat64("sim.vehicle.maxSpeedFactor")
	cfg.Vehicle.SpeedFactor = cfg.Vehicle.ClampSpeedFactor(viper.GetFloat64("sim.speedFactor"))

	cfg.AI.YawRate = viper.GetFloat64("sim.ai.yawRate")
	cfg.AI.YawScale = viper.GetFloat64("sim.ai.yawScale")
	cfg.AI.SpeedScale = viper.GetFloat64("sim.ai.speedScale")
	cfg.AI.CloseBoost = viper.GetFloat64("sim.ai.closeBoost")
	cfg.AI.CloseRange = viper.GetFloat64("sim.ai.closeRange")
	cfg.AI.HoldBack = viper.GetBool("sim.ai.holdBack")
	cfg.AI.SpeedMin = viper.GetFloat64("sim.ai.speedMin")
	cfg.AI.SpeedMax = viper.GetFloat64("sim.ai.speedMax")
	cfg.AI.ChaseMin = viper.GetFloat64("sim.ai.chaseMin")
	cfg.AI.ChaseMax = viper.GetFloat64("sim.ai.chaseMax")
	cfg.AI.RespawnMin = viper.GetFloat64("sim.ai.respawnMin")
	cfg.AI.RespawnMax = viper.GetFloat64("sim.ai.respawnMax")

	cfg.Pool.Size = viper.GetInt("sim.pool.size")
	cfg.Pool.Capacity = viper.GetInt("sim.pool.capacity")
	cfg.Pool.Base = viper.GetInt("sim.pool.base")
	cfg.Pool.RingStart = viper.GetFloat64("sim.pool.ringStart")
	cfg.Pool.RingStep = viper.GetFloat64("sim.pool.ringStep")

	cfg.Road.Segments = viper.GetInt("sim.road.segments")
	cfg.Road.SegmentLength = viper.GetFloat64("sim.road.segmentLength")

	cfg.Field.MaxObjects = viper.GetInt("sim.field.maxObjects")
	cfg.Field.SpawnInterval = viper.GetFloat64("sim.field.spawnInterval")
	cfg.Field.RoadWidth = viper.GetFloat64("sim.field.roadWidth")
	cfg.Field.Shoulder = viper.GetFloat64("sim.field.shoulder")
	cfg.Field.LateralSpread = viper.GetFloat64("sim.field.lateralSpread")
	cfg.Field.Lead = viper.GetFloat64("sim.field.lead")
	cfg.Field.LeadSpread = viper.GetFloat64("sim.field.leadSpread")
	cfg.Field.TrailRemove = viper.GetFloat64("sim.field.trailRemove")

	cfg.Spawn.BaseCount = viper.GetInt("sim.spawn.baseCount")
	cfg.Spawn.TiersPerPursuer = viper.GetInt("sim.spawn.tiersPerPursuer")
	cfg.Spawn.BaseInterval = viper.GetFloat64("sim.spawn.baseInterval")
	cfg.Spawn.MinInterval = viper.GetFloat64("sim.spawn.minInterval")
	cfg.Spawn.SpawnDistance = viper.GetFloat64("sim.spawn.spawnDistance")

	cfg.Chase.MaxCaughtTime = viper.GetFloat64("sim.chase.maxCaughtTime")
	cfg.Chase.TierDuration = viper.GetFloat64("sim.chase.tierDuration")
	cfg.Chase.DistanceScale = viper.GetFloat64("sim.chase.distanceScale")
	cfg.Chase.DistancePrecision = viper.GetInt("sim.chase.distancePrecision")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetSimSettings returns the raw sim.* tree, stored with each run.
func GetSimSettings() map[string]any {
	return viper.GetStringMap("sim")
}

// GetLoopConfig returns the frame loop settings.
func GetLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:    viper.GetInt("loop.tickRate"),
		Seed:        viper.GetUint64("loop.seed"),
		Autopilot:   viper.GetBool("loop.autopilot"),
		MaxDuration: viper.GetDuration("loop.maxDuration"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			Format:         viper.GetString("storage.memory.format"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetDBConfig returns the Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB telemetry configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:     viper.GetBool("influx.enabled"),
		Host:        viper.GetString("influx.host"),
		Port:        viper.GetString("influx.port"),
		Protocol:    viper.GetString("influx.protocol"),
		Token:       viper.GetString("influx.token"),
		Org:         viper.GetString("influx.org"),
		Bucket:      viper.GetString("influx.bucket"),
		SampleEvery: viper.GetInt("influx.sampleEvery"),
	}
}

// GetStreamConfig returns the pose streaming configuration.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled:      viper.GetBool("stream.enabled"),
		URL:          viper.GetString("stream.url"),
		PlayerID:     viper.GetString("stream.playerId"),
		PoseInterval: viper.GetDuration("stream.poseInterval"),
		GhostTTL:     viper.GetDuration("stream.ghostTTL"),
		MaxBackoff:   viper.GetDuration("stream.maxBackoff"),
	}
}

// GetAPIConfig returns the status server configuration.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled: viper.GetBool("api.enabled"),
		Address: viper.GetString("api.address"),
	}
}

// GetLiveSettings returns the settings applied to a running engine on reload.
func GetLiveSettings() LiveSettings {
	return LiveSettings{
		SpeedFactor: viper.GetFloat64("sim.speedFactor"),
		CarColor:    viper.GetString("sim.carColor"),
	}
}

// Watch re-reads the config file on change and hands the live settings to fn.
// Structural settings (pool sizes, modes) only take effect on the next start.
func Watch(fn func(LiveSettings)) {
	viper.OnConfigChange(onChange(fn))
	viper.WatchConfig()
}

func onChange(fn func(LiveSettings)) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(GetLiveSettings())
	}
}
