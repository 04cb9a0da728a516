// Command chasesim runs the chase simulation headless: the frame loop, run
// recording, telemetry and the optional status API. Input comes from the
// autopilot, host commands on stdin, or the API control endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/pursuitlab/roadchase/internal/api"
	"github.com/pursuitlab/roadchase/internal/cache"
	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/dispatcher"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/internal/influx"
	"github.com/pursuitlab/roadchase/internal/logging"
	"github.com/pursuitlab/roadchase/internal/monitor"
	intOtel "github.com/pursuitlab/roadchase/internal/otel"
	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/pursuitlab/roadchase/internal/storage"
	wsstorage "github.com/pursuitlab/roadchase/internal/storage/websocket"
	"github.com/pursuitlab/roadchase/internal/worker"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "chasesim"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.Uint64("seed", 0, "world seed, 0 picks one from the clock")
	fs.Bool("autopilot", false, "drive the car without host input")
	fs.Duration("max-duration", 0, "stop after this long, 0 runs until interrupted")
	fs.Int("tick-rate", 60, "frame loop frequency in Hz")
	fs.Bool("stdin", false, "read host commands from stdin, one per line")
	fs.Bool("version", false, "print the version and exit")
	return fs
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"loop.seed":        "seed",
	"loop.autopilot":   "autopilot",
	"loop.maxDuration": "max-duration",
	"loop.tickRate":    "tick-rate",
}

func bindFlags(fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// settingsListeners fans setting changes out to several listeners.
type settingsListeners []handlers.SettingsListener

func (l settingsListeners) SpeedFactorChanged(f float64) {
	for _, x := range l {
		x.SpeedFactorChanged(f)
	}
}

func (l settingsListeners) ColorChanged(c string) {
	for _, x := range l {
		x.ColorChanged(c)
	}
}

// streamSettings forwards the car colour to the pose stream.
type streamSettings struct{ stream *wsstorage.Backend }

func (streamSettings) SpeedFactorChanged(float64) {}

func (s streamSettings) ColorChanged(c string) { s.stream.SetColor(c) }

func run(args []string) error {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return nil
	}
	configDir, _ := fs.GetString("config-dir")
	stdinHost, _ := fs.GetBool("stdin")

	sess := session.NewContext()
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil, logging.SessionAttrs(sess))
	Logger = SlogManager.Logger()

	configErr := config.Load(configDir)
	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}
	if err := bindFlags(fs); err != nil {
		return err
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      logFile,
			MetricWriter:   logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logFile, config.GetString("logLevel"), otelLogProvider, logging.SessionAttrs(sess))
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logPath, "version", CurrentVersion)

	frameCfg := logging.DefaultFrameLogConfig()
	frameCfg.Level = config.GetString("logLevel")
	frameCfg.Session = sess
	if config.GetBool("graylog.enabled") {
		frameCfg.GelfAddress = config.GetString("graylog.address")
	}
	frameLog, err := logging.NewFrameLogger(logFile, frameCfg)
	if err != nil {
		Logger.Error("Failed to create frame logger with GELF output", "error", err)
		frameCfg.GelfAddress = ""
		frameLog, _ = logging.NewFrameLogger(logFile, frameCfg)
	}

	simCfg, err := config.GetSimConfig()
	if err != nil {
		return fmt.Errorf("invalid sim config: %w", err)
	}
	loopCfg := config.GetLoopConfig()
	seed := loopCfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	eng, err := engine.New(simCfg, rng.New(seed), engine.WithLogger(frameLog))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close()

	ghosts := cache.NewGhostCache(config.GetStreamConfig().GhostTTL)
	backend, stream, err := initStorage(ghosts)
	if err != nil {
		return err
	}

	recorder := worker.NewRecorder(worker.Dependencies{
		Backend:  backend,
		Session:  sess,
		Logger:   SlogManager.Component("recorder"),
		Sim:      simCfg,
		Settings: config.GetSimSettings(),
		Seed: func() uint64 {
			s, _ := eng.Seed()
			return s
		},
	})
	recorder.Start()

	var influxWriter *influx.Writer
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.log.gz", SessionStartTime.Format("20060102_150405")))
		influxWriter = influx.NewWriter(influxCfg, frameLog, backupPath, sess)
		connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := influxWriter.Connect(connectCtx)
		cancel()
		if err != nil {
			Logger.Error("Failed to initialize InfluxDB writer", "error", err)
			influxWriter = nil
		} else {
			influxWriter.Start(time.Second)
		}
	}

	latch := &handlers.IntentLatch{}
	var runner *engine.Runner
	pilot := newAutopilot(latch, func(fn func(*engine.Engine)) error { return runner.Submit(fn) })

	runnerOpts := []engine.RunnerOption{
		engine.WithTickRate(loopCfg.TickRate),
		engine.WithRunnerLogger(frameLog),
		engine.WithSink(recorder),
	}
	if influxWriter != nil {
		runnerOpts = append(runnerOpts, engine.WithSink(influxWriter))
	}
	var intents engine.IntentSource = latch
	if loopCfg.Autopilot {
		intents = pilot
		runnerOpts = append(runnerOpts, engine.WithSink(pilot))
	}
	runner = engine.NewRunner(eng, intents, runnerOpts...)

	listeners := settingsListeners{recorder}
	if stream != nil {
		listeners = append(listeners, streamSettings{stream})
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(frameLog))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	handlerService := handlers.NewService(handlers.Dependencies{
		Loop:     runner,
		Intent:   latch,
		Ghosts:   ghosts,
		Listener: listeners,
		Logger:   SlogManager.Component("handlers"),
	})
	handlerService.Register(eventDispatcher)

	if configErr == nil {
		config.Watch(func(ls config.LiveSettings) {
			Logger.Info("Config changed, applying live settings", "speedFactor", ls.SpeedFactor, "color", ls.CarColor)
			applyLiveSettings(eventDispatcher.Dispatch, ls)
		})
	}

	var perf monitor.PerformanceWriter
	for _, b := range backend.Backends() {
		if p, ok := b.(monitor.PerformanceWriter); ok {
			perf = p
			break
		}
	}
	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Session:    sess,
		Recorder:   recorder,
		Backend:    backend,
		Perf:       perf,
		StatusDir:  logsDir,
	})
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}

	var apiServer *api.Server
	if apiCfg := config.GetAPIConfig(); apiCfg.Enabled {
		reader, _ := backend.Reader()
		apiServer = api.NewServer(apiCfg.Address, api.Dependencies{
			Status:    handlerService,
			Runs:      reader,
			Dispatch:  eventDispatcher.Dispatch,
			Logger:    SlogManager.Component("api"),
			AccessLog: logFile,
		})
		go func() {
			if err := apiServer.ListenAndServe(); err != nil {
				Logger.Error("API server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if loopCfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, loopCfg.MaxDuration)
		defer cancel()
	}
	if stdinHost {
		go func() {
			if err := serveHost(ctx, os.Stdin, os.Stdout, eventDispatcher.Dispatch); err != nil {
				Logger.Error("Host command reader failed", "error", err)
			}
			stop()
		}()
	}

	Logger.Info("Starting frame loop", "seed", seed, "tickRate", loopCfg.TickRate, "autopilot", loopCfg.Autopilot)
	runErr := runner.Run(ctx)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdown(shutdownCtx, apiServer, eventDispatcher, recorder, influxWriter, monitorService, backend)

	Logger.Info("Stopped", "run_id", sess.RunID(), "frames", eng.Frame(), "score", sess.Score())
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown:", err)
		}
	}
	_ = SlogManager.Flush(shutdownCtx)
	return runErr
}

// applyLiveSettings routes reloaded settings through the host commands so
// they are clamped and recorded the same way.
func applyLiveSettings(dispatch func(dispatcher.Event) (any, error), ls config.LiveSettings) {
	speed := strconv.FormatFloat(ls.SpeedFactor, 'f', -1, 64)
	if _, err := dispatch(dispatcher.Event{Command: handlers.CmdSpeed, Args: []string{speed}}); err != nil {
		Logger.Error("Failed to apply speed factor", "error", err)
	}
	if ls.CarColor == "" {
		return
	}
	if _, err := dispatch(dispatcher.Event{Command: handlers.CmdColor, Args: []string{ls.CarColor}}); err != nil {
		Logger.Error("Failed to apply car colour", "error", err)
	}
}

// shutdown stops the outer surfaces first so nothing new reaches the
// recorder, then drains it into storage before storage closes.
func shutdown(
	ctx context.Context,
	apiServer *api.Server,
	d *dispatcher.Dispatcher,
	recorder *worker.Recorder,
	influxWriter *influx.Writer,
	monitorService *monitor.Service,
	backend *storage.Multi,
) {
	if apiServer != nil {
		if err := apiServer.Shutdown(ctx); err != nil {
			Logger.Error("API shutdown failed", "error", err)
		}
	}
	d.Close()
	if err := recorder.Close(ctx); err != nil {
		Logger.Error("Recorder did not drain", "error", err)
	}
	if influxWriter != nil {
		if err := influxWriter.Close(); err != nil {
			Logger.Error("InfluxDB writer close failed", "error", err)
		}
	}
	monitorService.Stop()
	if err := backend.Close(); err != nil {
		Logger.Error("Storage close failed", "error", err)
	}
	for _, b := range backend.Backends() {
		if e, ok := b.(storage.Exporter); ok && e.ExportedFilePath() != "" {
			Logger.Info("Last run exported", "path", e.ExportedFilePath())
		}
	}
	st := recorder.Stats()
	Logger.Info("Recorder stats", "written", st.Written, "dropped", st.Dropped, "failed", st.Failed)
}
