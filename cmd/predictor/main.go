package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/Joserraldo/diabetes/internal/config"
	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/engine/mock"
	"github.com/Joserraldo/diabetes/internal/engine/session"
	"github.com/Joserraldo/diabetes/internal/form"
	"github.com/Joserraldo/diabetes/internal/logging"
	"github.com/Joserraldo/diabetes/internal/predict"
	"github.com/Joserraldo/diabetes/internal/service"
	"github.com/Joserraldo/diabetes/internal/ui"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return runTUI(ctx, nil)
	}

	cmd := strings.ToLower(strings.TrimSpace(args[0]))
	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("predictor %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	case "-h", "--help", "help":
		printUsage()
		return 0
	case "tui":
		return runTUI(ctx, args[1:])
	case "predict":
		return runPredict(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		if strings.HasPrefix(cmd, "-") {
			return runTUI(ctx, args)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

// clientFlags are shared by the interactive and headless clients. Only flags
// given on the command line override the loaded configuration.
type clientFlags struct {
	config  string
	host    string
	port    string
	timeout time.Duration
	demo    bool
	log     bool
	logDir  string
}

func (c *clientFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", os.Getenv(config.EnvPrefix+"_CONFIG"), "YAML config file")
	fs.StringVar(&c.host, "host", "", "Prediction service host")
	fs.StringVar(&c.port, "port", "", "Prediction service port")
	fs.DurationVar(&c.timeout, "timeout", 0, "Request timeout (0 waits indefinitely)")
	fs.BoolVar(&c.demo, "demo", false, "Score offline with the built-in model instead of calling a service")
	fs.BoolVar(&c.log, "log", false, "Always write session.md")
	fs.StringVar(&c.logDir, "log-dir", ".", "Directory for session.md")
}

func (c *clientFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Target.Host = strings.TrimSpace(c.host)
		case "port":
			cfg.Target.Port = strings.TrimSpace(c.port)
		case "timeout":
			cfg.Client.Timeout = c.timeout
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSubmitter(demo bool, cfg *config.Config, logger *zap.Logger) (session.Submitter, ui.Mode, error) {
	if !demo {
		return predict.NewClient(predict.WithTimeout(cfg.Client.Timeout), predict.WithLogger(logger)), ui.ModeLive, nil
	}
	model, err := loadModel(cfg.Server.Model)
	if err != nil {
		return nil, "", err
	}
	return mock.New(model, mock.Options{Speed: cfg.Mock.Speed, Fail: cfg.Mock.Fail}), ui.ModeDemo, nil
}

func loadModel(path string) (*service.Model, error) {
	if strings.TrimSpace(path) == "" {
		return service.DefaultModel(), nil
	}
	return service.LoadModel(path)
}

func runTUI(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var cf clientFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := cf.load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// The alternate screen owns the terminal, so the process log goes to a
	// file.
	logFile := cfg.Log.File
	if strings.TrimSpace(logFile) == "" {
		logFile = "predictor.log"
	}
	logger, err := logging.NewZap(logging.ZapConfig{Level: cfg.Log.Level, Format: cfg.Log.Format, File: logFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	submitter, mode, err := newSubmitter(cf.demo, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	events := make(chan domain.Event, 256)
	actions := make(chan domain.Action, 16)
	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	session.New(form.NewStore(cfg.TargetValue()), submitter, session.WithLogger(logger)).Run(engineCtx, events, actions)

	sessionLog := logging.NewEventLogger(logging.Config{Always: cf.log, Dir: cf.logDir, Version: Version, Mode: string(mode)})
	runErr := ui.Run(ctx, mode, events, actions, ui.Meta{Version: Version}, cancel, sessionLog)
	return finish(sessionLog, runErr)
}

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"_CONFIG"), "YAML config file")
	addr := fs.String("addr", "", "Listen address (default :5001)")
	modelPath := fs.String("model", "", "YAML model file (default: built-in model)")
	rateLimit := fs.Float64("rate-limit", 0, "Requests per second across all clients (0 disables)")
	burst := fs.Int("burst", 0, "Rate limiter burst")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "model":
			cfg.Server.Model = *modelPath
		case "rate-limit":
			cfg.Server.RateLimit = *rateLimit
		case "burst":
			cfg.Server.Burst = *burst
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := logging.NewZap(logging.ZapConfig{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}
	defer undo()

	model, err := loadModel(cfg.Server.Model)
	if err != nil {
		logger.Error("failed to load model", zap.Error(err))
		return 1
	}
	logger.Info("model loaded", zap.String("name", model.Name), zap.Int("features", len(model.Features)))

	srv := service.New(model, service.Options{
		Addr:      cfg.Server.Addr,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	}, logger)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("prediction service stopped", zap.Error(err))
		return 1
	}
	return 0
}

// finish writes the session log and maps the run error to an exit code.
func finish(sessionLog *logging.EventLogger, runErr error) int {
	if runErr != nil {
		sessionLog.MarkFailure()
	}
	res, err := sessionLog.Finalize()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if res.Written {
		fmt.Fprintf(os.Stderr, "Session log saved to %s\n", res.Path)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println("Diabetes risk predictor")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  predictor [tui] [flags]      Interactive terminal client (default)")
	fmt.Println("  predictor predict [flags]    Send one prediction and print the result")
	fmt.Println("  predictor serve [flags]      Run the reference prediction service")
	fmt.Println("  predictor version            Print version")
	fmt.Println("")
	fmt.Println("Client flags:")
	fmt.Println("  --host=<host> --port=<port>  Prediction service address")
	fmt.Println("  --timeout=<duration>         Request timeout (default: none)")
	fmt.Println("  --demo                       Score offline with the built-in model")
	fmt.Println("  --config=<file>              YAML config file (or PREDICTOR_CONFIG)")
	fmt.Println("  --log                        Always write session.md")
	fmt.Println("  --log-dir=<dir>              Where session.md goes (default: .)")
	fmt.Println("")
	fmt.Println("predict flags:")
	fmt.Println("  --<field>=<value>            One per metric, e.g. --glucose=140 --diettype=2")
	fmt.Println("  --json                       Print the outcome as JSON")
	fmt.Println("")
	fmt.Println("serve flags:")
	fmt.Println("  --addr=<addr> --model=<file> --rate-limit=<rps> --burst=<n>")
}
