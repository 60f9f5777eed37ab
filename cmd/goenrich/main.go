package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goenrich/internal/api"
	"github.com/hyperifyio/goenrich/internal/app"
	"github.com/hyperifyio/goenrich/internal/fallback"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// errConfig marks failures caused by invalid flags or configuration.
var errConfig = errors.New("configuration error")

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("load env files")
	}
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run dispatches the subcommand and returns the process exit code.
func run(args []string, stdout io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(args)
	case "enrich":
		err = enrichOnce(args, stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve or enrich)\n", cmd)
		return exitConfig
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errConfig):
		log.Error().Err(err).Msg("invalid configuration")
		return exitConfig
	default:
		log.Error().Err(err).Str("command", cmd).Msg("run failed")
		return exitFailed
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	provider   string
	mode       string
	cache      string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("GOENRICH_CONFIG"), "Path to YAML or JSON config file")
	fs.StringVar(&c.provider, "llm.provider", "", "Extraction provider: gemini or openai")
	fs.StringVar(&c.mode, "mode", "", "Enrichment mode: live or mock")
	fs.StringVar(&c.cache, "cache", "", "Result cache backend: memory or redis")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

// loadConfig merges flags, the optional config file and env, in that order
// of precedence, and configures logging.
func (c *commonFlags) loadConfig(cfg app.Config) (app.Config, error) {
	cfg.LLMProvider = c.provider
	cfg.Mode = c.mode
	cfg.CacheBackend = c.cache
	cfg.Verbose = c.verbose
	if strings.TrimSpace(c.configPath) != "" {
		fc, err := app.LoadConfigFile(c.configPath)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", errConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)
	app.ApplyDefaults(&cfg)
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errConfig, err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg app.Config) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	var addr string
	var dev bool
	fs.StringVar(&addr, "addr", "", "Listen address (default :8080)")
	fs.BoolVar(&dev, "dev", false, "Register development routes such as cache invalidation")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	cfg, err := common.loadConfig(app.Config{Addr: addr, DevRoutes: dev})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(a.Pipeline(), a.Enricher(), api.Options{DevRoutes: cfg.DevRoutes, CORSAllow: cfg.CORSAllow}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Bool("dev_routes", cfg.DevRoutes).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sectorUsage names the sectors that have a dedicated fallback template.
func sectorUsage() string {
	return "Company sector, selects the fallback template (" + strings.Join(fallback.Categories(), ", ") + "; anything else uses the generic one)"
}

func enrichOnce(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	var website, sector, outputPath, pdfPath string
	fs.StringVar(&website, "url", "", "Company website to enrich")
	fs.StringVar(&sector, "sector", "", sectorUsage())
	fs.StringVar(&outputPath, "output", "", "Optional path for a Markdown brief")
	fs.StringVar(&pdfPath, "pdf", "", "Optional path for a PDF brief")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if strings.TrimSpace(website) == "" {
		return fmt.Errorf("%w: -url is required", errConfig)
	}
	cfg, err := common.loadConfig(app.Config{})
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	company := app.Company{Website: website, Sector: sector}
	view, err := a.Enricher().EnrichCompany(ctx, company)
	if err != nil {
		return err
	}
	if view.Mode == app.ViewFallback {
		log.Warn().Str("reason", view.Reason).Msg("served fallback data")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if outputPath != "" {
		if err := app.WriteMarkdownReport(outputPath, company, view); err != nil {
			return err
		}
		log.Info().Str("path", outputPath).Msg("wrote markdown brief")
	}
	if pdfPath != "" {
		if err := app.WritePDFReport(pdfPath, company, view); err != nil {
			return err
		}
		log.Info().Str("path", pdfPath).Msg("wrote pdf brief")
	}
	return nil
}
