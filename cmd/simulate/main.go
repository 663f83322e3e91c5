package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/salle/internal/simulate"
	"github.com/okian/salle/pkg/logger"
)

// Default configuration constants.
const (
	defaultFencers     = 12
	defaultBouts       = 500
	defaultRetries     = 1
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Base URL of the service")
		email    = flag.String("email", os.Getenv("SALLE_ADMIN_EMAIL"), "Account to sign in with")
		password = flag.String("password", os.Getenv("SALLE_ADMIN_PASSWORD"), "Password of that account")
		fencers  = flag.Int("fencers", defaultFencers, "Demo fencers to register first")
		bouts    = flag.Int("bouts", defaultBouts, "Simulated bouts to submit")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		retries  = flag.Int("retries", defaultRetries, "Extra sends per idempotency key")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		report   = flag.String("report", "", "JSON report file, auto for a timestamped name")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp(os.Stdout)
		return
	}

	closer, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	code := run(*report, simulate.Config{
		BaseURL:  *baseURL,
		Email:    *email,
		Password: *password,
		Fencers:  *fencers,
		Bouts:    *bouts,
		Workers:  *workers,
		Retries:  *retries,
		Timeout:  *timeout,
		Verbose:  *verbose,
	})
	_ = closer.Close()
	os.Exit(code)
}

func run(report string, cfg simulate.Config) int {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	r := simulate.NewRunner(cfg, log)
	st, err := r.Run(ctx)
	if err != nil {
		log.Error(ctx, "simulation failed", logger.Error(err))
		return 1
	}
	simulate.Display(ctx, log, st)

	verr := errors.Join(simulate.Verify(st), r.Standings(ctx, st.SessionID))
	if report == "auto" {
		report = simulate.DefaultReportPath(st.StartTime)
	}
	if report != "" {
		if err := simulate.SaveReport(report, st, verr); err != nil {
			log.Error(ctx, "saving report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("path", report))
		}
	}
	if verr != nil {
		log.Error(ctx, "verification failed", logger.Error(verr))
		return 1
	}
	log.Info(ctx, "verification passed")
	return 0
}
