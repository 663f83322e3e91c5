package simulate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/salle/pkg/logger"
)

const reportFilePermission = 0600

// SetupLogging sends log output to stdout and, when logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, reportFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = io.MultiWriter(os.Stdout, f), f
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// SaveReport writes the run summary as indented JSON.
func SaveReport(path string, st *Stats, verr error) error {
	report := struct {
		*Stats
		Passed bool   `json:"passed"`
		Error  string `json:"error,omitempty"`
	}{Stats: st, Passed: verr == nil}
	if verr != nil {
		report.Error = verr.Error()
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, b, reportFilePermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// DefaultReportPath returns a timestamped report file name.
func DefaultReportPath(now time.Time) string {
	return "simulate_" + now.Format("20060102_150405") + ".json"
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Salle bout simulator
====================

Registers a demo roster, submits simulated bouts concurrently with
idempotency keys and checks that the session leaderboard grew by two
matches per accepted bout.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string        Base URL of the service (default "http://localhost:8080")
  -email string      Account to sign in with (default $SALLE_ADMIN_EMAIL)
  -password string   Password of that account (default $SALLE_ADMIN_PASSWORD)
  -fencers int       Demo fencers to register first, 0 to skip (default 12)
  -bouts int         Simulated bouts to submit (default 500)
  -workers int       Concurrent submitters (default CPU cores * 2)
  -retries int       Extra sends per idempotency key (default 1)
  -timeout duration  HTTP request timeout (default 30s)
  -report string     JSON report file, "auto" for a timestamped name
  -log string        Also write logs to this file
  -verbose           Log every bout
  -help              Show this help message

Examples:
  go run ./cmd/simulate -bouts 2000 -workers 16
  go run ./cmd/simulate -url http://localhost:9090 -report auto
`)
}
