// Package simulate drives a running server with concurrent simulated bouts
// and checks that the leaderboard stays consistent with what was accepted.
package simulate

import "time"

// Config holds the simulator settings.
type Config struct {
	BaseURL  string        // Base URL of the service
	Email    string        // Account used to sign in
	Password string        // Password of that account
	Fencers  int           // Demo fencers to register first; 0 skips
	Bouts    int           // Simulated bouts to submit
	Workers  int           // Concurrent submitters
	Retries  int           // Extra sends of every idempotency key
	Timeout  time.Duration // HTTP request timeout
	Report   string        // Optional JSON report path
	Verbose  bool
}

// Bout is the subset of a stored bout the simulator reads.
type Bout struct {
	ID        int64  `json:"id"`
	Fencer1ID int64  `json:"fencer1_id"`
	Fencer2ID int64  `json:"fencer2_id"`
	Score1    int    `json:"score1"`
	Score2    int    `json:"score2"`
	SessionID *int64 `json:"session_id"`
}

// Standing is one leaderboard row.
type Standing struct {
	Rank    int     `json:"rank"`
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Matches int     `json:"matches"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// Session is the subset of a session the simulator reads.
type Session struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Temporary bool   `json:"temporary"`
}

// Stats summarises a run.
type Stats struct {
	FencersRegistered int           `json:"fencers_registered"`
	BoutsSubmitted    int           `json:"bouts_submitted"`
	BoutsAccepted     int           `json:"bouts_accepted"`
	Replays           int           `json:"replays"`
	ReplayMismatches  int           `json:"replay_mismatches"`
	Failed            int           `json:"failed"`
	SessionID         int64         `json:"session_id"`
	MatchesBefore     int           `json:"matches_before"`
	MatchesAfter      int           `json:"matches_after"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration_ns"`
}
