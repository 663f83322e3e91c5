// Package export writes club data as CSV and optionally uploads it to
// S3-compatible object storage.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// ContentType is the MIME type of every export.
const ContentType = "text/csv; charset=utf-8"

//nolint:gochecknoglobals // fixed headers
var (
	fencerHeader = []string{"id", "name", "age", "level", "club"}
	boutHeader   = []string{
		"id", "timestamp",
		"fencer1_id", "fencer1", "score1",
		"fencer2_id", "fencer2", "score2",
		"winner", "session_id", "notes",
	}
)

// WriteFencers writes one row per fencer.
func WriteFencers(w io.Writer, fencers []model.Fencer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fencerHeader); err != nil {
		return fmt.Errorf("write fencer header: %w", err)
	}
	for _, f := range fencers {
		if err := cw.Write([]string{
			strconv.FormatInt(f.ID, 10),
			f.Name,
			strconv.Itoa(f.Age),
			string(f.Level),
			f.Club,
		}); err != nil {
			return fmt.Errorf("write fencer %d: %w", f.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBouts writes one row per bout with fencer names resolved.
// Draws have an empty winner column.
func WriteBouts(w io.Writer, bouts []model.Bout, fencers []model.Fencer) error {
	idx := model.IndexFencers(fencers)
	cw := csv.NewWriter(w)
	if err := cw.Write(boutHeader); err != nil {
		return fmt.Errorf("write bout header: %w", err)
	}
	for _, b := range bouts {
		winner := ""
		if id, ok := b.WinnerID(); ok {
			winner = idx.Name(id)
		}
		session := ""
		if b.SessionID != nil {
			session = strconv.FormatInt(*b.SessionID, 10)
		}
		if err := cw.Write([]string{
			strconv.FormatInt(b.ID, 10),
			b.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatInt(b.Fencer1ID, 10),
			idx.Name(b.Fencer1ID),
			strconv.Itoa(b.Score1),
			strconv.FormatInt(b.Fencer2ID, 10),
			idx.Name(b.Fencer2ID),
			strconv.Itoa(b.Score2),
			winner,
			session,
			b.Notes,
		}); err != nil {
			return fmt.Errorf("write bout %d: %w", b.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
