package stats

import (
	"encoding/json"
	"strconv"

	"github.com/okian/salle/internal/domain/model"
)

// Cell aggregates one ordered pair (a against b).
type Cell struct {
	PointsScored int `json:"points_scored"` // touches a scored against b
	TotalBouts   int `json:"total_bouts"`   // bouts between a and b, symmetric
	Victories    int `json:"victories"`     // only counted with WithWinningScore
}

// Matrix is a head-to-head table over a fixed fencer set.
type Matrix struct {
	fencers []int64
	index   map[int64]int
	cells   [][]Cell
}

type matrixConfig struct {
	winningScore int
}

// MatrixOption configures BuildMatrix.
type MatrixOption func(*matrixConfig)

// WithWinningScore counts a victory in a cell when the fencer's own score
// reaches n and strictly exceeds the opponent's.
func WithWinningScore(n int) MatrixOption {
	return func(c *matrixConfig) { c.winningScore = n }
}

// BuildMatrix builds the head-to-head matrix. Bouts referencing a fencer
// outside the given set are ignored.
func BuildMatrix(fencers []model.Fencer, bouts []model.Bout, opts ...MatrixOption) Matrix {
	cfg := matrixConfig{winningScore: -1}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := Matrix{
		fencers: make([]int64, 0, len(fencers)),
		index:   make(map[int64]int, len(fencers)),
	}
	for _, f := range fencers {
		if _, dup := m.index[f.ID]; dup {
			continue
		}
		m.index[f.ID] = len(m.fencers)
		m.fencers = append(m.fencers, f.ID)
	}
	m.cells = make([][]Cell, len(m.fencers))
	for i := range m.cells {
		m.cells[i] = make([]Cell, len(m.fencers))
	}

	for _, b := range bouts {
		i, ok1 := m.index[b.Fencer1ID]
		j, ok2 := m.index[b.Fencer2ID]
		if !ok1 || !ok2 || i == j {
			continue
		}
		m.cells[i][j].PointsScored += b.Score1
		m.cells[j][i].PointsScored += b.Score2
		m.cells[i][j].TotalBouts++
		m.cells[j][i].TotalBouts++
		if cfg.winningScore >= 0 {
			if b.Score1 >= cfg.winningScore && b.Score1 > b.Score2 {
				m.cells[i][j].Victories++
			}
			if b.Score2 >= cfg.winningScore && b.Score2 > b.Score1 {
				m.cells[j][i].Victories++
			}
		}
	}
	return m
}

// Fencers returns the row/column order.
func (m Matrix) Fencers() []int64 {
	return append([]int64(nil), m.fencers...)
}

// Len returns the number of fencers.
func (m Matrix) Len() int { return len(m.fencers) }

// Cell returns the aggregate of a against b. ok is false on the diagonal and
// for fencers outside the matrix.
func (m Matrix) Cell(a, b int64) (Cell, bool) {
	i, ok1 := m.index[a]
	j, ok2 := m.index[b]
	if !ok1 || !ok2 || i == j {
		return Cell{}, false
	}
	return m.cells[i][j], true
}

// MarshalJSON renders {"a": {"b": cell}} with null on the diagonal.
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]*Cell, len(m.fencers))
	for i, a := range m.fencers {
		row := make(map[string]*Cell, len(m.fencers))
		for j, b := range m.fencers {
			if i == j {
				row[strconv.FormatInt(b, 10)] = nil
				continue
			}
			c := m.cells[i][j]
			row[strconv.FormatInt(b, 10)] = &c
		}
		out[strconv.FormatInt(a, 10)] = row
	}
	return json.Marshal(out)
}
