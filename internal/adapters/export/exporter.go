package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/metrics"
)

// Exporter uploads fencer and bout snapshots.
type Exporter struct {
	uploader Uploader
	prefix   string
}

// NewExporter returns an Exporter writing under prefix. A nil uploader
// makes Export fail with ErrNotConfigured.
func NewExporter(u Uploader, prefix string) *Exporter {
	return &Exporter{uploader: u, prefix: prefix}
}

// Enabled reports whether uploads are possible.
func (e *Exporter) Enabled() bool { return e != nil && e.uploader != nil }

// Export writes fencers.csv and bouts.csv under a timestamped folder.
func (e *Exporter) Export(ctx context.Context, fencers []model.Fencer, bouts []model.Bout, now time.Time) ([]UploadResult, error) {
	if !e.Enabled() {
		return nil, ErrNotConfigured
	}
	folder := e.prefix + now.UTC().Format("20060102T150405Z")

	var fb, bb bytes.Buffer
	if err := WriteFencers(&fb, fencers); err != nil {
		return nil, err
	}
	if err := WriteBouts(&bb, bouts, fencers); err != nil {
		return nil, err
	}

	out := make([]UploadResult, 0, 2)
	for _, f := range []struct {
		name string
		body *bytes.Buffer
	}{{"fencers.csv", &fb}, {"bouts.csv", &bb}} {
		res, err := e.uploader.Upload(ctx, folder+"/"+f.name, ContentType, f.body)
		if err != nil {
			metrics.RecordExport("failed")
			return out, model.Remote(fmt.Sprintf("upload %s", f.name), err)
		}
		out = append(out, res)
	}
	metrics.RecordExport("ok")
	return out, nil
}
