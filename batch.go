package pagemill

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ConvertBatch processes documents one at a time; pages within each
// document run in parallel. A failed document is recorded and the batch
// moves on, so the result always has one entry per input.
func (e *engine) ConvertBatch(ctx context.Context, paths []string, opts ...ConvertOption) (BatchResult, error) {
	o := e.newConvertOptions(opts)
	batchID := uuid.NewString()
	start := time.Now()

	slog.Info("batch: starting", "batch_id", batchID, "documents", len(paths))

	results := make(BatchResult, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)

		var res *DocumentResult
		if err := ctx.Err(); err != nil {
			// Once the batch is cancelled the remaining documents are
			// marked failed without being started.
			res = &DocumentResult{
				Name:   name,
				Stem:   stemOf(path),
				Status: StatusFailed,
				Model:  o.model,
				Vision: o.vision,
				Error:  err.Error(),
			}
		} else {
			var err error
			res, err = e.convertDocument(ctx, path, o)
			if err != nil {
				slog.Error("batch: document failed", "file", name, "error", err)
			}
		}

		results[name] = res
		e.record(batchID, path, res)
		if o.progress != nil {
			o.progress(res)
		}
	}

	slog.Info("batch: complete", "batch_id", batchID, "documents", len(paths),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return results, nil
}
