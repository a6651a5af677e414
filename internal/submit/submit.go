// Package submit drives one submission end to end: validate locally,
// preview, upload with progress, render the score and record it.
package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/api"
	"github.com/isdelr/datathon-cli/internal/history"
	"github.com/isdelr/datathon-cli/internal/models"
	"github.com/isdelr/datathon-cli/internal/render"
	"github.com/isdelr/datathon-cli/internal/validate"
)

// Options tweak a single run.
type Options struct {
	// Strict refuses to upload when validation produced warnings instead
	// of only printing them.
	Strict bool
}

// Runner holds the pieces a submission needs. History may be nil; the
// upload still happens, it just is not recorded locally.
type Runner struct {
	Client  *api.Client
	History *history.Store
	Out     io.Writer
}

// Run submits the file at path. Validation failures return before any
// network traffic. On a quota rejection the returned error carries the
// human-readable retry time.
func (r *Runner) Run(ctx context.Context, path string, opts Options) (*models.UploadResult, error) {
	rep, err := validate.File(path)
	if err != nil {
		return nil, err
	}

	rend := render.New(r.Out)
	rend.Preview(rep)
	if opts.Strict && len(rep.Warnings) > 0 {
		return nil, errors.New("strict mode: refusing to submit a file with validation warnings")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bar := render.NewProgress(r.Out)
	res, err := r.Client.Upload(ctx, rep.Name, rep.Size, f, bar.Update)
	bar.Done()
	if err != nil {
		var rle *api.RateLimitError
		if errors.As(err, &rle) {
			return nil, errors.New(render.RateLimitMessage(rle))
		}
		return nil, err
	}

	rend.UploadResult(res)

	if r.History != nil {
		rec := history.Record{
			FileName:             rep.Name,
			FileSize:             rep.Size,
			ItemAccuracy:         res.ItemAccuracy,
			SubmissionsRemaining: res.SubmissionsRemaining,
			CreatedAt:            res.Timestamp,
		}
		if err := r.History.Add(rec); err != nil {
			// The score already came back; losing the local record is not
			// worth failing the command.
			log.Warn().Err(err).Msg("Failed to record submission history")
		}
	}
	return res, nil
}

// Describe validates without uploading, for the dry-run path.
func Describe(out io.Writer, path string) error {
	rep, err := validate.File(path)
	if err != nil {
		return err
	}
	rend := render.New(out)
	rend.Preview(rep)
	if len(rep.Warnings) == 0 {
		fmt.Fprintln(out, "File looks ready to submit.")
	}
	return nil
}
