package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/isdelr/datathon-cli/internal/models"
)

// progressReader reports the fraction of the file consumed as the
// multipart writer drains it.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(fraction float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil && p.total > 0 {
			f := float64(p.read) / float64(p.total)
			if f > 1 {
				f = 1
			}
			p.fn(f)
		}
	}
	return n, err
}

// Upload sends one CSV as a multipart request to POST /upload. The body is
// streamed through a pipe so progress tracks bytes actually transmitted
// rather than bytes buffered. On HTTP 429 the returned error is a
// *RateLimitError; other failures carry the backend's message.
func (c *Client) Upload(ctx context.Context, name string, size int64, file io.Reader, progress func(fraction float64)) (*models.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(name))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: file, total: size, fn: progress}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.UploadResult
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return &out, nil
}
