package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"
)

// Downloader fetches a bundle from url into a local scoped file,
// reporting percent-complete as bytes are read and checking the
// cancellation token on every chunk.
type Downloader struct {
	client *resty.Client
}

func NewDownloader() *Downloader {
	return &Downloader{client: resty.New()}
}

const downloadChunkSize = 64 * 1024

// Download streams url into destPath. onProgress is called with a
// monotonically non-decreasing percent (0..=100) whenever a chunk
// changes it, and with 100 once the body has been read.
// Cancellation is observed before the request and on every chunk read.
func (d *Downloader) Download(ctx context.Context, url, destPath string, cancel *CancelToken, onProgress func(percent int)) error {
	if cancel.Cancelled() {
		return Canceled()
	}

	// Firing the token also aborts a read blocked on a stalled body.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-cancel.Done():
			stop()
		case <-ctx.Done():
		}
	}()

	req := d.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	resp, err := req.Get(url)
	if err != nil {
		return Network(err.Error())
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		return Network(fmt.Sprintf("unexpected status %d downloading bundle", resp.StatusCode()))
	}

	total := resp.RawResponse.ContentLength

	f, err := os.Create(destPath)
	if err != nil {
		return IoError(err.Error())
	}
	defer f.Close()

	var read int64
	buf := make([]byte, downloadChunkSize)
	lastPercent := 0

	for {
		select {
		case <-cancel.Done():
			return Canceled()
		case <-ctx.Done():
			return Canceled()
		default:
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return IoError(werr.Error())
			}
			read += int64(n)

			percent := lastPercent
			if total > 0 {
				percent = int(read * 100 / total)
				if percent > 100 {
					percent = 100
				}
				if percent < lastPercent {
					percent = lastPercent
				}
			}
			if percent != lastPercent || rerr == io.EOF {
				lastPercent = percent
				if onProgress != nil {
					onProgress(percent)
				}
			}
		}

		if rerr == io.EOF {
			if lastPercent < 100 && onProgress != nil {
				onProgress(100)
			}
			return nil
		}
		if rerr != nil {
			if cancel.Cancelled() {
				return Canceled()
			}
			return Network(rerr.Error())
		}
	}
}
