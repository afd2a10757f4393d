package proxy

import (
	"io"
	"time"

	"github.com/shaunleeweirong/video-downloader/types"
)

// progressInterval is how often the callback fires during a transfer.
const progressInterval = 100 * time.Millisecond

// ProgressFunc receives transfer snapshots. Speed is instantaneous,
// measured over the last interval. Percentage stays 0 when the total
// size is unknown.
type ProgressFunc func(types.DownloadProgress)

// ProgressReader wraps a reader and reports transfer progress at most
// once per interval, plus a final report at EOF.
type ProgressReader struct {
	r        io.Reader
	total    int64
	callback ProgressFunc

	downloaded    int64
	lastReport    time.Time
	intervalBytes int64
}

// NewProgressReader wraps r. total may be <= 0 when the upstream gave no
// Content-Length. A nil callback disables reporting.
func NewProgressReader(r io.Reader, total int64, callback ProgressFunc) *ProgressReader {
	return &ProgressReader{r: r, total: total, callback: callback, lastReport: time.Now()}
}

func (p *ProgressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.downloaded += int64(n)
		p.intervalBytes += int64(n)
		p.maybeReport(false)
	}
	if err == io.EOF {
		p.maybeReport(true)
	}
	return n, err
}

func (p *ProgressReader) maybeReport(final bool) {
	if p.callback == nil {
		return
	}
	elapsed := time.Since(p.lastReport)
	if !final && elapsed < progressInterval {
		return
	}

	update := types.DownloadProgress{
		DownloadedBytes: p.downloaded,
		TotalBytes:      p.total,
	}
	if p.total > 0 {
		update.Percentage = float64(p.downloaded) / float64(p.total) * 100
	}
	if elapsed > 0 {
		update.Speed = float64(p.intervalBytes) / elapsed.Seconds()
	}
	p.callback(update)

	p.lastReport = time.Now()
	p.intervalBytes = 0
}
