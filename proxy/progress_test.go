package proxy

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunleeweirong/video-downloader/types"
)

// slowReader trickles its payload so reads straddle progress intervals.
type slowReader struct {
	data  *bytes.Reader
	chunk int
	delay time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.delay)
	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	return s.data.Read(p)
}

func TestProgressReaderReports(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 400)
	src := &slowReader{data: bytes.NewReader(payload), chunk: 100, delay: 60 * time.Millisecond}

	var updates []types.DownloadProgress
	r := NewProgressReader(src, int64(len(payload)), func(p types.DownloadProgress) {
		updates = append(updates, p)
	})

	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, int64(400), last.DownloadedBytes)
	assert.Equal(t, int64(400), last.TotalBytes)
	assert.InDelta(t, 100.0, last.Percentage, 0.01)

	var sawSpeed bool
	for _, u := range updates {
		if u.Speed > 0 {
			sawSpeed = true
		}
	}
	assert.True(t, sawSpeed, "no update carried a speed sample")

	// Snapshots never run backwards.
	var prev int64
	for _, u := range updates {
		assert.GreaterOrEqual(t, u.DownloadedBytes, prev)
		prev = u.DownloadedBytes
	}
}

func TestProgressReaderUnknownTotal(t *testing.T) {
	src := &slowReader{data: bytes.NewReader(make([]byte, 300)), chunk: 150, delay: 120 * time.Millisecond}

	var updates []types.DownloadProgress
	r := NewProgressReader(src, -1, func(p types.DownloadProgress) {
		updates = append(updates, p)
	})

	_, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	require.NotEmpty(t, updates)
	for _, u := range updates {
		// Percentage is undefined without a total and stays zero.
		assert.Zero(t, u.Percentage)
	}
	assert.Equal(t, int64(300), updates[len(updates)-1].DownloadedBytes)
}

func TestProgressReaderNilCallback(t *testing.T) {
	r := NewProgressReader(bytes.NewReader([]byte("data")), 4, nil)
	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
