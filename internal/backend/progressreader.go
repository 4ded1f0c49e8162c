package backend

import "io"

// progressStepBytes caps the byte delta between progress callbacks; the
// effective step is the smaller of this and 10% of total, matching the
// contract's "every 256KB or 10%, whichever comes first" emission rule.
const progressStepBytes = 256 * 1024

// ProgressReader wraps an io.Reader, invoking onProgress as bytes are read
// per the contract's emission cadence: at open (0 bytes), at least every
// 256KB or 10% of total, and exactly once at total on EOF.
type ProgressReader struct {
	r          io.Reader
	total      int64
	onProgress func(progressBytes, totalBytes int64)

	read        int64
	lastEmitted int64
	opened      bool
}

// NewProgressReader wraps r, whose full content is total bytes.
func NewProgressReader(r io.Reader, total int64, onProgress func(progressBytes, totalBytes int64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, onProgress: onProgress}
}

func (p *ProgressReader) Read(buf []byte) (int, error) {
	if p.onProgress != nil && !p.opened {
		p.opened = true
		p.onProgress(0, p.total)
	}

	n, err := p.r.Read(buf)
	p.read += int64(n)

	if p.onProgress != nil && n > 0 {
		threshold := p.total / 10
		if threshold > progressStepBytes {
			threshold = progressStepBytes
		}

		if p.read-p.lastEmitted >= threshold || p.read == p.total {
			p.lastEmitted = p.read
			p.onProgress(p.read, p.total)
		}
	}

	if err == io.EOF && p.onProgress != nil && p.lastEmitted != p.total {
		p.lastEmitted = p.total
		p.onProgress(p.total, p.total)
	}

	return n, err
}
