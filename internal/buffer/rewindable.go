package buffer

import (
	"bytes"
	"errors"
	"io"
)

var (
	// ErrNotExhausted is returned by Rewind when the source still has data.
	ErrNotExhausted = errors.New("buffer: source not exhausted")

	// ErrAlreadyRewound is returned by a second call to Rewind.
	ErrAlreadyRewound = errors.New("buffer: already rewound")
)

// Rewindable wraps a one-shot reader and records everything read from it.
// It is not safe for concurrent use.
type Rewindable struct {
	src     io.Reader
	mirror  bytes.Buffer
	replay  *bytes.Reader
	eof     bool
	rewound bool
}

// New wraps src. If src is an io.Closer it is closed by Rewind or Close.
func New(src io.Reader) *Rewindable {
	return &Rewindable{src: src}
}

// Read reads from the source, or from the recorded bytes after Rewind.
func (r *Rewindable) Read(p []byte) (int, error) {
	if r.rewound {
		return r.replay.Read(p)
	}
	if r.eof {
		return 0, io.EOF
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.mirror.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	return n, err
}

// Exhausted reports whether the source has returned io.EOF.
func (r *Rewindable) Exhausted() bool {
	return r.eof
}

// Len returns the number of bytes read from the source so far.
func (r *Rewindable) Len() int {
	return r.mirror.Len()
}

// Rewind switches reads to the recorded bytes, starting from the first.
// It only succeeds once and only after the source has been read to EOF;
// otherwise it leaves the reader unchanged and returns an error.
func (r *Rewindable) Rewind() error {
	if r.rewound {
		return ErrAlreadyRewound
	}
	if !r.eof {
		return ErrNotExhausted
	}
	_ = r.closeSource()
	r.replay = bytes.NewReader(r.mirror.Bytes())
	r.rewound = true
	return nil
}

// Drain reads the rest of the source into the mirror without returning it.
func (r *Rewindable) Drain() error {
	if r.rewound || r.eof {
		return nil
	}
	_, err := io.Copy(io.Discard, r)
	return err
}

// Close releases the source. Recorded bytes stay readable after Rewind.
func (r *Rewindable) Close() error {
	if r.rewound {
		return nil
	}
	return r.closeSource()
}

func (r *Rewindable) closeSource() error {
	c, ok := r.src.(io.Closer)
	if !ok {
		return nil
	}
	r.src = eofReader{}
	return c.Close()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
