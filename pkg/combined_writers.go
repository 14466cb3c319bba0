package pkg

import (
	"io"
	"os"

	"go.uber.org/multierr"
)

// CombinedWriter writes everything to all of its writers, e.g. stdout and a
// rotated log file. A failing writer does not stop the others.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer(nil), writers...),
	}
}

func (cw *CombinedWriter) Write(p []byte) (n int, err error) {
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		n += written
	}
	return n, err
}

// Close closes all writers which are also closers, except stdout and stderr.
func (cw *CombinedWriter) Close() error {
	var err error
	for _, w := range cw.Writers {
		if w == os.Stdout || w == os.Stderr {
			continue
		}
		if closer, ok := w.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return err
}
