package ports

import (
	"context"
	"io"
)

// StreamReader reads the selected file, blocking until pieces arrive rather
// than surfacing transient gaps.
type StreamReader interface {
	io.ReadSeekCloser
	SetContext(context.Context)
	SetReadahead(int64)
}
