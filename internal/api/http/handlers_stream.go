package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
	"peerplay/internal/metrics"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or HEAD")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/stream/")
	session := s.activeSession()
	if session == nil || session.ID() != id {
		writeError(w, http.StatusNotFound, "not_found", "no active stream session at this path")
		return
	}

	file := session.File()
	if file.Length <= 0 {
		writeError(w, http.StatusConflict, "not_ready", "session has no selected file yet")
		return
	}
	size := file.Length

	// Fail in-flight requests fast when the session is closed underneath us.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	ext := strings.ToLower(path.Ext(file.Path))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = fallbackContentType(ext)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	// Close the connection after streaming so keep-alive doesn't hold the
	// reader open after the player stops playback.
	w.Header().Set("Connection", "close")

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		s.serveFull(ctx, w, session, size, id)
		return
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if errors.Is(err, errInvalidRange) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid range")
		return
	}
	if errors.Is(err, errRangeNotSatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	// A start at or beyond the buffered prefix is a seek into bytes not on
	// disk yet: re-prioritize the swarm from the new offset before waiting,
	// then block until the readiness gate clears that offset. Never serve
	// gapped bytes. The prefix length itself is the first unbuffered byte,
	// so the boundary counts as a seek.
	if start >= session.BufferedFrom(0) {
		metrics.SeekRequestsTotal.Inc()
		gen := session.SetSequentialPriority(start)
		if err := s.gate.Wait(ctx, session, start); err != nil {
			s.writeWaitError(w, err, id, start)
			return
		}
		session.CompleteSeek(gen)
	}

	reader, err := session.NewReader()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", "stream reader not available")
		return
	}
	defer reader.Close()
	reader.SetContext(ctx)
	reader.SetReadahead(32 << 20)

	if _, err := reader.Seek(start, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to seek stream")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, reader, length); err != nil {
		s.logger.Debug("stream range copy interrupted",
			slog.String("sessionId", id),
			slog.Int64("start", start),
			slog.String("error", err.Error()),
		)
	}
}

// serveFull streams the whole file from offset 0 with a 200. The reader
// blocks until pieces arrive, so the body keeps pace with the download
// instead of truncating at the buffered prefix.
func (s *Server) serveFull(ctx context.Context, w http.ResponseWriter, session ports.Session, size int64, id string) {
	reader, err := session.NewReader()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", "stream reader not available")
		return
	}
	defer reader.Close()
	reader.SetContext(ctx)
	reader.SetReadahead(32 << 20)

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Debug("stream copy interrupted",
			slog.String("sessionId", id),
			slog.String("error", err.Error()),
		)
	}
}

// writeWaitError maps a readiness-gate failure onto the response. Headers
// have not been written yet on this path.
func (s *Server) writeWaitError(w http.ResponseWriter, err error, id string, offset int64) {
	switch {
	case errors.Is(err, domain.ErrBufferTimeout):
		metrics.BufferTimeoutsTotal.Inc()
		s.logger.Warn("buffer timeout serving range",
			slog.String("sessionId", id),
			slog.Int64("offset", offset),
		)
		writeError(w, http.StatusGatewayTimeout, "buffer_timeout", "not enough data buffered at the requested offset")
	case errors.Is(err, domain.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", "stream session closed")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing sensible to write.
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
