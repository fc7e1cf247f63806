package anacrolix

import (
	"github.com/anacrolix/torrent"

	"peerplay/internal/domain"
)

// Priority bands applied ascending from the seek origin. The band nearest
// the cursor arrives fastest; everything after the readahead window still
// gets Normal so the download proceeds sequentially to the end of the file.
const (
	nowBand       int64 = 4 << 20
	nextBand      int64 = 4 << 20
	readaheadBand int64 = 32 << 20
)

func mapPriority(prio domain.Priority) torrent.PiecePriority {
	switch prio {
	case domain.PriorityNone:
		return torrent.PiecePriorityNone
	case domain.PriorityNow:
		return torrent.PiecePriorityNow
	case domain.PriorityNext:
		return torrent.PiecePriorityNext
	case domain.PriorityReadahead:
		return torrent.PiecePriorityReadahead
	default:
		return torrent.PiecePriorityNormal
	}
}

// applySequentialLocked sets the graduated bands for the selected file from
// the given offset. Caller must hold s.mu.
func (s *Session) applySequentialLocked(fromOffset int64) {
	info := s.t.Info()
	if info == nil || s.file == nil {
		return
	}
	pieceLen := info.PieceLength
	if pieceLen <= 0 {
		return
	}

	fileOff := s.file.Offset()
	fileLen := s.file.Length()

	for _, band := range sequentialBands(fileLen, fromOffset) {
		first, last := pieceRange(fileOff, fileLen, pieceLen, band.Range)
		if last < first {
			continue
		}
		target := mapPriority(band.Prio)
		for i := first; i <= last; i++ {
			s.t.Piece(i).SetPriority(target)
		}
	}
}

type priorityBand struct {
	Range domain.Range
	Prio  domain.Priority
}

// sequentialBands lays out the graduated windows for a seek to fromOffset.
// Offsets are file-relative; bands never extend past the end of the file.
func sequentialBands(fileLen, fromOffset int64) []priorityBand {
	if fromOffset < 0 {
		fromOffset = 0
	}
	if fromOffset >= fileLen {
		return nil
	}

	var bands []priorityBand
	off := fromOffset
	remaining := fileLen - off

	add := func(length int64, prio domain.Priority) {
		if remaining <= 0 || length <= 0 {
			return
		}
		if length > remaining {
			length = remaining
		}
		bands = append(bands, priorityBand{Range: domain.Range{Off: off, Length: length}, Prio: prio})
		off += length
		remaining -= length
	}

	add(nowBand, domain.PriorityNow)
	add(nextBand, domain.PriorityNext)
	add(readaheadBand, domain.PriorityReadahead)
	add(remaining, domain.PriorityNormal)
	return bands
}

// pieceSpan returns the torrent-absolute first and last piece indexes that
// cover the selected file from the file-relative offset to the file's end.
func pieceSpan(fileOff, fileLen, pieceLen, offset int64) (first, last int) {
	start := fileOff + offset
	end := fileOff + fileLen // exclusive
	first = int(start / pieceLen)
	last = int((end - 1) / pieceLen)
	return first, last
}

// pieceRange maps a file-relative byte range to torrent-absolute piece
// indexes. Returns last < first for an empty range.
func pieceRange(fileOff, fileLen, pieceLen int64, r domain.Range) (first, last int) {
	if r.Length <= 0 || r.Off >= fileLen {
		return 0, -1
	}
	start := fileOff + r.Off
	end := start + r.Length
	if max := fileOff + fileLen; end > max {
		end = max
	}
	return int(start / pieceLen), int((end - 1) / pieceLen)
}

// contiguousBytes converts a run of complete pieces [firstPiece, runEnd) that
// begins at the piece containing fileOff+offset into the number of contiguous
// bytes available in the file from that offset.
func contiguousBytes(fileOff, fileLen, pieceLen, offset int64, runEnd int) int64 {
	bytesEnd := int64(runEnd) * pieceLen
	if max := fileOff + fileLen; bytesEnd > max {
		bytesEnd = max
	}
	n := bytesEnd - (fileOff + offset)
	if n < 0 {
		return 0
	}
	return n
}
