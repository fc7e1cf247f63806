package anacrolix

import (
	"errors"
	"testing"

	"peerplay/internal/domain"
)

func TestSequentialBandsFromZero(t *testing.T) {
	fileLen := int64(200 << 20)
	bands := sequentialBands(fileLen, 0)

	if len(bands) != 4 {
		t.Fatalf("expected 4 bands, got %d", len(bands))
	}
	wantPrios := []domain.Priority{
		domain.PriorityNow, domain.PriorityNext, domain.PriorityReadahead, domain.PriorityNormal,
	}
	var covered int64
	for i, b := range bands {
		if b.Prio != wantPrios[i] {
			t.Errorf("band %d priority = %v, want %v", i, b.Prio, wantPrios[i])
		}
		if b.Range.Off != covered {
			t.Errorf("band %d off = %d, want %d (bands must be contiguous)", i, b.Range.Off, covered)
		}
		covered += b.Range.Length
	}
	if covered != fileLen {
		t.Errorf("bands cover %d bytes, want full file %d", covered, fileLen)
	}
}

func TestSequentialBandsFromSeekOffset(t *testing.T) {
	fileLen := int64(1400 << 20)
	from := int64(800 << 20)
	bands := sequentialBands(fileLen, from)

	if len(bands) == 0 {
		t.Fatal("expected bands for mid-file seek")
	}
	if bands[0].Range.Off != from {
		t.Errorf("first band starts at %d, want seek offset %d", bands[0].Range.Off, from)
	}
	if bands[0].Prio != domain.PriorityNow {
		t.Errorf("first band priority = %v, want PriorityNow", bands[0].Prio)
	}
	last := bands[len(bands)-1]
	if last.Range.Off+last.Range.Length != fileLen {
		t.Errorf("bands end at %d, want file end %d", last.Range.Off+last.Range.Length, fileLen)
	}
}

func TestSequentialBandsSmallFile(t *testing.T) {
	// File smaller than the first band: a single clamped Now band.
	bands := sequentialBands(1<<20, 0)
	if len(bands) != 1 {
		t.Fatalf("expected 1 band, got %d", len(bands))
	}
	if bands[0].Prio != domain.PriorityNow || bands[0].Range.Length != 1<<20 {
		t.Errorf("unexpected band %+v", bands[0])
	}
}

func TestSequentialBandsPastEOF(t *testing.T) {
	if bands := sequentialBands(100, 100); bands != nil {
		t.Errorf("expected no bands at EOF, got %v", bands)
	}
}

func TestPieceRange(t *testing.T) {
	const pieceLen = int64(1 << 20)
	fileOff := int64(3 << 20)
	fileLen := int64(10 << 20)

	first, last := pieceRange(fileOff, fileLen, pieceLen, domain.Range{Off: 0, Length: 2 << 20})
	if first != 3 || last != 4 {
		t.Errorf("pieceRange = [%d,%d], want [3,4]", first, last)
	}

	// Range over-running the file end is clamped.
	first, last = pieceRange(fileOff, fileLen, pieceLen, domain.Range{Off: 9 << 20, Length: 5 << 20})
	if first != 12 || last != 12 {
		t.Errorf("pieceRange = [%d,%d], want [12,12]", first, last)
	}

	if _, last = pieceRange(fileOff, fileLen, pieceLen, domain.Range{Off: 10 << 20, Length: 1}); last >= 0 {
		t.Error("expected empty range past EOF")
	}
}

func TestContiguousBytes(t *testing.T) {
	const pieceLen = int64(1 << 20)
	fileOff := int64(512 << 10) // file starts mid-piece
	fileLen := int64(4 << 20)

	// Pieces 0..2 complete: bytes from file offset 0 run to piece boundary 3MiB.
	got := contiguousBytes(fileOff, fileLen, pieceLen, 0, 3)
	want := 3*pieceLen - fileOff
	if got != want {
		t.Errorf("contiguousBytes = %d, want %d", got, want)
	}

	// Run covering the whole file is clamped to file length.
	got = contiguousBytes(fileOff, fileLen, pieceLen, 0, 5)
	if got != fileLen {
		t.Errorf("contiguousBytes clamped = %d, want %d", got, fileLen)
	}
}

func TestPickPrincipalFile(t *testing.T) {
	files := []domain.FileRef{
		{Index: 0, Path: "sample/readme.txt", Length: 10},
		{Index: 1, Path: "movie/Movie.2024.1080p.mkv", Length: 1400 << 20},
		{Index: 2, Path: "movie/sample.mp4", Length: 30 << 20},
		{Index: 3, Path: "movie/subs.srt", Length: 100 << 10},
	}
	got, err := pickPrincipalFile(files)
	if err != nil {
		t.Fatalf("pickPrincipalFile: %v", err)
	}
	if got.Index != 1 {
		t.Errorf("picked index %d, want 1 (largest video)", got.Index)
	}
}

func TestPickPrincipalFileNoVideo(t *testing.T) {
	_, err := pickPrincipalFile([]domain.FileRef{
		{Index: 0, Path: "a.txt", Length: 10},
		{Index: 1, Path: "b.iso", Length: 1 << 30},
	})
	if !errors.Is(err, domain.ErrNoPlayableFile) {
		t.Fatalf("err = %v, want ErrNoPlayableFile", err)
	}
}
