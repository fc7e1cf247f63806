package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SessionPhase
		want     bool
	}{
		{PhaseOpening, PhaseSelecting, true},
		{PhaseOpening, PhaseFailed, true},
		{PhaseOpening, PhaseDownloading, false},
		{PhaseSelecting, PhaseDownloading, true},
		{PhaseDownloading, PhaseSeeking, true},
		{PhaseSeeking, PhaseDownloading, true},
		{PhaseDownloading, PhaseOpening, false},
		{PhaseDownloading, PhaseClosed, true},
		{PhaseSeeking, PhaseClosed, true},
		{PhaseOpening, PhaseClosed, true},
		{PhaseClosed, PhaseDownloading, false},
		{PhaseClosed, PhaseClosed, true},
		{PhaseFailed, PhaseDownloading, false},
		{PhaseFailed, PhaseClosed, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsVideoExt(t *testing.T) {
	for _, ext := range []string{".mkv", ".mp4", ".webm", ".m2ts"} {
		if !IsVideoExt(ext) {
			t.Errorf("expected %s to be a video extension", ext)
		}
	}
	for _, ext := range []string{".txt", ".srt", ".nfo", ""} {
		if IsVideoExt(ext) {
			t.Errorf("expected %s not to be a video extension", ext)
		}
	}
}

func TestIsMagnet(t *testing.T) {
	if !IsMagnet("magnet:?xt=urn:btih:abc") {
		t.Error("magnet link not recognized")
	}
	if IsMagnet("https://example.com/file.torrent") {
		t.Error("http url misclassified as magnet")
	}
}

func TestProgressPercent(t *testing.T) {
	p := Progress{TotalBytes: 200, Downloaded: 50}
	if got := p.Percent(); got != 25 {
		t.Fatalf("Percent() = %v, want 25", got)
	}
	if got := (Progress{}).Percent(); got != 0 {
		t.Fatalf("Percent() on zero total = %v, want 0", got)
	}
}
