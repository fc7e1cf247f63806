package debrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"peerplay/internal/domain"
)

func newClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:       "token-abc",
		BaseURL:      baseURL,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
	})
}

func TestValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"username":"alice","premium":86400,"type":"premium"}`))
	}))
	defer srv.Close()

	user, err := newClient(srv.URL).Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if user.Username != "alice" || user.Premium != 86400 {
		t.Errorf("user = %+v", user)
	}
}

func TestValidateBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad_token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Validate(context.Background())
	if !errors.Is(err, domain.ErrDebridAuth) {
		t.Fatalf("err = %v, want ErrDebridAuth", err)
	}
}

func TestResolveCachedTorrent(t *testing.T) {
	var infoCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("magnet"); got != "magnet:?xt=urn:btih:abc" {
			t.Errorf("magnet = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"TORRENT1","uri":"/torrents/info/TORRENT1"}`))
	})
	mux.HandleFunc("POST /torrents/selectFiles/TORRENT1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("files"); got != "all" {
			t.Errorf("files = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /torrents/info/TORRENT1", func(w http.ResponseWriter, r *http.Request) {
		// First poll still converting, then ready.
		if infoCalls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"id":"TORRENT1","status":"queued","links":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"TORRENT1","status":"downloaded","links":["https://real-debrid.example/d/xyz"]}`))
	})
	mux.HandleFunc("POST /unrestrict/link", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("link"); got != "https://real-debrid.example/d/xyz" {
			t.Errorf("link = %q", got)
		}
		_, _ = w.Write([]byte(`{"download":"https://dl.example/movie.mkv","filename":"movie.mkv","filesize":1000}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url, err := newClient(srv.URL).Resolve(context.Background(), domain.SourceDescriptor{
		Magnet: "magnet:?xt=urn:btih:abc",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://dl.example/movie.mkv" {
		t.Errorf("url = %q", url)
	}
}

func TestResolveChecksInstantCacheFirst(t *testing.T) {
	var instantCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /torrents/instantAvailability/cafebabe", func(w http.ResponseWriter, r *http.Request) {
		instantCalls.Add(1)
		_, _ = w.Write([]byte(`{"cafebabe":{"rd":[{"1":{"filename":"movie.mkv","filesize":1000}}]}}`))
	})
	mux.HandleFunc("POST /torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		if instantCalls.Load() == 0 {
			t.Error("addMagnet called before the instant cache check")
		}
		_, _ = w.Write([]byte(`{"id":"T1"}`))
	})
	mux.HandleFunc("POST /torrents/selectFiles/T1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /torrents/info/T1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"T1","status":"downloaded","links":["https://real-debrid.example/d/xyz"]}`))
	})
	mux.HandleFunc("POST /unrestrict/link", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"download":"https://dl.example/movie.mkv"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Uppercase hash: the availability lookup is keyed lowercase.
	url, err := newClient(srv.URL).Resolve(context.Background(), domain.SourceDescriptor{
		Magnet:   "magnet:?xt=urn:btih:cafebabe",
		InfoHash: "CAFEBABE",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://dl.example/movie.mkv" {
		t.Errorf("url = %q", url)
	}
	if got := instantCalls.Load(); got != 1 {
		t.Errorf("instant availability checked %d times, want 1", got)
	}
}

func TestResolveRejectsUncachedHash(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /torrents/instantAvailability/cafebabe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cafebabe":[]}`))
	})
	mux.HandleFunc("POST /torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		t.Error("uncached hash must not be added")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newClient(srv.URL).Resolve(context.Background(), domain.SourceDescriptor{
		Magnet:   "magnet:?xt=urn:btih:cafebabe",
		InfoHash: "cafebabe",
	})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestCheckInstant(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"cached", http.StatusOK, `{"cafebabe":{"rd":[{"1":{"filename":"a.mkv"}}]}}`, true},
		{"not cached", http.StatusOK, `{"cafebabe":[]}`, false},
		{"hash missing from response", http.StatusOK, `{}`, false},
		{"endpoint error", http.StatusServiceUnavailable, `"down"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/torrents/instantAvailability/cafebabe" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := newClient(srv.URL).CheckInstant(context.Background(), "cafebabe")
			if err != nil {
				t.Fatalf("CheckInstant: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckInstant = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckInstantBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad_token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CheckInstant(context.Background(), "cafebabe")
	if !errors.Is(err, domain.ErrDebridAuth) {
		t.Fatalf("err = %v, want ErrDebridAuth", err)
	}
}

func TestResolveDeadTorrent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"T1"}`))
	})
	mux.HandleFunc("POST /torrents/selectFiles/T1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /torrents/info/T1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"T1","status":"dead","links":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newClient(srv.URL).Resolve(context.Background(), domain.SourceDescriptor{Magnet: "magnet:?x"})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestResolveUncachedTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"T1"}`))
	})
	mux.HandleFunc("POST /torrents/selectFiles/T1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /torrents/info/T1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"T1","status":"downloading","progress":3.5,"links":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newClient(srv.URL).Resolve(context.Background(), domain.SourceDescriptor{Magnet: "magnet:?x"})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestDisabledClient(t *testing.T) {
	c := NewClient(Config{})
	if c.Enabled() {
		t.Fatal("client without key should be disabled")
	}
	_, err := c.Resolve(context.Background(), domain.SourceDescriptor{})
	if !errors.Is(err, domain.ErrDebridAuth) {
		t.Fatalf("err = %v, want ErrDebridAuth", err)
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, fmt.Sprintf("%q", "hosting down"), http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Validate(context.Background())
	if err == nil || errors.Is(err, domain.ErrDebridAuth) {
		t.Fatalf("err = %v, want plain HTTP error", err)
	}
}
