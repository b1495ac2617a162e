package httpserver

import (
	"net/http"
	"testing"
	"time"
)

func TestServerGetNameDefaultsToBindable(t *testing.T) {
	cfg := ServerConfig{Listen: "127.0.0.1:0"}
	srv := cfg.Server()
	if srv.GetName() != "127.0.0.1:0" {
		t.Fatalf("expected name to fall back to listen address, got %q", srv.GetName())
	}
}

func TestServerListenAndShutdown(t *testing.T) {
	cfg := ServerConfig{Name: "test", Listen: "127.0.0.1:0", Expose: "http://127.0.0.1:0"}
	srv := cfg.Server()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := srv.Listen(mux); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Shutdown()

	time.Sleep(50 * time.Millisecond)
	if !srv.IsRunning() {
		t.Fatal("expected server to report running after Listen")
	}
}

func TestServerMergeRejectsForeignImplementation(t *testing.T) {
	cfg := ServerConfig{Listen: "127.0.0.1:0"}
	srv := cfg.Server()

	if srv.Merge(fakeServer{}) {
		t.Fatal("expected Merge to reject a non-*server implementation")
	}
}

type fakeServer struct{ Server }
