package ytdlp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestAssetName(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"linux", "amd64", "yt-dlp_linux"},
		{"linux", "arm64", "yt-dlp_linux_aarch64"},
		{"linux", "arm", "yt-dlp_linux_armv7l"},
		{"darwin", "arm64", "yt-dlp_macos"},
		{"windows", "amd64", "yt-dlp.exe"},
		{"freebsd", "amd64", "yt-dlp"},
	}
	for _, tt := range tests {
		if got := AssetName(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("AssetName(%s, %s) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestInstaller_Install(t *testing.T) {
	asset := AssetName(runtime.GOOS, runtime.GOARCH)
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Write([]byte("#!/bin/sh\necho installed\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bin", "yt-dlp")
	if err := NewInstaller(srv.URL+"/", nil).Install(context.Background(), dest); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if requested != "/"+asset {
		t.Errorf("requested %q, want /%s", requested, asset)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read installed binary: %v", err)
	}
	if !strings.Contains(string(data), "echo installed") {
		t.Errorf("installed content = %q", data)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(dest)
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("mode = %v, want executable", info.Mode())
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("install dir holds %d entries, want only the binary", len(entries))
	}
}

func TestInstaller_InstallKeepsOldBinaryOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(dest, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := NewInstaller(srv.URL, nil).Install(context.Background(), dest)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("Install() error = %v, want status 404", err)
	}
	if data, _ := os.ReadFile(dest); string(data) != "old" {
		t.Errorf("binary replaced after failed download: %q", data)
	}
}

func TestTool_Update(t *testing.T) {
	tool := testTool(t, fakeScript)

	got, err := tool.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got != "yt-dlp is up to date (stable@2026.09.01)" {
		t.Errorf("Update() = %q", got)
	}
}

func TestTool_UpdateFailure(t *testing.T) {
	tool := testTool(t, failingScript)

	if _, err := tool.Update(context.Background()); err == nil {
		t.Fatal("Update() error = nil")
	}
}
