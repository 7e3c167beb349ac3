package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestIsHTTPURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"http://example.com/v", true},
		{"  https://example.com  ", true},
		{"ftp://example.com/file", false},
		{"example.com/watch", false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHTTPURL(tt.raw); got != tt.want {
			t.Errorf("IsHTTPURL(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix replacement table")
	}
	tests := []struct {
		in, want string
	}{
		{"My Video", "My Video"},
		{"AC/DC live", "AC_DC live"},
		{"  spaced  ", "spaced"},
		{"", "video"},
		{"..", "video"},
		{"Qué tal: año 2024?", "Qué tal: año 2024?"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatRate(2048); got != "2.00 KB/s" {
		t.Errorf("FormatRate(2048) = %q", got)
	}
	if got := FormatRate(0); got != "" {
		t.Errorf("FormatRate(0) = %q, want empty", got)
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := CheckWritableDir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckWritableDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CheckWritableDir(file); err == nil {
		t.Error("expected error for regular file")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("probe file left behind: %d entries", len(entries))
	}
}

func TestRemoveJobTemp(t *testing.T) {
	dest := t.TempDir()
	for _, id := range []string{"a", "b"} {
		if err := os.MkdirAll(JobTempDir(dest, id), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := RemoveJobTemp(dest, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, TempDirName)); err != nil {
		t.Errorf("temp root removed while job b still present: %v", err)
	}
	if err := RemoveJobTemp(dest, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, TempDirName)); !os.IsNotExist(err) {
		t.Errorf("temp root should be gone, stat err = %v", err)
	}
}

func TestCleanFunction(t *testing.T) {
	dest := t.TempDir()
	if n, err := CleanFunction(dest); err != nil || n != 0 {
		t.Fatalf("CleanFunction on clean dir = %d, %v", n, err)
	}
	for _, id := range []string{"x", "y", "z"} {
		dir := JobTempDir(dest, id)
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, "part.webm"), []byte("data"), 0644)
	}
	n, err := CleanFunction(dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("removed %d, want 3", n)
	}
	if _, err := os.Stat(filepath.Join(dest, TempDirName)); !os.IsNotExist(err) {
		t.Error("temp root should be removed")
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("exit status 1")
	err := fmt.Errorf("fetch: %w", WrapError(KindExtractionFailed, base, "ERROR: Video unavailable"))
	if KindOf(err) != KindExtractionFailed {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if DetailOf(err) != "ERROR: Video unavailable" {
		t.Errorf("DetailOf = %q", DetailOf(err))
	}
	if !errors.Is(err, base) {
		t.Error("wrapped cause lost")
	}
	if KindOf(base) != "" {
		t.Error("plain error should have no kind")
	}
	if KindAuthRequired.Label() != "AUTH_REQUIRED" || ErrorKind("weird").Label() != "INTERNAL" {
		t.Error("unexpected labels")
	}
}

func TestYtdlpReleaseAsset(t *testing.T) {
	if got, _ := ytdlpReleaseAsset("linux", "amd64"); got != "yt-dlp_linux" {
		t.Errorf("linux/amd64 = %q", got)
	}
	if got, _ := ytdlpReleaseAsset("darwin", "arm64"); got != "yt-dlp_macos" {
		t.Errorf("darwin = %q", got)
	}
	if _, err := ytdlpReleaseAsset("plan9", "386"); err == nil {
		t.Error("expected unsupported platform error")
	}
}
