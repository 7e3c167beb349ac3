package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// LocateTool resolves a binary from an explicit path, then PATH, then the
// directory holding our own executable.
func LocateTool(configured, name string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%s not found at %s: %v", name, configured, err)
		}
		return configured, nil
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if execPath, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(execPath), exeName(name))
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	cached := filepath.Join(ToolCacheDir(), exeName(name))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}
	return "", fmt.Errorf("%s not found in PATH", name)
}

func EnsureYtdlp(ctx context.Context, configured, proxy string) (string, error) {
	path, err := LocateTool(configured, "yt-dlp")
	if err == nil || configured != "" {
		return path, err
	}
	log.Info().Str("op", "utils/tools").Msg("yt-dlp not found, fetching latest release")
	client := NewHTTPClient(HTTPClientConfig{Timeout: 5 * time.Minute, ProxyURL: proxy})
	return downloadYtdlp(ctx, client)
}

func EnsureFFmpeg(configured string) (string, error) {
	path, err := LocateTool(configured, "ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%v, please install ffmpeg manually", err)
	}
	return path, nil
}

func ToolCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vidgrab", "bin")
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func ytdlpReleaseAsset(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "yt-dlp.exe", nil
	case goos == "windows" && goarch == "arm64":
		return "yt-dlp_arm64.exe", nil
	case goos == "linux" && goarch == "amd64":
		return "yt-dlp_linux", nil
	case goos == "linux" && goarch == "arm64":
		return "yt-dlp_linux_aarch64", nil
	case goos == "darwin":
		return "yt-dlp_macos", nil
	}
	return "", fmt.Errorf("unsupported OS/arch: %s/%s", goos, goarch)
}

func downloadYtdlp(ctx context.Context, client *HTTPClient) (string, error) {
	asset, err := ytdlpReleaseAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	dir := ToolCacheDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating tool directory: %v", err)
	}
	target := filepath.Join(dir, exeName("yt-dlp"))
	if err := downloadFile(ctx, client, ytdlpReleaseBase+"/"+asset, target); err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(target, 0755); err != nil {
			return "", fmt.Errorf("error setting permissions: %v", err)
		}
	}
	log.Info().Str("op", "utils/tools").Str("path", target).Msg("yt-dlp installed")
	return target, nil
}

func downloadFile(ctx context.Context, client *HTTPClient, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}
