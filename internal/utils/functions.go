package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// DefaultDownloadDir is ~/Downloads when it exists, otherwise the working directory.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err == nil {
		downloads := filepath.Join(home, "Downloads")
		if info, err := os.Stat(downloads); err == nil && info.IsDir() {
			return downloads
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// CheckWritableDir verifies that path is an existing directory we can create files in.
func CheckWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("directory %s does not exist", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	f, err := os.CreateTemp(path, ".vidgrab-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %v", path, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

func SanitizeFilename(name string) string {
	replacer := unixFilenameReplacer
	if runtime.GOOS == "windows" {
		replacer = windowsFilenameReplacer
	}
	var b strings.Builder
	for _, r := range name {
		if rep, ok := replacer[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if runtime.GOOS == "windows" {
		out = strings.TrimRight(out, ". ")
	}
	if out == "" || out == "." || out == ".." {
		return "video"
	}
	return out
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return ""
	}
	return FormatBytes(uint64(bytesPerSecond)) + "/s"
}

func JobTempDir(destDir, jobID string) string {
	return filepath.Join(destDir, TempDirName, jobID)
}

// RemoveJobTemp deletes one job's working directory and the temp root if nothing else is left in it.
func RemoveJobTemp(destDir, jobID string) error {
	if err := os.RemoveAll(JobTempDir(destDir, jobID)); err != nil {
		return err
	}
	root := filepath.Join(destDir, TempDirName)
	remaining, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(remaining) == 0 {
		return os.Remove(root)
	}
	return nil
}

// CleanFunction removes every leftover job directory under destDir and reports how many were removed.
func CleanFunction(destDir string) (int, error) {
	root := filepath.Join(destDir, TempDirName)
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, os.Remove(root)
}
