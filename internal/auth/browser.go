package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

var supportedKeyrings = map[string]bool{
	"BASICTEXT":    true,
	"GNOMEKEYRING": true,
	"KWALLET":      true,
	"KWALLET5":     true,
	"KWALLET6":     true,
}

var browserSpecRe = regexp.MustCompile(`^(?P<name>[^+:]+)(?:\s*\+\s*(?P<keyring>[^:]+))?(?:\s*:\s*(?P<profile>[^:].*?))?(?:\s*::\s*(?P<container>.+))?$`)

// BrowserSpec is the parsed form of BROWSER[+KEYRING][:PROFILE][::CONTAINER].
type BrowserSpec struct {
	Browser   string
	Keyring   string
	Profile   string
	Container string
}

func ParseBrowserSpec(spec string) (BrowserSpec, error) {
	spec = strings.TrimSpace(spec)
	m := browserSpecRe.FindStringSubmatch(spec)
	if m == nil {
		return BrowserSpec{}, fmt.Errorf("invalid cookies-from-browser value: %q", spec)
	}
	parsed := BrowserSpec{
		Browser:   strings.ToLower(strings.TrimSpace(m[browserSpecRe.SubexpIndex("name")])),
		Keyring:   strings.ToUpper(strings.TrimSpace(m[browserSpecRe.SubexpIndex("keyring")])),
		Profile:   strings.TrimSpace(m[browserSpecRe.SubexpIndex("profile")]),
		Container: strings.TrimSpace(m[browserSpecRe.SubexpIndex("container")]),
	}
	if _, err := browserRoot(parsed.Browser, runtime.GOOS, "/"); err != nil && !errors.Is(err, errUnsupportedPlatform) {
		return BrowserSpec{}, err
	}
	if parsed.Keyring != "" && !supportedKeyrings[parsed.Keyring] {
		return BrowserSpec{}, fmt.Errorf("unsupported keyring %q", parsed.Keyring)
	}
	return parsed, nil
}

func (b BrowserSpec) String() string {
	s := b.Browser
	if b.Keyring != "" {
		s += "+" + b.Keyring
	}
	if b.Profile != "" {
		s += ":" + b.Profile
	}
	if b.Container != "" {
		s += "::" + b.Container
	}
	return s
}

var errUnsupportedPlatform = errors.New("browser not available on this platform")

// browserRoot returns the directory holding a browser's profiles, relative to home.
func browserRoot(browser, goos, home string) (string, error) {
	type roots struct{ linux, darwin, windows string }
	appSupport := filepath.Join(home, "Library", "Application Support")
	local := os.Getenv("LOCALAPPDATA")
	roaming := os.Getenv("APPDATA")
	known := map[string]roots{
		"chrome":   {filepath.Join(home, ".config", "google-chrome"), filepath.Join(appSupport, "Google", "Chrome"), filepath.Join(local, "Google", "Chrome", "User Data")},
		"chromium": {filepath.Join(home, ".config", "chromium"), filepath.Join(appSupport, "Chromium"), filepath.Join(local, "Chromium", "User Data")},
		"brave":    {filepath.Join(home, ".config", "BraveSoftware", "Brave-Browser"), filepath.Join(appSupport, "BraveSoftware", "Brave-Browser"), filepath.Join(local, "BraveSoftware", "Brave-Browser", "User Data")},
		"edge":     {filepath.Join(home, ".config", "microsoft-edge"), filepath.Join(appSupport, "Microsoft Edge"), filepath.Join(local, "Microsoft", "Edge", "User Data")},
		"opera":    {filepath.Join(home, ".config", "opera"), filepath.Join(appSupport, "com.operasoftware.Opera"), filepath.Join(roaming, "Opera Software", "Opera Stable")},
		"vivaldi":  {filepath.Join(home, ".config", "vivaldi"), filepath.Join(appSupport, "Vivaldi"), filepath.Join(local, "Vivaldi", "User Data")},
		"whale":    {filepath.Join(home, ".config", "naver-whale"), filepath.Join(appSupport, "Naver", "Whale"), filepath.Join(local, "Naver", "Naver Whale", "User Data")},
		"firefox":  {filepath.Join(home, ".mozilla", "firefox"), filepath.Join(appSupport, "Firefox", "Profiles"), filepath.Join(roaming, "Mozilla", "Firefox", "Profiles")},
		"safari":   {"", filepath.Join(home, "Library", "Containers", "com.apple.Safari", "Data", "Library", "Cookies"), ""},
	}
	r, ok := known[browser]
	if !ok {
		return "", fmt.Errorf("unsupported browser %q", browser)
	}
	var dir string
	switch goos {
	case "darwin":
		dir = r.darwin
	case "windows":
		dir = r.windows
	default:
		dir = r.linux
	}
	if dir == "" {
		return "", fmt.Errorf("%s: %w", browser, errUnsupportedPlatform)
	}
	return dir, nil
}

// BrowserSource hands a browser cookie store to the extractor. The store itself
// is decrypted by the extractor; Read only checks that it is present.
type BrowserSource struct {
	Spec BrowserSpec
	Home string
}

func (s BrowserSource) Name() string {
	return "browser:" + s.Spec.String()
}

func (s BrowserSource) Read(ctx context.Context) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	home := s.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, err
		}
	}
	root, err := browserRoot(s.Spec.Browser, runtime.GOOS, home)
	if err != nil {
		return nil, err
	}
	dir := root
	if s.Spec.Profile != "" {
		if filepath.IsAbs(s.Spec.Profile) {
			dir = s.Spec.Profile
		} else {
			dir = filepath.Join(root, s.Spec.Profile)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no %s profile found at %s", s.Spec.Browser, dir)
	}
	return &Credentials{
		Source:   s.Name(),
		AuthArgs: []string{"--cookies-from-browser", s.Spec.String()},
	}, nil
}
