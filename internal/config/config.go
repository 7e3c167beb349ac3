package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration accepts Go durations plus day and week units ("1d", "2w3d").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string", value.Line)
	}
	parsed, err := str2duration.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %v", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	DownloadDir        string   `yaml:"download_dir"`
	CookiesFile        string   `yaml:"cookies_file"`
	CookiesFromBrowser string   `yaml:"cookies_from_browser"`
	YtdlpPath          string   `yaml:"ytdlp_path"`
	FFmpegPath         string   `yaml:"ffmpeg_path"`
	AutoInstallYtdlp   bool     `yaml:"auto_install_ytdlp"`
	Proxy              string   `yaml:"proxy"`
	PlayerClients      []string `yaml:"player_clients"`
	ProbeTimeout       Duration `yaml:"probe_timeout"`
	AuthTimeout        Duration `yaml:"auth_timeout"`
	AuthCacheTTL       Duration `yaml:"auth_cache_ttl"`
	JobRetention       Duration `yaml:"job_retention"`
	ProbeRate          float64  `yaml:"probe_rate"`
	ProbeBurst         int      `yaml:"probe_burst"`
}

func Default() *Config {
	return &Config{
		Host:             "127.0.0.1",
		Port:             5000,
		AutoInstallYtdlp: true,
		PlayerClients:    []string{"web", "android", "tv"},
		ProbeTimeout:     Duration(utils.DefaultProbeTimeout),
		AuthTimeout:      Duration(30 * time.Second),
		AuthCacheTTL:     Duration(10 * time.Minute),
		JobRetention:     Duration(10 * time.Minute),
		ProbeRate:        2,
		ProbeBurst:       4,
	}
}

func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vidgrab", "config.yaml")
}

// Load reads path over the defaults. A missing file at the default location is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %v", path, err)
			}
			log.Debug().Str("op", "config/load").Msgf("loaded configuration from %s", path)
		case errors.Is(err, os.ErrNotExist) && !explicit:
			log.Debug().Str("op", "config/load").Msg("no configuration file, using defaults")
		default:
			return nil, fmt.Errorf("reading %s: %v", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VIDGRAB_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("VIDGRAB_COOKIES_FILE"); v != "" {
		c.CookiesFile = v
	}
	if v := os.Getenv("VIDGRAB_COOKIES_FROM_BROWSER"); v != "" {
		c.CookiesFromBrowser = v
	}
	if v := os.Getenv("VIDGRAB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *Config) Validate() error {
	if !isLoopback(c.Host) {
		return fmt.Errorf("host %q is not a loopback address", c.Host)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CookiesFile != "" && c.CookiesFromBrowser != "" {
		return errors.New("cookies_file and cookies_from_browser are mutually exclusive")
	}
	if c.ProbeTimeout <= 0 || c.AuthTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.ProbeRate <= 0 {
		return errors.New("probe_rate must be positive")
	}
	if c.ProbeBurst < 1 {
		c.ProbeBurst = 1
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ResolvedDownloadDir is the configured download directory with ~ expanded, or the platform default.
func (c *Config) ResolvedDownloadDir() string {
	if c.DownloadDir == "" {
		return utils.DefaultDownloadDir()
	}
	return utils.ExpandHome(c.DownloadDir)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
