package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/vantage/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "dev", "qa", "prod" - informational, tagged onto events
	Browser     BrowserConfig  `toml:"browser"`
	Timeouts    TimeoutsConfig `toml:"timeouts"`
	Test        TestConfig     `toml:"test"`
	Drivers     DriversConfig  `toml:"drivers"`
	Proxy       ProxyConfig    `toml:"proxy"`
	Logging     LoggingConfig  `toml:"logging"`
}

// BrowserConfig controls how sessions are launched
type BrowserConfig struct {
	Name         string `toml:"name" validate:"required"`         // chrome, firefox, edge
	Headless     bool   `toml:"headless"`                         // Run without a visible window
	Incognito    bool   `toml:"incognito"`                        // Private browsing (incognito / inprivate / -private)
	Maximize     bool   `toml:"maximize"`                         // Maximize instead of applying width/height
	WindowWidth  int    `toml:"window_width" validate:"min=200"`  // Explicit window width
	WindowHeight int    `toml:"window_height" validate:"min=200"` // Explicit window height
	UserAgent    string `toml:"user_agent"`                       // Optional user agent override
}

// TimeoutsConfig holds wait durations in seconds (poll interval in milliseconds)
type TimeoutsConfig struct {
	ImplicitSeconds    int `toml:"implicit_seconds" validate:"min=0"`
	ExplicitSeconds    int `toml:"explicit_seconds" validate:"min=1"`
	PageLoadSeconds    int `toml:"page_load_seconds" validate:"min=1"`
	PollIntervalMillis int `toml:"poll_interval_millis" validate:"min=10"`
}

// TestConfig controls the runner
type TestConfig struct {
	ThreadCount         int    `toml:"thread_count" validate:"min=1"`  // Concurrent workers
	RetryCount          int    `toml:"retry_count" validate:"min=0"`   // Max retries per test invocation
	BaseURL             string `toml:"base_url"`                       // Application under test
	ResultsDir          string `toml:"results_dir"`                    // Screenshots land here
	SetupSeconds        int    `toml:"setup_seconds" validate:"min=1"` // Overall per-test setup budget
	ScreenshotOnFailure bool   `toml:"screenshot_on_failure"`
}

// DriversConfig controls executable resolution
type DriversConfig struct {
	LocalPath              string            `toml:"local_path" validate:"required"`
	CachePath              string            `toml:"cache_path" validate:"required"`
	AutoDownload           bool              `toml:"auto_download"`
	OfflineMode            bool              `toml:"offline_mode"`
	DownloadTimeoutSeconds int               `toml:"download_timeout_seconds" validate:"min=1"`
	ProbeURL               string            `toml:"probe_url"`
	ProbeTimeoutSeconds    int               `toml:"probe_timeout_seconds" validate:"min=1"`
	DownloadURLs           map[string]string `toml:"download_urls"`       // name -> URL template ({os}, {arch}, {platform}, {name})
	CommonInstallDirs      []string          `toml:"common_install_dirs"` // Extra well-known install locations
}

// ProxyConfig is applied to browsers and to driver downloads
type ProxyConfig struct {
	Enabled       bool   `toml:"enabled"`
	Host          string `toml:"host" validate:"required_if=Enabled true"`
	Port          int    `toml:"port" validate:"min=0,max=65535"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	NonProxyHosts string `toml:"non_proxy_hosts"` // "|" separated, e.g. "localhost|127.0.0.1"
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                             // "stdout", "file"
	Dir    string   `toml:"dir"`                                                // Log directory (default: <executable dir>/logs)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "dev",
		Browser: BrowserConfig{
			Name:         "chrome",
			Headless:     false,
			Incognito:    false,
			Maximize:     false,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Timeouts: TimeoutsConfig{
			ImplicitSeconds:    10,
			ExplicitSeconds:    30,
			PageLoadSeconds:    60,
			PollIntervalMillis: 500,
		},
		Test: TestConfig{
			ThreadCount:         1,
			RetryCount:          1,
			BaseURL:             "https://www.saucedemo.com/v1/index.html",
			ResultsDir:          "./results",
			SetupSeconds:        120,
			ScreenshotOnFailure: true,
		},
		Drivers: DriversConfig{
			LocalPath:              "./drivers",
			CachePath:              "./drivers/.cache",
			AutoDownload:           true,
			OfflineMode:            false,
			DownloadTimeoutSeconds: 30,
			ProbeURL:               "https://googlechromelabs.github.io/chrome-for-testing/",
			ProbeTimeoutSeconds:    5,
			DownloadURLs:           map[string]string{},
		},
		Proxy: ProxyConfig{
			Enabled:       false,
			Port:          8080,
			NonProxyHosts: "localhost|127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads a single configuration file with defaults and env overrides
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI flags are applied afterwards by the caller with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values, later files override earlier ones
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

var configValidator = validator.New()

// ValidateConfig checks struct constraints and cross-field rules
func ValidateConfig(config *Config) error {
	if err := configValidator.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := models.ParseBrowserFamily(config.Browser.Name); err != nil {
		return fmt.Errorf("invalid configuration: browser.name: %w", err)
	}
	return nil
}

// applyEnvOverrides applies process-level overrides (VANTAGE_*), which take
// precedence over every file
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VANTAGE_ENV"); env != "" {
		config.Environment = env
	}

	// Browser configuration
	if name := os.Getenv("VANTAGE_BROWSER"); name != "" {
		config.Browser.Name = name
	}
	setBool("VANTAGE_BROWSER_HEADLESS", &config.Browser.Headless)
	setBool("VANTAGE_BROWSER_INCOGNITO", &config.Browser.Incognito)
	setBool("VANTAGE_BROWSER_MAXIMIZE", &config.Browser.Maximize)
	setInt("VANTAGE_BROWSER_WINDOW_WIDTH", &config.Browser.WindowWidth)
	setInt("VANTAGE_BROWSER_WINDOW_HEIGHT", &config.Browser.WindowHeight)
	if ua := os.Getenv("VANTAGE_BROWSER_USER_AGENT"); ua != "" {
		config.Browser.UserAgent = ua
	}

	// Timeouts
	setInt("VANTAGE_TIMEOUT_IMPLICIT", &config.Timeouts.ImplicitSeconds)
	setInt("VANTAGE_TIMEOUT_EXPLICIT", &config.Timeouts.ExplicitSeconds)
	setInt("VANTAGE_TIMEOUT_PAGE_LOAD", &config.Timeouts.PageLoadSeconds)
	setInt("VANTAGE_TIMEOUT_POLL_INTERVAL", &config.Timeouts.PollIntervalMillis)

	// Test runner
	setInt("VANTAGE_TEST_THREAD_COUNT", &config.Test.ThreadCount)
	setInt("VANTAGE_TEST_RETRY_COUNT", &config.Test.RetryCount)
	if baseURL := os.Getenv("VANTAGE_BASE_URL"); baseURL != "" {
		config.Test.BaseURL = baseURL
	}
	if resultsDir := os.Getenv("VANTAGE_RESULTS_DIR"); resultsDir != "" {
		config.Test.ResultsDir = resultsDir
	}

	// Drivers
	if localPath := os.Getenv("VANTAGE_DRIVER_LOCAL_PATH"); localPath != "" {
		config.Drivers.LocalPath = localPath
	}
	if cachePath := os.Getenv("VANTAGE_DRIVER_CACHE_PATH"); cachePath != "" {
		config.Drivers.CachePath = cachePath
	}
	setBool("VANTAGE_DRIVER_AUTO_DOWNLOAD", &config.Drivers.AutoDownload)
	setBool("VANTAGE_DRIVER_OFFLINE_MODE", &config.Drivers.OfflineMode)
	setInt("VANTAGE_DRIVER_DOWNLOAD_TIMEOUT", &config.Drivers.DownloadTimeoutSeconds)
	if probeURL := os.Getenv("VANTAGE_DRIVER_PROBE_URL"); probeURL != "" {
		config.Drivers.ProbeURL = probeURL
	}

	// Proxy
	setBool("VANTAGE_PROXY_ENABLED", &config.Proxy.Enabled)
	if host := os.Getenv("VANTAGE_PROXY_HOST"); host != "" {
		config.Proxy.Host = host
	}
	setInt("VANTAGE_PROXY_PORT", &config.Proxy.Port)
	if user := os.Getenv("VANTAGE_PROXY_USERNAME"); user != "" {
		config.Proxy.Username = user
	}
	if pass := os.Getenv("VANTAGE_PROXY_PASSWORD"); pass != "" {
		config.Proxy.Password = pass
	}
	if bypass := os.Getenv("VANTAGE_PROXY_NON_PROXY_HOSTS"); bypass != "" {
		config.Proxy.NonProxyHosts = bypass
	}

	// Logging
	if level := os.Getenv("VANTAGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VANTAGE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

func setBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
// Empty values leave the loaded configuration untouched.
func ApplyFlagOverrides(config *Config, browser string, headless *bool) {
	if browser != "" {
		config.Browser.Name = browser
	}
	if headless != nil {
		config.Browser.Headless = *headless
	}
}

// ProxySettings converts the proxy section into the model used by browsers and downloads
func (c *Config) ProxySettings() models.ProxySettings {
	var bypass []string
	for _, host := range strings.Split(c.Proxy.NonProxyHosts, "|") {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			bypass = append(bypass, trimmed)
		}
	}
	return models.ProxySettings{
		Enabled:  c.Proxy.Enabled,
		Host:     c.Proxy.Host,
		Port:     c.Proxy.Port,
		Username: c.Proxy.Username,
		Password: c.Proxy.Password,
		Bypass:   bypass,
	}
}

// DownloadTimeout returns the driver download budget
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Drivers.DownloadTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the connectivity probe budget, never longer than the download budget
func (c *Config) ProbeTimeout() time.Duration {
	probe := time.Duration(c.Drivers.ProbeTimeoutSeconds) * time.Second
	if download := c.DownloadTimeout(); probe > download {
		return download
	}
	return probe
}

// SetupTimeout returns the overall per-test setup budget
func (c *Config) SetupTimeout() time.Duration {
	return time.Duration(c.Test.SetupSeconds) * time.Second
}

// SessionConfig builds the immutable per-invocation snapshot. browserOverride,
// when non-empty, replaces the configured browser for this invocation only.
func (c *Config) SessionConfig(browserOverride string) (models.SessionConfig, error) {
	name := c.Browser.Name
	if browserOverride != "" {
		name = browserOverride
	}
	family, err := models.ParseBrowserFamily(name)
	if err != nil {
		return models.SessionConfig{}, err
	}

	return models.SessionConfig{
		Family:          family,
		Headless:        c.Browser.Headless,
		Incognito:       c.Browser.Incognito,
		Maximize:        c.Browser.Maximize,
		WindowWidth:     c.Browser.WindowWidth,
		WindowHeight:    c.Browser.WindowHeight,
		ImplicitWait:    time.Duration(c.Timeouts.ImplicitSeconds) * time.Second,
		ExplicitWait:    time.Duration(c.Timeouts.ExplicitSeconds) * time.Second,
		PageLoadTimeout: time.Duration(c.Timeouts.PageLoadSeconds) * time.Second,
		PollInterval:    time.Duration(c.Timeouts.PollIntervalMillis) * time.Millisecond,
		MaxRetries:      c.Test.RetryCount,
		UserAgent:       c.Browser.UserAgent,
		Proxy:           c.ProxySettings(),
	}, nil
}
