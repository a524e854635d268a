package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner prints the application banner and logs the settings the run
// starts with
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("Vantage", GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("browser", config.Browser.Name).
		Bool("headless", config.Browser.Headless).
		Int("threads", config.Test.ThreadCount).
		Int("retries", config.Test.RetryCount).
		Str("drivers", DriverMode(config)).
		Msg("Vantage starting")
}

// DriverMode describes how executables missing from the local and cache
// directories will be obtained
func DriverMode(config *Config) string {
	switch {
	case config.Drivers.OfflineMode:
		return "offline"
	case !config.Drivers.AutoDownload:
		return "local-only"
	case config.ProxySettings().Active():
		return "download via proxy"
	default:
		return "download"
	}
}
