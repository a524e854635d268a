package drivers

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
)

// NewDefaultResolver wires the standard chain from configuration:
// LOCAL, CACHE, DOWNLOADED, then SYSTEM_PATH and COMMON_INSTALL.
func NewDefaultResolver(config *common.Config, cache *Cache, logger arbor.ILogger) *Resolver {
	drivers := config.Drivers
	client := NewHTTPClient(config.ProxySettings(), 0)

	network := &NetworkStrategy{
		CacheDir:     drivers.CachePath,
		AutoDownload: drivers.AutoDownload,
		Offline:      drivers.OfflineMode,
		Timeout:      config.DownloadTimeout(),
		Probe: &HTTPProbe{
			URL:     drivers.ProbeURL,
			Timeout: config.ProbeTimeout(),
			Client:  client,
		},
		Downloads: ChainSource{
			&StaticSource{Templates: drivers.DownloadURLs},
			&ChromeForTestingSource{Client: client},
		},
		Installer: &Installer{Client: client},
		Logger:    logger,
	}

	installDirs := append([]string{}, drivers.CommonInstallDirs...)
	installDirs = append(installDirs, DefaultCommonInstallDirs()...)

	return NewResolver(cache, logger,
		&LocalStrategy{Dir: drivers.LocalPath},
		&CacheStrategy{Dir: drivers.CachePath},
		network,
		&SystemStrategy{InstallDirs: installDirs},
	)
}
