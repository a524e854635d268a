package browser

import (
	"strconv"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

// chromiumFlags are applied to every Chromium based family
var chromiumFlags = map[string]interface{}{
	"no-sandbox":             true,
	"disable-dev-shm-usage":  true,
	"disable-gpu":            true,
	"disable-extensions":     true,
	"no-first-run":           true,
	"disable-default-apps":   true,
	"disable-popup-blocking": true,
	"disable-translate":      true,
	"remote-allow-origins":   "*",
	"disable-blink-features": "AutomationControlled",
}

// chromeOnlyFlags keep background tabs running at full speed under Chrome
var chromeOnlyFlags = map[string]interface{}{
	"disable-background-timer-throttling":    true,
	"disable-renderer-backgrounding":         true,
	"disable-backgrounding-occluded-windows": true,
	"disable-ipc-flooding-protection":        true,
}

// BuildOptions produces the launch option set for family from cfg.
// It has no side effects; the same input always yields the same options.
func BuildOptions(family models.BrowserFamily, cfg models.SessionConfig) interfaces.LaunchOptions {
	opts := interfaces.LaunchOptions{
		Headless:     cfg.Headless,
		UserAgent:    cfg.UserAgent,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
		Proxy:        cfg.Proxy,
	}

	switch family {
	case models.BrowserFirefox:
		buildFirefox(&opts, cfg)
	case models.BrowserEdge:
		buildChromium(&opts, cfg, "inprivate")
	default:
		buildChromium(&opts, cfg, "incognito")
		for k, v := range chromeOnlyFlags {
			opts.Flags[k] = v
		}
	}
	return opts
}

func buildChromium(opts *interfaces.LaunchOptions, cfg models.SessionConfig, privateFlag string) {
	opts.Flags = make(map[string]interface{}, len(chromiumFlags)+8)
	for k, v := range chromiumFlags {
		opts.Flags[k] = v
	}

	if cfg.Headless {
		opts.Flags["headless"] = "new"
	} else {
		opts.Flags["headless"] = false
	}
	if cfg.Incognito {
		opts.Flags[privateFlag] = true
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts.Flags["window-size"] = strconv.Itoa(cfg.WindowWidth) + "," + strconv.Itoa(cfg.WindowHeight)
	}
	if cfg.Proxy.Active() {
		opts.Flags["proxy-server"] = cfg.Proxy.Server()
		if len(cfg.Proxy.Bypass) > 0 {
			opts.Flags["proxy-bypass-list"] = cfg.Proxy.BypassList(";")
		}
	}

	opts.ExcludeSwitches = []string{"enable-automation"}
}

func buildFirefox(opts *interfaces.LaunchOptions, cfg models.SessionConfig) {
	if cfg.Headless {
		opts.Args = append(opts.Args, "-headless")
	}
	if cfg.Incognito {
		opts.Args = append(opts.Args, "-private")
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts.Args = append(opts.Args,
			"-width", strconv.Itoa(cfg.WindowWidth),
			"-height", strconv.Itoa(cfg.WindowHeight),
		)
	}

	opts.Prefs = map[string]interface{}{
		"dom.webdriver.enabled":             false,
		"useAutomationExtension":            false,
		"browser.shell.checkDefaultBrowser": false,
	}
	if cfg.UserAgent != "" {
		opts.Prefs["general.useragent.override"] = cfg.UserAgent
	}
}
