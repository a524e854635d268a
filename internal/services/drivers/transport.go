package drivers

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/ternarybob/vantage/internal/models"
)

// NewHTTPClient creates the client used for connectivity probes and driver
// downloads. When the proxy is active every request goes through it except
// hosts on the bypass list; otherwise the standard environment variables apply.
func NewHTTPClient(proxy models.ProxySettings, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxy.Active() {
		proxyURL := proxy.URL().String()
		cfg := &httpproxy.Config{
			HTTPProxy:  proxyURL,
			HTTPSProxy: proxyURL,
			NoProxy:    proxy.BypassList(","),
		}
		proxyFunc := cfg.ProxyFunc()
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			return proxyFunc(req.URL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
