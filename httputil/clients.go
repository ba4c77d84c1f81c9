package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Media  *http.Client // photo downloads, proxied when a proxy is set
	Direct *http.Client // everything else
}

func NewClients(proxyURL string) *Clients {
	media := &http.Client{Timeout: 45 * time.Second}

	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			media.Transport = &http.Transport{
				Proxy:             http.ProxyURL(u),
				ForceAttemptHTTP2: false,
			}
		}
	}

	return &Clients{
		Media:  media,
		Direct: &http.Client{Timeout: 30 * time.Second},
	}
}
