// Package util holds small helpers shared by the outbound HTTP clients.
package util

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NewProxyFunc creates a proxy function from explicit settings. Without
// proxy URLs it falls back to the environment. Hosts listed in noProxy
// (comma separated, ".example.com" matches subdomains) bypass the proxy.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := parseNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if bypass(req.URL.Hostname()) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewHTTPClient returns a client with the given timeout and proxy settings
func NewHTTPClient(timeout time.Duration, httpProxy, httpsProxy, noProxy string) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: NewProxyFunc(httpProxy, httpsProxy, noProxy),
		},
	}
}

func parseNoProxy(noProxy string) func(host string) bool {
	var entries []string
	for _, e := range strings.Split(noProxy, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			entries = append(entries, e)
		}
	}

	return func(host string) bool {
		host = strings.ToLower(host)
		for _, e := range entries {
			switch {
			case e == "*":
				return true
			case strings.HasPrefix(e, "."):
				if strings.HasSuffix(host, e) || host == e[1:] {
					return true
				}
			case host == e:
				return true
			}
		}
		return host == "localhost" || net.ParseIP(host).IsLoopback()
	}
}
