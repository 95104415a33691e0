// Package metadata derives structural facts about scan subjects. It makes no
// risk decisions; producers and the aggregator do that.
package metadata

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"threatlens/internal/domain"
)

var suspiciousExtensions = []string{".exe", ".php", ".cgi", ".asp", ".jsp"}

var suspiciousParams = []string{"redirect", "url=", "goto="}

// URLInfo holds the parsed pieces of a submitted URL and the flags derived from them.
type URLInfo struct {
	Domain            string `json:"domain"`
	RegistrableDomain string `json:"registrable_domain"`
	Scheme            string `json:"protocol"`
	Path              string `json:"path"`
	Query             string `json:"query"`
	NotHTTPS          bool   `json:"not_https"`
	SuspiciousPath    bool   `json:"suspicious_path"`
	SuspiciousParams  bool   `json:"suspicious_params"`
}

// ParseURL parses raw and derives its risk-relevant flags. Only malformed
// input fails.
func ParseURL(raw string) (URLInfo, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return URLInfo{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return URLInfo{}, fmt.Errorf("%w: url %q needs a scheme and host", domain.ErrInvalidInput, raw)
	}

	host := strings.ToLower(u.Hostname())
	registrable := host
	if net.ParseIP(host) == nil {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			registrable = etld1
		}
	}

	info := URLInfo{
		Domain:            host,
		RegistrableDomain: registrable,
		Scheme:            strings.ToLower(u.Scheme),
		Path:              u.Path,
		Query:             u.RawQuery,
	}
	info.NotHTTPS = info.Scheme != "https"

	lowerPath := strings.ToLower(u.Path)
	for _, ext := range suspiciousExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			info.SuspiciousPath = true
			break
		}
	}
	lowerQuery := strings.ToLower(u.RawQuery)
	for _, p := range suspiciousParams {
		if strings.Contains(lowerQuery, p) {
			info.SuspiciousParams = true
			break
		}
	}
	return info, nil
}
