package nextdns

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// NormalizeDomain converts a line as a user would write it into the canonical
// form stored by NextDNS: lowercase ASCII hostname without scheme, userinfo,
// port, path or trailing dot.
//
//	"  Bad.COM "           -> "bad.com"
//	"http://evil.com/path" -> "evil.com"
func NormalizeDomain(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", errors.New("empty domain")
	}

	// only a leading scheme; a URL in the path or query belongs to another host
	if i := strings.Index(host, "://"); i >= 0 && !strings.ContainsAny(host[:i], "/?#") {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if at := strings.LastIndexByte(host, '@'); at != -1 {
		host = host[at+1:]
	}
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}

	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("idna: %w", err)
		}
		host = ascii
	}
	host = strings.ToLower(host)

	if _, ok := dns.IsDomainName(host); !ok || strings.ContainsAny(host, " \t\\") {
		return "", fmt.Errorf("invalid domain %q", host)
	}
	return host, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
