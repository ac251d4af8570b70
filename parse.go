package nextdns

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Format is the line syntax of a domain list.
type Format string

const (
	// FormatPlain is one domain per line. A leading http:// or https:// and any path are dropped.
	FormatPlain Format = "plain"
	// FormatHosts is a hosts file such as "0.0.0.0 example.com".
	FormatHosts Format = "hosts"
	// FormatAdblock accepts "||example.com^" network rules and ignores everything else.
	FormatAdblock Format = "adblock"
)

// ParseFormat maps a name to a Format; the empty string means FormatPlain.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatPlain, nil
	case FormatPlain, FormatHosts, FormatAdblock:
		return f, nil
	default:
		return "", fmt.Errorf("unknown list format %q", s)
	}
}

// DomainList is the desired set read from a source.
type DomainList struct {
	// Domains is sorted and free of duplicates.
	Domains []string
	// Rejected holds lines that looked like entries but did not normalize to a domain.
	Rejected []string
}

// ParseDomains reads one entry per line. Blank lines and lines starting with
// "#" are ignored; duplicates collapse to a single domain.
func ParseDomains(r io.Reader, format Format) (DomainList, error) {
	if format == "" {
		format = FormatPlain
	}
	set := map[string]struct{}{}
	var list DomainList

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var candidates []string
		switch format {
		case FormatPlain:
			candidates = []string{line}
		case FormatHosts:
			candidates = hostsLine(line)
		case FormatAdblock:
			candidate, ok := adblockLine(line)
			if !ok {
				continue
			}
			candidates = []string{candidate}
		default:
			return DomainList{}, fmt.Errorf("unknown list format %q", format)
		}

		for _, c := range candidates {
			d, err := NormalizeDomain(c)
			if err != nil {
				list.Rejected = append(list.Rejected, line)
				continue
			}
			set[d] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return DomainList{}, fmt.Errorf("error reading domains: %w", err)
	}

	list.Domains = lo.Keys(set)
	slices.Sort(list.Domains)
	return list, nil
}

// hostsNames are the loopback aliases found in almost every hosts file.
var hostsNames = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"local":                 true,
	"broadcasthost":         true,
	"ip6-localhost":         true,
	"ip6-loopback":          true,
	"ip6-localnet":          true,
	"ip6-mcastprefix":       true,
	"ip6-allnodes":          true,
	"ip6-allrouters":        true,
	"ip6-allhosts":          true,
	"0.0.0.0":               true,
}

func hostsLine(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	// a bare name is tolerated so plain lists can be fed as hosts files
	if _, err := netip.ParseAddr(fields[0]); err != nil {
		return fields[:1]
	}
	var names []string
	for _, f := range fields[1:] {
		if hostsNames[strings.ToLower(f)] {
			continue
		}
		names = append(names, f)
	}
	return names
}

func adblockLine(line string) (string, bool) {
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "@@") {
		return "", false
	}
	if !strings.HasPrefix(line, "||") {
		return "", false
	}
	rule := strings.TrimPrefix(line, "||")
	if i := strings.IndexByte(rule, '$'); i >= 0 {
		if rule[i+1:] != "" && rule[i+1:] != "important" {
			// modifiers narrow the rule to some requests; a DNS list cannot express that
			return "", false
		}
		rule = rule[:i]
	}
	rule = strings.TrimSuffix(rule, "^")
	if rule == "" || strings.ContainsAny(rule, "*^/|") {
		return "", false
	}
	return rule, true
}
