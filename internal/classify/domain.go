package classify

import (
	"net/url"
	"strings"
)

// DefaultNormalizedURLLength bounds normalized URLs sent to text generation.
const DefaultNormalizedURLLength = 140

var twoLevelSuffixes = map[string]bool{
	"co.kr": true, "or.kr": true, "go.kr": true, "ac.kr": true,
	"co.jp": true, "ne.jp": true, "or.jp": true,
	"co.uk": true, "org.uk": true, "ac.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
}

func withScheme(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

// ExtractDomain returns the lower-cased host of raw without userinfo, port
// or a leading "www.". Hosts without a dot yield "".
func ExtractDomain(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	u, err := url.Parse(withScheme(raw))
	if err != nil {
		return ""
	}

	host := strings.ToLower(strings.TrimSpace(u.Host))
	if host == "" && u.Path != "" {
		host = strings.ToLower(strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0])
	}
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	if colon := strings.Index(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	host = strings.TrimPrefix(host, "www.")

	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// RootDomain reduces a host to its registrable domain, honouring a small set
// of common two-level public suffixes.
func RootDomain(host string) string {
	if host == "" {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	last2 := strings.Join(parts[len(parts)-2:], ".")
	if twoLevelSuffixes[last2] && len(parts) >= 3 {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return last2
}

// RefererDomain maps a referer to the host used by the stats view.
func RefererDomain(referer string) string {
	if referer == "" || referer == "direct" {
		return "direct"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Host)
}

// NormalizeURL keeps scheme, host and path and truncates to maxLen bytes.
// maxLen <= 0 uses DefaultNormalizedURLLength.
func NormalizeURL(raw string, maxLen int) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultNormalizedURLLength
	}
	u, err := url.Parse(withScheme(raw))
	if err != nil {
		return ""
	}
	base := u.Scheme + "://" + u.Host + u.EscapedPath()
	if len(base) > maxLen {
		return base[:maxLen]
	}
	return base
}
