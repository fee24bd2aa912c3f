// Package classify holds the pure classification helpers used by the
// analytics pipeline: bot signatures, device classes, domains and
// display-timezone bucketing.
package classify

import (
	"regexp"
	"strings"
)

// Device classes.
const (
	DeviceUnknown = "unknown"
	DeviceBot     = "bot"
	DeviceTablet  = "tablet"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceOther   = "other"
)

var (
	botPattern     = regexp.MustCompile(`(?i)(bot|spider|crawler|headless|python-requests|curl|wget)`)
	mobilePattern  = regexp.MustCompile(`(?i)(iphone|ipod|android.*mobile|windows phone|blackberry|opera mini)`)
	desktopPattern = regexp.MustCompile(`(?i)(windows nt|macintosh|x11|linux)`)
)

// IsBot reports whether the user agent carries a bot, crawler or scripted-client signature.
func IsBot(userAgent string) bool {
	return userAgent != "" && botPattern.MatchString(userAgent)
}

// Device classifies a user agent. First match wins:
// bot, tablet, mobile, desktop, then "other". Empty agents are "unknown".
func Device(userAgent string) string {
	ua := strings.TrimSpace(userAgent)
	switch {
	case ua == "":
		return DeviceUnknown
	case IsBot(ua):
		return DeviceBot
	case isTablet(ua):
		return DeviceTablet
	case mobilePattern.MatchString(ua):
		return DeviceMobile
	case desktopPattern.MatchString(ua):
		return DeviceDesktop
	default:
		return DeviceOther
	}
}

// isTablet matches ipad, tablet, or an android token with no later "mobile".
func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	// Checking the last occurrence is enough: earlier ones see a superset of its suffix.
	idx := strings.LastIndex(lower, "android")
	if idx < 0 {
		return false
	}
	return !strings.Contains(lower[idx+len("android"):], "mobile")
}
