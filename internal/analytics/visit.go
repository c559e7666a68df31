package analytics

import (
	"net/url"
	"strings"
)

// Device classes recorded on analytics events.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// Visit carries the request attributes stored alongside a view or click.
// Empty fields are stored as NULL and excluded from breakdowns.
type Visit struct {
	Device   string
	Referrer string
}

// NewVisit classifies the raw User-Agent and Referer header values.
func NewVisit(userAgent, referer string) Visit {
	return Visit{
		Device:   ClassifyDevice(userAgent),
		Referrer: ReferrerHost(referer),
	}
}

var (
	botMarkers    = []string{"bot", "crawler", "spider", "slurp", "facebookexternalhit", "preview"}
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk", "playbook"}
	mobileMarkers = []string{"mobi", "iphone", "ipod", "android", "blackberry", "opera mini", "windows phone"}
)

// ClassifyDevice maps a User-Agent header onto a device class. An empty header yields "".
func ClassifyDevice(userAgent string) string {
	agent := strings.ToLower(strings.TrimSpace(userAgent))
	if agent == "" {
		return ""
	}
	if containsAny(agent, botMarkers) {
		return DeviceBot
	}
	if containsAny(agent, tabletMarkers) {
		return DeviceTablet
	}
	// Android tablets omit the "mobile" token.
	if strings.Contains(agent, "android") && !strings.Contains(agent, "mobile") {
		return DeviceTablet
	}
	if containsAny(agent, mobileMarkers) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// ReferrerHost reduces a Referer header to its lowercase host. Unparseable values yield "".
func ReferrerHost(referer string) string {
	trimmed := strings.TrimSpace(referer)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
