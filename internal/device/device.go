// Package device buckets a raw User-Agent string into the coarse
// browser/OS/device-type fields recorded on a session.
package device

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Device type buckets.
const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeBot     = "bot"
)

// Info is the parsed projection of a User-Agent.
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
}

// Parse extracts coarse device information. It is a best-effort heuristic;
// an empty or unrecognized User-Agent yields empty browser/OS fields and the
// desktop bucket.
func Parse(userAgent string) Info {
	ua := user_agent.New(userAgent)

	browser, version := ua.Browser()

	deviceType := TypeDesktop
	lower := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		deviceType = TypeTablet
	case ua.Mobile():
		deviceType = TypeMobile
	case ua.Bot():
		deviceType = TypeBot
	}

	os := ua.OS()
	if i := strings.IndexByte(os, ' '); i > 0 {
		os = os[:i]
	}

	return Info{
		Browser:        browser,
		BrowserVersion: version,
		OS:             os,
		DeviceType:     deviceType,
	}
}

// Map renders the info as the free-form map stored on a session.
func (i Info) Map() map[string]string {
	return map[string]string{
		"browser":         i.Browser,
		"browser_version": i.BrowserVersion,
		"os":              i.OS,
		"device_type":     i.DeviceType,
	}
}
