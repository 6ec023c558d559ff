package audit

import (
	"github.com/mssola/useragent"
)

// DescribeDevice turns a raw User-Agent header into a short human-readable
// label ("Chrome on Mac OS X") for audit trails. Unrecognized agents come
// back as "unknown device" rather than the raw header.
func DescribeDevice(rawUA string) string {
	if rawUA == "" {
		return "unknown device"
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name

	if ua.Bot() {
		if browser != "" {
			return browser + " (bot)"
		}
		return "bot"
	}

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "unknown device"
	}
}
