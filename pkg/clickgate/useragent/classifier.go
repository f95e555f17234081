// Package useragent classifies raw User-Agent strings into structured
// browser, OS and device facts plus a bot-likelihood flag. Parsing is plain
// keyword lookups with a handful of precompiled regexps for version capture,
// so classification is pure, deterministic and cheap enough to run on every
// hit.
package useragent

import (
	"regexp"
	"strings"
)

// Unknown is the value used for any fact no signature matched
const Unknown = "Unknown"

// DeviceType classes
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

// Facts holds the structured result of classifying a user agent
type Facts struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	IsBot          bool
}

// defaultBotSignatures are lowercase substrings that mark crawlers, HTTP
// client libraries and headless tooling. The list is intentionally broad:
// for a tracking pipeline a false bot positive only costs one "real visitor"
// count, while a miss pollutes analytics.
var defaultBotSignatures = []string{
	"bot", "crawler", "spider", "scraper",
	"curl", "wget", "httpclient", "python-requests", "python-urllib",
	"go-http-client", "java/", "okhttp", "libwww",
	"headlesschrome", "phantomjs", "selenium", "puppeteer", "playwright",
	"facebookexternalhit", "slackbot", "telegrambot", "whatsapp",
	"googlebot", "bingbot", "yandex", "duckduckbot", "baiduspider",
	"semrush", "ahrefs", "mj12bot", "pingdom", "uptimerobot",
	"postmanruntime", "insomnia", "apache-httpclient",
}

var (
	chromeVersionRe  = regexp.MustCompile(`Chrome/(\d+\.\d+)`)
	firefoxVersionRe = regexp.MustCompile(`Firefox/(\d+\.\d+)`)
	safariVersionRe  = regexp.MustCompile(`Version/(\d+\.\d+)`)
	edgeVersionRe    = regexp.MustCompile(`Edge?/(\d+\.\d+)`)
	operaVersionRe   = regexp.MustCompile(`(?:Opera|OPR)/(\d+\.\d+)`)
	windowsNTRe      = regexp.MustCompile(`Windows NT (\d+\.\d+)`)
	macOSRe          = regexp.MustCompile(`Mac OS X (\d+[._]\d+)`)
	androidRe        = regexp.MustCompile(`Android (\d+(?:\.\d+)?)`)
	iosRe            = regexp.MustCompile(`OS (\d+_\d+)`)
)

// windowsVersionNames maps NT kernel versions to marketing names
var windowsVersionNames = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
}

// Classifier parses user agents against a configurable bot-signature list
type Classifier struct {
	botSignatures []string
}

// NewClassifier returns a classifier using the built-in signature list plus
// any extra signatures (matched case-insensitively as substrings).
func NewClassifier(extraBotSignatures ...string) *Classifier {
	sigs := make([]string, 0, len(defaultBotSignatures)+len(extraBotSignatures))
	sigs = append(sigs, defaultBotSignatures...)
	for _, s := range extraBotSignatures {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sigs = append(sigs, s)
		}
	}
	return &Classifier{botSignatures: sigs}
}

// Classify parses a raw user agent string. It never fails: anything that
// matches no signature comes back as Unknown. An empty or missing UA yields
// all Unknown fields; the bot flag stays false since it is defined purely by
// signature matches.
func (c *Classifier) Classify(ua string) Facts {
	if strings.TrimSpace(ua) == "" {
		return Facts{
			Browser:    Unknown,
			OS:         Unknown,
			DeviceType: Unknown,
		}
	}

	facts := Facts{
		Browser:    Unknown,
		OS:         Unknown,
		DeviceType: deviceType(ua),
		IsBot:      c.isBot(ua),
	}
	facts.Browser, facts.BrowserVersion = browser(ua)
	facts.OS, facts.OSVersion = operatingSystem(ua)
	return facts
}

func (c *Classifier) isBot(ua string) bool {
	lower := strings.ToLower(ua)
	for _, sig := range c.botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// browser detection order matters: Chrome's token appears in Edge and Opera
// UAs, and Safari's appears in nearly everything WebKit-based.
func browser(ua string) (name, version string) {
	switch {
	case strings.Contains(ua, "Edg/") || strings.Contains(ua, "Edge/"):
		return "Edge", firstMatch(edgeVersionRe, ua)
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		return "Opera", firstMatch(operaVersionRe, ua)
	case strings.Contains(ua, "Firefox/"):
		return "Firefox", firstMatch(firefoxVersionRe, ua)
	case strings.Contains(ua, "Chrome/"):
		return "Chrome", firstMatch(chromeVersionRe, ua)
	case strings.Contains(ua, "Safari/"):
		return "Safari", firstMatch(safariVersionRe, ua)
	}
	return Unknown, ""
}

func operatingSystem(ua string) (name, version string) {
	switch {
	case strings.Contains(ua, "Windows NT"):
		v := firstMatch(windowsNTRe, ua)
		if marketing, ok := windowsVersionNames[v]; ok {
			v = marketing
		}
		return "Windows", v
	case strings.Contains(ua, "Android"):
		return "Android", firstMatch(androidRe, ua)
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		return "iOS", strings.ReplaceAll(firstMatch(iosRe, ua), "_", ".")
	case strings.Contains(ua, "Mac OS X"):
		return "macOS", strings.ReplaceAll(firstMatch(macOSRe, ua), "_", ".")
	case strings.Contains(ua, "Linux"):
		return "Linux", ""
	}
	return Unknown, ""
}

// deviceType defaults to Desktop; tablets are checked before mobiles since
// iPad UAs can carry the Mobile token.
func deviceType(ua string) string {
	switch {
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		return DeviceTablet
	case strings.Contains(ua, "Mobile") || strings.Contains(ua, "Android") || strings.Contains(ua, "iPhone"):
		return DeviceMobile
	}
	return DeviceDesktop
}

func firstMatch(re *regexp.Regexp, ua string) string {
	m := re.FindStringSubmatch(ua)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
