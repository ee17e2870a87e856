package filter

import (
	"strings"

	"github.com/ccollicutt/acclog/pkg/record"
)

// DefaultBotPatterns are lower-case user-agent fragments that mark crawlers,
// monitors and scripted clients.
var DefaultBotPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "facebookexternalhit", "twitterbot", "linkedinbot",
	"whatsapp", "telegram", "crawler", "spider", "scraper",
	"bot", "crawl", "fetch", "monitor", "check", "test",
	"pingdom", "uptime", "robot", "wget", "curl",
	"python-requests", "scrapy", "selenium", "phantomjs",
	"headless", "apache-httpclient", "java/", "go-http-client",
}

// DefaultBotFields are the fields searched for a user agent, body first and
// then header.
var DefaultBotFields = []string{"agent", "user_agent"}

type botMatcher struct {
	patterns []string
	fields   []string
}

func newBotMatcher(patterns, fields []string) *botMatcher {
	if len(patterns) == 0 {
		patterns = DefaultBotPatterns
	}
	if len(fields) == 0 {
		fields = DefaultBotFields
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &botMatcher{patterns: lowered, fields: fields}
}

// userAgent returns the first user agent string found on rec.
func (b *botMatcher) userAgent(rec *record.LogRecord) string {
	for _, f := range b.fields {
		if v, ok := rec.BodyField(f); ok {
			if s, ok := v.AsString(); ok {
				return s
			}
		}
		if s, ok := rec.HeaderField(f); ok {
			return s
		}
	}
	return ""
}

// IsBot reports whether rec's user agent contains a known bot marker. A
// missing or "-" agent is not a bot.
func (b *botMatcher) IsBot(rec *record.LogRecord) bool {
	ua := b.userAgent(rec)
	if ua == "" || ua == "-" {
		return false
	}
	return IsBotUserAgent(ua, b.patterns)
}

// IsBotUserAgent reports whether ua contains any of the lower-case patterns.
func IsBotUserAgent(ua string, patterns []string) bool {
	ua = strings.ToLower(ua)
	for _, p := range patterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}
