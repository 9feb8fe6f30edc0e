// Package social recognises social-network profile URLs so they can be kept
// apart from a business's own website.
package social

import (
	"net/url"
	"strings"
)

// Platform is a social network label.
type Platform string

// Supported platforms.
const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
	WhatsApp  Platform = "whatsapp"
)

// Platforms lists every platform label in a stable order.
var Platforms = []Platform{Facebook, Instagram, Twitter, LinkedIn, YouTube, TikTok, WhatsApp}

type domainRule struct {
	domain   string
	platform Platform
}

// classifierDomains is checked in order. Matching is plain substring containment,
// so mobile hosts and shortlinks are caught without host parsing.
var classifierDomains = []domainRule{
	{"m.facebook.com", Facebook},
	{"facebook.com", Facebook},
	{"fb.com", Facebook},
	{"fb.me", Facebook},
	{"instagram.com", Instagram},
	{"ig.me", Instagram},
	{"twitter.com", Twitter},
	{"x.com", Twitter},
	{"linkedin.com", LinkedIn},
	{"youtube.com", YouTube},
	{"youtu.be", YouTube},
	{"tiktok.com", TikTok},
	{"whatsapp.com", WhatsApp},
	{"wa.me", WhatsApp},
}

// ScanDomain pairs an anchor href fragment with the platform it indicates.
type ScanDomain struct {
	Domain   string
	Platform Platform
}

// ScanDomains is the table used when sweeping a page's anchors for profile links.
var ScanDomains = []ScanDomain{
	{"facebook.com", Facebook},
	{"instagram.com", Instagram},
	{"whatsapp.com", WhatsApp},
	{"wa.me", WhatsApp},
	{"twitter.com", Twitter},
	{"x.com", Twitter},
	{"linkedin.com", LinkedIn},
	{"youtube.com", YouTube},
}

// Classify reports the social platform a URL belongs to. It is total: any
// input, including the empty string, yields either a platform or false.
func Classify(rawURL string) (Platform, bool) {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if u == "" {
		return "", false
	}
	for _, rule := range classifierDomains {
		if strings.Contains(u, rule.domain) {
			return rule.platform, true
		}
	}
	return "", false
}

// UnwrapRedirect returns the real target of a redirect-wrapper link such as
// "/url?q=https://example.com&sa=U". Any other href is returned unchanged.
func UnwrapRedirect(href string) string {
	if !strings.Contains(href, "/url?") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	query := parsed.Query()
	for _, key := range []string{"q", "url"} {
		if target := strings.TrimSpace(query.Get(key)); target != "" {
			return target
		}
	}
	return href
}

// Assign files rawURL either under links or as the website, never both.
// An existing entry for the same platform is overwritten.
func Assign(links map[string]string, website **string, rawURL string) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return
	}
	if platform, ok := Classify(rawURL); ok {
		links[string(platform)] = rawURL
		*website = nil
		return
	}
	value := rawURL
	*website = &value
}
