// Package scoring rates how promising a stored listing is as a sales lead.
package scoring

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/octobees/leads-generator/worker/internal/entity"
)

const (
	categoryContact    = "contact_completeness"
	categoryWeb        = "web_presence"
	categoryReputation = "reputation"
	categoryProfile    = "business_profile"
)

var freeHostingDomains = []string{
	"wordpress.com",
	"blogspot.com",
	"wixsite.com",
	"weebly.com",
	"squarespace.com",
	"business.site",
	"godaddysites.com",
	"notion.site",
	"googlepages.com",
	"linktr.ee",
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// ComputeScore evaluates a listing out of 100: contact 30, web 20,
// reputation 30, profile 20.
func ComputeScore(l entity.BusinessListing) ScoreResult {
	breakdown := map[string]int{
		categoryContact:    scoreContactCompleteness(l),
		categoryWeb:        scoreWebPresence(entity.Deref(l.Website)),
		categoryReputation: scoreReputation(l),
		categoryProfile:    scoreBusinessProfile(l),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}
	return ScoreResult{Total: total, Breakdown: breakdown}
}

func scoreContactCompleteness(l entity.BusinessListing) int {
	score := 0
	if hasValue(l.Phone) {
		score += 10
	}
	if hasValue(l.Email) {
		score += 10
	}
	score += min(5*countSocialLinks(l.SocialLinks), 10)
	return score
}

func scoreWebPresence(website string) int {
	website = strings.TrimSpace(website)
	if website == "" {
		return 0
	}
	score := 5
	if strings.HasPrefix(strings.ToLower(website), "https://") {
		score += 5
	}
	if highQualityDomain(website) {
		score += 10
	}
	return score
}

func scoreReputation(l entity.BusinessListing) int {
	score := 0
	if rating, err := strconv.ParseFloat(strings.TrimSpace(entity.Deref(l.Rating)), 64); err == nil {
		switch {
		case rating >= 4.5:
			score += 15
		case rating >= 4.0:
			score += 10
		case rating >= 3.0:
			score += 5
		}
	}
	if reviews, err := strconv.Atoi(strings.TrimSpace(entity.Deref(l.ReviewsCount))); err == nil {
		switch {
		case reviews >= 100:
			score += 15
		case reviews >= 20:
			score += 10
		case reviews >= 1:
			score += 5
		}
	}
	return score
}

func scoreBusinessProfile(l entity.BusinessListing) int {
	score := 0
	if hasCompleteAddress(entity.Deref(l.Address)) {
		score += 10
	}
	if hasValue(l.Category) {
		score += 10
	}
	return score
}

func hasValue(value *string) bool {
	return strings.TrimSpace(entity.Deref(value)) != ""
}

func countSocialLinks(links map[string]string) int {
	count := 0
	for _, link := range links {
		if strings.TrimSpace(link) != "" {
			count++
		}
	}
	return count
}

func hasCompleteAddress(raw string) bool {
	addr := strings.TrimSpace(raw)
	if len(addr) < 10 {
		return false
	}
	var hasLetter, hasDigit bool
	separatorCount := 0
	for _, r := range addr {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == ',':
			separatorCount++
		}
	}
	return hasLetter && hasDigit && separatorCount >= 1
}

func highQualityDomain(raw string) bool {
	domain := extractDomain(raw)
	if domain == "" {
		return false
	}
	for _, bad := range freeHostingDomains {
		if domain == bad || strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return strings.Contains(domain, ".")
}

func extractDomain(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
