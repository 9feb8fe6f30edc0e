package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/octobees/leads-generator/worker/internal/social"
)

// ErrEmptyBlob reports an element whose structured-data attribute is blank.
var ErrEmptyBlob = errors.New("empty structured data")

// EntityBlob is the machine-readable listing embedded in a result element.
type EntityBlob struct {
	Title               string `json:"title"`
	Address             string `json:"address"`
	Phone               string `json:"phone"`
	Website             string `json:"website"`
	PrimaryCategoryName string `json:"primaryCategoryName"`

	extra map[string]any
}

// socialKeys are the entity keys that may carry profile URLs.
var socialKeys = []string{
	"website",
	"facebookUrl", "facebook",
	"instagramUrl", "instagram",
	"whatsappUrl", "whatsapp",
	"twitterUrl", "twitter",
	"linkedInUrl", "linkedin",
	"youtubeUrl", "youtube",
	"tiktokUrl", "tiktok",
}

// ParseEntityBlob decodes a structured-data attribute. Both {"entity": {...}}
// and a bare entity object are accepted.
func ParseEntityBlob(raw string) (EntityBlob, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EntityBlob{}, ErrEmptyBlob
	}

	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return EntityBlob{}, fmt.Errorf("decode entity blob: %w", err)
	}

	fields := envelope
	if nested, ok := envelope["entity"].(map[string]any); ok {
		fields = nested
	}

	blob := EntityBlob{
		Title:               stringField(fields, "title"),
		Address:             stringField(fields, "address"),
		Phone:               stringField(fields, "phone"),
		Website:             stringField(fields, "website"),
		PrimaryCategoryName: stringField(fields, "primaryCategoryName"),
		extra:               fields,
	}
	return blob, nil
}

// HasSignal reports whether the blob carries contact or category data, which
// makes it authoritative over DOM scraping for those fields.
func (b EntityBlob) HasSignal() bool {
	return b.Website != "" || b.Phone != "" || b.PrimaryCategoryName != ""
}

// SocialLinks collects profile URLs found in any of the known keys. The first
// URL seen for a platform wins.
func (b EntityBlob) SocialLinks() map[string]string {
	links := map[string]string{}
	for _, key := range socialKeys {
		value := stringField(b.extra, key)
		if !strings.HasPrefix(value, "http") {
			continue
		}
		platform, ok := social.Classify(value)
		if !ok {
			continue
		}
		if _, exists := links[string(platform)]; !exists {
			links[string(platform)] = value
		}
	}
	return links
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	value, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
