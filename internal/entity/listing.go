package entity

import "time"

// BusinessListing is a single business extracted from a map search surface.
type BusinessListing struct {
	ID           string            `json:"id,omitempty" bson:"-"`
	Name         string            `json:"name" bson:"name"`
	Address      *string           `json:"address,omitempty" bson:"address,omitempty"`
	Phone        *string           `json:"phone,omitempty" bson:"phone,omitempty"`
	PhoneE164    *string           `json:"phone_e164,omitempty" bson:"phone_e164,omitempty"`
	Website      *string           `json:"website,omitempty" bson:"website,omitempty"`
	Email        *string           `json:"email,omitempty" bson:"email,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty" bson:"social_links,omitempty"`
	Rating       *string           `json:"rating,omitempty" bson:"rating,omitempty"`
	ReviewsCount *string           `json:"reviews_count,omitempty" bson:"reviews_count,omitempty"`
	Category     *string           `json:"category,omitempty" bson:"category,omitempty"`
	LeadScore    int               `json:"lead_score" bson:"lead_score"`
	BatchID      string            `json:"batch_id" bson:"batch_id"`
	SourceURL    string            `json:"source_url" bson:"url"`
	IngestedAt   time.Time         `json:"ingested_at" bson:"ingested_at"`
}

// StringPtr returns a pointer to value, or nil when it is empty.
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Deref returns the pointed-to string or an empty string.
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
