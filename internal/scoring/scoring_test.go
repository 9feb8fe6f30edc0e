package scoring

import (
	"testing"

	"github.com/octobees/leads-generator/worker/internal/entity"
)

func TestComputeScore_FullCoverage(t *testing.T) {
	listing := entity.BusinessListing{
		Name:         "Acme Fitness",
		Phone:        entity.StringPtr("+977 1-4412345"),
		Email:        entity.StringPtr("info@acme.com.np"),
		Website:      entity.StringPtr("https://acme.com.np"),
		SocialLinks:  map[string]string{"facebook": "https://facebook.com/acme", "instagram": "https://instagram.com/acme"},
		Rating:       entity.StringPtr("4.7"),
		ReviewsCount: entity.StringPtr("312"),
		Address:      entity.StringPtr("Durbar Marg 12, Kathmandu 44600"),
		Category:     entity.StringPtr("Gym"),
	}

	score := ComputeScore(listing)

	if score.Total != 100 {
		t.Fatalf("expected full score 100, got %d (%v)", score.Total, score.Breakdown)
	}
	for category, want := range map[string]int{categoryContact: 30, categoryWeb: 20, categoryReputation: 30, categoryProfile: 20} {
		if score.Breakdown[category] != want {
			t.Fatalf("expected %s %d, got %d", category, want, score.Breakdown[category])
		}
	}
}

func TestComputeScore_MinimalSignals(t *testing.T) {
	listing := entity.BusinessListing{
		Name:        "Kiosk",
		Phone:       entity.StringPtr("   "),
		SocialLinks: map[string]string{"linkedin": ""},
		Rating:      entity.StringPtr("n/a"),
		Address:     entity.StringPtr("Thamel"),
	}

	if score := ComputeScore(listing); score.Total != 0 {
		t.Fatalf("expected zero score for insufficient signals, got %d", score.Total)
	}
}

func TestComputeScore_FreeHostingWebsite(t *testing.T) {
	score := ComputeScore(entity.BusinessListing{Name: "Shop", Website: entity.StringPtr("http://myshop.wordpress.com")})
	if score.Breakdown[categoryWeb] != 5 {
		t.Fatalf("expected only presence points for a free-hosted site, got %d", score.Breakdown[categoryWeb])
	}
}

func TestScoreReputationBands(t *testing.T) {
	cases := []struct {
		rating, reviews string
		want            int
	}{
		{"4.5", "100", 30},
		{"4.2", "25", 20},
		{"3.1", "1", 10},
		{"2.9", "0", 0},
		{"", "19", 5},
	}
	for _, tc := range cases {
		l := entity.BusinessListing{Rating: entity.StringPtr(tc.rating), ReviewsCount: entity.StringPtr(tc.reviews)}
		if got := scoreReputation(l); got != tc.want {
			t.Fatalf("scoreReputation(%q, %q)=%d, want %d", tc.rating, tc.reviews, got, tc.want)
		}
	}
}

func TestHighQualityDomain(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"https://example.com", true},
		{"http://www.example.com.np", true},
		{"mybrand.wordpress.com", false},
		{"", false},
		{"https://acme.business.site/", false},
	}

	for _, tc := range cases {
		if got := highQualityDomain(tc.input); got != tc.want {
			t.Fatalf("highQualityDomain(%q)=%v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestHasCompleteAddress(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"123 Main St, Springfield, US", true},
		{" 456 High Road London ", false},
		{"Somewhere", false},
		{"Lakeside 6, Pokhara", true},
	}

	for _, tc := range cases {
		if got := hasCompleteAddress(tc.input); got != tc.want {
			t.Fatalf("hasCompleteAddress(%q)=%v, want %v", tc.input, got, tc.want)
		}
	}
}
