package extract

import "testing"

func TestCleanAddress(t *testing.T) {
	cases := map[string]string{
		"Address:  123 Main St\nKathmandu": "123 Main St, Kathmandu",
		"\ue0c8 · Thamel Marg":             "Thamel Marg",
		"42 Durbar Marg":                   "42 Durbar Marg",
		"Address:\n123 St":                 "123 St",
		"Address:123 St":                   "123 St",
		"":                                 "",
	}
	for in, want := range cases {
		if got := CleanAddress(in); got != want {
			t.Fatalf("CleanAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanPhone(t *testing.T) {
	if got := CleanPhone("Phone: \ue0b0 +977 1-4412345\n"); got != "+977 1-4412345" {
		t.Fatalf("unexpected phone: %q", got)
	}
	if got := CleanPhone("\ue0b0\n01-5550000"); got != "01-5550000" {
		t.Fatalf("unexpected phone: %q", got)
	}
	if got := CleanPhone("Phone: +1 212-555-0100"); got != "+1 212-555-0100" {
		t.Fatalf("country code lost: %q", got)
	}
	if got := CleanPhone("\ue0b0 · (650) 253-0000"); got != "(650) 253-0000" {
		t.Fatalf("unexpected phone: %q", got)
	}
}

func TestParseRatingLabel(t *testing.T) {
	cases := map[string]string{
		"4.5 stars":   "4.5",
		"4,2 stars":   "4.2",
		"5 stars":     "5",
		"stars":       "",
		"":            "",
		"  3.9 stars": "3.9",
	}
	for in, want := range cases {
		if got := ParseRatingLabel(in); got != want {
			t.Fatalf("ParseRatingLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchRating(t *testing.T) {
	if got := MatchRating("Rated 4.7 out of 5 (120)"); got != "4.7" {
		t.Fatalf("unexpected rating %q", got)
	}
	if got := MatchRating("no rating"); got != "" {
		t.Fatalf("expected empty rating, got %q", got)
	}
	if !IsBareRating(" 4.1 ") || IsBareRating("4.12") || IsBareRating("Open 9.30") {
		t.Fatalf("unexpected bare rating detection")
	}
}

func TestCleanReviews(t *testing.T) {
	cases := map[string]string{
		"(12 reviews)": "12",
		"(1,204)":      "1,204",
		" 7 Review ":   "7",
		"(3)":          "3",
	}
	for in, want := range cases {
		if got := CleanReviews(in); got != want {
			t.Fatalf("CleanReviews(%q) = %q, want %q", in, got, want)
		}
	}
	if got := FirstDigits("(4 reviews)"); got != "4" {
		t.Fatalf("FirstDigits returned %q", got)
	}
}

func TestEmailHelpers(t *testing.T) {
	if got := EmailFromMailto("mailto:hello@cafe.example?subject=Hi"); got != "hello@cafe.example" {
		t.Fatalf("unexpected mailto email %q", got)
	}
	if got := EmailFromMailto("mailto:not-an-email"); got != "" {
		t.Fatalf("expected invalid mailto to be rejected, got %q", got)
	}
	if got := EmailFromText("\ue158 info@gym.example "); got != "info@gym.example" {
		t.Fatalf("unexpected text email %q", got)
	}
	if got := EmailFromText("no email here"); got != "" {
		t.Fatalf("expected empty email, got %q", got)
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("+1 650-253-0000", "US"); got != "+16502530000" {
		t.Fatalf("unexpected e164 %q", got)
	}
	if got := NormalizePhone("111", "US"); got != "" {
		t.Fatalf("expected invalid number to normalise to empty, got %q", got)
	}
	if got := NormalizePhone("", "US"); got != "" {
		t.Fatalf("expected empty input to stay empty")
	}
}
