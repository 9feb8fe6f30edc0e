package spider

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/leads-generator/worker/internal/entity"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

const cardListHTML = `<html><body>
<div class="b_maglistcard" data-entity='{"entity":{"title":"Cafe X","address":"123 St","phone":"P-1","website":"https://cafex.example","primaryCategoryName":"Cafe","facebookUrl":"https://facebook.com/cafex"}}'>
  <h3 class="l_magTitle">Cafe X (dom)</h3>
  <a href="tel:999-999">999-999</a>
  <div class="cico"><span aria-label="4.5 stars"></span></div>
  <div class="l_rev_rc"><span>(1,234 reviews)</span></div>
</div>
<div class="b_maglistcard" data-entity='{"entity":{"title":"Gym Y","website":"https://instagram.com/gymy"}}'>
  <div class="l_rev_rc"><span>8 reviews</span></div>
</div>
</body></html>`

func TestExtractListingsStructuredDataPrecedence(t *testing.T) {
	doc := mustDoc(t, cardListHTML)
	out := ExtractListings(doc, DefaultListSelectors(), "https://maps.example/search", "batch-1")

	if out.Items != 2 {
		t.Fatalf("expected 2 items, got %d", out.Items)
	}
	if len(out.DetailLinks) != 0 {
		t.Fatalf("expected no detail links, got %v", out.DetailLinks)
	}
	if len(out.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(out.Listings))
	}

	cafe := out.Listings[0]
	if cafe.Name != "Cafe X" {
		t.Fatalf("expected blob title, got %q", cafe.Name)
	}
	if entity.Deref(cafe.Phone) != "P-1" {
		t.Fatalf("expected structured phone to win, got %q", entity.Deref(cafe.Phone))
	}
	if entity.Deref(cafe.Website) != "https://cafex.example" {
		t.Fatalf("unexpected website %q", entity.Deref(cafe.Website))
	}
	if entity.Deref(cafe.Category) != "Cafe" {
		t.Fatalf("unexpected category %q", entity.Deref(cafe.Category))
	}
	if entity.Deref(cafe.Rating) != "4.5" {
		t.Fatalf("expected rating from DOM, got %q", entity.Deref(cafe.Rating))
	}
	if entity.Deref(cafe.ReviewsCount) != "1,234" {
		t.Fatalf("unexpected reviews %q", entity.Deref(cafe.ReviewsCount))
	}
	if cafe.SocialLinks["facebook"] != "https://facebook.com/cafex" {
		t.Fatalf("expected facebook link, got %v", cafe.SocialLinks)
	}
	if cafe.BatchID != "batch-1" || cafe.SourceURL != "https://maps.example/search" {
		t.Fatalf("unexpected provenance %+v", cafe)
	}

	gym := out.Listings[1]
	if gym.Website != nil {
		t.Fatalf("social website must not be stored as website, got %q", *gym.Website)
	}
	if gym.SocialLinks["instagram"] != "https://instagram.com/gymy" {
		t.Fatalf("expected instagram link, got %v", gym.SocialLinks)
	}
	if entity.Deref(gym.ReviewsCount) != "8" {
		t.Fatalf("unexpected reviews %q", entity.Deref(gym.ReviewsCount))
	}
}

const feedHTML = `<html><body><div role="feed">
<div role="article" aria-label="Cafe X"><a class="hfpxzc" href="/maps/place/Cafe+X/@1,2" aria-label="Cafe X"></a></div>
<div role="article" aria-label="Cafe X again"><a class="hfpxzc" href="/maps/place/Cafe+X/@1,2"></a></div>
<div role="article" aria-label="Bakery Z"><a class="hfpxzc" href="https://www.google.com/maps/place/Bakery+Z"></a></div>
<div role="article" aria-label="Broken" data-entity='{not json'><a href="/maps/place/Broken"></a></div>
</div></body></html>`

func TestExtractListingsDispatchesDetailLinks(t *testing.T) {
	doc := mustDoc(t, feedHTML)
	out := ExtractListings(doc, DefaultListSelectors(), "https://www.google.com/maps/search/cafe", "b")

	if out.Items != 4 {
		t.Fatalf("expected 4 items, got %d", out.Items)
	}
	if len(out.Listings) != 0 {
		t.Fatalf("expected no direct listings, got %d", len(out.Listings))
	}
	want := []string{
		"https://www.google.com/maps/place/Cafe+X/@1,2",
		"https://www.google.com/maps/place/Bakery+Z",
		"https://www.google.com/maps/place/Broken",
	}
	if len(out.DetailLinks) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), out.DetailLinks)
	}
	for i, link := range want {
		if out.DetailLinks[i] != link {
			t.Fatalf("link %d: expected %q, got %q", i, link, out.DetailLinks[i])
		}
	}

	var structured bool
	for _, d := range out.Diagnostics {
		if errors.Is(d, ErrStructuredData) {
			structured = true
		}
	}
	if !structured {
		t.Fatalf("expected malformed blob to be reported, got %+v", out.Diagnostics)
	}
}

func TestExtractListingsAnchorFallbackItems(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<a href="/maps/place/One" aria-label="One"></a>
<a href="/maps/place/Two" aria-label="Two"></a>
</body></html>`)
	out := ExtractListings(doc, DefaultListSelectors(), "https://www.google.com/maps/search/x", "b")
	if out.Items != 2 || len(out.DetailLinks) != 2 {
		t.Fatalf("expected anchors to act as items, got %+v", out)
	}
}

func TestExtractListingsPartialWithoutLink(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="b_maglistcard"><h3 class="l_magTitle">  Corner   Shop </h3><a class="website" href="https://corner.example">site</a></div>
<div class="b_maglistcard"><span>nothing useful</span></div>
</body></html>`)
	out := ExtractListings(doc, DefaultListSelectors(), "https://bing.example/maps", "b")
	if len(out.Listings) != 1 {
		t.Fatalf("expected one partial listing, got %d", len(out.Listings))
	}
	got := out.Listings[0]
	if got.Name != "Corner Shop" || entity.Deref(got.Website) != "https://corner.example" {
		t.Fatalf("unexpected listing %+v", got)
	}
	if got.Phone != nil || got.Rating != nil {
		t.Fatalf("expected missing fields to stay nil, got %+v", got)
	}
	if !errors.Is(out.Diagnostics[len(out.Diagnostics)-1], ErrFieldNotFound) {
		t.Fatalf("expected unnamed item to be reported, got %+v", out.Diagnostics)
	}
}

func TestExtractSingleResultFromEntityScan(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div data-entity='{"title":"Decoy"}'></div>
<div data-entity='{"entity":{"title":"Hotel Q","phone":"+977 1-4412345","primaryCategoryName":"Hotel"}}'></div>
<h2 class="b_entityTitle">Other</h2>
</body></html>`)
	listing, _ := ExtractSingleResult(doc, DefaultSingleResultSelectors(), "https://bing.example/maps?q=hotel", "b")
	if listing == nil {
		t.Fatalf("expected a listing")
	}
	if listing.Name != "Hotel Q" || entity.Deref(listing.Phone) != "+977 1-4412345" || entity.Deref(listing.Category) != "Hotel" {
		t.Fatalf("unexpected listing %+v", listing)
	}
}

func TestExtractSingleResultDOMFallback(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="b_focusTextMedium">Tea House</div>
<div class="address">Main Rd, Kathmandu</div>
<a href="tel:+97714000000">call</a>
<a href="https://facebook.com/teahouse">Website</a>
</body></html>`)
	listing, _ := ExtractSingleResult(doc, DefaultSingleResultSelectors(), "https://bing.example/maps", "b")
	if listing == nil {
		t.Fatalf("expected a listing")
	}
	if listing.Name != "Tea House" || entity.Deref(listing.Address) != "Main Rd, Kathmandu" {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if entity.Deref(listing.Phone) != "+97714000000" {
		t.Fatalf("unexpected phone %q", entity.Deref(listing.Phone))
	}
	if listing.Website != nil || listing.SocialLinks["facebook"] != "https://facebook.com/teahouse" {
		t.Fatalf("expected facebook link instead of website, got %+v", listing)
	}
}

func TestExtractSingleResultWithoutName(t *testing.T) {
	doc := mustDoc(t, `<html><body><p>captcha</p></body></html>`)
	listing, diags := ExtractSingleResult(doc, DefaultSingleResultSelectors(), "u", "b")
	if listing != nil {
		t.Fatalf("expected nil listing, got %+v", listing)
	}
	if len(diags) == 0 || !errors.Is(diags[len(diags)-1], ErrFieldNotFound) {
		t.Fatalf("expected name failure in diagnostics, got %+v", diags)
	}
}
