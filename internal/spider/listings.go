package spider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/leads-generator/worker/internal/entity"
	"github.com/octobees/leads-generator/worker/internal/extract"
	"github.com/octobees/leads-generator/worker/internal/social"
)

// ListSelectors locate result items on a search page.
type ListSelectors struct {
	// Items are tried in order; the first selector with matches defines the items.
	Items []string
	// PlaceLink matches anchors leading to a listing detail page. When no
	// item selector matches, each such anchor is treated as an item.
	PlaceLink  string
	EntityAttr string
}

// DefaultListSelectors covers both the card layout that embeds entity data
// and the feed layout that only links to detail pages.
func DefaultListSelectors() ListSelectors {
	return ListSelectors{
		Items:      []string{".b_maglistcard", "div[role='article']"},
		PlaceLink:  "a[href*='/maps/place/']",
		EntityAttr: "data-entity",
	}
}

// ListExtraction is what the search page yielded.
type ListExtraction struct {
	Items       int
	Listings    []entity.BusinessListing
	DetailLinks []string
	Diagnostics extract.Diagnostics
}

// ExtractListings walks the result items of a rendered search page. Items
// whose structured data carries a contact or category signal become records
// directly; others are resolved through their detail link. Items with neither
// a signal nor a link are emitted with whatever the DOM provided, as long as
// they have a name.
func ExtractListings(doc *goquery.Document, sel ListSelectors, sourceURL, batchID string) ListExtraction {
	var out ListExtraction
	items := findItems(doc, sel)
	out.Items = items.Length()
	seen := make(map[string]struct{})

	items.Each(func(i int, item *goquery.Selection) {
		field := func(name string) string { return fmt.Sprintf("item[%d].%s", i, name) }

		blob, blobErr := itemBlob(item, sel.EntityAttr)
		if blobErr != nil {
			out.Diagnostics.Add(field("entity"), "structured-data", blobErr)
		}

		link := extract.Cascade(field("link"), item,
			extract.SelfAttr("href", nil),
			extract.Attr(sel.PlaceLink, "href", nil),
		)
		href := ""
		if link.Found() {
			href = resolveURL(sourceURL, link.Value)
		}

		if !blob.HasSignal() && href != "" {
			if _, dup := seen[href]; !dup {
				seen[href] = struct{}{}
				out.DetailLinks = append(out.DetailLinks, href)
			}
			return
		}

		listing, diags := listingFromItem(item, blob, sel, sourceURL, batchID, field)
		out.Diagnostics.Merge(diags)
		if listing == nil {
			return
		}
		out.Listings = append(out.Listings, *listing)
	})

	return out
}

func findItems(doc *goquery.Document, sel ListSelectors) *goquery.Selection {
	for _, selector := range sel.Items {
		if items := doc.Find(selector); items.Length() > 0 {
			return items
		}
	}
	if sel.PlaceLink == "" {
		return doc.Selection.Slice(0, 0)
	}
	return doc.Find(sel.PlaceLink)
}

// itemBlob returns the structured data on the item or its first descendant
// carrying it. A missing attribute is not an error.
func itemBlob(item *goquery.Selection, attr string) (extract.EntityBlob, error) {
	if attr == "" {
		return extract.EntityBlob{}, nil
	}
	raw, ok := item.Attr(attr)
	if !ok {
		raw, ok = item.Find("[" + attr + "]").First().Attr(attr)
	}
	if !ok {
		return extract.EntityBlob{}, nil
	}
	blob, err := extract.ParseEntityBlob(raw)
	if err != nil {
		return extract.EntityBlob{}, fmt.Errorf("%w: %v", ErrStructuredData, err)
	}
	return blob, nil
}

func listingFromItem(item *goquery.Selection, blob extract.EntityBlob, sel ListSelectors, sourceURL, batchID string, field func(string) string) (*entity.BusinessListing, extract.Diagnostics) {
	var diags extract.Diagnostics
	resolve := func(name string, strategies ...extract.Strategy) extract.Result {
		res := extract.Cascade(field(name), item, strategies...)
		if !res.Found() {
			diags.Merge(res.Errors)
		}
		return res
	}

	name := resolve("name",
		extract.Static("entity:title", blob.Title),
		extract.Text("h3.l_magTitle", extract.CollapseSpace),
		extract.Text(".fontHeadlineSmall", extract.CollapseSpace),
		extract.SelfAttr("aria-label", extract.CollapseSpace),
		extract.Attr(sel.PlaceLink, "aria-label", extract.CollapseSpace),
	)
	if !name.Found() {
		diags.Add(field("name"), "list", ErrFieldNotFound)
		return nil, diags
	}

	address := resolve("address",
		extract.Static("entity:address", blob.Address),
		extract.Text(".b_address", extract.CleanAddress),
	)
	phone := resolve("phone",
		extract.Static("entity:phone", blob.Phone),
		extract.Attr("a[href^='tel:']", "href", stripTel),
	)
	website := resolve("website",
		extract.Static("entity:website", blob.Website),
		extract.Attr("a.website", "href", social.UnwrapRedirect),
		extract.LinkWithText("Website"),
	)
	category := resolve("category",
		extract.Static("entity:category", blob.PrimaryCategoryName),
	)
	rating := resolve("rating",
		extract.Attr(".cico span", "aria-label", extract.ParseRatingLabel),
		extract.Attr("span[role='img'][aria-label*='stars']", "aria-label", extract.ParseRatingLabel),
	)
	reviews := resolve("reviews_count",
		extract.Text(".l_rev_rc span", extract.FirstDigits),
		extract.Text("span.UY7F9", extract.CleanReviews),
	)

	listing := &entity.BusinessListing{
		Name:         name.Value,
		Address:      address.Ptr(),
		Phone:        phone.Ptr(),
		Category:     category.Ptr(),
		Rating:       rating.Ptr(),
		ReviewsCount: reviews.Ptr(),
		SocialLinks:  blob.SocialLinks(),
		BatchID:      batchID,
		SourceURL:    sourceURL,
	}
	if listing.SocialLinks == nil {
		listing.SocialLinks = map[string]string{}
	}
	social.Assign(listing.SocialLinks, &listing.Website, social.UnwrapRedirect(website.Value))
	return listing, diags
}

// SingleResultSelectors are the DOM fallbacks used when the search resolved
// straight to one business instead of a list.
type SingleResultSelectors struct {
	EntityAttr string
	Names      []string
	Addresses  []string
}

// DefaultSingleResultSelectors returns the heading and address selectors in
// priority order.
func DefaultSingleResultSelectors() SingleResultSelectors {
	return SingleResultSelectors{
		EntityAttr: "data-entity",
		Names:      []string{"h2.b_entityTitle", ".b_focusTextMedium", ".name", "div.title", "h1"},
		Addresses:  []string{".b_address", ".address"},
	}
}

// ExtractSingleResult builds a record from a page showing a single business.
// It returns nil when not even a name can be found.
func ExtractSingleResult(doc *goquery.Document, sel SingleResultSelectors, sourceURL, batchID string) (*entity.BusinessListing, extract.Diagnostics) {
	var diags extract.Diagnostics
	blob := scanBlobs(doc, sel.EntityAttr, &diags)

	resolve := func(name string, strategies ...extract.Strategy) extract.Result {
		res := extract.Cascade(name, doc.Selection, strategies...)
		if !res.Found() {
			diags.Merge(res.Errors)
		}
		return res
	}

	nameStrategies := []extract.Strategy{extract.Static("entity:title", blob.Title)}
	for _, selector := range sel.Names {
		nameStrategies = append(nameStrategies, extract.Text(selector, extract.CollapseSpace))
	}
	name := resolve("name", nameStrategies...)
	if !name.Found() {
		diags.Add("name", "single-result", ErrFieldNotFound)
		return nil, diags
	}

	addressStrategies := []extract.Strategy{extract.Static("entity:address", blob.Address)}
	for _, selector := range sel.Addresses {
		addressStrategies = append(addressStrategies, extract.Text(selector, extract.CleanAddress))
	}
	addressStrategies = append(addressStrategies, detailAddressStrategies...)
	address := resolve("address", addressStrategies...)

	phone := resolve("phone", append([]extract.Strategy{
		extract.Static("entity:phone", blob.Phone),
		extract.Attr("a[href^='tel:']", "href", stripTel),
	}, detailPhoneStrategies...)...)

	website := resolve("website",
		extract.Static("entity:website", blob.Website),
		extract.Attr("a.website", "href", social.UnwrapRedirect),
		extract.LinkWithText("Website"),
		extract.Attr(`a[data-item-id="authority"]`, "href", social.UnwrapRedirect),
	)
	category := resolve("category", extract.Static("entity:category", blob.PrimaryCategoryName))
	rating := resolve("rating", detailRatingStrategies...)
	reviews := resolve("reviews_count", detailReviewStrategies...)

	listing := &entity.BusinessListing{
		Name:         name.Value,
		Address:      address.Ptr(),
		Phone:        phone.Ptr(),
		Category:     category.Ptr(),
		Rating:       rating.Ptr(),
		ReviewsCount: reviews.Ptr(),
		SocialLinks:  blob.SocialLinks(),
		BatchID:      batchID,
		SourceURL:    sourceURL,
	}
	if listing.SocialLinks == nil {
		listing.SocialLinks = map[string]string{}
	}
	social.Assign(listing.SocialLinks, &listing.Website, website.Value)
	return listing, diags
}

// scanBlobs returns the first structured-data blob on the page that carries a
// signal, or failing that the first one with a title.
func scanBlobs(doc *goquery.Document, attr string, diags *extract.Diagnostics) extract.EntityBlob {
	if attr == "" {
		return extract.EntityBlob{}
	}
	var titled, found extract.EntityBlob
	doc.Find("[" + attr + "]").EachWithBreak(func(i int, el *goquery.Selection) bool {
		raw, _ := el.Attr(attr)
		blob, err := extract.ParseEntityBlob(raw)
		if err != nil {
			diags.Add(fmt.Sprintf("entity[%d]", i), "structured-data", fmt.Errorf("%w: %v", ErrStructuredData, err))
			return true
		}
		if blob.HasSignal() {
			found = blob
			return false
		}
		if titled.Title == "" && blob.Title != "" {
			titled = blob
		}
		return true
	})
	if found.HasSignal() {
		return found
	}
	return titled
}

func stripTel(href string) string {
	href = strings.TrimSpace(href)
	if len(href) >= 4 && strings.EqualFold(href[:4], "tel:") {
		href = href[4:]
	}
	return strings.TrimSpace(href)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
