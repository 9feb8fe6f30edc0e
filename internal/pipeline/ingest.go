// Package pipeline lands extracted listings in the shared store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
	"github.com/octobees/leads-generator/worker/internal/extract"
	"github.com/octobees/leads-generator/worker/internal/repository"
	"github.com/octobees/leads-generator/worker/internal/scoring"
	"github.com/octobees/leads-generator/worker/internal/social"
)

// ErrUnnamedListing rejects a listing that has no name to key it by.
var ErrUnnamedListing = errors.New("listing has no name")

// IdentityKey returns the replace key of a listing: name and address, or the
// name alone when there is no address.
func IdentityKey(listing entity.BusinessListing) dto.IdentityFilter {
	key := dto.IdentityFilter{Name: strings.TrimSpace(listing.Name)}
	if addr := strings.TrimSpace(entity.Deref(listing.Address)); addr != "" {
		key.Address = &addr
	}
	return key
}

// Ingester replaces stored listings by identity key.
//
// Replacement deletes every stored record for the key and inserts the new one,
// so the listing resurfaces as most recent. Fields other systems attached to
// the old record (moderation status, notes, analysis) are dropped with it.
// Delete and insert are not wrapped in a transaction; two runs ingesting the
// same business at once can leave a duplicate until the next ingestion.
type Ingester struct {
	repo   repository.ListingsRepository
	region string
	logger *zap.Logger
	now    func() time.Time
}

// NewIngester wires an ingester. region is the default region used to
// normalise local phone numbers.
func NewIngester(repo repository.ListingsRepository, region string, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{repo: repo, region: region, logger: logger, now: time.Now}
}

// Ingest stores listing, replacing any previous record with the same identity.
func (i *Ingester) Ingest(ctx context.Context, listing *entity.BusinessListing) error {
	if listing == nil {
		return repository.ErrNilListing
	}
	normalize(listing)
	if listing.Name == "" {
		return ErrUnnamedListing
	}

	listing.PhoneE164 = entity.StringPtr(extract.NormalizePhone(entity.Deref(listing.Phone), i.region))
	listing.LeadScore = scoring.ComputeScore(*listing).Total
	listing.IngestedAt = i.now().UTC()
	key := IdentityKey(*listing)

	deleted, err := i.repo.DeleteMany(ctx, key)
	if err != nil {
		return fmt.Errorf("replace %q: %w", listing.Name, err)
	}
	if err := i.repo.Insert(ctx, listing); err != nil {
		return fmt.Errorf("insert %q: %w", listing.Name, err)
	}

	i.logger.Debug("listing ingested",
		zap.String("batch_id", listing.BatchID),
		zap.String("name", listing.Name),
		zap.String("id", listing.ID),
		zap.Int64("replaced", deleted),
		zap.Int("lead_score", listing.LeadScore),
	)
	return nil
}

// normalize trims every field, turns blanks into nil and moves a social URL
// out of website so the two never overlap.
func normalize(l *entity.BusinessListing) {
	l.Name = strings.TrimSpace(l.Name)
	for _, field := range []**string{&l.Address, &l.Phone, &l.Website, &l.Email, &l.Rating, &l.ReviewsCount, &l.Category} {
		*field = entity.StringPtr(strings.TrimSpace(entity.Deref(*field)))
	}

	links := make(map[string]string, len(l.SocialLinks))
	for platform, link := range l.SocialLinks {
		if link = strings.TrimSpace(link); link != "" {
			links[platform] = link
		}
	}
	l.SocialLinks = links

	if l.Website == nil {
		return
	}
	platform, ok := social.Classify(*l.Website)
	if !ok {
		return
	}
	if _, exists := l.SocialLinks[string(platform)]; !exists {
		l.SocialLinks[string(platform)] = *l.Website
	}
	l.Website = nil
}
