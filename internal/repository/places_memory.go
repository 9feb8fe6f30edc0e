package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
)

type memoryPlace struct {
	seq     int64
	listing entity.BusinessListing
}

// MemoryListingsRepository keeps listings in process. It backs
// STORE_DRIVER=memory and the tests of the packages writing to the store.
type MemoryListingsRepository struct {
	mu     sync.RWMutex
	seq    int64
	places []memoryPlace
	now    func() time.Time
}

var _ ListingsRepository = (*MemoryListingsRepository)(nil)

// NewMemoryListingsRepository returns an empty store.
func NewMemoryListingsRepository() *MemoryListingsRepository {
	return &MemoryListingsRepository{now: time.Now}
}

// Insert stores a copy of listing under a new id.
func (r *MemoryListingsRepository) Insert(_ context.Context, listing *entity.BusinessListing) error {
	if listing == nil {
		return ErrNilListing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	listing.ID = uuid.NewString()
	if listing.IngestedAt.IsZero() {
		listing.IngestedAt = r.now().UTC()
	}
	r.places = append(r.places, memoryPlace{seq: r.seq, listing: cloneListing(*listing)})
	return nil
}

// DeleteMany removes every listing matching the identity filter.
func (r *MemoryListingsRepository) DeleteMany(_ context.Context, filter dto.IdentityFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.places[:0]
	var deleted int64
	for _, p := range r.places {
		if matchesIdentity(p.listing, filter) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	r.places = kept
	return deleted, nil
}

// Find lists listings matching filter.
func (r *MemoryListingsRepository) Find(_ context.Context, filter dto.ListFilter) ([]entity.BusinessListing, error) {
	r.mu.RLock()
	matched := r.matching(filter)
	r.mu.RUnlock()

	switch sortKey(filter.Sort) {
	case "rating":
		sort.SliceStable(matched, func(i, j int) bool {
			ri, okI := ratingValue(matched[i].listing.Rating)
			rj, okJ := ratingValue(matched[j].listing.Rating)
			if okI != okJ {
				return okI
			}
			if ri != rj {
				return ri > rj
			}
			return matched[i].seq > matched[j].seq
		})
	case "name":
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].listing.Name != matched[j].listing.Name {
				return matched[i].listing.Name < matched[j].listing.Name
			}
			return matched[i].seq > matched[j].seq
		})
	case "score":
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].listing.LeadScore != matched[j].listing.LeadScore {
				return matched[i].listing.LeadScore > matched[j].listing.LeadScore
			}
			return matched[i].seq > matched[j].seq
		})
	default:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	}

	skip, limit := normalizeWindow(filter)
	if skip >= len(matched) {
		return []entity.BusinessListing{}, nil
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]entity.BusinessListing, 0, end-skip)
	for _, p := range matched[skip:end] {
		out = append(out, cloneListing(p.listing))
	}
	return out, nil
}

// Count returns how many listings match filter.
func (r *MemoryListingsRepository) Count(_ context.Context, filter dto.ListFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matching(filter))), nil
}

func (r *MemoryListingsRepository) matching(filter dto.ListFilter) []memoryPlace {
	var out []memoryPlace
	for _, p := range r.places {
		if matchesFilter(p.listing, filter) {
			out = append(out, p)
		}
	}
	return out
}

func matchesIdentity(l entity.BusinessListing, filter dto.IdentityFilter) bool {
	if l.Name != filter.Name {
		return false
	}
	if filter.Address == nil {
		return true
	}
	return l.Address != nil && *l.Address == *filter.Address
}

func matchesFilter(l entity.BusinessListing, filter dto.ListFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(filter.Q)); q != "" {
		if !strings.Contains(strings.ToLower(l.Name), q) &&
			!strings.Contains(strings.ToLower(entity.Deref(l.Address)), q) {
			return false
		}
	}
	if filter.BatchID != "" && l.BatchID != filter.BatchID {
		return false
	}
	if filter.Category != "" && !strings.EqualFold(entity.Deref(l.Category), filter.Category) {
		return false
	}
	switch strings.ToLower(filter.WebsiteStatus) {
	case "missing":
		return entity.Deref(l.Website) == ""
	case "available":
		return entity.Deref(l.Website) != ""
	}
	return true
}

func ratingValue(rating *string) (float64, bool) {
	if rating == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*rating), 64)
	return v, err == nil
}

func cloneListing(l entity.BusinessListing) entity.BusinessListing {
	if l.SocialLinks != nil {
		links := make(map[string]string, len(l.SocialLinks))
		for k, v := range l.SocialLinks {
			links[k] = v
		}
		l.SocialLinks = links
	}
	return l
}
