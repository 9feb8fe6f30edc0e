package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
)

// mongoPlace is the stored document: the listing plus its ObjectID, whose
// embedded timestamp and counter give insertion order.
type mongoPlace struct {
	ID                     bson.ObjectID `bson:"_id,omitempty"`
	entity.BusinessListing `bson:",inline"`
}

// MongoListingsRepository implements ListingsRepository on a MongoDB collection.
type MongoListingsRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ ListingsRepository = (*MongoListingsRepository)(nil)

// ConnectMongo opens a client and verifies it can reach the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo URI must not be empty")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoListingsRepository wires a repository over collection.
func NewMongoListingsRepository(collection *mongo.Collection) *MongoListingsRepository {
	return &MongoListingsRepository{collection: collection, now: time.Now}
}

// Insert stores listing under a new ObjectID and sets listing.ID and IngestedAt.
func (r *MongoListingsRepository) Insert(ctx context.Context, listing *entity.BusinessListing) error {
	if listing == nil {
		return ErrNilListing
	}
	doc := mongoPlace{ID: bson.NewObjectID(), BusinessListing: *listing}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = r.now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert place: %w", err)
	}

	listing.ID = doc.ID.Hex()
	listing.IngestedAt = doc.IngestedAt
	return nil
}

// DeleteMany removes every document matching the identity filter.
func (r *MongoListingsRepository) DeleteMany(ctx context.Context, filter dto.IdentityFilter) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, identityDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("delete places: %w", err)
	}
	return res.DeletedCount, nil
}

// Find lists places matching filter.
func (r *MongoListingsRepository) Find(ctx context.Context, filter dto.ListFilter) ([]entity.BusinessListing, error) {
	skip, limit := normalizeWindow(filter)
	opts := options.Find().
		SetSort(mongoSort(filter.Sort)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoPlace
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}

	listings := make([]entity.BusinessListing, 0, len(docs))
	for _, doc := range docs {
		l := doc.BusinessListing
		l.ID = doc.ID.Hex()
		if l.SocialLinks == nil {
			l.SocialLinks = map[string]string{}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Count returns how many places match filter.
func (r *MongoListingsRepository) Count(ctx context.Context, filter dto.ListFilter) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, filterDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("count places: %w", err)
	}
	return total, nil
}

func identityDocument(filter dto.IdentityFilter) bson.D {
	doc := bson.D{{Key: "name", Value: filter.Name}}
	if filter.Address != nil {
		doc = append(doc, bson.E{Key: "address", Value: *filter.Address})
	}
	return doc
}

func filterDocument(filter dto.ListFilter) bson.D {
	doc := bson.D{}
	if q := strings.TrimSpace(filter.Q); q != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		doc = append(doc, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: pattern}},
			bson.D{{Key: "address", Value: pattern}},
		}})
	}
	if filter.BatchID != "" {
		doc = append(doc, bson.E{Key: "batch_id", Value: filter.BatchID})
	}
	if filter.Category != "" {
		doc = append(doc, bson.E{Key: "category", Value: bson.Regex{
			Pattern: "^" + regexp.QuoteMeta(filter.Category) + "$",
			Options: "i",
		}})
	}
	switch strings.ToLower(filter.WebsiteStatus) {
	case "missing":
		doc = append(doc, bson.E{Key: "website", Value: bson.D{{Key: "$in", Value: bson.A{nil, ""}}}})
	case "available":
		doc = append(doc, bson.E{Key: "website", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}})
	}
	return doc
}

func mongoSort(sort string) bson.D {
	switch sortKey(sort) {
	case "rating":
		return bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: -1}}
	case "name":
		return bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: -1}}
	case "score":
		return bson.D{{Key: "lead_score", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "_id", Value: -1}}
	}
}
