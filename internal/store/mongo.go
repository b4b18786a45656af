package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sells-group/forecast-cli/internal/model"
)

const (
	mongoSourcesCollection   = "sources"
	mongoBlacklistCollection = "BlacklistedDomain"
)

// MongoStore implements Store on MongoDB. Links and domains are the
// document _id, so duplicate inserts fail per document and are ignored.
type MongoStore struct {
	client    *mongo.Client
	sources   *mongo.Collection
	blacklist *mongo.Collection
}

// sourceDoc is the stored form of a model.Source.
type sourceDoc struct {
	Link              string    `bson:"_id"`
	Title             string    `bson:"title"`
	Snippet           string    `bson:"snippet,omitempty"`
	Query             string    `bson:"query"`
	Queries           []string  `bson:"queries"`
	Date              string    `bson:"date"`
	Favicon           string    `bson:"favicon,omitempty"`
	News              bool      `bson:"news"`
	RawContent        string    `bson:"raw_content"`
	SummarizedContent *string   `bson:"summarized_content"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

type blacklistDoc struct {
	Domain       string    `bson:"_id"`
	URL          string    `bson:"url"`
	ErrorMessage string    `bson:"error_message"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func toSourceDoc(s model.Source, now time.Time) sourceDoc {
	d := sourceDoc{
		Link:       s.Link,
		Title:      s.Title,
		Snippet:    s.Snippet,
		Query:      s.Query,
		Queries:    sourceQueries(s),
		Date:       dateOrUnknown(s.Date),
		Favicon:    s.Favicon,
		News:       s.News,
		RawContent: s.RawContent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if s.SummarizedContent != "" {
		summary := s.SummarizedContent
		d.SummarizedContent = &summary
	}
	return d
}

func (d sourceDoc) source() model.Source {
	s := model.Source{
		Link:       d.Link,
		Title:      d.Title,
		Snippet:    d.Snippet,
		Query:      d.Query,
		Queries:    d.Queries,
		Date:       d.Date,
		Favicon:    d.Favicon,
		News:       d.News,
		RawContent: d.RawContent,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.SummarizedContent != nil {
		s.SummarizedContent = *d.SummarizedContent
	}
	return s
}

// NewMongo connects to uri and uses database dbName.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx) //nolint:errcheck
		return nil, eris.Wrap(err, "mongo: ping")
	}

	db := client.Database(dbName)
	return &MongoStore{
		client:    client,
		sources:   db.Collection(mongoSourcesCollection),
		blacklist: db.Collection(mongoBlacklistCollection),
	}, nil
}

// Migrate creates the secondary indexes. The _id keys need none.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.sources.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: 1}},
	})
	return eris.Wrap(err, "mongo: migrate")
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CheckBlacklisted(ctx context.Context, domains []string) (map[string]bool, error) {
	domains = uniqueStrings(domains)
	out := make(map[string]bool)
	if len(domains) == 0 {
		return out, nil
	}

	cur, err := s.blacklist.Find(ctx, bson.M{"_id": bson.M{"$in": domains}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: check blacklisted")
	}
	var docs []blacklistDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, eris.Wrap(err, "mongo: decode blacklisted")
	}
	for _, d := range docs {
		out[d.Domain] = true
	}
	return out, nil
}

func (s *MongoStore) AddToBlacklist(ctx context.Context, entries []model.BlacklistEntry) error {
	entries = uniqueEntries(entries)
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]any, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, blacklistDoc{Domain: e.Domain, URL: e.URL, ErrorMessage: e.ErrorMessage, CreatedAt: now})
	}
	_, err := s.blacklist.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return eris.Wrap(ignoreDuplicates(err), "mongo: add to blacklist")
}

func (s *MongoStore) CheckExisting(ctx context.Context, links []string) (map[string]model.Source, error) {
	links = uniqueStrings(links)
	out := make(map[string]model.Source)
	if len(links) == 0 {
		return out, nil
	}

	cur, err := s.sources.Find(ctx, bson.M{"_id": bson.M{"$in": links}})
	if err != nil {
		return nil, eris.Wrap(err, "mongo: check existing")
	}
	var docs []sourceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, eris.Wrap(err, "mongo: decode sources")
	}
	for _, d := range docs {
		out[d.Link] = d.source()
	}
	return out, nil
}

func (s *MongoStore) GetSource(ctx context.Context, link string) (*model.Source, error) {
	var d sourceDoc
	err := s.sources.FindOne(ctx, bson.M{"_id": link}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: get source %s", link)
	}
	src := d.source()
	return &src, nil
}

func (s *MongoStore) AddSources(ctx context.Context, sources []model.Source) error {
	sources = uniqueSources(sources)
	if len(sources) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]any, 0, len(sources))
	for _, src := range sources {
		docs = append(docs, toSourceDoc(src, now))
	}
	_, err := s.sources.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return eris.Wrap(ignoreDuplicates(err), "mongo: add sources")
}

func (s *MongoStore) UpdateSummary(ctx context.Context, link, summary string) error {
	var v any
	if summary != "" {
		v = summary
	}
	_, err := s.sources.UpdateOne(ctx, bson.M{"_id": link}, bson.M{
		"$set": bson.M{"summarized_content": v, "updatedAt": time.Now().UTC()},
	})
	return eris.Wrapf(err, "mongo: update summary %s", link)
}

func (s *MongoStore) AddQueryToSource(ctx context.Context, link, query string) error {
	if query == "" {
		return nil
	}
	_, err := s.sources.UpdateOne(ctx, bson.M{"_id": link}, bson.M{
		"$addToSet": bson.M{"queries": query},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	return eris.Wrapf(err, "mongo: add query to %s", link)
}

// ignoreDuplicates drops the error when every failed write was a duplicate key.
func ignoreDuplicates(err error) error {
	if err == nil {
		return nil
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError == nil {
		for _, we := range bwe.WriteErrors {
			if we.Code != 11000 {
				return err
			}
		}
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
