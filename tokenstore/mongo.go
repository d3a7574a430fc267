package tokenstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/gatherhq/gather-go/apierror"
	"github.com/gatherhq/gather-go/oauth"
)

// DefaultMongoCollection holds token documents unless the caller picks
// another collection.
const DefaultMongoCollection = "oauth_tokens"

const mongoConnectTimeout = 10 * time.Second

// tokenDocument is the Mongo shape of a stored token. The identifier doubles
// as the document id, which gives one document per identifier for free.
type tokenDocument struct {
	Identifier   string    `bson:"_id"`
	AccessToken  string    `bson:"access_token"`
	RefreshToken string    `bson:"refresh_token"`
	TokenType    string    `bson:"token_type"`
	Scopes       []string  `bson:"scopes"`
	ExpiresAt    time.Time `bson:"expires_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *tokenDocument) token() *oauth.Token {
	scopes := d.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &oauth.Token{
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		TokenType:    d.TokenType,
		Scopes:       scopes,
		ExpiresAt:    d.ExpiresAt,
	}
}

// MongoStore persists tokens in a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// DialMongoStore connects a dedicated Mongo client, with command tracing
// enabled, and returns a store over the named database and collection. An
// empty collection name falls back to DefaultMongoCollection.
func DialMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(mongoConnectTimeout).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindStorage, "connecting to mongodb", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, apierror.Wrap(apierror.KindStorage, "pinging mongodb", err)
	}

	return NewMongoStore(client.Database(database).Collection(collection)), nil
}

// Store implements Store.Store.
func (s *MongoStore) Store(ctx context.Context, identifier string, token *oauth.Token) error {
	if err := validate(token); err != nil {
		return err
	}
	return s.replace(ctx, identifier, token)
}

// Retrieve implements Store.Retrieve.
func (s *MongoStore) Retrieve(ctx context.Context, identifier string) (*oauth.Token, error) {
	var doc tokenDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": identifier}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.KindStorage, "loading token document", err)
	}
	return doc.token(), nil
}

// Refresh implements Store.Refresh.
func (s *MongoStore) Refresh(ctx context.Context, identifier string, token *oauth.Token) error {
	existing, err := s.Retrieve(ctx, identifier)
	if err != nil {
		return err
	}

	merged := merge(existing, token)
	if err := validate(merged); err != nil {
		return err
	}
	return s.replace(ctx, identifier, merged)
}

// Delete implements Store.Delete.
func (s *MongoStore) Delete(ctx context.Context, identifier string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": identifier}); err != nil {
		return apierror.Wrap(apierror.KindStorage, "deleting token document", err)
	}
	return nil
}

// Available reports whether the backing deployment answers a ping.
func (s *MongoStore) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.coll.Database().Client().Ping(pingCtx, readpref.Primary()) == nil
}

func (s *MongoStore) replace(ctx context.Context, identifier string, token *oauth.Token) error {
	doc := tokenDocument{
		Identifier:   identifier,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scopes:       token.Scopes,
		ExpiresAt:    token.ExpiresAt,
		UpdatedAt:    time.Now(),
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": identifier}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return apierror.Wrap(apierror.KindStorage, "saving token document", err)
	}
	return nil
}
