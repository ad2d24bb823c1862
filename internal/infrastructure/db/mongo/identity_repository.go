package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/99minutos/user-directory/internal/core/domain"
)

const (
	collectionUsers     = "users"
	collectionAddresses = "addresses"
	collectionCounters  = "counters"
)

type userDoc struct {
	ID                int64     `bson:"_id"`
	FirstName         string    `bson:"first_name"`
	LastName          string    `bson:"last_name"`
	Email             string    `bson:"email"`
	Org               string    `bson:"org"`
	EncryptedPassword string    `bson:"encrypted_password"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

type addressDoc struct {
	ID      int64  `bson:"_id"`
	UserID  int64  `bson:"user_id"`
	Street  string `bson:"street"`
	City    string `bson:"city"`
	State   string `bson:"state,omitempty"`
	ZipCode string `bson:"zip_code,omitempty"`
	Country string `bson:"country"`
}

// IdentityRepository implements ports.IdentityRepository on MongoDB.
type IdentityRepository struct {
	client    *mongo.Client
	users     *mongo.Collection
	addresses *mongo.Collection
	counters  *mongo.Collection
}

func NewIdentityRepository(client *mongo.Client, db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		client:    client,
		users:     db.Collection(collectionUsers),
		addresses: db.Collection(collectionAddresses),
		counters:  db.Collection(collectionCounters),
	}
}

// EnsureIndexes creates the unique (email, org) index and the address owner index.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "org", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_users_email_org"),
		},
		{Keys: bson.D{{Key: "org", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}

	_, err = r.addresses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("address indexes: %w", err)
	}
	return nil
}

func (r *IdentityRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx, collectionUsers)
	if err != nil {
		return nil, err
	}

	doc := userDoc{
		ID:                id,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		Email:             user.Email,
		Org:               user.Org,
		EncryptedPassword: user.EncryptedPassword,
		CreatedAt:         user.CreatedAt.UTC(),
		UpdatedAt:         user.UpdatedAt.UTC(),
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *IdentityRepository) FindUserByEmail(ctx context.Context, email, org string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"email": email, "org": org})
}

// DeleteUserByEmail removes the user and every address it owns in one transaction.
func (r *IdentityRepository) DeleteUserByEmail(ctx context.Context, email, org string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		var doc userDoc
		err := r.users.FindOne(sc, bson.M{"email": email, "org": org}).Decode(&doc)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return domain.ErrIdentityNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}
		if _, err := r.addresses.DeleteMany(sc, bson.M{"user_id": doc.ID}); err != nil {
			return fmt.Errorf("delete addresses: %w", err)
		}
		if _, err := r.users.DeleteOne(sc, bson.M{"_id": doc.ID}); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

func (r *IdentityRepository) UpdateFirstName(ctx context.Context, email, org, firstName string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.users.UpdateOne(ctx,
		bson.M{"email": email, "org": org},
		bson.M{"$set": bson.M{"first_name": firstName, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) SearchByEmail(ctx context.Context, query, org string) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"org":   org,
		"email": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	cur, err := r.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer cur.Close(ctx)

	users := []domain.User{}
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, *doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// CreateAddress bumps the owner's addr_seq before inserting. Reads do not
// conflict inside a snapshot transaction, so the write on the owner is what
// makes a concurrent DeleteUserByEmail and this insert serialize.
func (r *IdentityRepository) CreateAddress(ctx context.Context, addr *domain.Address) (*domain.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc addressDoc
	err := r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.users.UpdateOne(sc,
			bson.M{"_id": addr.UserID},
			bson.M{"$inc": bson.M{"addr_seq": int64(1)}},
		)
		if err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}
		if res.MatchedCount == 0 {
			return domain.ErrIdentityNotFound
		}

		id, err := r.nextID(sc, collectionAddresses)
		if err != nil {
			return err
		}
		doc = addressDoc{
			ID:      id,
			UserID:  addr.UserID,
			Street:  addr.Street,
			City:    addr.City,
			State:   addr.State,
			ZipCode: addr.ZipCode,
			Country: addr.Country,
		}
		if _, err := r.addresses.InsertOne(sc, doc); err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.addresses.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer cur.Close(ctx)

	addrs := []domain.Address{}
	for cur.Next(ctx) {
		var doc addressDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
		addrs = append(addrs, *doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *IdentityRepository) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// nextID atomically increments and returns the sequence named name.
func (r *IdentityRepository) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func (r *IdentityRepository) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:                d.ID,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		Email:             d.Email,
		Org:               d.Org,
		EncryptedPassword: d.EncryptedPassword,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}

func (d addressDoc) toDomain() *domain.Address {
	return &domain.Address{
		ID:      d.ID,
		UserID:  d.UserID,
		Street:  d.Street,
		City:    d.City,
		State:   d.State,
		ZipCode: d.ZipCode,
		Country: d.Country,
	}
}
