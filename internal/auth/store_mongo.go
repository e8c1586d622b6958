// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// # Mongo User Repository

const userCollection = "users"

// userDocument is the stored shape of a [User]. Optional fields are omitted
// when empty so the partial google_id index only sees linked accounts.
type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	AvatarURL    string    `bson:"avatar_url,omitempty"`
	Provider     string    `bson:"provider"`
	GoogleID     string    `bson:"google_id,omitempty"`
	IsActive     bool      `bson:"is_active"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoUserRepository implements [UserRepository] on a document collection.
type MongoUserRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

/*
NewMongoUserRepository binds the repository to the users collection and
ensures its unique indexes exist.

Parameters:
  - ctx: context.Context (bounds index creation)
  - db: *mongo.Database

Returns:
  - *MongoUserRepository: Ready repository
  - error: Index creation failures
*/
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	collection := db.Collection(userCollection)

	if _, err := collection.Indexes().CreateMany(ctx, userIndexes()); err != nil {
		return nil, fmt.Errorf("mongo_user_repo_create_indexes_failed: %w", err)
	}

	return &MongoUserRepository{collection: collection, now: time.Now}, nil
}

// userIndexes enforce the same uniqueness as the relational schema. The
// google_id index only covers documents that carry the field.
func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(constraintEmailKey).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().
				SetName(constraintGoogleIDKey).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"google_id": bson.M{"$exists": true}}),
		},
	}
}

// Create inserts a new user document.
func (repository *MongoUserRepository) Create(ctx context.Context, user *User) error {
	now := repository.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := repository.collection.InsertOne(ctx, toDocument(user)); err != nil {
		return mapMongoWriteError("mongo_user_repo_create_failed", err)
	}

	return nil
}

// FindByEmail looks up a user by its stored (already normalized) email.
func (repository *MongoUserRepository) FindByEmail(ctx context.Context, email string, filter LookupFilter) (*User, error) {
	query := bson.M{"email": email}
	if filter.Provider != "" {
		query["provider"] = string(filter.Provider)
	}
	if filter.ActiveOnly {
		query["is_active"] = true
	}

	return repository.findOne(ctx, query, "mongo_user_repo_find_by_email_failed")
}

// FindByGoogleID looks up the user linked to a Google subject.
func (repository *MongoUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return repository.findOne(ctx, bson.M{"google_id": googleID}, "mongo_user_repo_find_by_google_id_failed")
}

// Update saves the profile fields a Google login may resync. An empty
// avatar or google id removes the field from the document.
func (repository *MongoUserRepository) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = repository.now()

	result, err := repository.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, profileUpdate(user))
	if err != nil {
		return mapMongoWriteError("mongo_user_repo_update_failed", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// profileUpdate builds the update document for [MongoUserRepository.Update].
// Empty optional fields are unset rather than stored as "".
func profileUpdate(user *User) bson.M {
	set := bson.M{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"updated_at": user.UpdatedAt,
	}
	unset := bson.M{}

	if user.AvatarURL != "" {
		set["avatar_url"] = user.AvatarURL
	} else {
		unset["avatar_url"] = ""
	}
	if user.GoogleID != "" {
		set["google_id"] = user.GoogleID
	} else {
		unset["google_id"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// Deactivate flips is_active off.
func (repository *MongoUserRepository) Deactivate(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": repository.now()}}

	result, err := repository.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mongo_user_repo_deactivate_failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete removes the document. Used only to undo a half-finished signup.
func (repository *MongoUserRepository) Delete(ctx context.Context, id string) error {
	if _, err := repository.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo_user_repo_delete_failed: %w", err)
	}
	return nil
}

// # Helpers

func (repository *MongoUserRepository) findOne(ctx context.Context, query bson.M, op string) (*User, error) {
	var document userDocument

	err := repository.collection.FindOne(ctx, query).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return fromDocument(&document), nil
}

func toDocument(user *User) *userDocument {
	return &userDocument{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PasswordHash: user.PasswordHash,
		AvatarURL:    user.AvatarURL,
		Provider:     string(user.Provider),
		GoogleID:     user.GoogleID,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func fromDocument(document *userDocument) *User {
	return &User{
		ID:           document.ID,
		Email:        document.Email,
		FirstName:    document.FirstName,
		LastName:     document.LastName,
		PasswordHash: document.PasswordHash,
		AvatarURL:    document.AvatarURL,
		Provider:     Provider(document.Provider),
		GoogleID:     document.GoogleID,
		IsActive:     document.IsActive,
		CreatedAt:    document.CreatedAt,
		UpdatedAt:    document.UpdatedAt,
	}
}

// mapMongoWriteError translates E11000 duplicate key errors into domain
// sentinels. The server names the violated index in the error message.
func mapMongoWriteError(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch message := err.Error(); {
	case strings.Contains(message, constraintGoogleIDKey):
		return ErrDuplicateGoogleID
	case strings.Contains(message, constraintEmailKey):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
