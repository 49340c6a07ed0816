package remote

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// Users is the remote users collection, keyed by uid.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection("users")}
}

// Get returns errs.ErrNotFound when the profile document does not exist.
func (c *Users) Get(ctx context.Context, uid string) (models.User, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, fmt.Errorf("user %s: %w", uid, errs.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	u, ok := UserFromDoc(doc)
	if !ok {
		return models.User{}, fmt.Errorf("user %s: undecodable document: %w", uid, errs.ErrNotFound)
	}
	return u, nil
}

// Set replaces the whole profile document.
func (c *Users) Set(ctx context.Context, u models.User) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": u.UID}, UserDoc(u), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set user %s: %w", u.UID, err)
	}
	return nil
}

// Merge writes the profile's present fields over the stored document, leaving
// fields the profile does not carry untouched.
func (c *Users) Merge(ctx context.Context, u models.User) error {
	fields := UserDoc(u)
	delete(fields, "_id")
	return c.update(ctx, u.UID, bson.M{"$set": fields})
}

// update applies the update document, creating the profile when missing.
func (c *Users) update(ctx context.Context, uid string, update bson.M) error {
	_, err := c.coll.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	return nil
}

// UpdateLocation sets the location text and replaces the coordinate pair. Nil
// coordinates remove both halves.
func (c *Users) UpdateLocation(ctx context.Context, uid, location string, coords *models.Coordinates, at int64) error {
	set := bson.M{"location": location, "lastUpdated": at}
	update := bson.M{"$set": set}
	if coords != nil {
		set["latitude"] = coords.Latitude
		set["longitude"] = coords.Longitude
	} else {
		update["$unset"] = bson.M{"latitude": "", "longitude": ""}
	}
	return c.update(ctx, uid, update)
}

func (c *Users) UpdateProfileImage(ctx context.Context, uid, url string, at int64) error {
	return c.update(ctx, uid, bson.M{"$set": bson.M{"profileImageUrl": url, "lastUpdated": at}})
}

func (c *Users) Delete(ctx context.Context, uid string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": uid}); err != nil {
		return fmt.Errorf("delete user %s: %w", uid, err)
	}
	return nil
}
