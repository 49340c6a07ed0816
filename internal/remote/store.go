// Package remote is the hosted document store: the items and users collections
// and the live subscription to available items.
package remote

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store groups the collections of one database.
type Store struct {
	Items *Items
	Users *Users
	db    *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{Items: NewItems(db), Users: NewUsers(db), db: db}
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}
