package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// maxBatch caps how many change events are drained into one batch.
const maxBatch = 100

// ChangeKind classifies one entry of a listener batch.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	// ChangeUnavailable is a document that no longer matches isAvailable = true.
	ChangeUnavailable
	// ChangeRemoved is a deleted document. Item is zero apart from ID.
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeUnavailable:
		return "unavailable"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one remote item change delivered to a listener.
type Change struct {
	Kind ChangeKind
	ID   string
	Item models.Item
}

// Items is the remote items collection.
type Items struct {
	coll *mongo.Collection
}

func NewItems(db *mongo.Database) *Items {
	return &Items{coll: db.Collection("items")}
}

// Get returns errs.ErrNotFound when no document has the id.
func (c *Items) Get(ctx context.Context, id string) (models.Item, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	it, ok := ItemFromDoc(doc)
	if !ok {
		return models.Item{}, fmt.Errorf("item %s: undecodable document: %w", id, errs.ErrNotFound)
	}
	return it, nil
}

// Set writes the full item document, creating it when missing.
func (c *Items) Set(ctx context.Context, it models.Item) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": it.ID}, ItemDoc(it), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set item %s: %w", it.ID, err)
	}
	return nil
}

func (c *Items) Delete(ctx context.Context, id string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

func (c *Items) UpdateAvailability(ctx context.Context, id string, available bool, at int64) error {
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isAvailable": available, "lastUpdated": at}})
	if err != nil {
		return fmt.Errorf("update availability %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// FindAvailable is the one-shot form of the listener query.
func (c *Items) FindAvailable(ctx context.Context) ([]models.Item, error) {
	return c.find(ctx, bson.M{"isAvailable": true})
}

func (c *Items) FindByCategory(ctx context.Context, category models.Category) ([]models.Item, error) {
	return c.find(ctx, bson.M{"category": string(category), "isAvailable": true})
}

// FindBySeller includes the seller's unavailable listings.
func (c *Items) FindBySeller(ctx context.Context, sellerID string) ([]models.Item, error) {
	return c.find(ctx, bson.M{"sellerId": sellerID})
}

func (c *Items) find(ctx context.Context, filter bson.M) ([]models.Item, error) {
	cursor, err := c.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "lastUpdated", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	items := make([]models.Item, 0, len(docs))
	for _, doc := range docs {
		if it, ok := ItemFromDoc(doc); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

// WatchAvailable hands the complete set of available items to onSnapshot, then
// every later change to handle in batches until ctx is done or the stream
// fails. The returned error is nil only when ctx was cancelled.
func (c *Items) WatchAvailable(ctx context.Context, onSnapshot func(context.Context, []models.Item) error, handle func(context.Context, []Change) error) error {
	// open the stream before the snapshot so nothing written in between is lost
	stream, err := c.coll.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	snapshot, err := c.FindAvailable(ctx)
	if err != nil {
		return err
	}
	if err := onSnapshot(ctx, snapshot); err != nil {
		return err
	}

	for stream.Next(ctx) {
		batch := appendEvent(nil, stream)
		for len(batch) < maxBatch && stream.TryNext(ctx) {
			batch = appendEvent(batch, stream)
		}
		if len(batch) == 0 {
			continue
		}
		if err := handle(ctx, batch); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream: %w", err)
	}
	return nil
}

func appendEvent(batch []Change, stream *mongo.ChangeStream) []Change {
	var event bson.M
	if err := stream.Decode(&event); err != nil {
		log.Warn().Err(err).Msg("skipping undecodable change event")
		return batch
	}
	if ch, ok := ChangeFromEvent(event); ok {
		batch = append(batch, ch)
	}
	return batch
}

// ChangeFromEvent maps a change stream event to a Change. Events that do not
// concern a single item document are dropped.
func ChangeFromEvent(event bson.M) (Change, bool) {
	op, _ := event["operationType"].(string)
	id := docID(asM(event["documentKey"])["_id"])

	switch op {
	case "delete":
		if id == "" {
			return Change{}, false
		}
		return Change{Kind: ChangeRemoved, ID: id}, true
	case "insert", "update", "replace":
		full := asM(event["fullDocument"])
		if full == nil {
			// the document was deleted before the lookup ran
			if id == "" {
				return Change{}, false
			}
			return Change{Kind: ChangeRemoved, ID: id}, true
		}
		it, ok := ItemFromDoc(full)
		if !ok {
			return Change{}, false
		}
		switch {
		case !it.IsAvailable:
			return Change{Kind: ChangeUnavailable, ID: it.ID, Item: it}, true
		case op == "insert":
			return Change{Kind: ChangeAdded, ID: it.ID, Item: it}, true
		default:
			return Change{Kind: ChangeModified, ID: it.ID, Item: it}, true
		}
	default:
		return Change{}, false
	}
}

func asM(v any) bson.M {
	switch d := v.(type) {
	case bson.M:
		return d
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m
	default:
		return nil
	}
}
