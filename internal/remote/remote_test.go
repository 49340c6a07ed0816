package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

func TestItemFromDoc_Tolerant(t *testing.T) {
	doc := bson.M{
		"_id":         "42",
		"title":       "Cycle",
		"price":       int32(2500),
		"category":    "sports",
		"condition":   "bogus",
		"imageUrls":   "https://img/1.jpg",
		"sellerId":    "u1",
		"latitude":    int64(12),
		"lastUpdated": int64(1700000000000),
	}
	it, ok := ItemFromDoc(doc)
	require.True(t, ok)
	assert.Equal(t, 2500.0, it.Price)
	assert.Equal(t, models.CategorySports, it.Category)
	assert.Equal(t, models.ConditionGood, it.Condition)
	assert.Equal(t, []string{"https://img/1.jpg"}, it.ImageURLs)
	assert.Nil(t, it.Coordinates, "a half pair is dropped")
	assert.True(t, it.IsAvailable)
	assert.Equal(t, int64(1700000000000), it.LastUpdated)

	doc["imageUrls"] = bson.A{"a", 7, "b"}
	doc["longitude"] = 77.5
	doc["isAvailable"] = false
	it, ok = ItemFromDoc(doc)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, it.ImageURLs)
	assert.Equal(t, &models.Coordinates{Latitude: 12, Longitude: 77.5}, it.Coordinates)
	assert.False(t, it.IsAvailable)

	_, ok = ItemFromDoc(bson.M{"_id": "1", "sellerId": "u1"})
	assert.False(t, ok, "missing title")
	_, ok = ItemFromDoc(bson.M{"_id": "1", "title": "x"})
	assert.False(t, ok, "missing seller")
}

func TestItemDoc_RoundTrip(t *testing.T) {
	name := "Asha"
	it := models.Item{
		ID:             "42",
		Title:          "Lamp",
		Description:    "Brass",
		Price:          100,
		Category:       models.CategoryFurniture,
		Condition:      models.ConditionNew,
		ImageURLs:      []string{"u1"},
		SellerID:       "s1",
		SellerName:     &name,
		Coordinates:    &models.Coordinates{Latitude: 1, Longitude: 2},
		IsAvailable:    true,
		LastUpdated:    9,
		PendingUpload:  true,
		LocalImageRefs: []string{"spool/x"},
	}
	doc := ItemDoc(it)
	assert.NotContains(t, doc, "pendingUpload")
	assert.NotContains(t, doc, "localImageRefs")

	back, ok := ItemFromDoc(doc)
	require.True(t, ok)
	it.PendingUpload = false
	it.LocalImageRefs = nil
	assert.Equal(t, it, back)
}

func TestUserFromDoc(t *testing.T) {
	oid := primitive.NewObjectID()
	u, ok := UserFromDoc(bson.M{"_id": oid, "phoneNumber": "+91", "displayName": "Ravi", "lastUpdated": 3.0})
	require.True(t, ok)
	assert.Equal(t, oid.Hex(), u.UID)
	assert.Equal(t, "Ravi", *u.DisplayName)
	assert.Nil(t, u.Location)
	assert.Equal(t, int64(3), u.LastUpdated)

	_, ok = UserFromDoc(bson.M{"phoneNumber": "+91"})
	assert.False(t, ok)

	doc := UserDoc(models.User{UID: "u1", PhoneNumber: "+91"})
	assert.Equal(t, "u1", doc["uid"])
	assert.NotContains(t, doc, "displayName")
}

func TestChangeFromEvent(t *testing.T) {
	full := bson.M{"_id": "42", "title": "Lamp", "sellerId": "u1", "isAvailable": true}

	ch, ok := ChangeFromEvent(bson.M{"operationType": "insert", "documentKey": bson.M{"_id": "42"}, "fullDocument": full})
	require.True(t, ok)
	assert.Equal(t, ChangeAdded, ch.Kind)

	ch, ok = ChangeFromEvent(bson.M{"operationType": "update", "documentKey": bson.D{{Key: "_id", Value: "42"}}, "fullDocument": full})
	require.True(t, ok)
	assert.Equal(t, ChangeModified, ch.Kind)

	gone := bson.M{"_id": "42", "title": "Lamp", "sellerId": "u1", "isAvailable": false}
	ch, ok = ChangeFromEvent(bson.M{"operationType": "update", "documentKey": bson.M{"_id": "42"}, "fullDocument": gone})
	require.True(t, ok)
	assert.Equal(t, ChangeUnavailable, ch.Kind)

	ch, ok = ChangeFromEvent(bson.M{"operationType": "delete", "documentKey": bson.M{"_id": "42"}})
	require.True(t, ok)
	assert.Equal(t, Change{Kind: ChangeRemoved, ID: "42"}, ch)

	ch, ok = ChangeFromEvent(bson.M{"operationType": "update", "documentKey": bson.M{"_id": "42"}})
	require.True(t, ok)
	assert.Equal(t, ChangeRemoved, ch.Kind)

	_, ok = ChangeFromEvent(bson.M{"operationType": "invalidate"})
	assert.False(t, ok)
}

func TestItems_Mocked(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get", func(mt *mtest.T) {
		items := &Items{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "42"}, {Key: "title", Value: "Lamp"}, {Key: "sellerId", Value: "u1"}, {Key: "price", Value: 200.0},
		}))

		it, err := items.Get(ctx, "42")
		require.NoError(mt, err)
		assert.Equal(mt, 200.0, it.Price)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		items := &Items{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := items.Get(ctx, "nope")
		require.ErrorIs(mt, err, errs.ErrNotFound)
	})

	mt.Run("find available skips undecodable documents", func(mt *mtest.T) {
		items := &Items{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "1"}, {Key: "title", Value: "A"}, {Key: "sellerId", Value: "u1"}},
			bson.D{{Key: "_id", Value: "2"}, {Key: "title", Value: "no seller"}},
		))

		got, err := items.FindAvailable(ctx)
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, "1", got[0].ID)
	})

	mt.Run("update availability of missing item", func(mt *mtest.T) {
		items := &Items{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := items.UpdateAvailability(ctx, "nope", false, 1)
		require.ErrorIs(mt, err, errs.ErrNotFound)
	})

	mt.Run("set", func(mt *mtest.T) {
		items := &Items{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		require.NoError(mt, items.Set(ctx, models.Item{ID: "42", Title: "Lamp", SellerID: "u1"}))
	})
}

func TestUsers_Mocked(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get", func(mt *mtest.T) {
		users := &Users{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"}, {Key: "phoneNumber", Value: "+919876543210"}, {Key: "location", Value: "Pune"},
		}))

		u, err := users.Get(ctx, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", u.UID)
		require.NotNil(mt, u.Location)
		assert.Equal(mt, "Pune", *u.Location)
	})

	mt.Run("update location", func(mt *mtest.T) {
		users := &Users{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		require.NoError(mt, users.UpdateLocation(ctx, "u1", "Pune", nil, 5))
	})

	mt.Run("delete", func(mt *mtest.T) {
		users := &Users{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, users.Delete(ctx, "u1"))
	})
}
