package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autorename/autorename/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Store = (*MongoStore)(nil)

// Collection names match the layout the bot has always used in MongoDB.
const (
	collUsers      = "users"
	collThumbnails = "thumbnails"
	collCaptions   = "captions"
	collFormats    = "rename_formats"
	collAffixes    = "affixes"
	collMetadata   = "metadata"
	collAdmins     = "admins"
	collChannels   = "force_sub_channels"
	collSequences  = "sequences"
)

// MongoStore keys every per-user document by _id = user id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects and pings before returning.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Connected to MongoDB", map[string]interface{}{
		"database": dbName,
	})
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "rename_count", Value: -1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create leaderboard index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) c(name string) *mongo.Collection {
	return s.db.Collection(name)
}

var upsert = options.Update().SetUpsert(true)

// Users

func (s *MongoStore) UpsertUser(ctx context.Context, p Profile) error {
	update := bson.M{
		"$set": bson.M{"username": p.Username, "first_name": p.FirstName},
		"$setOnInsert": bson.M{
			"joined_date":  time.Now(),
			"rename_count": int64(0),
			"is_banned":    false,
		},
	}
	_, err := s.c(collUsers).UpdateOne(ctx, bson.M{"_id": p.UserID}, update, upsert)
	return unavailable("upsert user", err)
}

func (s *MongoStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := s.c(collUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return &u, nil
}

func (s *MongoStore) IncrementRenameCount(ctx context.Context, userID int64) error {
	update := bson.M{
		"$inc":         bson.M{"rename_count": int64(1)},
		"$setOnInsert": bson.M{"joined_date": time.Now(), "is_banned": false},
	}
	_, err := s.c(collUsers).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("increment rename count", err)
}

func (s *MongoStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	update := bson.M{
		"$set":         bson.M{"is_banned": banned},
		"$setOnInsert": bson.M{"joined_date": time.Now(), "rename_count": int64(0)},
	}
	_, err := s.c(collUsers).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("set ban flag", err)
}

func (s *MongoStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	n, err := s.c(collUsers).CountDocuments(ctx, bson.M{"_id": userID, "is_banned": true})
	if err != nil {
		return false, unavailable("check ban flag", err)
	}
	return n > 0, nil
}

func (s *MongoStore) ListBanned(ctx context.Context) ([]int64, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1})
	return s.findIDs(ctx, collUsers, "list banned users", bson.M{"is_banned": true}, opts)
}

func (s *MongoStore) ListUserIDs(ctx context.Context, limit int64) ([]int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1}).
		SetLimit(limit)
	return s.findIDs(ctx, collUsers, "list users", bson.M{}, opts)
}

func (s *MongoStore) findIDs(ctx context.Context, coll, op string, filter bson.M, opts *options.FindOptions) ([]int64, error) {
	cur, err := s.c(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var doc struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			logger.Warn("Skipping undecodable document", map[string]interface{}{
				"collection": coll,
				"error":      err.Error(),
			})
			continue
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return ids, nil
}

func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.c(collUsers).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, unavailable("count users", err)
	}
	return n, nil
}

func (s *MongoStore) Leaderboard(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rename_count", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c(collUsers).Find(ctx, bson.M{"rename_count": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, unavailable("load leaderboard", err)
	}
	defer cur.Close(ctx)

	var entries []LeaderboardEntry
	for cur.Next(ctx) {
		var u User
		if err := cur.Decode(&u); err != nil {
			return nil, unavailable("load leaderboard", err)
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        len(entries) + 1,
			UserID:      u.UserID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			RenameCount: u.RenameCount,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("load leaderboard", err)
	}
	return entries, nil
}

func (s *MongoStore) RankOf(ctx context.Context, userID int64) (int, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil || u == nil || u.RenameCount == 0 {
		return 0, err
	}

	ahead, err := s.c(collUsers).CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"rename_count": bson.M{"$gt": u.RenameCount}},
		bson.M{"rename_count": u.RenameCount, "_id": bson.M{"$lt": userID}},
	}})
	if err != nil {
		return 0, unavailable("rank user", err)
	}
	return int(ahead) + 1, nil
}

// Single-field documents

func (s *MongoStore) getField(ctx context.Context, coll, field string, userID int64) (string, bool, error) {
	var doc bson.M
	opts := options.FindOne().SetProjection(bson.M{field: 1})
	err := s.c(coll).FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get "+field, err)
	}
	v, ok := doc[field].(string)
	return v, ok, nil
}

func (s *MongoStore) setField(ctx context.Context, coll, field string, userID int64, value string) error {
	update := bson.M{"$set": bson.M{field: value, "updated_at": time.Now()}}
	_, err := s.c(coll).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("set "+field, err)
}

func (s *MongoStore) unsetField(ctx context.Context, coll, field string, userID int64) (bool, error) {
	filter := bson.M{"_id": userID, field: bson.M{"$exists": true}}
	res, err := s.c(coll).UpdateOne(ctx, filter, bson.M{"$unset": bson.M{field: ""}})
	if err != nil {
		return false, unavailable("delete "+field, err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *MongoStore) GetFormat(ctx context.Context, userID int64) (string, bool, error) {
	return s.getField(ctx, collFormats, "format", userID)
}

func (s *MongoStore) SetFormat(ctx context.Context, userID int64, format string) error {
	return s.setField(ctx, collFormats, "format", userID, format)
}

func (s *MongoStore) GetCaption(ctx context.Context, userID int64) (string, bool, error) {
	return s.getField(ctx, collCaptions, "caption", userID)
}

func (s *MongoStore) SetCaption(ctx context.Context, userID int64, caption string) error {
	return s.setField(ctx, collCaptions, "caption", userID, caption)
}

func (s *MongoStore) DeleteCaption(ctx context.Context, userID int64) (bool, error) {
	return s.unsetField(ctx, collCaptions, "caption", userID)
}

func (s *MongoStore) GetAffix(ctx context.Context, userID int64, kind AffixKind) (string, bool, error) {
	return s.getField(ctx, collAffixes, string(kind), userID)
}

func (s *MongoStore) SetAffix(ctx context.Context, userID int64, kind AffixKind, value string) error {
	return s.setField(ctx, collAffixes, string(kind), userID, value)
}

func (s *MongoStore) DeleteAffix(ctx context.Context, userID int64, kind AffixKind) (bool, error) {
	return s.unsetField(ctx, collAffixes, string(kind), userID)
}

func (s *MongoStore) GetThumbnail(ctx context.Context, userID int64) (*Thumbnail, error) {
	var t Thumbnail
	err := s.c(collThumbnails).FindOne(ctx, bson.M{"_id": userID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get thumbnail", err)
	}
	return &t, nil
}

func (s *MongoStore) SetThumbnail(ctx context.Context, userID int64, thumb Thumbnail) error {
	if thumb.UpdatedAt.IsZero() {
		thumb.UpdatedAt = time.Now()
	}
	update := bson.M{"$set": bson.M{
		"file_id":        thumb.FileID,
		"file_unique_id": thumb.FileUniqueID,
		"updated_at":     thumb.UpdatedAt,
	}}
	_, err := s.c(collThumbnails).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("set thumbnail", err)
}

func (s *MongoStore) DeleteThumbnail(ctx context.Context, userID int64) (bool, error) {
	res, err := s.c(collThumbnails).DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, unavailable("delete thumbnail", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) GetMetadata(ctx context.Context, userID int64) (Metadata, error) {
	var m Metadata
	err := s.c(collMetadata).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, unavailable("get metadata", err)
	}
	return m, nil
}

func (s *MongoStore) UpdateMetadata(ctx context.Context, userID int64, patch MetadataPatch) error {
	set := bson.M{"updated_at": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Author != nil {
		set["author"] = *patch.Author
	}
	_, err := s.c(collMetadata).UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, upsert)
	return unavailable("update metadata", err)
}

func (s *MongoStore) ClearMetadata(ctx context.Context, userID int64) (bool, error) {
	filter := bson.M{"_id": userID, "$or": bson.A{
		bson.M{"title": bson.M{"$nin": bson.A{nil, ""}}},
		bson.M{"author": bson.M{"$nin": bson.A{nil, ""}}},
	}}
	res, err := s.c(collMetadata).DeleteOne(ctx, filter)
	if err != nil {
		return false, unavailable("clear metadata", err)
	}
	return res.DeletedCount > 0, nil
}

// Admins

func (s *MongoStore) AddAdmin(ctx context.Context, userID int64) error {
	update := bson.M{"$setOnInsert": bson.M{"added_at": time.Now()}}
	_, err := s.c(collAdmins).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("add admin", err)
}

func (s *MongoStore) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	res, err := s.c(collAdmins).DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, unavailable("remove admin", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	n, err := s.c(collAdmins).CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, unavailable("check admin", err)
	}
	return n > 0, nil
}

func (s *MongoStore) ListAdmins(ctx context.Context) ([]Admin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c(collAdmins).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, unavailable("list admins", err)
	}
	defer cur.Close(ctx)

	var admins []Admin
	if err := cur.All(ctx, &admins); err != nil {
		return nil, unavailable("list admins", err)
	}
	return admins, nil
}

// Channels

func (s *MongoStore) AddChannel(ctx context.Context, username string) error {
	update := bson.M{"$setOnInsert": bson.M{"added_at": time.Now()}}
	_, err := s.c(collChannels).UpdateOne(ctx, bson.M{"_id": NormalizeChannel(username)}, update, upsert)
	return unavailable("add channel", err)
}

func (s *MongoStore) RemoveChannel(ctx context.Context, username string) (bool, error) {
	res, err := s.c(collChannels).DeleteOne(ctx, bson.M{"_id": NormalizeChannel(username)})
	if err != nil {
		return false, unavailable("remove channel", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) ListChannels(ctx context.Context) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c(collChannels).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, unavailable("list channels", err)
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var doc struct {
			Username string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, unavailable("list channels", err)
		}
		names = append(names, doc.Username)
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("list channels", err)
	}
	return names, nil
}

// Sequences. $push on a filter that requires is_active keeps appends atomic.

func (s *MongoStore) StartSequence(ctx context.Context, userID int64) error {
	update := bson.M{"$set": bson.M{
		"is_active":  true,
		"files":      bson.A{},
		"started_at": time.Now(),
	}}
	_, err := s.c(collSequences).UpdateOne(ctx, bson.M{"_id": userID}, update, upsert)
	return unavailable("start sequence", err)
}

func (s *MongoStore) AppendSequence(ctx context.Context, userID int64, item FileRef) (bool, error) {
	res, err := s.c(collSequences).UpdateOne(ctx,
		bson.M{"_id": userID, "is_active": true},
		bson.M{"$push": bson.M{"files": item}},
	)
	if err != nil {
		return false, unavailable("append sequence item", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) EndSequence(ctx context.Context, userID int64) ([]FileRef, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var seq Sequence
	err := s.c(collSequences).FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "ended_at": time.Now()}},
		opts,
	).Decode(&seq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("end sequence", err)
	}
	return seq.Items, true, nil
}

func (s *MongoStore) GetSequence(ctx context.Context, userID int64) (*Sequence, error) {
	var seq Sequence
	err := s.c(collSequences).FindOne(ctx, bson.M{"_id": userID}).Decode(&seq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get sequence", err)
	}
	return &seq, nil
}
