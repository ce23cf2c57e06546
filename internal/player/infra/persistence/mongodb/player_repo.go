package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/entity"
	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/infra/persistence/model"
)

const defaultPlayerCollectionName = "player_records"

const (
	OpGetRecord    = "repo.mongo.GetRecord"
	OpUpdateRecord = "repo.mongo.UpdateRecord"
	OpSetLock      = "repo.mongo.SetLock"
)

type PlayerRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ port.DurableStore = (*PlayerRepo)(nil)

func NewPlayerRepo(client *mongo.Client, database, collection string) *PlayerRepo {
	if collection == "" {
		collection = defaultPlayerCollectionName
	}
	r := &PlayerRepo{client: client, now: time.Now}
	if client != nil {
		r.coll = client.Database(database).Collection(collection)
	}
	return r
}

func (r *PlayerRepo) collection(op string, id entity.PlayerID) (*mongo.Collection, error) {
	if r == nil || r.coll == nil {
		return nil, errs.Backend(op, id.String(), errors.New("mongodb player collection is nil"))
	}
	return r.coll, nil
}

// GetRecord 加锁用 FindOneAndUpdate(locked=false) 取更新前的文档，读和加锁是一次原子操作。
func (r *PlayerRepo) GetRecord(ctx context.Context, id entity.PlayerID, acquireLock bool) (*entity.PlayerRecord, error) {
	coll, err := r.collection(OpGetRecord, id)
	if err != nil {
		return nil, err
	}

	if !acquireLock {
		doc, err := r.find(ctx, coll, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrRecordNotFound.WithData("player_id", id.String())
		}
		if err != nil {
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}
		return doc.ToEntity(), nil
	}

	// 第二轮只在并发插入冲突时出现
	for attempt := 0; attempt < 2; attempt++ {
		now := r.now()
		var before model.PlayerRecordDoc
		err = coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id.String(), "locked": false},
			bson.M{"$set": bson.M{"locked": true, "locked_at": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if err == nil {
			return before.ToEntity(), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}

		// 要么已被锁，要么记录不存在
		doc, err := r.find(ctx, coll, id)
		if err == nil {
			return contended(doc), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}

		_, err = coll.InsertOne(ctx, model.PlayerRecordDoc{
			PlayerID:  id.String(),
			Payload:   []byte{},
			Locked:    true,
			LockedAt:  &now,
			UpdatedAt: now,
		})
		if err == nil {
			return entity.NewPlayerRecord(id, now), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, errs.Backend(OpGetRecord, id.String(), err)
		}
	}
	return nil, errs.Backend(OpGetRecord, id.String(), errors.New("concurrent insert did not settle"))
}

// contended 条件加锁没命中时的读结果：这次调用没拿到锁，按被占用返回，哪怕两次查询之间对方刚好解锁。
func contended(doc *model.PlayerRecordDoc) *entity.PlayerRecord {
	rec := doc.ToEntity()
	rec.Locked = true
	return rec
}

// recordUpdate 解锁时清掉 locked_at；保持加锁时 $min 只在字段缺失时写入 now，已有的加锁时间不动。
func recordUpdate(payload []byte, unlock bool, now time.Time) bson.M {
	update := bson.M{
		"$set": bson.M{
			"payload":    payload,
			"locked":     !unlock,
			"updated_at": now,
		},
	}
	if unlock {
		update["$unset"] = bson.M{"locked_at": ""}
	} else {
		update["$min"] = bson.M{"locked_at": now}
	}
	return update
}

func (r *PlayerRepo) find(ctx context.Context, coll *mongo.Collection, id entity.PlayerID) (*model.PlayerRecordDoc, error) {
	var doc model.PlayerRecordDoc
	if err := coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *PlayerRepo) UpdateRecord(ctx context.Context, id entity.PlayerID, rec *entity.PlayerRecord, unlock bool) error {
	coll, err := r.collection(OpUpdateRecord, id)
	if err != nil {
		return err
	}
	now := r.now()
	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err = coll.UpdateOne(ctx, bson.M{"_id": id.String()}, recordUpdate(payload, unlock, now), options.UpdateOne().SetUpsert(true))
	if err != nil {
		return errs.Backend(OpUpdateRecord, id.String(), err)
	}
	return nil
}

func (r *PlayerRepo) SetLock(ctx context.Context, id entity.PlayerID, locked bool) error {
	coll, err := r.collection(OpSetLock, id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": id.String()}
	var update bson.M
	if locked {
		update = bson.M{"$set": bson.M{"locked": true, "locked_at": r.now()}}
		// 已经是锁定状态时保留原加锁时间
		filter["locked"] = false
	} else {
		update = bson.M{"$set": bson.M{"locked": false}, "$unset": bson.M{"locked_at": ""}}
	}

	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errs.Backend(OpSetLock, id.String(), err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return errs.Backend(OpSetLock, id.String(), err)
	}
	if n == 0 {
		return errs.ErrRecordNotFound.WithData("player_id", id.String())
	}
	return nil
}

func (r *PlayerRepo) Close(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
