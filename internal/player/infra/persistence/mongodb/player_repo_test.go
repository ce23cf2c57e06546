package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"

	"PlayerSync/internal/player/errs"
	"PlayerSync/internal/player/infra/persistence/model"
)

func TestContended_两次查询之间被解锁仍按被占用返回(t *testing.T) {
	doc := &model.PlayerRecordDoc{PlayerID: "p1", Payload: []byte("x"), Locked: false, UpdatedAt: time.Unix(100, 0)}
	rec := contended(doc)
	if !rec.Locked {
		t.Fatalf("期望没拿到锁的读返回 Locked=true")
	}
	if rec.ID != "p1" || string(rec.Payload) != "x" {
		t.Fatalf("期望其余字段原样返回, got=%+v", rec)
	}
}

func TestContended_已被锁时保留加锁时间(t *testing.T) {
	at := time.Unix(200, 0)
	rec := contended(&model.PlayerRecordDoc{PlayerID: "p1", Locked: true, LockedAt: &at})
	if !rec.Locked || !rec.LockedAt.Equal(at) {
		t.Fatalf("期望 Locked=true LockedAt=%v, got=%+v", at, rec)
	}
}

func TestRecordUpdate_保持加锁时只补缺失的加锁时间(t *testing.T) {
	now := time.Unix(300, 0)
	got := recordUpdate([]byte("p"), false, now)
	want := bson.M{
		"$set": bson.M{"payload": []byte("p"), "locked": true, "updated_at": now},
		"$min": bson.M{"locked_at": now},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update 不符 (-want +got):\n%s", diff)
	}
}

func TestRecordUpdate_解锁时清掉加锁时间(t *testing.T) {
	now := time.Unix(300, 0)
	got := recordUpdate([]byte{}, true, now)
	want := bson.M{
		"$set":   bson.M{"payload": []byte{}, "locked": false, "updated_at": now},
		"$unset": bson.M{"locked_at": ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update 不符 (-want +got):\n%s", diff)
	}
}

func TestPlayerRepo_没有连接时返回后端错误(t *testing.T) {
	r := NewPlayerRepo(nil, "db", "")
	_, err := r.GetRecord(context.Background(), "p1", true)
	if !errors.Is(err, errs.ErrBackendUnavailable) {
		t.Fatalf("期望 BackendUnavailable, err=%v", err)
	}
}
