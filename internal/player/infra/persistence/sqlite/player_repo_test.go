package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"PlayerSync/internal/player/app/port"
	"PlayerSync/internal/player/infra/persistence/storetest"
	sqliteinfra "PlayerSync/internal/shared/infrastructure/sqlite"
	"PlayerSync/internal/shared/serverconfig"
)

func openRepo(t *testing.T) *PlayerRepo {
	t.Helper()
	db, err := sqliteinfra.Open(context.Background(), serverconfig.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "sync.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite err=%v", err)
	}
	repo := NewPlayerRepo(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate err=%v", err)
	}
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo
}

func TestPlayerRepo_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.DurableStore {
		return openRepo(t)
	})
}

func TestPlayerRepo_Migrate可重复执行(t *testing.T) {
	repo := openRepo(t)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("第二次 Migrate err=%v", err)
	}
}
