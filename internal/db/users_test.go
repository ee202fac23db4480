package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/db"
	"github.com/wuwenbin0122/finbot/internal/models"
)

func exerciseUsers(t *testing.T, store auth.UserStore) string {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	now := time.Now().UTC().Truncate(time.Millisecond)

	user := models.User{
		ID:           uuid.NewString(),
		Username:     "Erin" + suffix,
		Email:        "erin" + suffix + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	dupName := user
	dupName.ID = uuid.NewString()
	dupName.Email = "other" + suffix + "@example.com"
	dupName.Username = "erin" + suffix
	if err := store.CreateUser(ctx, dupName); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}

	dupEmail := user
	dupEmail.ID = uuid.NewString()
	dupEmail.Username = "frank" + suffix
	dupEmail.Email = "ERIN" + suffix + "@example.com"
	if err := store.CreateUser(ctx, dupEmail); !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	for _, identifier := range []string{"erin" + suffix, user.Email} {
		found, err := store.FindUser(ctx, identifier)
		if err != nil {
			t.Fatalf("find %q failed: %v", identifier, err)
		}
		if found == nil || found.ID != user.ID || found.PasswordHash != "hash" {
			t.Fatalf("expected user %s for %q, got %+v", user.ID, identifier, found)
		}
	}

	missing, err := store.FindUser(ctx, "nobody"+suffix)
	if err != nil || missing != nil {
		t.Fatalf("expected no match, got %+v err=%v", missing, err)
	}

	later := now.Add(time.Hour)
	if err := store.TouchUser(ctx, user.ID, later); err != nil {
		t.Fatalf("touch user failed: %v", err)
	}
	found, _ := store.FindUser(ctx, user.Username)
	if !found.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated at %v, got %v", later, found.UpdatedAt)
	}
	if err := store.TouchUser(ctx, uuid.NewString(), later); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	return user.ID
}

func TestMemoryUsers(t *testing.T) {
	exerciseUsers(t, db.NewMemory())
}

func TestPostgresUsers(t *testing.T) {
	store := connectPostgres(t)
	userID := exerciseUsers(t, store)
	store.Pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", userID)
}
