package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default is memory", provider: ""},
		{name: "memory", provider: "memory"},
		{name: "unsupported", provider: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := NewStore(context.Background(), Config{Provider: tt.provider, MaxSessions: 4})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}

			// An admin signs in through a manager backed by the selected store.
			manager := NewManager(store, true)
			rec := httptest.NewRecorder()
			if _, err := manager.CreateSession(context.Background(), rec, &Data{Subject: "admin"}); err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			data, err := manager.GetSession(context.Background(), requestWithCookies(rec))
			if err != nil || data.Subject != "admin" {
				t.Fatalf("GetSession() = %+v, %v", data, err)
			}
			if err := manager.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
		})
	}
}

func TestMemoryStoreDropsLeastRecentAdminSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewMemoryStore(2)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	manager := NewManager(store, false)

	first := httptest.NewRecorder()
	second := httptest.NewRecorder()
	third := httptest.NewRecorder()
	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		if _, err := manager.CreateSession(ctx, rec, &Data{Subject: "admin"}); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}
	// Touch the first sign-in so the second becomes least recently used.
	if _, err := manager.GetSession(ctx, requestWithCookies(first)); err != nil {
		t.Fatalf("GetSession(first) error = %v", err)
	}
	if _, err := manager.CreateSession(ctx, third, &Data{Subject: "admin"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if store.Len() != 2 {
		t.Fatalf("expected 2 stored sessions, got %d", store.Len())
	}
	if _, err := manager.GetSession(ctx, requestWithCookies(second)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected second session evicted, got %v", err)
	}
	for name, rec := range map[string]*httptest.ResponseRecorder{"first": first, "third": third} {
		if _, err := manager.GetSession(ctx, requestWithCookies(rec)); err != nil {
			t.Fatalf("GetSession(%s) error = %v", name, err)
		}
	}
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return start }

	store.Set(ctx, "sid-1", &Data{Subject: "admin", CreatedAt: start.Unix()}, time.Minute)
	data, ok := store.Get(ctx, "sid-1")
	if !ok || data.Subject != "admin" {
		t.Fatalf("expected stored session, got %+v, %v", data, ok)
	}

	// The returned data is a copy.
	data.Subject = "intruder"
	if again, _ := store.Get(ctx, "sid-1"); again.Subject != "admin" {
		t.Fatalf("stored session changed through returned copy: %+v", again)
	}

	store.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, ok := store.Get(ctx, "sid-1"); ok {
		t.Fatalf("expected expired session to be gone")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session removed, got %d entries", store.Len())
	}

	store.Set(ctx, "", &Data{Subject: "admin"}, time.Minute)
	store.Set(ctx, "sid-2", nil, time.Minute)
	if store.Len() != 0 {
		t.Fatalf("expected empty key and nil data skipped, got %d entries", store.Len())
	}
}
