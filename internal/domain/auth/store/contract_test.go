package store

import (
	"context"
	"sync"
	"testing"

	"assetdesk-client/internal/domain/auth/model"
)

// runContract exercises the behaviour every driver must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(context.Background(), model.KeyAccessToken)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if ok || v != "" {
			t.Fatalf("expected absent key, got %q", v)
		}
	})

	t.Run("set get remove", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.Set(ctx, model.KeyAccessToken, "a1"); err != nil {
			t.Fatalf("Set error: %v", err)
		}
		v, ok, err := s.Get(ctx, model.KeyAccessToken)
		if err != nil || !ok || v != "a1" {
			t.Fatalf("Get = %q %v %v", v, ok, err)
		}
		if err := s.Set(ctx, model.KeyAccessToken, "a2"); err != nil {
			t.Fatalf("overwrite error: %v", err)
		}
		if v, _, _ := s.Get(ctx, model.KeyAccessToken); v != "a2" {
			t.Fatalf("expected overwritten value, got %q", v)
		}
		if err := s.Remove(ctx, model.KeyAccessToken); err != nil {
			t.Fatalf("Remove error: %v", err)
		}
		if _, ok, _ := s.Get(ctx, model.KeyAccessToken); ok {
			t.Fatalf("expected key removed")
		}
		// removing twice is fine
		if err := s.Remove(ctx, model.KeyAccessToken); err != nil {
			t.Fatalf("second Remove error: %v", err)
		}
	})

	t.Run("set all and clear all", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		want := map[string]string{
			model.KeyAccessToken:  "access",
			model.KeyRefreshToken: "refresh",
			model.KeyUser:         `{"username":"admin"}`,
		}
		if err := s.SetAll(ctx, want); err != nil {
			t.Fatalf("SetAll error: %v", err)
		}
		got, err := s.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll error: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("GetAll = %v, want %v", got, want)
		}
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("GetAll[%s] = %q, want %q", k, got[k], v)
			}
		}

		if err := s.ClearAll(ctx); err != nil {
			t.Fatalf("ClearAll error: %v", err)
		}
		for _, key := range model.SessionKeys {
			if _, ok, _ := s.Get(ctx, key); ok {
				t.Fatalf("%s survived ClearAll", key)
			}
		}
		got, err = s.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll after clear error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty snapshot, got %v", got)
		}
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.Set(ctx, model.KeyUser, "u"); err != nil {
			t.Fatalf("Set error: %v", err)
		}
		snap, _ := s.GetAll(ctx)
		snap[model.KeyUser] = "mutated"
		if v, _, _ := s.Get(ctx, model.KeyUser); v != "u" {
			t.Fatalf("snapshot mutation leaked into store: %q", v)
		}
	})

	t.Run("readers never see a half written pair", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		pair := func(i int) map[string]string {
			v := string(rune('a' + i%26))
			return map[string]string{model.KeyAccessToken: "access-" + v, model.KeyRefreshToken: "refresh-" + v}
		}
		if err := s.SetAll(ctx, pair(0)); err != nil {
			t.Fatalf("SetAll error: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i < 30; i++ {
				if err := s.SetAll(ctx, pair(i)); err != nil {
					t.Errorf("SetAll error: %v", err)
					return
				}
			}
		}()
		for i := 0; i < 30; i++ {
			snap, err := s.GetAll(ctx)
			if err != nil {
				t.Fatalf("GetAll error: %v", err)
			}
			a, r := snap[model.KeyAccessToken], snap[model.KeyRefreshToken]
			if a[len("access-"):] != r[len("refresh-"):] {
				t.Fatalf("torn read: %q / %q", a, r)
			}
		}
		wg.Wait()
	})
}
