package store

import (
	"context"
	"testing"
	"time"
)

// storeContract exercises the capability contract against any Store.
func storeContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		if err := st.Put(ctx, []string{"users", "prefs"}, "theme", "dark"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		item, err := st.Get(ctx, []string{"users", "prefs"}, "theme")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item == nil {
			t.Fatal("Get() returned nil for existing key")
		}
		if item.Key != "theme" || item.Value != "dark" {
			t.Errorf("item = %+v", item)
		}
		if len(item.Namespace) != 2 || item.Namespace[0] != "users" {
			t.Errorf("namespace = %v", item.Namespace)
		}
	})

	t.Run("get missing is not an error", func(t *testing.T) {
		item, err := st.Get(ctx, []string{"nowhere"}, "missing")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item != nil {
			t.Error("Get() returned an item for a missing key")
		}
	})

	t.Run("upsert preserves created_at", func(t *testing.T) {
		ns := []string{"upsert"}
		if err := st.Put(ctx, ns, "k", float64(1)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		first, _ := st.Get(ctx, ns, "k")
		time.Sleep(5 * time.Millisecond)
		if err := st.Put(ctx, ns, "k", float64(2)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		second, _ := st.Get(ctx, ns, "k")

		if !first.CreatedAt.Equal(second.CreatedAt) {
			t.Errorf("created_at changed on update: %v vs %v", first.CreatedAt, second.CreatedAt)
		}
		if !second.UpdatedAt.After(second.CreatedAt) {
			t.Error("updated_at not refreshed")
		}
		if second.Value != float64(2) {
			t.Errorf("value = %v, want 2", second.Value)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ns := []string{"del"}
		if err := st.Put(ctx, ns, "k", "v"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := st.Delete(ctx, ns, "k"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if item, _ := st.Get(ctx, ns, "k"); item != nil {
			t.Error("item survived delete")
		}
		if err := st.Delete(ctx, ns, "k"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
	})

	t.Run("search without query lists namespace", func(t *testing.T) {
		ns := []string{"fruit"}
		for _, kv := range [][2]string{{"a", "apple"}, {"b", "banana"}, {"c", "cherry"}} {
			if err := st.Put(ctx, ns, kv[0], kv[1]); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
		}
		all, err := st.Search(ctx, ns, "", 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Search() returned %d items, want 3", len(all))
		}

		limited, err := st.Search(ctx, ns, "", 2)
		if err != nil {
			t.Fatalf("Search(limit) error = %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("Search(limit 2) returned %d items", len(limited))
		}
	})

	t.Run("search with query filters", func(t *testing.T) {
		matches, err := st.Search(ctx, []string{"fruit"}, "apple", 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 1 || matches[0].Key != "a" {
			t.Errorf("matches = %+v, want only the apple item", matches)
		}
	})

	t.Run("list namespaces with prefix", func(t *testing.T) {
		if err := st.Put(ctx, []string{"ws", "alpha"}, "k", "v"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := st.Put(ctx, []string{"ws", "beta"}, "k", "v"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		filtered, err := st.ListNamespaces(ctx, []string{"ws"})
		if err != nil {
			t.Fatalf("ListNamespaces() error = %v", err)
		}
		if len(filtered) != 2 {
			t.Errorf("filtered namespaces = %v, want the two ws namespaces", filtered)
		}

		all, err := st.ListNamespaces(ctx, nil)
		if err != nil {
			t.Fatalf("ListNamespaces(nil) error = %v", err)
		}
		if len(all) < 2 {
			t.Errorf("all namespaces = %v", all)
		}
	})
}

func TestNamespaceHelpers(t *testing.T) {
	ns := []string{"a", "b", "c"}
	flat := JoinNamespace(ns)
	back := SplitNamespace(flat)
	if len(back) != 3 || back[2] != "c" {
		t.Errorf("round trip = %v", back)
	}
	if !HasPrefix(ns, []string{"a", "b"}) {
		t.Error("HasPrefix missed a valid prefix")
	}
	if HasPrefix(ns, []string{"a", "x"}) {
		t.Error("HasPrefix matched a wrong prefix")
	}
	if HasPrefix([]string{"a"}, []string{"a", "b"}) {
		t.Error("HasPrefix matched a longer prefix")
	}
	if !HasPrefix(ns, nil) {
		t.Error("empty prefix must match everything")
	}
}
