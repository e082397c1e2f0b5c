package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func testDB(t *testing.T, specs []CollectionSpec) *Database {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", 1, specs, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := testDB(t, []CollectionSpec{{Name: "widgets"}})
	ctx := context.Background()

	err := db.Update(ctx, []string{"widgets"}, func(tx *Tx) error {
		c, err := tx.Collection("widgets")
		if err != nil {
			return err
		}
		return c.Put("a", []byte(`{"n":1}`))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = db.View(ctx, []string{"widgets"}, func(tx *Tx) error {
		c, err := tx.Collection("widgets")
		if err != nil {
			return err
		}
		v, ok, err := c.Get("a")
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected key a to exist")
		}
		var decoded struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(v, &decoded); err != nil {
			return err
		}
		if decoded.N != 1 {
			t.Fatalf("decoded.N = %d, want 1", decoded.N)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	err = db.Update(ctx, []string{"widgets"}, func(tx *Tx) error {
		c, err := tx.Collection("widgets")
		if err != nil {
			return err
		}
		return c.Delete("a")
	})
	if err != nil {
		t.Fatalf("Update delete: %v", err)
	}

	err = db.View(ctx, []string{"widgets"}, func(tx *Tx) error {
		c, err := tx.Collection("widgets")
		if err != nil {
			return err
		}
		ok, err := c.Contains("a")
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("expected key a to be gone after delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View after delete: %v", err)
	}
}

func TestSetFailsOnExistingKey(t *testing.T) {
	db := testDB(t, []CollectionSpec{{Name: "widgets"}})
	ctx := context.Background()
	err := db.Update(ctx, []string{"widgets"}, func(tx *Tx) error {
		c, err := tx.Collection("widgets")
		if err != nil {
			return err
		}
		if err := c.Set("a", []byte(`{}`)); err != nil {
			return err
		}
		err = c.Set("a", []byte(`{}`))
		if err != ErrKeyExists {
			t.Fatalf("expected ErrKeyExists, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestCollectionNotOpened(t *testing.T) {
	db := testDB(t, []CollectionSpec{{Name: "a"}, {Name: "b"}})
	ctx := context.Background()
	err := db.View(ctx, []string{"a"}, func(tx *Tx) error {
		_, err := tx.Collection("b")
		return err
	})
	if err == nil {
		t.Fatal("expected error accessing unopened collection")
	}
}

// TestRangeQueryBackward exercises Scenario F from spec §8: keys id-1..id-5,
// range [id-2, id-4] backward limit 2 returns id-4 then id-3.
func TestRangeQueryBackward(t *testing.T) {
	db := testDB(t, []CollectionSpec{{Name: "items"}})
	ctx := context.Background()
	err := db.Update(ctx, []string{"items"}, func(tx *Tx) error {
		c, err := tx.Collection("items")
		if err != nil {
			return err
		}
		for i := 1; i <= 5; i++ {
			key := idKey(i)
			if err := c.Put(key, []byte(`"`+key+`"`)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []string
	err = db.View(ctx, []string{"items"}, func(tx *Tx) error {
		c, err := tx.Collection("items")
		if err != nil {
			return err
		}
		values, err := c.GetAll(Range(Included("id-2"), Included("id-4")), Backward, 2)
		if err != nil {
			return err
		}
		for _, v := range values {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			got = append(got, s)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	want := []string{"id-4", "id-3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestUniqueIndexViolation(t *testing.T) {
	db := testDB(t, []CollectionSpec{{
		Name: "rooms",
		Indexes: []Index{
			{Name: "name_lower", Path: "name_lower", Unique: true},
		},
	}})
	ctx := context.Background()
	err := db.Update(ctx, []string{"rooms"}, func(tx *Tx) error {
		c, err := tx.Collection("rooms")
		if err != nil {
			return err
		}
		if err := c.Put("room-1", []byte(`{"name_lower":"team"}`)); err != nil {
			return err
		}
		err = c.Put("room-2", []byte(`{"name_lower":"team"}`))
		if err == nil {
			t.Fatal("expected unique index violation")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func idKey(i int) string {
	return "id-" + string(rune('0'+i))
}
