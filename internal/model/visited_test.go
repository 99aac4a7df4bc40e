package model

import (
	"errors"
	"testing"
)

func TestVisitedMap(t *testing.T) {
	t.Parallel()

	t.Run("marks a url pending only once", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		if !v.MarkPending("http://x.test/") {
			t.Fatal("expected first MarkPending to succeed")
		}
		if v.MarkPending("http://x.test/") {
			t.Error("expected second MarkPending to be refused")
		}
		if v.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", v.Len())
		}
	})

	t.Run("resolve records status", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		v.MarkPending("http://x.test/")
		v.Resolve("http://x.test/", 200)

		o, ok := v.Get("http://x.test/")
		if !ok {
			t.Fatal("expected entry")
		}
		if o.State != StateResolved || o.StatusCode != 200 {
			t.Errorf("expected resolved 200, got %+v", o)
		}
	})

	t.Run("resolved status is never overwritten", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		v.MarkPending("http://x.test/old")
		v.Resolve("http://x.test/old", 301)
		v.Resolve("http://x.test/old", 200)
		v.Fail("http://x.test/old", errors.New("late failure"))

		o, _ := v.Get("http://x.test/old")
		if o.State != StateResolved || o.StatusCode != 301 {
			t.Errorf("expected resolved 301, got %+v", o)
		}
	})

	t.Run("fail records the reason", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		v.MarkPending("http://down.test/")
		v.Fail("http://down.test/", errors.New("connection refused"))

		o, _ := v.Get("http://down.test/")
		if o.State != StateFailed {
			t.Errorf("expected failed, got %s", o.State)
		}
		if o.Err != "connection refused" {
			t.Errorf("expected error text, got %q", o.Err)
		}
	})

	t.Run("unknown urls are ignored", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		v.Resolve("http://nowhere.test/", 200)
		v.Fail("http://nowhere.test/", nil)
		if v.Has("http://nowhere.test/") {
			t.Error("expected unknown url to stay absent")
		}
	})

	t.Run("keys keep insertion order", func(t *testing.T) {
		t.Parallel()

		v := NewVisitedMap()
		urls := []string{"http://x.test/c", "http://x.test/a", "http://x.test/b"}
		for _, u := range urls {
			v.MarkPending(u)
		}
		v.Resolve("http://x.test/a", 404)

		keys := v.Keys()
		for i := range urls {
			if keys[i] != urls[i] {
				t.Fatalf("expected order %v, got %v", urls, keys)
			}
		}
		if v.PendingCount() != 2 {
			t.Errorf("expected 2 pending, got %d", v.PendingCount())
		}
	})
}
