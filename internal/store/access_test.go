package store_test

import (
	"testing"

	"github.com/starford/mimir/internal/testutil"
)

func TestLogAccessRequiresSession(t *testing.T) {
	db := testutil.TestStore(t)

	// No session set: nothing is recorded.
	if err := db.LogAccess(0, "get", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	// No ids touched: nothing is recorded either.
	if err := db.LogAccess(42, "scan", nil); err != nil {
		t.Fatal(err)
	}
	log, err := db.AccessLog()
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 0 {
		t.Fatalf("log = %v, want empty", log)
	}

	if err := db.LogAccess(42, "scan", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	log, err = db.AccessLog()
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("log rows = %d, want 2", len(log))
	}
	if log[0].Session != 42 || log[0].Op != "scan" || log[0].EntryID != "a" {
		t.Errorf("row = %+v", log[0])
	}
}
