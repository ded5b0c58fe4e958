package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "airwaves.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStringRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := db.GetString("missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := db.SetString(KeyProfiles, `[{"id":"a"}]`); err != nil {
		t.Fatal(err)
	}
	if err := db.SetString(KeyProfiles, `[{"id":"b"}]`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetString(KeyProfiles)
	if err != nil || !ok {
		t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
	}
	if v != `[{"id":"b"}]` {
		t.Fatalf("expected replaced value, got %q", v)
	}

	if err := db.Delete(KeyProfiles); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.GetString(KeyProfiles); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestTypedValues(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetFloat(KeyStreamVolume); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := db.FloatOr(KeyStreamVolume, 1); got != 1 {
		t.Fatalf("expected default 1, got %v", got)
	}

	if err := db.SetFloat(KeyStreamVolume, 0.25); err != nil {
		t.Fatal(err)
	}
	if got := db.FloatOr(KeyStreamVolume, 1); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}

	if err := db.SetBool(KeyVisualizationEnabled, false); err != nil {
		t.Fatal(err)
	}
	if got := db.BoolOr(KeyVisualizationEnabled, true); got {
		t.Fatal("expected stored false")
	}

	// Garbage falls back to the default instead of failing.
	if err := db.SetString(KeyVisualizationEnabled, "maybe"); err != nil {
		t.Fatal(err)
	}
	if got := db.BoolOr(KeyVisualizationEnabled, true); !got {
		t.Fatal("expected default true for unparsable bool")
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airwaves.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetString(KeyTheme, "dark"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	if got := db2.StringOr(KeyTheme, "light"); got != "dark" {
		t.Fatalf("expected dark after reopen, got %q", got)
	}
}
