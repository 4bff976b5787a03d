package store

import (
	"errors"
	"fmt"
	"testing"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSetGetDelete(t *testing.T) {
	openTestDB(t)

	if err := Set("k1", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v1" {
		t.Fatalf("Get = %q, want v1", got)
	}

	if _, err := Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get absent = %v, want ErrNotFound", err)
	}

	if err := Delete("k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := Get("k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	// deleting an absent key is not an error
	if err := Delete("k1"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestScanPrefixOrder(t *testing.T) {
	openTestDB(t)

	for _, i := range []int{3, 1, 2} {
		k := fmt.Sprintf("scan:%03d", i)
		if err := Set(k, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := Set("other:1", "x"); err != nil {
		t.Fatalf("Set other: %v", err)
	}

	vals, err := ScanPrefix("scan:")
	if err != nil {
		t.Fatalf("ScanPrefix: %v", err)
	}
	want := []string{"v1", "v2", "v3"}
	if len(vals) != len(want) {
		t.Fatalf("ScanPrefix returned %d values, want %d", len(vals), len(want))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("vals[%d] = %q, want %q", i, vals[i], want[i])
		}
	}

	keys, vals2, err := ScanPrefixItems("scan:")
	if err != nil {
		t.Fatalf("ScanPrefixItems: %v", err)
	}
	if len(keys) != 3 || len(vals2) != 3 {
		t.Fatalf("ScanPrefixItems = %d keys %d vals, want 3/3", len(keys), len(vals2))
	}
	if keys[0] != "scan:001" {
		t.Fatalf("keys[0] = %q, want scan:001", keys[0])
	}
}

func TestLastInPrefix(t *testing.T) {
	openTestDB(t)

	if _, err := LastInPrefix("empty:"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LastInPrefix empty = %v, want ErrNotFound", err)
	}

	for i := 1; i <= 5; i++ {
		if err := Set(fmt.Sprintf("seq:%020d", i), fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	// a neighbor prefix must not leak into the bounded iterator
	if err := Set("ser:zzz", "neighbor"); err != nil {
		t.Fatalf("Set neighbor: %v", err)
	}

	got, err := LastInPrefix("seq:")
	if err != nil {
		t.Fatalf("LastInPrefix: %v", err)
	}
	if got != "v5" {
		t.Fatalf("LastInPrefix = %q, want v5", got)
	}
}

func TestCountAndDeletePrefix(t *testing.T) {
	openTestDB(t)

	for i := 0; i < 4; i++ {
		if err := Set(fmt.Sprintf("del:%d", i), "x"); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := Set("keep:0", "y"); err != nil {
		t.Fatalf("Set keep: %v", err)
	}

	n, err := CountPrefix("del:")
	if err != nil || n != 4 {
		t.Fatalf("CountPrefix = %d, %v; want 4", n, err)
	}

	removed, err := DeletePrefix("del:")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if removed != 4 {
		t.Fatalf("DeletePrefix removed %d, want 4", removed)
	}
	if n, _ := CountPrefix("del:"); n != 0 {
		t.Fatalf("CountPrefix after delete = %d, want 0", n)
	}
	if _, err := Get("keep:0"); err != nil {
		t.Fatalf("neighbor key deleted: %v", err)
	}
}

func TestKeyUpperBound(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc", "abd"},
		{"a\xff", "b"},
	}
	for _, c := range cases {
		got := keyUpperBound([]byte(c.in))
		if string(got) != c.want {
			t.Fatalf("keyUpperBound(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if ub := keyUpperBound([]byte{0xff, 0xff}); ub != nil {
		t.Fatalf("keyUpperBound(all 0xff) = %v, want nil", ub)
	}
}
