package ingest

import (
	"strings"
	"testing"
)

func TestPhoneHashDeterministic(t *testing.T) {
	a := PhoneHash("meta", "Maria", "2024-05-01T10:00:00Z")
	b := PhoneHash("meta", "Maria", "2024-05-01T10:00:00Z")
	if a != b {
		t.Fatalf("hash not deterministic: %q vs %q", a, b)
	}
	if len(a) != 15 {
		t.Fatalf("hash length = %d, want 15", len(a))
	}
	if a != strings.ToLower(a) {
		t.Fatalf("hash not lowercase: %q", a)
	}
}

func TestPhoneHashSensitivity(t *testing.T) {
	base := PhoneHash("meta", "Maria", "2024-05-01T10:00:00Z")
	variants := []string{
		PhoneHash("google", "Maria", "2024-05-01T10:00:00Z"),
		PhoneHash("meta", "Mario", "2024-05-01T10:00:00Z"),
		PhoneHash("meta", "Maria", "2024-05-01T10:00:01Z"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base hash", i)
		}
	}
}

func TestTransactionID(t *testing.T) {
	phone := PhoneHash("meta", "Maria", "2024-05-01T10:00:00Z")
	id := TransactionID("ingest", phone)

	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("transaction id %q, want prefix-hash-fragment", id)
	}
	if parts[0] != "ingest" {
		t.Errorf("prefix = %q, want ingest", parts[0])
	}
	if parts[1] != phone {
		t.Errorf("hash part = %q, want %q", parts[1], phone)
	}
	if len(parts[2]) != 8 {
		t.Errorf("fragment length = %d, want 8", len(parts[2]))
	}

	if TransactionID("ingest", phone) == id {
		t.Error("two transaction ids for the same hash should differ")
	}
}
