package compliance

import (
	"strings"
	"testing"
	"time"

	"clinicbook/internal/platform/crypto"
)

func TestAuditHashDeterministic(t *testing.T) {
	event := map[string]any{
		"actorId":   "u-1",
		"action":    "ACCESS_READ_APPOINTMENTS",
		"success":   true,
		"riskLevel": "low",
	}
	first, err := AuditHash(event)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := AuditHash(event)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second {
		t.Fatalf("hash not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}
}

func TestAuditHashKeyOrderIndependent(t *testing.T) {
	// Canonicalization must make the digest independent of struct-vs-map
	// serialization order.
	a := map[string]any{"b": 2, "a": 1}
	b := map[string]any{"a": 1, "b": 2}
	ha, err := AuditHash(a)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hb, err := AuditHash(b)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ha != hb {
		t.Fatal("hash depends on key order")
	}
}

func TestAuditHashDetectsFieldChange(t *testing.T) {
	base := map[string]any{"actorId": "u-1", "success": true}
	tampered := map[string]any{"actorId": "u-1", "success": false}
	hashBase, err := AuditHash(base)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hashTampered, err := AuditHash(tampered)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hashBase == hashTampered {
		t.Fatal("hash did not change with field value")
	}
}

func TestAnonymizeStripsIdentifiersAndGeneralizesDates(t *testing.T) {
	record := map[string]any{
		"id":              "p-42",
		"name":            "Jane Roe",
		"email":           "jane@example.com",
		"phone":           "+1 555 0100",
		"dateOfBirth":     "1987-06-15",
		"appointmentDate": "2026-03-02T09:30:00Z",
		"status":          "confirmed",
	}

	out := Anonymize(record)

	for _, key := range []string{"name", "email", "phone"} {
		if _, ok := out[key]; ok {
			t.Fatalf("identifier %q survived anonymization", key)
		}
	}
	if out["dateOfBirth"] != "1987-06" {
		t.Fatalf("dateOfBirth not generalized: %v", out["dateOfBirth"])
	}
	if out["appointmentDate"] != "2026-03" {
		t.Fatalf("appointmentDate not generalized: %v", out["appointmentDate"])
	}
	if out["status"] != "confirmed" {
		t.Fatalf("non-identifier field lost: %v", out["status"])
	}
	if record["name"] != "Jane Roe" {
		t.Fatal("input record mutated")
	}
}

func TestAnonymizeHandlesTimeValues(t *testing.T) {
	record := map[string]any{
		"createdAt": time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC),
	}
	out := Anonymize(record)
	if out["createdAt"] != "2025-11" {
		t.Fatalf("time.Time not generalized: %v", out["createdAt"])
	}
}

func testCipher(t *testing.T) *FieldCipher {
	t.Helper()
	svc, err := crypto.New(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("crypto service: %v", err)
	}
	return NewFieldCipher(svc)
}

func TestFieldCipherRoundTrip(t *testing.T) {
	cipher := testCipher(t)

	sealed, err := cipher.EncryptField("diagnosis: seasonal allergies")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if sealed == "" || sealed == "diagnosis: seasonal allergies" {
		t.Fatalf("value not sealed: %q", sealed)
	}

	plain, err := cipher.DecryptField(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "diagnosis: seasonal allergies" {
		t.Fatalf("round trip lost data: %q", plain)
	}
}

func TestFieldCipherRejectsTamperedValue(t *testing.T) {
	cipher := testCipher(t)

	sealed, err := cipher.EncryptField("sensitive")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := []byte(sealed)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}
	if _, err := cipher.DecryptField(string(tampered)); err == nil {
		t.Fatal("tampered value decrypted")
	}

	if _, err := cipher.DecryptField("not base64 at all!!"); err == nil {
		t.Fatal("garbage input decrypted")
	}
}

func TestValidateMinimumNecessary(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		fields []string
		want   bool
	}{
		{"billing within list", "billing", []string{"id", "invoiceStatus"}, true},
		{"billing reaching for PHI", "billing", []string{"id", "medicalHistory"}, false},
		{"clinician full clinical set", "clinician", []string{"medicalHistory", "allergies", "medications"}, true},
		{"unknown role nonempty", "janitor", []string{"id"}, false},
		{"unknown role empty", "janitor", nil, true},
		{"empty request allowed", "patient", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateMinimumNecessary(tc.role, tc.fields); got != tc.want {
				t.Fatalf("ValidateMinimumNecessary(%q, %v) = %v, want %v", tc.role, tc.fields, got, tc.want)
			}
		})
	}
}
