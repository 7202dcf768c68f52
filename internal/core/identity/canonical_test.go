package identity

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		want    Client
		wantErr error
	}{
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrEmptyRecord,
		},
		{
			name:    "no identifier",
			record:  Record{"email": "a@b.com"},
			wantErr: ErrNoIdentifier,
		},
		{
			name: "snake case request form payload",
			record: Record{
				"request_form_id": "rf-7",
				"first_name":      "  Ada ",
				"last_name":       "Lovelace",
				"email_address":   "ADA@Example.com",
				"phone_number":    "555-0100",
				"service_needed":  "Postpartum",
				"due_date":        "2026-11-02",
			},
			want: Client{
				ID:        "rf-7",
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     "ada@example.com",
				Phone:     "555-0100",
				Service:   "Postpartum",
				DueDate:   "2026-11-02",
				Aliases:   []string{"rf-7"},
			},
		},
		{
			name: "lowercase names and nested user contact details",
			record: Record{
				"uuid":      "u-1",
				"firstname": "Grace",
				"lastname":  "Hopper",
				"status":    "new",
				"user":      map[string]any{"id": "usr-1", "email": "grace@example.com", "mobile": "555-0199"},
			},
			want: Client{
				ID:        "u-1",
				FirstName: "Grace",
				LastName:  "Hopper",
				Email:     "grace@example.com",
				Phone:     "555-0199",
				Status:    "new",
				Aliases:   []string{"u-1", "usr-1"},
			},
		},
		{
			name: "top-level field wins over nested user",
			record: Record{
				"id":    "c-1",
				"phone": "111",
				"user":  map[string]any{"phone": "222"},
			},
			want: Client{ID: "c-1", Phone: "111", Aliases: []string{"c-1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.record)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Canonicalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Canonicalize() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Client{}, "Raw")); diff != "" {
				t.Errorf("Canonicalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCanonicalize_EveryFieldAlias(t *testing.T) {
	for canonical, aliases := range FieldAliases {
		for _, alias := range aliases {
			t.Run(canonical+"/"+alias, func(t *testing.T) {
				c, err := Canonicalize(Record{"id": "x", alias: "Value"})
				if err != nil {
					t.Fatalf("Canonicalize() unexpected error: %v", err)
				}
				got := c.Record()[canonical]
				want := "Value"
				if canonical == FieldEmail {
					want = "value"
				}
				if got != want {
					t.Errorf("Record()[%q] = %v, want %q", canonical, got, want)
				}
			})
		}
	}
}

func TestClientRecord_KeepsIdentifierAliases(t *testing.T) {
	raw := Record{"id": "primary", "leadId": "lead-9", "first_name": "Ada"}
	c, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize() unexpected error: %v", err)
	}
	r := c.Record()
	for _, id := range []string{"primary", "lead-9"} {
		if !Matches(r, id) {
			t.Errorf("canonical record does not match %q", id)
		}
	}
	if _, ok := r["first_name"]; ok {
		t.Error("canonical record kept a non-canonical alias field")
	}
	if r[FieldFirstName] != "Ada" {
		t.Errorf("Record()[firstName] = %v, want Ada", r[FieldFirstName])
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		client Client
		want   string
	}{
		{Client{ID: "c", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{Client{ID: "c", LastName: "Lovelace"}, "Lovelace"},
		{Client{ID: "c", Email: "a@b.com"}, "a@b.com"},
		{Client{ID: "c"}, "c"},
	}
	for _, tt := range tests {
		if got := tt.client.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord([]byte(`{"id": 12345678901234567890, "email": "a@b.com"}`))
	if err != nil {
		t.Fatalf("ParseRecord() unexpected error: %v", err)
	}
	if !Matches(r, "12345678901234567890") {
		t.Errorf("large numeric id did not survive decoding: %v", r["id"])
	}

	if _, err := ParseRecord([]byte(`[1, 2]`)); !errors.Is(err, ErrNotObject) {
		t.Errorf("ParseRecord(array) error = %v, want ErrNotObject", err)
	}
	if _, err := ParseRecord([]byte(`{`)); err == nil {
		t.Error("ParseRecord(truncated) expected error")
	}
}

func TestParseRecords(t *testing.T) {
	records, err := ParseRecords([]byte(` [{"id":"a"}, {"uuid":"b"}] `))
	if err != nil {
		t.Fatalf("ParseRecords() unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(ParseRecords()) = %d, want 2", len(records))
	}

	single, err := ParseRecords([]byte(`{"id":"a"}`))
	if err != nil || len(single) != 1 {
		t.Fatalf("ParseRecords(object) = %v, %v; want one record", single, err)
	}

	if _, err := ParseRecords([]byte(`[{"id":"a"}, 3]`)); !errors.Is(err, ErrNotObject) {
		t.Errorf("ParseRecords(mixed) error = %v, want ErrNotObject", err)
	}
	if _, err := ParseRecords(nil); !errors.Is(err, ErrEmptyRecord) {
		t.Errorf("ParseRecords(nil) error = %v, want ErrEmptyRecord", err)
	}
}

func TestStripPHI(t *testing.T) {
	r := Record{"id": "a", "dueDate": "2026-01-01", "medications": "none", "email": "a@b.com"}
	got := StripPHI(r)
	want := Record{"id": "a", "email": "a@b.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StripPHI() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := r["dueDate"]; !ok {
		t.Error("StripPHI() mutated its input")
	}
}
