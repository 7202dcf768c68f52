package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyRecord is returned when there is no payload to canonicalize.
	ErrEmptyRecord = errors.New("empty client record")
	// ErrNoIdentifier is returned when a payload carries no identifier under any alias.
	ErrNoIdentifier = errors.New("client record has no identifier")
	// ErrNotObject is returned when a payload is not a JSON object.
	ErrNotObject = errors.New("client payload is not a JSON object")
)

// Canonical field names. Every alias seen at the network boundary is mapped
// onto exactly one of these.
const (
	FieldID        = "id"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldStatus    = "status"
	FieldService   = "serviceNeeded"
	FieldDueDate   = "dueDate"
)

// FieldAliases is the single alias policy for non-identifier fields.
var FieldAliases = map[string][]string{
	FieldFirstName: {"firstname", "first_name", "firstName"},
	FieldLastName:  {"lastname", "last_name", "lastName"},
	FieldEmail:     {"email", "emailAddress", "email_address"},
	FieldPhone:     {"phone", "phoneNumber", "phone_number", "mobile"},
	FieldStatus:    {"status", "leadStatus", "lead_status"},
	FieldService:   {"serviceNeeded", "service_needed", "service"},
	FieldDueDate:   {"dueDate", "due_date", "edd"},
}

// PHIFields are stripped from summary (non-detailed) responses.
var PHIFields = []string{
	"dueDate", "due_date", "edd",
	"healthHistory", "health_history",
	"medications", "allergies",
	"pregnancyComplications", "pregnancy_complications",
	"insurance", "insuranceProvider", "insurance_provider",
}

// userFallbackFields may be read from the nested user object when absent on the record.
var userFallbackFields = map[string]bool{
	FieldFirstName: true,
	FieldLastName:  true,
	FieldEmail:     true,
	FieldPhone:     true,
}

// Client is the canonical shape of a lead after boundary normalization.
type Client struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    string
	Service   string
	DueDate   string
	// Aliases is the CanonicalIdentifierSet of the source payload.
	Aliases []string
	Raw     Record
}

// DisplayName returns "First Last", falling back to email, then the ID.
func (c Client) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	return c.ID
}

// Record renders the client back into a record keyed by canonical field names.
// Identifier aliases present on the source payload are carried over so that
// Matches keeps working on the canonical shape.
func (c Client) Record() Record {
	out := Record{FieldID: c.ID}
	for _, field := range IdentifierFields {
		if v := stringValue(c.Raw[field]); v != "" && field != FieldID {
			out[field] = v
		}
	}
	if user := asMap(c.Raw["user"]); user != nil {
		out["user"] = user
	}
	set := func(field, value string) {
		if value != "" {
			out[field] = value
		}
	}
	set(FieldFirstName, c.FirstName)
	set(FieldLastName, c.LastName)
	set(FieldEmail, c.Email)
	set(FieldPhone, c.Phone)
	set(FieldStatus, c.Status)
	set(FieldService, c.Service)
	set(FieldDueDate, c.DueDate)
	return out
}

// Canonicalize maps every known alias of r onto the canonical Client shape.
func Canonicalize(r Record) (Client, error) {
	if len(r) == 0 {
		return Client{}, ErrEmptyRecord
	}

	aliases := CollectIdentifiers(r)
	if len(aliases) == 0 {
		return Client{}, ErrNoIdentifier
	}

	c := Client{
		ID:      aliases[0],
		Aliases: aliases,
		Raw:     r,
	}
	c.FirstName = normalizeName(lookupField(r, FieldFirstName))
	c.LastName = normalizeName(lookupField(r, FieldLastName))
	c.Email = strings.ToLower(lookupField(r, FieldEmail))
	c.Phone = lookupField(r, FieldPhone)
	c.Status = lookupField(r, FieldStatus)
	c.Service = lookupField(r, FieldService)
	c.DueDate = lookupField(r, FieldDueDate)

	return c, nil
}

// ParseRecord decodes a JSON object into a Record. Numbers are kept as json.Number
// so numeric identifiers survive without float formatting.
func ParseRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode client payload: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Record(m), nil
}

// ParseRecords decodes either a JSON array of objects or a single object.
func ParseRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyRecord
	}
	if trimmed[0] != '[' {
		r, err := ParseRecord(trimmed)
		if err != nil {
			return nil, err
		}
		return []Record{r}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode client payloads: %w", err)
	}
	records := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: %w", i, ErrNotObject)
		}
		records = append(records, Record(m))
	}
	return records, nil
}

// StripPHI returns a shallow copy of r without protected health fields.
func StripPHI(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, field := range PHIFields {
		delete(out, field)
	}
	return out
}

func lookupField(r Record, canonical string) string {
	for _, alias := range FieldAliases[canonical] {
		if v := stringValue(r[alias]); v != "" {
			return v
		}
	}
	if !userFallbackFields[canonical] {
		return ""
	}
	if user := asMap(r["user"]); user != nil {
		for _, alias := range FieldAliases[canonical] {
			if v := stringValue(user[alias]); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizeName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
