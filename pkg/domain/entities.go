// Package domain defines the core records, edit descriptors, error kinds, and
// rule evaluation primitives used by agentbook.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, errors and persistence buckets.
const (
	// EntityContact identifies a client contact keyed by national ID.
	EntityContact EntityType = "contact"
	// EntityPolicy identifies an insurance policy keyed by policy ID.
	EntityPolicy EntityType = "policy"
	// EntityContract identifies a contact's subscription to a policy.
	EntityContract EntityType = "contract"
	// EntityAppointment identifies a scheduled meeting with a contact.
	EntityAppointment EntityType = "appointment"
)

// DateLayout is the wire format used for Date values.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day component.
type Date struct {
	time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a DateLayout string.
func ParseDate(value string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return Date{Time: t}, nil
}

// MustDate parses value and panics on error. Intended for fixtures.
func MustDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// Equal reports whether both dates name the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as a DateLayout string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a DateLayout string or an empty string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Money is an amount in cents.
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Contact is a client of the agent, identified by national ID.
type Contact struct {
	NRIC    string   `json:"nric"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email"`
	Address string   `json:"address"`
	Tags    []string `json:"tags"`
	// ContractIDs is derived from the contract index on read and never persisted.
	ContractIDs []string `json:"-"`
}

// IdentityKey returns the national ID.
func (c Contact) IdentityKey() string { return c.NRIC }

// Equal compares every stored field. Derived back-references are excluded.
func (c Contact) Equal(other Contact) bool {
	return c.NRIC == other.NRIC &&
		c.Name == other.Name &&
		c.Phone == other.Phone &&
		c.Email == other.Email &&
		c.Address == other.Address &&
		slices.Equal(c.Tags, other.Tags)
}

// Clone returns a deep copy.
func (c Contact) Clone() Contact {
	cp := c
	cp.Tags = cloneStrings(c.Tags)
	cp.ContractIDs = cloneStrings(c.ContractIDs)
	return cp
}

// Normalized returns the contact with tags sorted and de-duplicated so that set
// semantics survive value comparison.
func (c Contact) Normalized() Contact {
	c.Tags = NormalizeTags(c.Tags)
	return c
}

// Policy is an insurance product sold by the agent.
type Policy struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Details string `json:"details"`
	// ContractIDs is derived from the contract index on read and never persisted.
	ContractIDs []string `json:"-"`
}

// IdentityKey returns the policy ID.
func (p Policy) IdentityKey() string { return p.ID }

// Equal compares every stored field.
func (p Policy) Equal(other Policy) bool {
	return p.ID == other.ID && p.SameFields(other)
}

// SameFields reports whether both policies carry the same content regardless of ID.
func (p Policy) SameFields(other Policy) bool {
	return p.Name == other.Name && p.Details == other.Details
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	cp := p
	cp.ContractIDs = cloneStrings(p.ContractIDs)
	return cp
}

// Contract records a contact's subscription to a policy.
type Contract struct {
	ID          string `json:"id"`
	ContactName string `json:"contact_name"`
	NRIC        string `json:"nric"`
	PolicyID    string `json:"policy_id"`
	Signed      Date   `json:"date_signed"`
	Expiry      Date   `json:"expiry_date"`
	Premium     Money  `json:"premium"`
}

// IdentityKey returns the contract ID.
func (c Contract) IdentityKey() string { return c.ID }

// Equal compares every field.
func (c Contract) Equal(other Contract) bool {
	return c.ID == other.ID &&
		c.ContactName == other.ContactName &&
		c.NRIC == other.NRIC &&
		c.PolicyID == other.PolicyID &&
		c.Signed.Equal(other.Signed) &&
		c.Expiry.Equal(other.Expiry) &&
		c.Premium == other.Premium
}

// Clone returns a copy. Contracts hold no reference types.
func (c Contract) Clone() Contract { return c }

// ValidatePeriod ensures the signing date precedes the expiry date.
func (c Contract) ValidatePeriod() error {
	if !c.Signed.Before(c.Expiry) {
		return InvalidPeriodError{Signed: c.Signed, Expiry: c.Expiry}
	}
	return nil
}

// Appointment is a scheduled meeting with a contact.
type Appointment struct {
	ID      string `json:"id"`
	NRIC    string `json:"nric"`
	Date    Date   `json:"date"`
	Details string `json:"details"`
}

// IdentityKey returns the appointment ID.
func (a Appointment) IdentityKey() string { return a.ID }

// Equal compares every field.
func (a Appointment) Equal(other Appointment) bool {
	return a.ID == other.ID && a.NRIC == other.NRIC && a.Date.Equal(other.Date) && a.Details == other.Details
}

// Clone returns a copy.
func (a Appointment) Clone() Appointment { return a }

// PolicyDraft is a policy not yet assigned an ID, used by bulk import.
type PolicyDraft struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

// WithID pairs the draft with a generated identifier.
func (d PolicyDraft) WithID(id string) Policy {
	return Policy{ID: id, Name: d.Name, Details: d.Details}
}

// Snapshot is the plain, ordered representation of every collection.
type Snapshot struct {
	Contacts     []Contact     `json:"contacts"`
	Policies     []Policy      `json:"policies"`
	Contracts    []Contract    `json:"contracts"`
	Appointments []Appointment `json:"appointments"`
}

// NormalizeTags trims, drops empties, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
