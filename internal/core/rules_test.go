package core

import (
	"context"
	"slices"
	"testing"
	"time"

	"agentbook/pkg/domain"
)

type staticView struct {
	contacts     []domain.Contact
	policies     []domain.Policy
	contracts    []domain.Contract
	appointments []domain.Appointment
}

func (v staticView) ListContacts() []domain.Contact         { return v.contacts }
func (v staticView) ListPolicies() []domain.Policy          { return v.policies }
func (v staticView) ListContracts() []domain.Contract       { return v.contracts }
func (v staticView) ListAppointments() []domain.Appointment { return v.appointments }

func (v staticView) FindContact(nric string) (domain.Contact, bool) {
	i := slices.IndexFunc(v.contacts, func(c domain.Contact) bool { return c.NRIC == nric })
	if i < 0 {
		return domain.Contact{}, false
	}
	return v.contacts[i], true
}

func (v staticView) FindPolicy(id string) (domain.Policy, bool) {
	i := slices.IndexFunc(v.policies, func(p domain.Policy) bool { return p.ID == id })
	if i < 0 {
		return domain.Policy{}, false
	}
	return v.policies[i], true
}

func (v staticView) FindContract(id string) (domain.Contract, bool) {
	i := slices.IndexFunc(v.contracts, func(c domain.Contract) bool { return c.ID == id })
	if i < 0 {
		return domain.Contract{}, false
	}
	return v.contracts[i], true
}

func (v staticView) FindAppointment(id string) (domain.Appointment, bool) {
	i := slices.IndexFunc(v.appointments, func(a domain.Appointment) bool { return a.ID == id })
	if i < 0 {
		return domain.Appointment{}, false
	}
	return v.appointments[i], true
}

func TestReferentialIntegrityRuleConsistentView(t *testing.T) {
	view := staticView{
		contacts:  []domain.Contact{{NRIC: "S1", ContractIDs: []string{"C1", "C2"}}, {NRIC: "S2"}},
		policies:  []domain.Policy{{ID: "P1", ContractIDs: []string{"C1", "C2"}}},
		contracts: []domain.Contract{{ID: "C1", NRIC: "S1", PolicyID: "P1"}, {ID: "C2", NRIC: "S1", PolicyID: "P1"}},
	}
	res, err := ReferentialIntegrityRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
}

func TestReferentialIntegrityRuleReportsBreaks(t *testing.T) {
	view := staticView{
		contacts: []domain.Contact{{NRIC: "S1", ContractIDs: []string{"C2", "C1"}}},
		policies: []domain.Policy{{ID: "P1", ContractIDs: []string{"C1"}}},
		contracts: []domain.Contract{
			{ID: "C1", NRIC: "S1", PolicyID: "P1"},
			{ID: "C2", NRIC: "S1", PolicyID: "P9"},
			{ID: "C3", NRIC: "ghost", PolicyID: "P1"},
		},
		appointments: []domain.Appointment{{ID: "A1", NRIC: "ghost"}},
	}
	res, err := ReferentialIntegrityRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violations")
	}
	got := make(map[string]bool)
	for _, v := range res.Violations {
		if v.Rule != RuleReferentialIntegrity {
			t.Fatalf("unexpected rule %s", v.Rule)
		}
		got[string(v.Entity)+":"+v.EntityID] = true
	}
	for _, want := range []string{"contract:C2", "contract:C3", "contact:S1", "policy:P1", "appointment:A1"} {
		if !got[want] {
			t.Fatalf("expected violation for %s, got %+v", want, res.Violations)
		}
	}
}

func TestContractExpiredRule(t *testing.T) {
	now := func() time.Time { return time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC) }
	rule := ContractExpiredRule(now)
	expired := domain.Contract{ID: "C1", Expiry: domain.MustDate("2025-03-09")}
	today := domain.Contract{ID: "C2", Expiry: domain.MustDate("2025-03-10")}
	changes := []domain.Change{
		{Entity: domain.EntityContract, Action: domain.ActionCreate, After: expired},
		{Entity: domain.EntityContract, Action: domain.ActionCreate, After: today},
		{Entity: domain.EntityContract, Action: domain.ActionDelete, Before: expired},
		{Entity: domain.EntityContract, Action: domain.ActionUpdate, Before: expired, After: expired},
		{Entity: domain.EntityPolicy, Action: domain.ActionCreate, After: domain.Policy{ID: "P1"}},
	}
	res, err := rule.Evaluate(context.Background(), staticView{}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "C1" || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected single warning for C1, got %+v", res.Violations)
	}
}

func TestNewDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	engine := NewDefaultRulesEngine(nil)
	if got := engine.Rules(); !slices.Equal(got, []string{RuleReferentialIntegrity, RuleContractExpired}) {
		t.Fatalf("unexpected rules %v", got)
	}
}
