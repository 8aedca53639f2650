package core

import (
	"context"
	"fmt"
	"slices"
	"time"

	"agentbook/pkg/domain"
)

// Built-in rule names.
const (
	RuleReferentialIntegrity = "referential_integrity"
	RuleContractExpired      = "contract_expired"
)

// NewDefaultRulesEngine returns a rules engine with the built-in rules
// registered. A nil clock uses the current UTC time.
func NewDefaultRulesEngine(now func() time.Time) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ReferentialIntegrityRule())
	engine.Register(ContractExpiredRule(now))
	return engine
}

// ReferentialIntegrityRule blocks any state where a contract points at a
// missing contact or policy, or where back-references disagree with the
// contract collection.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return RuleReferentialIntegrity }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	contracts := view.ListContracts()

	byContact := make(map[string][]string)
	byPolicy := make(map[string][]string)
	for _, contract := range contracts {
		byContact[contract.NRIC] = append(byContact[contract.NRIC], contract.ID)
		byPolicy[contract.PolicyID] = append(byPolicy[contract.PolicyID], contract.ID)
		if _, ok := view.FindContact(contract.NRIC); !ok {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityContract, contract.ID,
				fmt.Sprintf("contract %s references missing contact %s", contract.ID, contract.NRIC)))
		}
		if _, ok := view.FindPolicy(contract.PolicyID); !ok {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityContract, contract.ID,
				fmt.Sprintf("contract %s references missing policy %s", contract.ID, contract.PolicyID)))
		}
	}

	for _, contact := range view.ListContacts() {
		if !slices.Equal(contact.ContractIDs, byContact[contact.NRIC]) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityContact, contact.NRIC,
				fmt.Sprintf("contact %s back-references %v, contracts list %v", contact.NRIC, contact.ContractIDs, byContact[contact.NRIC])))
		}
	}
	for _, policy := range view.ListPolicies() {
		if !slices.Equal(policy.ContractIDs, byPolicy[policy.ID]) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityPolicy, policy.ID,
				fmt.Sprintf("policy %s back-references %v, contracts list %v", policy.ID, policy.ContractIDs, byPolicy[policy.ID])))
		}
	}

	for _, appointment := range view.ListAppointments() {
		if _, ok := view.FindContact(appointment.NRIC); !ok {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityAppointment, appointment.ID,
				fmt.Sprintf("appointment %s references missing contact %s", appointment.ID, appointment.NRIC)))
		}
	}
	return res, nil
}

func integrityViolation(entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     RuleReferentialIntegrity,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}

// ContractExpiredRule warns when a contract is created, or has its expiry
// edited, with an expiry date already in the past.
func ContractExpiredRule(now func() time.Time) domain.Rule {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return contractExpiredRule{now: now}
}

type contractExpiredRule struct {
	now func() time.Time
}

func (contractExpiredRule) Name() string { return RuleContractExpired }

func (r contractExpiredRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	today := domain.NewDate(r.now().Date())
	for _, change := range changes {
		if change.Entity != domain.EntityContract || change.Action == domain.ActionDelete {
			continue
		}
		contract, ok := change.After.(domain.Contract)
		if !ok {
			continue
		}
		if before, ok := change.Before.(domain.Contract); ok && before.Expiry.Equal(contract.Expiry) {
			continue
		}
		if contract.Expiry.Before(today) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleContractExpired,
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("contract %s expired on %s", contract.ID, contract.Expiry),
				Entity:   domain.EntityContract,
				EntityID: contract.ID,
			})
		}
	}
	return res, nil
}
