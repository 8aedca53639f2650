// Package memory provides the in-memory consistency store that owns the
// contact, policy, contract and appointment collections and keeps them
// mutually consistent. Durable backends wrap it and snapshot its state.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentbook/internal/collection"
	"agentbook/internal/idgen"
	"agentbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Contact aliases domain.Contact for in-memory persistence operations.
	Contact = domain.Contact
	// Policy aliases domain.Policy.
	Policy = domain.Policy
	// Contract aliases domain.Contract.
	Contract = domain.Contract
	// Appointment aliases domain.Appointment.
	Appointment = domain.Appointment
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	contacts     *collection.Collection[Contact]
	policies     *collection.Collection[Policy]
	contracts    *collection.Collection[Contract]
	appointments *collection.Collection[Appointment]
	contactRefs  refIndex
	policyRefs   refIndex
}

func newMemoryState() memoryState {
	return memoryState{
		contacts:     collection.New[Contact](domain.EntityContact),
		policies:     collection.New[Policy](domain.EntityPolicy),
		contracts:    collection.New[Contract](domain.EntityContract),
		appointments: collection.New[Appointment](domain.EntityAppointment),
		contactRefs:  make(refIndex),
		policyRefs:   make(refIndex),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		contacts:     s.contacts.Clone(),
		policies:     s.policies.Clone(),
		contracts:    s.contracts.Clone(),
		appointments: s.appointments.Clone(),
		contactRefs:  s.contactRefs.clone(),
		policyRefs:   s.policyRefs.clone(),
	}
}

func (s *memoryState) keysTaken(entity domain.EntityType) (func(string) bool, error) {
	switch entity {
	case domain.EntityPolicy:
		return s.policies.ContainsKey, nil
	case domain.EntityContract:
		return s.contracts.ContainsKey, nil
	case domain.EntityAppointment:
		return s.appointments.ContainsKey, nil
	default:
		return nil, fmt.Errorf("identifiers are not generated for %s records", entity)
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	ids    *idgen.Generator
	nowFn  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithIDGenerator replaces the default identifier generator.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClock replaces the time source handed to transactions.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		ids:    idgen.New(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(&s.state)
}

// ImportState replaces the store state with the provided snapshot after
// validating uniqueness, contract periods and every reference. The
// back-reference indices are rebuilt from the contract collection. On error the
// current state is left untouched.
func (s *Store) ImportState(_ context.Context, snapshot Snapshot) error {
	state, err := stateFromSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule
// fires, so multi-step cascades apply completely or not at all.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// GenerateIDs returns n fresh identifiers for the given entity collection.
func (s *Store) GenerateIDs(entity domain.EntityType, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return generateIDs(s.ids, &s.state, entity, n)
}

func generateIDs(g *idgen.Generator, state *memoryState, entity domain.EntityType, n int) ([]string, error) {
	taken, err := state.keysTaken(entity)
	if err != nil {
		return nil, err
	}
	return g.GenerateBatch(n, taken)
}

// ListContacts returns all contacts with their owned contract IDs.
func (s *Store) ListContacts() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContacts(&s.state)
}

// ListPolicies returns all policies with their owned contract IDs.
func (s *Store) ListPolicies() []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPolicies(&s.state)
}

// ListContracts returns all contracts in insertion order.
func (s *Store) ListContracts() []Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.contracts.Items()
}

// ListAppointments returns all appointments in insertion order.
func (s *Store) ListAppointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.appointments.Items()
}

// FindContact retrieves a contact by national ID.
func (s *Store) FindContact(nric string) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findContact(&s.state, nric)
}

// FindPolicy retrieves a policy by ID.
func (s *Store) FindPolicy(id string) (Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findPolicy(&s.state, id)
}

// FindContract retrieves a contract by ID.
func (s *Store) FindContract(id string) (Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.contracts.Find(id)
}

// FindAppointment retrieves an appointment by ID.
func (s *Store) FindAppointment(id string) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.appointments.Find(id)
}

func listContacts(state *memoryState) []Contact {
	items := state.contacts.Items()
	for i := range items {
		items[i] = decorateContact(state, items[i])
	}
	return items
}

func listPolicies(state *memoryState) []Policy {
	items := state.policies.Items()
	for i := range items {
		items[i] = decoratePolicy(state, items[i])
	}
	return items
}

func findContact(state *memoryState, nric string) (Contact, bool) {
	c, ok := state.contacts.Find(nric)
	if !ok {
		return Contact{}, false
	}
	return decorateContact(state, c), true
}

func findPolicy(state *memoryState, id string) (Policy, bool) {
	p, ok := state.policies.Find(id)
	if !ok {
		return Policy{}, false
	}
	return decoratePolicy(state, p), true
}

func contractsOf(state *memoryState, match func(Contract) bool) []Contract {
	var out []Contract
	for _, c := range state.contracts.Items() {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

func appointmentsOfContact(state *memoryState, nric string) []Appointment {
	var out []Appointment
	for _, a := range state.appointments.Items() {
		if a.NRIC == nric {
			out = append(out, a)
		}
	}
	return out
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListContacts returns all contacts within the snapshot.
func (v transactionView) ListContacts() []Contact { return listContacts(v.state) }

// ListPolicies returns all policies within the snapshot.
func (v transactionView) ListPolicies() []Policy { return listPolicies(v.state) }

// ListContracts returns all contracts within the snapshot.
func (v transactionView) ListContracts() []Contract { return v.state.contracts.Items() }

// ListAppointments returns all appointments within the snapshot.
func (v transactionView) ListAppointments() []Appointment { return v.state.appointments.Items() }

// FindContact retrieves a contact by national ID from the snapshot.
func (v transactionView) FindContact(nric string) (Contact, bool) { return findContact(v.state, nric) }

// FindPolicy retrieves a policy by ID from the snapshot.
func (v transactionView) FindPolicy(id string) (Policy, bool) { return findPolicy(v.state, id) }

// FindContract retrieves a contract by ID from the snapshot.
func (v transactionView) FindContract(id string) (Contract, bool) { return v.state.contracts.Find(id) }

// FindAppointment retrieves an appointment by ID from the snapshot.
func (v transactionView) FindAppointment(id string) (Appointment, bool) {
	return v.state.appointments.Find(id)
}

// ContractsOfContact returns the contracts held by a contact.
func (v transactionView) ContractsOfContact(nric string) []Contract {
	return contractsOf(v.state, func(c Contract) bool { return v.state.contactRefs.has(nric, c.ID) })
}

// ContractsOfPolicy returns the contracts subscribed to a policy.
func (v transactionView) ContractsOfPolicy(id string) []Contract {
	return contractsOf(v.state, func(c Contract) bool { return v.state.policyRefs.has(id, c.ID) })
}

// AppointmentsOfContact returns the appointments booked with a contact.
func (v transactionView) AppointmentsOfContact(nric string) []Appointment {
	return appointmentsOfContact(v.state, nric)
}
