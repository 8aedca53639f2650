// Package core exposes the record-keeping mutation API on top of a persistent
// store, together with the built-in consistency rules, metrics and the
// snapshot archive.
package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"agentbook/internal/collection"
	"agentbook/internal/infra/persistence/memory"
	"agentbook/pkg/domain"
)

type (
	Contact     = domain.Contact
	Policy      = domain.Policy
	Contract    = domain.Contract
	Appointment = domain.Appointment
	Result      = domain.Result
	Transaction = domain.Transaction
)

// Service exposes transactional record operations with logging and metrics.
type Service struct {
	store   domain.PersistentStore
	logger  zerolog.Logger
	metrics MetricsRecorder
	now     func() time.Time

	contacts     *collection.View[Contact]
	policies     *collection.View[Policy]
	contracts    *collection.View[Contract]
	appointments *collection.View[Appointment]
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for operation events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetricsRecorder sets the recorder observing every operation.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithClock replaces the time source used for statistics.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zerolog.Nop(),
		metrics: noopMetricsRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.contacts = collection.NewView(store.ListContacts)
	s.policies = collection.NewView(store.ListPolicies)
	s.contracts = collection.NewView(store.ListContracts)
	s.appointments = collection.NewView(store.ListAppointments)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Contacts returns the live, filterable view over contacts.
func (s *Service) Contacts() *collection.View[Contact] { return s.contacts }

// Policies returns the live, filterable view over policies.
func (s *Service) Policies() *collection.View[Policy] { return s.policies }

// Contracts returns the live, filterable view over contracts.
func (s *Service) Contracts() *collection.View[Contract] { return s.contracts }

// Appointments returns the live, filterable view over appointments.
func (s *Service) Appointments() *collection.View[Appointment] { return s.appointments }

func (s *Service) run(ctx context.Context, op string, entity domain.EntityType, key func() string, fn func(Transaction) error) (Result, error) {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	elapsed := time.Since(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("operation", op).
			Str("entity", string(entity)).
			Str("key", key()).
			Dur("duration", elapsed).
			Msg("operation failed")
		return res, err
	}
	s.logger.Debug().
		Str("operation", op).
		Str("entity", string(entity)).
		Str("key", key()).
		Dur("duration", elapsed).
		Int("violations", len(res.Violations)).
		Msg("operation committed")
	for _, v := range res.Violations {
		s.logger.Warn().
			Str("rule", v.Rule).
			Str("severity", string(v.Severity)).
			Str("entity", string(v.Entity)).
			Str("entity_id", v.EntityID).
			Msg(v.Message)
	}
	return res, nil
}

func fixed(key string) func() string { return func() string { return key } }

// AddContact persists a new contact.
func (s *Service) AddContact(ctx context.Context, contact Contact) (Contact, Result, error) {
	var created Contact
	res, err := s.run(ctx, "add_contact", domain.EntityContact, fixed(contact.NRIC), func(tx Transaction) error {
		var err error
		created, err = tx.CreateContact(contact)
		return err
	})
	return created, res, err
}

// EditContact applies edit to the contact keyed by nric.
func (s *Service) EditContact(ctx context.Context, nric string, edit domain.ContactEdit) (Contact, Result, error) {
	var updated Contact
	res, err := s.run(ctx, "edit_contact", domain.EntityContact, fixed(nric), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateContact(nric, edit)
		return err
	})
	return updated, res, err
}

// RemoveContact deletes a contact that owns no contracts and has no appointments.
func (s *Service) RemoveContact(ctx context.Context, nric string) (Result, error) {
	return s.run(ctx, "remove_contact", domain.EntityContact, fixed(nric), func(tx Transaction) error {
		return tx.DeleteContact(nric)
	})
}

// AddPolicy persists a new policy, generating its ID when empty.
func (s *Service) AddPolicy(ctx context.Context, policy Policy) (Policy, Result, error) {
	var created Policy
	res, err := s.run(ctx, "add_policy", domain.EntityPolicy, func() string { return created.ID }, func(tx Transaction) error {
		var err error
		created, err = tx.CreatePolicy(policy)
		return err
	})
	return created, res, err
}

// ImportPolicies adds a batch of policies with freshly generated IDs. The
// batch is rejected as a whole when any draft duplicates another draft or an
// existing policy.
func (s *Service) ImportPolicies(ctx context.Context, drafts []domain.PolicyDraft) ([]Policy, Result, error) {
	var created []Policy
	res, err := s.run(ctx, "import_policies", domain.EntityPolicy, fixed(""), func(tx Transaction) error {
		var err error
		created, err = tx.ImportPolicies(drafts)
		return err
	})
	return created, res, err
}

// EditPolicy applies edit to the policy keyed by id.
func (s *Service) EditPolicy(ctx context.Context, id string, edit domain.PolicyEdit) (Policy, Result, error) {
	var updated Policy
	res, err := s.run(ctx, "edit_policy", domain.EntityPolicy, fixed(id), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdatePolicy(id, edit)
		return err
	})
	return updated, res, err
}

// RemovePolicy deletes a policy that no contract references.
func (s *Service) RemovePolicy(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_policy", domain.EntityPolicy, fixed(id), func(tx Transaction) error {
		return tx.DeletePolicy(id)
	})
}

// AddContract persists a contract and links it to its contact and policy.
func (s *Service) AddContract(ctx context.Context, contract Contract) (Contract, Result, error) {
	var created Contract
	res, err := s.run(ctx, "add_contract", domain.EntityContract, func() string { return created.ID }, func(tx Transaction) error {
		var err error
		created, err = tx.CreateContract(contract)
		return err
	})
	return created, res, err
}

// EditContract applies edit to the contract keyed by id, moving its links
// when the owning contact or policy changes.
func (s *Service) EditContract(ctx context.Context, id string, edit domain.ContractEdit) (Contract, Result, error) {
	var updated Contract
	res, err := s.run(ctx, "edit_contract", domain.EntityContract, fixed(id), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateContract(id, edit)
		return err
	})
	return updated, res, err
}

// RemoveContract unlinks and deletes a contract.
func (s *Service) RemoveContract(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_contract", domain.EntityContract, fixed(id), func(tx Transaction) error {
		return tx.DeleteContract(id)
	})
}

// AddAppointment persists a new appointment for an existing contact.
func (s *Service) AddAppointment(ctx context.Context, appointment Appointment) (Appointment, Result, error) {
	var created Appointment
	res, err := s.run(ctx, "add_appointment", domain.EntityAppointment, func() string { return created.ID }, func(tx Transaction) error {
		var err error
		created, err = tx.CreateAppointment(appointment)
		return err
	})
	return created, res, err
}

// EditAppointment applies edit to the appointment keyed by id.
func (s *Service) EditAppointment(ctx context.Context, id string, edit domain.AppointmentEdit) (Appointment, Result, error) {
	var updated Appointment
	res, err := s.run(ctx, "edit_appointment", domain.EntityAppointment, fixed(id), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateAppointment(id, edit)
		return err
	})
	return updated, res, err
}

// RemoveAppointment deletes an appointment.
func (s *Service) RemoveAppointment(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_appointment", domain.EntityAppointment, fixed(id), func(tx Transaction) error {
		return tx.DeleteAppointment(id)
	})
}

// GenerateIDs returns n pairwise-unique identifiers that are free in the
// collection of entity.
func (s *Service) GenerateIDs(entity domain.EntityType, n int) ([]string, error) {
	return s.store.GenerateIDs(entity, n)
}

// HasPolicyFields reports whether a stored policy carries the same name and
// details as policy, regardless of its ID.
func (s *Service) HasPolicyFields(policy Policy) bool {
	for _, existing := range s.store.ListPolicies() {
		if existing.SameFields(policy) {
			return true
		}
	}
	return false
}

// ContractsOfContact lists the contracts owned by the contact keyed by nric.
func (s *Service) ContractsOfContact(ctx context.Context, nric string) ([]Contract, error) {
	var out []Contract
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = view.ContractsOfContact(nric)
		return nil
	})
	return out, err
}

// ContractsOfPolicy lists the contracts written against the policy keyed by id.
func (s *Service) ContractsOfPolicy(ctx context.Context, id string) ([]Contract, error) {
	var out []Contract
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = view.ContractsOfPolicy(id)
		return nil
	})
	return out, err
}

// AppointmentsOfContact lists the appointments booked for the contact keyed by nric.
func (s *Service) AppointmentsOfContact(ctx context.Context, nric string) ([]Appointment, error) {
	var out []Appointment
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = view.AppointmentsOfContact(nric)
		return nil
	})
	return out, err
}

// Verify runs the referential integrity rule over the current state.
func (s *Service) Verify(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		var err error
		res, err = ReferentialIntegrityRule().Evaluate(ctx, view, nil)
		return err
	})
	s.metrics.Observe(ctx, "verify", err == nil && !res.HasBlocking(), time.Since(start))
	if err != nil {
		return Result{}, err
	}
	s.logger.Info().Int("violations", len(res.Violations)).Msg("integrity verified")
	return res, nil
}

// Stats summarizes the stored records.
type Stats struct {
	Contacts         int          `json:"contacts"`
	Policies         int          `json:"policies"`
	Contracts        int          `json:"contracts"`
	Appointments     int          `json:"appointments"`
	ExpiredContracts int          `json:"expired_contracts"`
	TotalPremium     domain.Money `json:"total_premium"`
}

// Stats counts records and totals premiums of the current state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	today := domain.NewDate(s.now().Date())
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		stats.Contacts = len(view.ListContacts())
		stats.Policies = len(view.ListPolicies())
		stats.Appointments = len(view.ListAppointments())
		contracts := view.ListContracts()
		stats.Contracts = len(contracts)
		for _, contract := range contracts {
			stats.TotalPremium += contract.Premium
			if contract.Expiry.Before(today) {
				stats.ExpiredContracts++
			}
		}
		return nil
	})
	return stats, err
}
