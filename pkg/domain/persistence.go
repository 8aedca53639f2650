package domain

import "context"

// Transaction exposes the mutation protocols a persistence implementation must
// support within an atomic scope. Any returned error discards every change made
// through the transaction.
type Transaction interface {
	Snapshot() TransactionView

	CreateContact(Contact) (Contact, error)
	UpdateContact(nric string, edit ContactEdit) (Contact, error)
	DeleteContact(nric string) error

	CreatePolicy(Policy) (Policy, error)
	ImportPolicies(drafts []PolicyDraft) ([]Policy, error)
	UpdatePolicy(id string, edit PolicyEdit) (Policy, error)
	DeletePolicy(id string) error

	CreateContract(Contract) (Contract, error)
	UpdateContract(id string, edit ContractEdit) (Contract, error)
	DeleteContract(id string) error

	CreateAppointment(Appointment) (Appointment, error)
	UpdateAppointment(id string, edit AppointmentEdit) (Appointment, error)
	DeleteAppointment(id string) error

	GenerateIDs(entity EntityType, n int) ([]string, error)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	ContractsOfContact(nric string) []Contract
	ContractsOfPolicy(id string) []Contract
	AppointmentsOfContact(nric string) []Appointment
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	ImportState(ctx context.Context, snapshot Snapshot) error
	GenerateIDs(entity EntityType, n int) ([]string, error)
	ListContacts() []Contact
	ListPolicies() []Policy
	ListContracts() []Contract
	ListAppointments() []Appointment
	FindContact(nric string) (Contact, bool)
	FindPolicy(id string) (Policy, bool)
	FindContract(id string) (Contract, bool)
	FindAppointment(id string) (Appointment, bool)
}
