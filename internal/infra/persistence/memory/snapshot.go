package memory

import (
	"fmt"

	"agentbook/pkg/domain"
)

func snapshotFromState(state *memoryState) Snapshot {
	return Snapshot{
		Contacts:     listContacts(state),
		Policies:     listPolicies(state),
		Contracts:    state.contracts.Items(),
		Appointments: state.appointments.Items(),
	}
}

// stateFromSnapshot builds a validated state from a plain snapshot. Derived
// back-references in the snapshot are ignored and rebuilt from the contracts.
func stateFromSnapshot(snapshot Snapshot) (memoryState, error) {
	state := newMemoryState()

	contacts := make([]Contact, 0, len(snapshot.Contacts))
	for _, c := range snapshot.Contacts {
		c = c.Normalized()
		c.ContractIDs = nil
		contacts = append(contacts, c)
	}
	if err := state.contacts.SetAll(contacts); err != nil {
		return memoryState{}, fmt.Errorf("import contacts: %w", err)
	}

	policies := make([]Policy, 0, len(snapshot.Policies))
	for _, p := range snapshot.Policies {
		p.ContractIDs = nil
		for _, prev := range policies {
			if prev.SameFields(p) {
				return memoryState{}, fmt.Errorf("import policies: %w", domain.DuplicateEntityError{Entity: domain.EntityPolicy, Key: prev.ID, Fields: true})
			}
		}
		policies = append(policies, p)
	}
	if err := state.policies.SetAll(policies); err != nil {
		return memoryState{}, fmt.Errorf("import policies: %w", err)
	}

	for _, c := range snapshot.Contracts {
		if err := c.ValidatePeriod(); err != nil {
			return memoryState{}, fmt.Errorf("import contract %s: %w", c.ID, err)
		}
	}
	if err := state.contracts.SetAll(snapshot.Contracts); err != nil {
		return memoryState{}, fmt.Errorf("import contracts: %w", err)
	}

	for _, a := range snapshot.Appointments {
		if !state.contacts.ContainsKey(a.NRIC) {
			return memoryState{}, fmt.Errorf("import appointment %s: %w", a.ID, domain.NotFoundError{Entity: domain.EntityContact, Key: a.NRIC})
		}
	}
	if err := state.appointments.SetAll(snapshot.Appointments); err != nil {
		return memoryState{}, fmt.Errorf("import appointments: %w", err)
	}

	if err := state.rebuildRefs(); err != nil {
		return memoryState{}, fmt.Errorf("import contracts: %w", err)
	}
	return state, nil
}
