package memory

import (
	"agentbook/pkg/domain"
)

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transaction's working state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// GenerateIDs returns n identifiers unused in the working state.
func (tx *transaction) GenerateIDs(entity domain.EntityType, n int) ([]string, error) {
	return generateIDs(tx.store.ids, &tx.state, entity, n)
}

func (tx *transaction) generateID(entity domain.EntityType) (string, error) {
	ids, err := tx.GenerateIDs(entity, 1)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateContact adds a contact. Tags are normalized; back-references start empty.
func (tx *transaction) CreateContact(contact Contact) (Contact, error) {
	contact = contact.Normalized()
	contact.ContractIDs = nil
	if err := tx.state.contacts.Add(contact); err != nil {
		return Contact{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionCreate, After: contact.Clone()})
	return decorateContact(&tx.state, contact), nil
}

// UpdateContact edits the contact identified by nric. Changing the national ID
// is refused while contracts or appointments still point at the old one. A
// name change is copied into the snapshot held by each of the contact's
// contracts.
func (tx *transaction) UpdateContact(nric string, edit domain.ContactEdit) (Contact, error) {
	current, ok := tx.state.contacts.Find(nric)
	if !ok {
		return Contact{}, domain.NotFoundError{Entity: domain.EntityContact, Key: nric}
	}
	next := edit.Apply(current)
	if next.NRIC != current.NRIC {
		if err := tx.ensureUnreferenced(current.NRIC); err != nil {
			return Contact{}, err
		}
	}
	if err := tx.state.contacts.Replace(current, next); err != nil {
		return Contact{}, err
	}
	if next.Name != current.Name {
		for _, contract := range tx.state.contracts.Items() {
			if contract.NRIC != next.NRIC {
				continue
			}
			renamed := contract
			renamed.ContactName = next.Name
			if err := tx.state.contracts.Replace(contract, renamed); err != nil {
				return Contact{}, err
			}
			tx.recordChange(Change{Entity: domain.EntityContract, Action: domain.ActionUpdate, Before: contract, After: renamed})
		}
	}
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionUpdate, Before: current, After: next.Clone()})
	return decorateContact(&tx.state, next), nil
}

// DeleteContact removes a contact that no contract or appointment references.
func (tx *transaction) DeleteContact(nric string) error {
	current, ok := tx.state.contacts.Find(nric)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityContact, Key: nric}
	}
	if err := tx.ensureUnreferenced(nric); err != nil {
		return err
	}
	if err := tx.state.contacts.Remove(current); err != nil {
		return err
	}
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) ensureUnreferenced(nric string) error {
	if id, ok := tx.state.firstReferrer(tx.state.contactRefs, nric); ok {
		return domain.PendingReferenceError{
			Entity:     domain.EntityContact,
			Key:        nric,
			Referrer:   domain.EntityContract,
			ReferrerID: id,
			Count:      tx.state.contactRefs.count(nric),
		}
	}
	if appts := appointmentsOfContact(&tx.state, nric); len(appts) > 0 {
		return domain.PendingReferenceError{
			Entity:     domain.EntityContact,
			Key:        nric,
			Referrer:   domain.EntityAppointment,
			ReferrerID: appts[0].ID,
			Count:      len(appts),
		}
	}
	return nil
}

// CreatePolicy adds a policy, generating its ID when empty.
func (tx *transaction) CreatePolicy(policy Policy) (Policy, error) {
	if policy.ID == "" {
		id, err := tx.generateID(domain.EntityPolicy)
		if err != nil {
			return Policy{}, err
		}
		policy.ID = id
	}
	policy.ContractIDs = nil
	if err := tx.state.policies.Add(policy); err != nil {
		return Policy{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityPolicy, Action: domain.ActionCreate, After: policy.Clone()})
	return decoratePolicy(&tx.state, policy), nil
}

// ImportPolicies assigns fresh IDs to every draft and adds them together. The
// batch is refused when two drafts, or a draft and an existing policy, carry
// the same name and details.
func (tx *transaction) ImportPolicies(drafts []domain.PolicyDraft) ([]Policy, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	ids, err := tx.GenerateIDs(domain.EntityPolicy, len(drafts))
	if err != nil {
		return nil, err
	}
	existing := tx.state.policies.Items()
	imported := make([]Policy, 0, len(drafts))
	for i, draft := range drafts {
		candidate := draft.WithID(ids[i])
		for _, prev := range imported {
			if prev.SameFields(candidate) {
				return nil, domain.DuplicateEntityError{Entity: domain.EntityPolicy, Key: prev.ID, Fields: true}
			}
		}
		for _, p := range existing {
			if p.SameFields(candidate) {
				return nil, domain.DuplicateEntityError{Entity: domain.EntityPolicy, Key: p.ID, Fields: true}
			}
		}
		imported = append(imported, candidate)
	}
	for _, policy := range imported {
		if err := tx.state.policies.Add(policy); err != nil {
			return nil, err
		}
		tx.recordChange(Change{Entity: domain.EntityPolicy, Action: domain.ActionCreate, After: policy.Clone()})
	}
	return imported, nil
}

// UpdatePolicy edits the policy's name or details.
func (tx *transaction) UpdatePolicy(id string, edit domain.PolicyEdit) (Policy, error) {
	current, ok := tx.state.policies.Find(id)
	if !ok {
		return Policy{}, domain.NotFoundError{Entity: domain.EntityPolicy, Key: id}
	}
	next := edit.Apply(current)
	if err := tx.state.policies.Replace(current, next); err != nil {
		return Policy{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityPolicy, Action: domain.ActionUpdate, Before: current, After: next.Clone()})
	return decoratePolicy(&tx.state, next), nil
}

// DeletePolicy removes a policy no contract subscribes to.
func (tx *transaction) DeletePolicy(id string) error {
	current, ok := tx.state.policies.Find(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPolicy, Key: id}
	}
	if ref, ok := tx.state.firstReferrer(tx.state.policyRefs, id); ok {
		return domain.PendingReferenceError{
			Entity:     domain.EntityPolicy,
			Key:        id,
			Referrer:   domain.EntityContract,
			ReferrerID: ref,
			Count:      tx.state.policyRefs.count(id),
		}
	}
	if err := tx.state.policies.Remove(current); err != nil {
		return err
	}
	tx.recordChange(Change{Entity: domain.EntityPolicy, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateContract adds a contract and attaches it to its contact and policy. The
// contact name is resolved from the national ID; any caller value is ignored.
func (tx *transaction) CreateContract(contract Contract) (Contract, error) {
	if contract.ID == "" {
		id, err := tx.generateID(domain.EntityContract)
		if err != nil {
			return Contract{}, err
		}
		contract.ID = id
	}
	contact, ok := tx.state.contacts.Find(contract.NRIC)
	if !ok {
		return Contract{}, domain.NotFoundError{Entity: domain.EntityContact, Key: contract.NRIC}
	}
	contract.ContactName = contact.Name
	if err := contract.ValidatePeriod(); err != nil {
		return Contract{}, err
	}
	if !tx.state.policies.ContainsKey(contract.PolicyID) {
		return Contract{}, domain.NotFoundError{Entity: domain.EntityPolicy, Key: contract.PolicyID}
	}
	if err := tx.state.contracts.Add(contract); err != nil {
		return Contract{}, err
	}
	if err := tx.state.attachToContact(contract); err != nil {
		return Contract{}, err
	}
	if err := tx.state.attachToPolicy(contract); err != nil {
		return Contract{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityContract, Action: domain.ActionCreate, After: contract})
	return contract, nil
}

// UpdateContract edits a contract and moves its back-references when the
// owning contact or policy changes. Every check runs before any mutation.
func (tx *transaction) UpdateContract(id string, edit domain.ContractEdit) (Contract, error) {
	current, ok := tx.state.contracts.Find(id)
	if !ok {
		return Contract{}, domain.NotFoundError{Entity: domain.EntityContract, Key: id}
	}
	next := edit.Apply(current)
	contact, ok := tx.state.contacts.Find(next.NRIC)
	if !ok {
		return Contract{}, domain.NotFoundError{Entity: domain.EntityContact, Key: next.NRIC}
	}
	next.ContactName = contact.Name
	if next.ID != current.ID && tx.state.contracts.ContainsKey(next.ID) {
		return Contract{}, domain.DuplicateEntityError{Entity: domain.EntityContract, Key: next.ID}
	}
	if err := next.ValidatePeriod(); err != nil {
		return Contract{}, err
	}
	if !tx.state.policies.ContainsKey(next.PolicyID) {
		return Contract{}, domain.NotFoundError{Entity: domain.EntityPolicy, Key: next.PolicyID}
	}
	if err := tx.state.contracts.Replace(current, next); err != nil {
		return Contract{}, err
	}
	if err := tx.state.detachFromContact(current); err != nil {
		return Contract{}, err
	}
	if err := tx.state.detachFromPolicy(current); err != nil {
		return Contract{}, err
	}
	if err := tx.state.attachToContact(next); err != nil {
		return Contract{}, err
	}
	if err := tx.state.attachToPolicy(next); err != nil {
		return Contract{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityContract, Action: domain.ActionUpdate, Before: current, After: next})
	return next, nil
}

// DeleteContract detaches a contract from its owners and removes it.
func (tx *transaction) DeleteContract(id string) error {
	current, ok := tx.state.contracts.Find(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityContract, Key: id}
	}
	if err := tx.state.detachFromContact(current); err != nil {
		return err
	}
	if err := tx.state.detachFromPolicy(current); err != nil {
		return err
	}
	if err := tx.state.contracts.Remove(current); err != nil {
		return err
	}
	tx.recordChange(Change{Entity: domain.EntityContract, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateAppointment books an appointment with an existing contact.
func (tx *transaction) CreateAppointment(appt Appointment) (Appointment, error) {
	if appt.ID == "" {
		id, err := tx.generateID(domain.EntityAppointment)
		if err != nil {
			return Appointment{}, err
		}
		appt.ID = id
	}
	if !tx.state.contacts.ContainsKey(appt.NRIC) {
		return Appointment{}, domain.NotFoundError{Entity: domain.EntityContact, Key: appt.NRIC}
	}
	if err := tx.state.appointments.Add(appt); err != nil {
		return Appointment{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityAppointment, Action: domain.ActionCreate, After: appt})
	return appt, nil
}

// UpdateAppointment edits an appointment; a new national ID must resolve.
func (tx *transaction) UpdateAppointment(id string, edit domain.AppointmentEdit) (Appointment, error) {
	current, ok := tx.state.appointments.Find(id)
	if !ok {
		return Appointment{}, domain.NotFoundError{Entity: domain.EntityAppointment, Key: id}
	}
	next := edit.Apply(current)
	if next.NRIC != current.NRIC && !tx.state.contacts.ContainsKey(next.NRIC) {
		return Appointment{}, domain.NotFoundError{Entity: domain.EntityContact, Key: next.NRIC}
	}
	if err := tx.state.appointments.Replace(current, next); err != nil {
		return Appointment{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityAppointment, Action: domain.ActionUpdate, Before: current, After: next})
	return next, nil
}

// DeleteAppointment removes an appointment.
func (tx *transaction) DeleteAppointment(id string) error {
	current, ok := tx.state.appointments.Find(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAppointment, Key: id}
	}
	if err := tx.state.appointments.Remove(current); err != nil {
		return err
	}
	tx.recordChange(Change{Entity: domain.EntityAppointment, Action: domain.ActionDelete, Before: current})
	return nil
}
