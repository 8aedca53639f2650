package memory

import (
	"agentbook/pkg/domain"
)

// refIndex maps an owner key to the set of contract IDs it owns.
type refIndex map[string]map[string]struct{}

func (r refIndex) add(owner, contractID string) {
	set, ok := r[owner]
	if !ok {
		set = make(map[string]struct{})
		r[owner] = set
	}
	set[contractID] = struct{}{}
}

func (r refIndex) remove(owner, contractID string) {
	set, ok := r[owner]
	if !ok {
		return
	}
	delete(set, contractID)
	if len(set) == 0 {
		delete(r, owner)
	}
}

func (r refIndex) has(owner, contractID string) bool {
	_, ok := r[owner][contractID]
	return ok
}

func (r refIndex) count(owner string) int { return len(r[owner]) }

func (r refIndex) clone() refIndex {
	cp := make(refIndex, len(r))
	for owner, set := range r {
		inner := make(map[string]struct{}, len(set))
		for id := range set {
			inner[id] = struct{}{}
		}
		cp[owner] = inner
	}
	return cp
}

// attachToContact records contract under the contact named by its national ID.
// Attaching the same contract twice is a no-op.
func (s *memoryState) attachToContact(contract Contract) error {
	if !s.contacts.ContainsKey(contract.NRIC) {
		return domain.NotFoundError{Entity: domain.EntityContact, Key: contract.NRIC}
	}
	s.contactRefs.add(contract.NRIC, contract.ID)
	return nil
}

// attachToPolicy records contract under the policy named by its policy ID.
func (s *memoryState) attachToPolicy(contract Contract) error {
	if !s.policies.ContainsKey(contract.PolicyID) {
		return domain.NotFoundError{Entity: domain.EntityPolicy, Key: contract.PolicyID}
	}
	s.policyRefs.add(contract.PolicyID, contract.ID)
	return nil
}

// detachFromContact drops contract from its contact's back-references.
func (s *memoryState) detachFromContact(contract Contract) error {
	if !s.contacts.ContainsKey(contract.NRIC) {
		return domain.NotFoundError{Entity: domain.EntityContact, Key: contract.NRIC}
	}
	s.contactRefs.remove(contract.NRIC, contract.ID)
	return nil
}

// detachFromPolicy drops contract from its policy's back-references.
func (s *memoryState) detachFromPolicy(contract Contract) error {
	if !s.policies.ContainsKey(contract.PolicyID) {
		return domain.NotFoundError{Entity: domain.EntityPolicy, Key: contract.PolicyID}
	}
	s.policyRefs.remove(contract.PolicyID, contract.ID)
	return nil
}

// rebuildRefs recomputes both indices from the canonical contract collection,
// failing on the first contract whose owner does not resolve.
func (s *memoryState) rebuildRefs() error {
	s.contactRefs = make(refIndex)
	s.policyRefs = make(refIndex)
	for _, contract := range s.contracts.Items() {
		if err := s.attachToContact(contract); err != nil {
			return err
		}
		if err := s.attachToPolicy(contract); err != nil {
			return err
		}
	}
	return nil
}

// ownedContractIDs lists the contract IDs in refs under owner, in canonical
// contract order.
func (s *memoryState) ownedContractIDs(refs refIndex, owner string) []string {
	if refs.count(owner) == 0 {
		return nil
	}
	var ids []string
	for _, id := range s.contracts.Keys() {
		if refs.has(owner, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// firstReferrer returns the first contract, in canonical order, that owner
// holds in refs.
func (s *memoryState) firstReferrer(refs refIndex, owner string) (string, bool) {
	ids := s.ownedContractIDs(refs, owner)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

func decorateContact(state *memoryState, contact Contact) Contact {
	contact.ContractIDs = state.ownedContractIDs(state.contactRefs, contact.NRIC)
	return contact
}

func decoratePolicy(state *memoryState, policy Policy) Policy {
	policy.ContractIDs = state.ownedContractIDs(state.policyRefs, policy.ID)
	return policy
}
