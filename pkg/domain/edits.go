package domain

// Edit descriptors carry optional fields; a nil field leaves the current value unchanged.

// ContactEdit describes changes to a contact.
type ContactEdit struct {
	NRIC    *string
	Name    *string
	Phone   *string
	Email   *string
	Address *string
	Tags    *[]string
}

// Apply returns a new contact with the edit applied on top of current.
func (e ContactEdit) Apply(current Contact) Contact {
	next := current.Clone()
	next.ContractIDs = nil
	if e.NRIC != nil {
		next.NRIC = *e.NRIC
	}
	if e.Name != nil {
		next.Name = *e.Name
	}
	if e.Phone != nil {
		next.Phone = *e.Phone
	}
	if e.Email != nil {
		next.Email = *e.Email
	}
	if e.Address != nil {
		next.Address = *e.Address
	}
	if e.Tags != nil {
		next.Tags = append([]string(nil), (*e.Tags)...)
	}
	return next.Normalized()
}

// IsEmpty reports whether no field is set.
func (e ContactEdit) IsEmpty() bool {
	return e.NRIC == nil && e.Name == nil && e.Phone == nil && e.Email == nil && e.Address == nil && e.Tags == nil
}

// PolicyEdit describes changes to a policy. Policy IDs are generated and never edited.
type PolicyEdit struct {
	Name    *string
	Details *string
}

// Apply returns a new policy with the edit applied on top of current.
func (e PolicyEdit) Apply(current Policy) Policy {
	next := current.Clone()
	next.ContractIDs = nil
	if e.Name != nil {
		next.Name = *e.Name
	}
	if e.Details != nil {
		next.Details = *e.Details
	}
	return next
}

// IsEmpty reports whether no field is set.
func (e PolicyEdit) IsEmpty() bool { return e.Name == nil && e.Details == nil }

// ContractEdit describes changes to a contract. The contact name snapshot is
// not editable; it is re-resolved from the national ID by the store.
type ContractEdit struct {
	ID       *string
	NRIC     *string
	PolicyID *string
	Signed   *Date
	Expiry   *Date
	Premium  *Money
}

// Apply returns a new contract with the edit applied on top of current.
func (e ContractEdit) Apply(current Contract) Contract {
	next := current
	if e.ID != nil {
		next.ID = *e.ID
	}
	if e.NRIC != nil {
		next.NRIC = *e.NRIC
	}
	if e.PolicyID != nil {
		next.PolicyID = *e.PolicyID
	}
	if e.Signed != nil {
		next.Signed = *e.Signed
	}
	if e.Expiry != nil {
		next.Expiry = *e.Expiry
	}
	if e.Premium != nil {
		next.Premium = *e.Premium
	}
	return next
}

// IsEmpty reports whether no field is set.
func (e ContractEdit) IsEmpty() bool {
	return e.ID == nil && e.NRIC == nil && e.PolicyID == nil && e.Signed == nil && e.Expiry == nil && e.Premium == nil
}

// AppointmentEdit describes changes to an appointment.
type AppointmentEdit struct {
	NRIC    *string
	Date    *Date
	Details *string
}

// Apply returns a new appointment with the edit applied on top of current.
func (e AppointmentEdit) Apply(current Appointment) Appointment {
	next := current
	if e.NRIC != nil {
		next.NRIC = *e.NRIC
	}
	if e.Date != nil {
		next.Date = *e.Date
	}
	if e.Details != nil {
		next.Details = *e.Details
	}
	return next
}

// IsEmpty reports whether no field is set.
func (e AppointmentEdit) IsEmpty() bool { return e.NRIC == nil && e.Date == nil && e.Details == nil }
