package memory

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"agentbook/internal/idgen"
	"agentbook/pkg/domain"
)

func seedStore(t *testing.T, store *Store) (domain.Contact, domain.Policy, domain.Contract) {
	t.Helper()
	var (
		contact  domain.Contact
		policy   domain.Policy
		contract domain.Contract
	)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		contact, err = tx.CreateContact(domain.Contact{NRIC: "S1234567A", Name: "Alice Tan", Tags: []string{"vip", "friend", "vip"}})
		if err != nil {
			return err
		}
		policy, err = tx.CreatePolicy(domain.Policy{Name: "Shield", Details: "Hospital cover"})
		if err != nil {
			return err
		}
		contract, err = tx.CreateContract(domain.Contract{
			NRIC:     contact.NRIC,
			PolicyID: policy.ID,
			Signed:   domain.MustDate("2024-01-01"),
			Expiry:   domain.MustDate("2025-01-01"),
			Premium:  12000,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return contact, policy, contract
}

func TestStoreCreateContractAttachesBackReferences(t *testing.T) {
	store := NewStore(nil)
	contact, policy, contract := seedStore(t, store)

	if contract.ID == "" || len(contract.ID) != idgen.DefaultLength {
		t.Fatalf("expected generated contract id, got %q", contract.ID)
	}
	if contract.ContactName != "Alice Tan" {
		t.Fatalf("expected resolved contact name, got %q", contract.ContactName)
	}
	gotContact, ok := store.FindContact(contact.NRIC)
	if !ok {
		t.Fatalf("expected contact")
	}
	if !slices.Equal(gotContact.ContractIDs, []string{contract.ID}) {
		t.Fatalf("contact back-references: %v", gotContact.ContractIDs)
	}
	if !slices.Equal(gotContact.Tags, []string{"friend", "vip"}) {
		t.Fatalf("expected normalized tags, got %v", gotContact.Tags)
	}
	gotPolicy, ok := store.FindPolicy(policy.ID)
	if !ok || !slices.Equal(gotPolicy.ContractIDs, []string{contract.ID}) {
		t.Fatalf("policy back-references: %+v", gotPolicy)
	}

	err := store.View(context.Background(), func(view domain.TransactionView) error {
		if got := view.ContractsOfContact(contact.NRIC); len(got) != 1 || got[0].ID != contract.ID {
			t.Fatalf("contracts of contact: %+v", got)
		}
		if got := view.ContractsOfPolicy(policy.ID); len(got) != 1 {
			t.Fatalf("contracts of policy: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreCreateContractValidation(t *testing.T) {
	store := NewStore(nil)
	contact, policy, _ := seedStore(t, store)
	ctx := context.Background()

	cases := []struct {
		name     string
		contract domain.Contract
		want     error
	}{
		{
			name:     "missing contact",
			contract: domain.Contract{NRIC: "S0000000Z", PolicyID: policy.ID, Signed: domain.MustDate("2024-01-01"), Expiry: domain.MustDate("2025-01-01")},
			want:     domain.ErrContactNotFound,
		},
		{
			name:     "missing policy",
			contract: domain.Contract{NRIC: contact.NRIC, PolicyID: "nope00", Signed: domain.MustDate("2024-01-01"), Expiry: domain.MustDate("2025-01-01")},
			want:     domain.ErrPolicyNotFound,
		},
		{
			name:     "expiry before signing",
			contract: domain.Contract{NRIC: contact.NRIC, PolicyID: policy.ID, Signed: domain.MustDate("2025-01-01"), Expiry: domain.MustDate("2024-01-01")},
			want:     domain.ErrInvalidPeriod,
		},
		{
			name:     "same day",
			contract: domain.Contract{NRIC: contact.NRIC, PolicyID: policy.ID, Signed: domain.MustDate("2025-01-01"), Expiry: domain.MustDate("2025-01-01")},
			want:     domain.ErrInvalidPeriod,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				_, err := tx.CreateContract(tc.contract)
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := len(store.ListContracts()); got != 1 {
				t.Fatalf("expected state unchanged, got %d contracts", got)
			}
		})
	}
}

func TestStoreDeleteBlockedByPendingReferences(t *testing.T) {
	store := NewStore(nil)
	contact, policy, contract := seedStore(t, store)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteContact(contact.NRIC)
	})
	var pending domain.PendingReferenceError
	if !errors.As(err, &pending) || pending.ReferrerID != contract.ID || pending.Count != 1 {
		t.Fatalf("expected pending contract reference, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePolicy(policy.ID)
	})
	if !errors.Is(err, domain.ErrPendingReference) {
		t.Fatalf("expected pending policy reference, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.DeleteContract(contract.ID); err != nil {
			return err
		}
		if err := tx.DeletePolicy(policy.ID); err != nil {
			return err
		}
		return tx.DeleteContact(contact.NRIC)
	})
	if err != nil {
		t.Fatalf("delete chain: %v", err)
	}
	if len(store.ListContacts())+len(store.ListPolicies())+len(store.ListContracts()) != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestStoreAppointmentsReferenceContacts(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAppointment(domain.Appointment{NRIC: "S0000000Z", Date: domain.MustDate("2024-06-01")})
		return err
	})
	if !errors.Is(err, domain.ErrContactNotFound) {
		t.Fatalf("expected contact not found, got %v", err)
	}

	var appt domain.Appointment
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateContact(domain.Contact{NRIC: "S7654321B", Name: "Bob"}); err != nil {
			return err
		}
		appt, err = tx.CreateAppointment(domain.Appointment{NRIC: "S7654321B", Date: domain.MustDate("2024-06-01"), Details: "review"})
		return err
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteContact("S7654321B")
	})
	var pending domain.PendingReferenceError
	if !errors.As(err, &pending) || pending.Referrer != domain.EntityAppointment {
		t.Fatalf("expected pending appointment reference, got %v", err)
	}

	details := "annual review"
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateAppointment(appt.ID, domain.AppointmentEdit{Details: &details})
		return err
	})
	if err != nil {
		t.Fatalf("update appointment: %v", err)
	}
	if got, _ := store.FindAppointment(appt.ID); got.Details != details {
		t.Fatalf("expected updated details, got %q", got.Details)
	}
	missing := "S0000000Z"
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateAppointment(appt.ID, domain.AppointmentEdit{NRIC: &missing})
		return err
	})
	if !errors.Is(err, domain.ErrContactNotFound) {
		t.Fatalf("expected contact not found on re-point, got %v", err)
	}
}

func TestStoreUpdateContractMovesBackReferences(t *testing.T) {
	store := NewStore(nil)
	contact, policy, contract := seedStore(t, store)
	ctx := context.Background()

	var other domain.Policy
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		other, err = tx.CreatePolicy(domain.Policy{Name: "Life", Details: "Term"})
		if err != nil {
			return err
		}
		_, err = tx.UpdateContract(contract.ID, domain.ContractEdit{PolicyID: &other.ID})
		return err
	})
	if err != nil {
		t.Fatalf("move contract: %v", err)
	}
	if got, _ := store.FindPolicy(policy.ID); len(got.ContractIDs) != 0 {
		t.Fatalf("expected old policy detached, got %v", got.ContractIDs)
	}
	if got, _ := store.FindPolicy(other.ID); !slices.Equal(got.ContractIDs, []string{contract.ID}) {
		t.Fatalf("expected new policy attached, got %v", got.ContractIDs)
	}
	if got, _ := store.FindContact(contact.NRIC); !slices.Equal(got.ContractIDs, []string{contract.ID}) {
		t.Fatalf("expected contact still attached, got %v", got.ContractIDs)
	}

	newID := "NEWID1"
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContract(contract.ID, domain.ContractEdit{ID: &newID})
		return err
	})
	if err != nil {
		t.Fatalf("rename contract: %v", err)
	}
	if got, _ := store.FindContact(contact.NRIC); !slices.Equal(got.ContractIDs, []string{newID}) {
		t.Fatalf("expected renamed back-reference, got %v", got.ContractIDs)
	}

	bad := domain.MustDate("2020-01-01")
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContract(newID, domain.ContractEdit{Expiry: &bad})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestStoreContactEdits(t *testing.T) {
	store := NewStore(nil)
	contact, _, contract := seedStore(t, store)
	ctx := context.Background()

	name := "Alice Lim"
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContact(contact.NRIC, domain.ContactEdit{Name: &name})
		return err
	})
	if err != nil {
		t.Fatalf("rename contact: %v", err)
	}
	if got, _ := store.FindContract(contract.ID); got.ContactName != name {
		t.Fatalf("expected contract name snapshot refreshed, got %q", got.ContactName)
	}

	nric := "S9999999Z"
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContact(contact.NRIC, domain.ContactEdit{NRIC: &nric})
		return err
	})
	if !errors.Is(err, domain.ErrPendingReference) {
		t.Fatalf("expected re-key refused, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateContact(domain.Contact{NRIC: "S1111111C", Name: "Carol"}); err != nil {
			return err
		}
		_, err := tx.UpdateContact("S1111111C", domain.ContactEdit{NRIC: &contact.NRIC})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicateEntity) {
		t.Fatalf("expected duplicate on re-key collision, got %v", err)
	}
	if _, ok := store.FindContact("S1111111C"); ok {
		t.Fatalf("expected failed transaction to be discarded")
	}
}

func TestStoreDuplicateContact(t *testing.T) {
	store := NewStore(nil)
	contact, _, _ := seedStore(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateContact(domain.Contact{NRIC: contact.NRIC, Name: "Other"})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicateEntity) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestStoreImportPolicies(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var imported []domain.Policy
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		imported, err = tx.ImportPolicies([]domain.PolicyDraft{
			{Name: "Shield", Details: "Hospital"},
			{Name: "Shield", Details: "Outpatient"},
		})
		return err
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 2 || imported[0].ID == imported[1].ID {
		t.Fatalf("expected two distinct ids, got %+v", imported)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.ImportPolicies([]domain.PolicyDraft{{Name: "Life", Details: "Term"}, {Name: "Life", Details: "Term"}})
		return err
	})
	var dup domain.DuplicateEntityError
	if !errors.As(err, &dup) || !dup.Fields {
		t.Fatalf("expected field duplicate within batch, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.ImportPolicies([]domain.PolicyDraft{{Name: "Life", Details: "Term"}, {Name: "Shield", Details: "Hospital"}})
		return err
	})
	if !errors.As(err, &dup) || dup.Key != imported[0].ID {
		t.Fatalf("expected field duplicate against existing, got %v", err)
	}
	if got := len(store.ListPolicies()); got != 2 {
		t.Fatalf("expected failed batches to add nothing, got %d policies", got)
	}
}

func TestStoreGeneratedIDsSkipTakenValues(t *testing.T) {
	// First draw decodes to AAAAAA, second to AAAAAB.
	source := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	store := NewStore(nil, WithIDGenerator(idgen.New(idgen.WithSource(source))))
	var created domain.Policy
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreatePolicy(domain.Policy{ID: "AAAAAA", Name: "Fixed"}); err != nil {
			return err
		}
		var err error
		created, err = tx.CreatePolicy(domain.Policy{Name: "Generated"})
		return err
	})
	if err != nil {
		t.Fatalf("create policies: %v", err)
	}
	if created.ID != "AAAAAB" {
		t.Fatalf("expected redraw past taken id, got %q", created.ID)
	}
	if _, err := store.GenerateIDs(domain.EntityContact, 1); err == nil {
		t.Fatalf("expected contacts to refuse generated ids")
	}
}

func TestStoreTransactionIsAtomic(t *testing.T) {
	store := NewStore(nil)
	contact, _, _ := seedStore(t, store)
	before := store.ExportState()

	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		name := "Changed"
		if _, err := tx.UpdateContact(contact.NRIC, domain.ContactEdit{Name: &name}); err != nil {
			return err
		}
		if _, err := tx.CreatePolicy(domain.Policy{Name: "Extra"}); err != nil {
			return err
		}
		if len(tx.Snapshot().ListPolicies()) != 2 {
			t.Fatalf("expected working state to see the new policy")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	after := store.ExportState()
	if len(after.Policies) != len(before.Policies) || after.Contacts[0].Name != before.Contacts[0].Name {
		t.Fatalf("expected state unchanged after failed transaction")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity == domain.EntityPolicy {
			res.Violations = append(res.Violations, domain.Violation{Rule: "block", Severity: domain.SeverityBlock, Entity: change.Entity})
		}
	}
	return res, nil
}

func TestStoreRuleViolationBlocksCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreatePolicy(domain.Policy{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) || !res.HasBlocking() {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ListPolicies()) != 0 {
		t.Fatalf("expected blocked transaction discarded")
	}
	if store.RulesEngine() != engine || store.NowFunc() == nil {
		t.Fatalf("expected configured engine and clock")
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	contact, policy, contract := seedStore(t, store)
	snapshot := store.ExportState()

	restored := NewStore(nil)
	if err := restored.ImportState(context.Background(), snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}
	gotContact, _ := restored.FindContact(contact.NRIC)
	if !gotContact.Equal(contact) || !slices.Equal(gotContact.ContractIDs, []string{contract.ID}) {
		t.Fatalf("contact mismatch after import: %+v", gotContact)
	}
	gotPolicy, _ := restored.FindPolicy(policy.ID)
	if !slices.Equal(gotPolicy.ContractIDs, []string{contract.ID}) {
		t.Fatalf("policy back-references not rebuilt: %+v", gotPolicy)
	}
	again := restored.ExportState()
	if len(again.Contracts) != 1 || !again.Contracts[0].Equal(snapshot.Contracts[0]) {
		t.Fatalf("round trip mismatch")
	}
}

func TestStoreImportStateRejectsInconsistentSnapshots(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	good := store.ExportState()

	dangling := store.ExportState()
	dangling.Contracts[0].PolicyID = "ghost0"

	dupPolicy := store.ExportState()
	dupPolicy.Policies = append(dupPolicy.Policies, domain.Policy{ID: "other0", Name: good.Policies[0].Name, Details: good.Policies[0].Details})

	badPeriod := store.ExportState()
	badPeriod.Contracts[0].Expiry = badPeriod.Contracts[0].Signed

	orphanAppt := store.ExportState()
	orphanAppt.Appointments = []domain.Appointment{{ID: "appt01", NRIC: "S0000000Z"}}

	cases := map[string]struct {
		snapshot domain.Snapshot
		want     error
	}{
		"dangling policy":    {dangling, domain.ErrPolicyNotFound},
		"duplicate fields":   {dupPolicy, domain.ErrDuplicateEntity},
		"invalid period":     {badPeriod, domain.ErrInvalidPeriod},
		"orphan appointment": {orphanAppt, domain.ErrContactNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			target := NewStore(nil)
			if err := target.ImportState(context.Background(), good); err != nil {
				t.Fatalf("import good: %v", err)
			}
			err := target.ImportState(context.Background(), tc.snapshot)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(target.ListContracts()) != 1 || len(target.ListPolicies()) != 1 {
				t.Fatalf("expected previous state retained")
			}
		})
	}
}

func seedMoveFixture(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, c := range []domain.Contact{{NRIC: "S1", Name: "Alice"}, {NRIC: "S2", Name: "Bob"}} {
			if _, err := tx.CreateContact(c); err != nil {
				return err
			}
		}
		for _, p := range []domain.Policy{{ID: "P1", Name: "Shield"}, {ID: "P2", Name: "Life"}} {
			if _, err := tx.CreatePolicy(p); err != nil {
				return err
			}
		}
		for _, c := range []domain.Contract{
			{ID: "c1", NRIC: "S1", PolicyID: "P1"},
			{ID: "c2", NRIC: "S2", PolicyID: "P1"},
			{ID: "c3", NRIC: "S1", PolicyID: "P2"},
		} {
			c.Signed = domain.MustDate("2024-01-01")
			c.Expiry = domain.MustDate("2026-01-01")
			if _, err := tx.CreateContract(c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed move fixture: %v", err)
	}
}

func TestStoreUpdateContractMoveKeepsOtherReferences(t *testing.T) {
	store := NewStore(nil)
	seedMoveFixture(t, store)
	target := "P2"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateContract("c1", domain.ContractEdit{PolicyID: &target})
		return err
	})
	if err != nil {
		t.Fatalf("move c1: %v", err)
	}
	if got, _ := store.FindPolicy("P1"); !slices.Equal(got.ContractIDs, []string{"c2"}) {
		t.Fatalf("P1 back-references: %v", got.ContractIDs)
	}
	if got, _ := store.FindPolicy("P2"); !slices.Equal(got.ContractIDs, []string{"c1", "c3"}) {
		t.Fatalf("P2 back-references: %v", got.ContractIDs)
	}
	if got, _ := store.FindContact("S1"); !slices.Equal(got.ContractIDs, []string{"c1", "c3"}) {
		t.Fatalf("S1 back-references: %v", got.ContractIDs)
	}
	if got, _ := store.FindContact("S2"); !slices.Equal(got.ContractIDs, []string{"c2"}) {
		t.Fatalf("S2 back-references: %v", got.ContractIDs)
	}
	for id, policy := range map[string]string{"c2": "P1", "c3": "P2"} {
		if got, _ := store.FindContract(id); got.PolicyID != policy {
			t.Fatalf("contract %s moved to %s", id, got.PolicyID)
		}
	}
}

func TestStoreUpdateContractIDCollisionLeavesStateUnchanged(t *testing.T) {
	store := NewStore(nil)
	seedMoveFixture(t, store)
	before := store.ExportState()
	taken := "c2"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateContract("c1", domain.ContractEdit{ID: &taken})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicateEntity) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if after := store.ExportState(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed after refused edit:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestStoreDuplicateInsertsKeepCollectionSizes(t *testing.T) {
	store := NewStore(nil)
	seedMoveFixture(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAppointment(domain.Appointment{ID: "a1", NRIC: "S1", Date: domain.MustDate("2025-03-01")})
		return err
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	sizes := func() [4]int {
		return [4]int{len(store.ListContacts()), len(store.ListPolicies()), len(store.ListContracts()), len(store.ListAppointments())}
	}
	want := sizes()

	inserts := map[string]func(domain.Transaction) error{
		"contact": func(tx domain.Transaction) error {
			_, err := tx.CreateContact(domain.Contact{NRIC: "S1", Name: "Other"})
			return err
		},
		"policy": func(tx domain.Transaction) error {
			_, err := tx.CreatePolicy(domain.Policy{ID: "P1", Name: "Other"})
			return err
		},
		"contract": func(tx domain.Transaction) error {
			_, err := tx.CreateContract(domain.Contract{
				ID: "c1", NRIC: "S2", PolicyID: "P2",
				Signed: domain.MustDate("2024-01-01"), Expiry: domain.MustDate("2026-01-01"),
			})
			return err
		},
		"appointment": func(tx domain.Transaction) error {
			_, err := tx.CreateAppointment(domain.Appointment{ID: "a1", NRIC: "S2", Date: domain.MustDate("2025-04-01")})
			return err
		},
	}
	for name, insert := range inserts {
		t.Run(name, func(t *testing.T) {
			_, err := store.RunInTransaction(context.Background(), insert)
			if !errors.Is(err, domain.ErrDuplicateEntity) {
				t.Fatalf("expected duplicate, got %v", err)
			}
			if got := sizes(); got != want {
				t.Fatalf("collection sizes changed: want %v, got %v", want, got)
			}
		})
	}
	if got, _ := store.FindContact("S2"); !slices.Equal(got.ContractIDs, []string{"c2"}) {
		t.Fatalf("duplicate contract attached to S2: %v", got.ContractIDs)
	}
}

func TestStorePendingReferenceNamesFirstContract(t *testing.T) {
	store := NewStore(nil)
	seedMoveFixture(t, store)
	for range 10 {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			return tx.DeleteContact("S1")
		})
		var pending domain.PendingReferenceError
		if !errors.As(err, &pending) || pending.ReferrerID != "c1" || pending.Count != 2 {
			t.Fatalf("expected c1 of 2 referrers, got %v", err)
		}
		_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			return tx.DeletePolicy("P1")
		})
		if !errors.As(err, &pending) || pending.ReferrerID != "c1" || pending.Count != 2 {
			t.Fatalf("expected c1 of 2 policy referrers, got %v", err)
		}
	}
}

func TestStoreCancelledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
