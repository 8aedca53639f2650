package memory

import (
	"encoding/json"
	"fmt"
)

// Snapshot buckets persisted by durable backends, one row per collection.
const (
	BucketContacts     = "contacts"
	BucketPolicies     = "policies"
	BucketContracts    = "contracts"
	BucketAppointments = "appointments"
)

// Buckets lists every snapshot bucket in dependency order.
var Buckets = []string{BucketContacts, BucketPolicies, BucketContracts, BucketAppointments}

// EncodeBuckets renders each collection of snapshot as a JSON array keyed by bucket.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketContacts:
			data, err = json.Marshal(nonNil(snapshot.Contacts))
		case BucketPolicies:
			data, err = json.Marshal(nonNil(snapshot.Policies))
		case BucketContracts:
			data, err = json.Marshal(nonNil(snapshot.Contracts))
		case BucketAppointments:
			data, err = json.Marshal(nonNil(snapshot.Appointments))
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket fills the collection of snapshot named by bucket. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketContacts:
		target = &snapshot.Contacts
	case BucketPolicies:
		target = &snapshot.Policies
	case BucketContracts:
		target = &snapshot.Contracts
	case BucketAppointments:
		target = &snapshot.Appointments
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
