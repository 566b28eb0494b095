package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainStatement = "sqlclause/statement/v1"
	DomainTrace     = "sqlclause/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SlotRecord is the hashed shape of one parameter slot.
type SlotRecord struct {
	Name     string
	Deferred bool
	Value    Value
}

func (r SlotRecord) object() Object {
	obj := Object{
		"name":     String(r.Name),
		"deferred": Bool(r.Deferred),
	}
	if !r.Deferred {
		if r.Value == nil {
			obj["value"] = Null{}
		} else {
			obj["value"] = r.Value
		}
	}
	return obj
}

// Fingerprint computes the content-addressed identity of a rendered
// statement: its SQL text plus its ordered slot list. Identical statements
// rendered for the same dialect always share a fingerprint.
func Fingerprint(sql string, slots []SlotRecord) (string, error) {
	arr := make(Array, len(slots))
	for i, s := range slots {
		arr[i] = s.object()
	}
	canonical, err := MarshalCanonical(Object{
		"sql":   String(sql),
		"slots": arr,
	})
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}

// TraceHash computes the identity of a harness trace for golden comparison.
func TraceHash(trace Value) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
