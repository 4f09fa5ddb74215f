// Package ringerr defines the sum-of-variants error taxonomy shared by every
// layer of ringkeep, per the wire/parser/store/coordinator/gossip error
// model.
package ringerr

import "fmt"

// Kind identifies which layer raised an error and what went wrong, so
// callers can branch on it instead of matching error strings.
type Kind int

const (
	// KindUnknown covers infrastructure failures that don't fit elsewhere.
	KindUnknown Kind = iota

	// C1 wire codecs.
	KindWireMalformed
	KindUnknownOpcode
	KindUtf8

	// C2 CQL parser.
	KindQuerySyntax
	KindUnsupportedStrategy

	// C3/C4 lookups.
	KindKeyspaceNotFound
	KindTableNotFound
	KindOwnerNotFound

	// C6 coordinator.
	KindNoPeerReachable
	KindConsistencyNotMet

	// C5 gossip.
	KindRedistributeFailed

	// Infrastructure.
	KindIoDurability
	KindTlsHandshake
)

var kindNames = map[Kind]string{
	KindUnknown:             "Unknown",
	KindWireMalformed:       "WireMalformed",
	KindUnknownOpcode:       "UnknownOpcode",
	KindUtf8:                "Utf8",
	KindQuerySyntax:         "QuerySyntax",
	KindUnsupportedStrategy: "UnsupportedStrategy",
	KindKeyspaceNotFound:    "KeyspaceNotFound",
	KindTableNotFound:       "TableNotFound",
	KindOwnerNotFound:       "OwnerNotFound",
	KindNoPeerReachable:     "NoPeerReachable",
	KindConsistencyNotMet:   "ConsistencyNotMet",
	KindRedistributeFailed:  "RedistributeFailed",
	KindIoDurability:        "IoDurability",
	KindTlsHandshake:        "TlsHandshake",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is the concrete error type returned by every ringkeep package. Op
// names the operation that failed ("wire.ReadClientFrame",
// "coordinator.Dispatch", ...); Err, when present, is the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error around a cause, or returns nil if err is nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// the standard errors chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
