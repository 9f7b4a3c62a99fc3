package tuple

// TID is an opaque transaction identifier, ordered by whatever transaction
// manager issues it. The tuple package only ever compares TIDs with <= and
// stores them; it never interprets their bits.
type TID uint64

const (
	// MinTID is the sentinel used for the synthetic "deleted" version
	// returned when a read walks off the tail of a chain (§4C). It is
	// known to be the wrong sentinel once a transaction manager's TID
	// space wraps around; see the "TID wrap-around" open question in
	// DESIGN.md. The wraparound fix, if ever needed, has exactly one
	// constant to change.
	MinTID TID = 0
	// MaxTID is the largest representable TID.
	MaxTID TID = ^TID(0)
)
