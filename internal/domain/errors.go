package domain

import "errors"

// Domain errors returned by the registry, ledger and finalizer. Callers
// branch with errors.Is; Code translates them into wire error codes for the
// gateway and webhook responses.
var (
	ErrInvalidConfiguration = errors.New("no slot names configured")
	ErrUnknownSlot          = errors.New("unknown slot")
	ErrItemNotFound         = errors.New("item not found")
	ErrItemNotCancellable   = errors.New("item already confirmed by kitchen")
	ErrSlotEmpty            = errors.New("slot has no items")
	ErrSameSlot             = errors.New("source and target slot are identical")
	ErrSlotSettling         = errors.New("slot has a settlement in progress")
	ErrNoSuchItems          = errors.New("no items match the given ids")
	ErrShiftAlreadyOpen     = errors.New("till already has an open shift")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrShiftAlreadyClosed   = errors.New("shift already closed")
	ErrSettlementFailed     = errors.New("settlement could not be recorded")
	ErrUnknownPlatform      = errors.New("unknown delivery platform")
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrInvalidTender        = errors.New("invalid tender line")
)

var codes = map[error]string{
	ErrInvalidConfiguration: "InvalidConfiguration",
	ErrUnknownSlot:          "UnknownSlot",
	ErrItemNotFound:         "ItemNotFound",
	ErrItemNotCancellable:   "ItemNotCancellable",
	ErrSlotEmpty:            "SlotEmpty",
	ErrSameSlot:             "SameSlot",
	ErrSlotSettling:         "SlotSettling",
	ErrNoSuchItems:          "NoSuchItems",
	ErrShiftAlreadyOpen:     "ShiftAlreadyOpen",
	ErrShiftNotFound:        "ShiftNotFound",
	ErrShiftAlreadyClosed:   "ShiftAlreadyClosed",
	ErrSettlementFailed:     "SettlementFailed",
	ErrUnknownPlatform:      "UnknownPlatform",
	ErrMalformedPayload:     "MalformedPayload",
	ErrInvalidTender:        "InvalidTender",
}

// Code returns the wire code for a domain error, or "Internal" for anything
// outside the taxonomy.
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "Internal"
}
