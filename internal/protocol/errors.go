package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Host routing/state.
	ErrBusy            = "E_BUSY"
	ErrUnknownAssembly = "E_UNKNOWN_ASSEMBLY"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRejected      = "E_REJECTED"
	ErrBroken        = "E_BROKEN"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrUnknownAssembly: {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrRejected:        {},
	ErrBroken:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
