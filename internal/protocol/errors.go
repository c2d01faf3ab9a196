package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Simulation anomalies surfaced per step.
	ErrSelectionExhausted = "E_SELECTION_EXHAUSTED"

	// Setup/run lifecycle.
	ErrBadConfig = "E_BAD_CONFIG"
	ErrRunDone   = "E_RUN_DONE"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrSelectionExhausted: {},
	ErrBadConfig:          {},
	ErrRunDone:            {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
