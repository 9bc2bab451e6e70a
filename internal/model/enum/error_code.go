package enum

// ErrorCode is the machine readable reason carried by a failed Result.
//
// Engines may reply with codes outside this list; they are passed through untouched.
type ErrorCode string

// Validation codes.
const (
	CodeInvalidSymbol   ErrorCode = "INVALID_SYMBOL"
	CodeInvalidQuantity ErrorCode = "INVALID_QUANTITY"
	CodeInvalidPrice    ErrorCode = "INVALID_PRICE"
	CodeInvalidAction   ErrorCode = "INVALID_ACTION"
)

// Freshness codes.
const (
	CodeNoData           ErrorCode = "NO_DATA"
	CodeStaleData        ErrorCode = "STALE_DATA"
	CodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"
)

// Transport codes.
const (
	CodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	CodeIPCError          ErrorCode = "IPC_ERROR"
	CodeInvalidResponse   ErrorCode = "INVALID_RESPONSE"
)
