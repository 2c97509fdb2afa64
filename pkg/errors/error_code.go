package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidOrderRequest  ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound       ErrorCode = 200
	ErrCodeQueryFailed        ErrorCode = 201
	ErrCodeLedgerWriteFailed  ErrorCode = 202
	ErrCodeLedgerOpenFailed   ErrorCode = 203
	ErrCodeFeatureStoreFailed ErrorCode = 204

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound     ErrorCode = 400
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeModelLoadFailed      ErrorCode = 403

	// Trading errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodeOrderRejected       ErrorCode = 501
	ErrCodeOrderNotFound       ErrorCode = 502
	ErrCodeInvalidTransition   ErrorCode = 503
	ErrCodeBrokerUnavailable   ErrorCode = 504
	ErrCodeQuoteUnavailable    ErrorCode = 505
	ErrCodeUnsupportedBroker   ErrorCode = 506
	ErrCodeRiskLimitExceeded   ErrorCode = 507
	ErrCodeTradeNotCancellable ErrorCode = 508

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeStreamFailed          ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 703

	// Controller errors (900-999)
	ErrCodeComponentNotFound    ErrorCode = 900
	ErrCodeComponentStopTimeout ErrorCode = 901
	ErrCodeComponentRunning     ErrorCode = 902
	ErrCodeComponentPanicked    ErrorCode = 903
)
