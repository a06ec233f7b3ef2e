package ledger

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotAStaker         = errors.New("not a staker")
	ErrNotAnActiveStaker  = errors.New("not an active staker")
	ErrNoPendingReward    = errors.New("no pending reward")
	ErrUnknownTier        = errors.New("unknown tier")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrZeroFeeBalance     = errors.New("zero fee balance")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrTransferFailed     = errors.New("transfer failed")

	ErrNotInitialized = errors.New("ledger not initialized")
	ErrNotUpgraded    = errors.New("ledger not upgraded to the fee-aware version")
	ErrInvalidFeeRate = errors.New("fee rate must be between 1 and 10000 basis points")
	ErrAssetMismatch  = errors.New("asset address does not match the configured asset")
)

// transferError wraps a collaborator failure so that it matches both
// ErrTransferFailed and the underlying asset error.
type transferError struct {
	op  string
	err error
}

func (e *transferError) Error() string {
	return e.op + ": " + ErrTransferFailed.Error() + ": " + e.err.Error()
}

func (e *transferError) Unwrap() []error {
	return []error{ErrTransferFailed, e.err}
}

func wrapTransferError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &transferError{op: op, err: err}
}
