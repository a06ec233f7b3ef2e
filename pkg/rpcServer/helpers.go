package rpcServer

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"

	"github.com/Layr-Labs/tokenfarm/pkg/distributionQueue"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func (e *httpError) Unwrap() error {
	return e.cause
}

func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

func BadRequest(cause error) error {
	return HTTPError(cause, http.StatusBadRequest)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandlerFunc is an http.HandlerFunc that returns an error. An *httpError
// sets the response status; any other error is mapped by statusForError.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		status := statusForError(err)
		var he *httpError
		if errors.As(err, &he) {
			status = he.status
		}
		_ = writeJSONWithStatus(w, status, &ErrorResponse{Error: err.Error()})
	}
}

// statusForError maps ledger, token and queue errors to HTTP status codes.
// Transfer failures are checked first since they wrap the token error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownTier),
		errors.Is(err, ledger.ErrInvalidFeeRate),
		errors.Is(err, ledger.ErrAssetMismatch),
		errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, token.ErrNotTokenOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotAStaker):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotAnActiveStaker),
		errors.Is(err, ledger.ErrNoPendingReward),
		errors.Is(err, ledger.ErrZeroFeeBalance),
		errors.Is(err, ledger.ErrAlreadyInitialized),
		errors.Is(err, ledger.ErrNotInitialized),
		errors.Is(err, ledger.ErrNotUpgraded):
		return http.StatusConflict
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, distributionQueue.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

const JSONContentType = "application/json; charset=utf-8"

// ParseJSON decodes a request body in strict mode.
func ParseJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return BadRequest(errors.Wrap(err, "body"))
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, obj interface{}) error {
	return writeJSONWithStatus(w, http.StatusOK, obj)
}

func writeJSONWithStatus(w http.ResponseWriter, status int, obj interface{}) error {
	w.Header().Set("Content-Type", JSONContentType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(obj)
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	addr, err := utils.ParseAddress(mux.Vars(r)[name])
	if err != nil {
		return common.Address{}, BadRequest(errors.Wrap(err, name))
	}
	return addr, nil
}

func parseAddressField(name string, value string) (common.Address, error) {
	addr, err := utils.ParseAddress(value)
	if err != nil {
		return common.Address{}, BadRequest(errors.Wrap(err, name))
	}
	return addr, nil
}

func parseAmountField(name string, value string) (*big.Int, error) {
	amount, err := utils.ParseBigInt(value)
	if err != nil {
		return nil, BadRequest(errors.Wrap(err, name))
	}
	return amount, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
