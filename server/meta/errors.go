package meta

import (
	"errors"
	"net/http"

	"tidewar/shared/protocol"
)

var (
	ErrNotFound         = errors.New("meta: not found")
	ErrInsufficientGems = errors.New("meta: not enough gems")
	ErrMaxLevel         = errors.New("meta: card already at max level")
	ErrInvalidSlot      = errors.New("meta: card is not in the expected slot")
	ErrInvalidArgument  = errors.New("meta: invalid argument")
)

// RPCError is a coded failure returned to RPC callers.
type RPCError struct {
	Status  int
	Code    string
	Message string
}

func (e *RPCError) Error() string { return e.Code + ": " + e.Message }

func (e *RPCError) Body() protocol.RPCErrorResp {
	return protocol.RPCErrorResp{Error: protocol.RPCError{Code: e.Code, Message: e.Message}}
}

// toRPCError maps service errors to coded responses. Unknown errors are
// reported as internal without leaking detail.
func toRPCError(err error) *RPCError {
	var re *RPCError
	switch {
	case errors.As(err, &re):
		return re
	case errors.Is(err, ErrNotFound):
		return &RPCError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "card not found"}
	case errors.Is(err, ErrInsufficientGems):
		return &RPCError{Status: http.StatusConflict, Code: "INSUFFICIENT_GEMS", Message: "not enough gems"}
	case errors.Is(err, ErrMaxLevel):
		return &RPCError{Status: http.StatusConflict, Code: "MAX_LEVEL", Message: "card is at max level"}
	case errors.Is(err, ErrInvalidSlot):
		return &RPCError{Status: http.StatusBadRequest, Code: "INVALID_SLOT", Message: "cards are not in deck and collection"}
	case errors.Is(err, ErrInvalidArgument):
		return &RPCError{Status: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: err.Error()}
	}
	return &RPCError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}
