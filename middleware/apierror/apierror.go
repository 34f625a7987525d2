// Package apierror escreve o corpo de erro JSON padrão da API:
//
//	{"code": 3000, "details": "you are being rate limited"}
package apierror

import (
	"encoding/json"
	"net/http"
)

type Code uint32

const (
	RateLimited             Code = 3000
	Internal                Code = 4000
	Unavailable             Code = 4001
	UnknownGroup            Code = 5002
	Validation              Code = 5004
	UnknownMessage          Code = 5006
	InvalidToken            Code = 6000
	InsufficientPermissions Code = 6001
)

type Error struct {
	Code    Code   `json:"code"`
	Details string `json:"details"`
}

func (e Error) Error() string { return e.Details }

var (
	ErrRateLimited  = Error{Code: RateLimited, Details: "you are being rate limited"}
	ErrInternal     = Error{Code: Internal, Details: "internal server error"}
	ErrUnavailable  = Error{Code: Unavailable, Details: "too many open streams"}
	ErrInvalidToken = Error{Code: InvalidToken, Details: "invalid token"}

	ErrUnknownGroup            = Error{Code: UnknownGroup, Details: "unknown group"}
	ErrUnknownMessage          = Error{Code: UnknownMessage, Details: "unknown message"}
	ErrInsufficientPermissions = Error{Code: InsufficientPermissions, Details: "insufficient permissions"}
)

// ValidationError monta um erro de validação com detalhe próprio.
func ValidationError(details string) Error {
	return Error{Code: Validation, Details: details}
}

func Write(w http.ResponseWriter, status int, e Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
