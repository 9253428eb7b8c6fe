package errs

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error with an HTTP status code.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Common error values.
var (
	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden      = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
)

// Business error values.
var (
	ErrInsufficientBalance = New(http.StatusBadRequest, "Insufficient wallet balance", nil)
	ErrBelowMinimum        = New(http.StatusBadRequest, "Amount below minimum withdrawal", nil)
	ErrPayoutNotPending    = New(http.StatusConflict, "Payout request is not pending", nil)
	ErrInvalidTransition   = New(http.StatusConflict, "Invalid status transition", nil)
	ErrRefundNotAllowed    = New(http.StatusBadRequest, "Payment cannot be refunded", nil)
	ErrRefundTooLarge      = New(http.StatusBadRequest, "Refund exceeds payment amount", nil)
)

// Respond writes err as the standard {success,message} envelope. Unknown
// error types are rendered as a 500 without leaking internals.
func Respond(c *gin.Context, err error) {
	appErr, ok := err.(*Error)
	if !ok {
		appErr = ErrInternalServer
	}
	c.JSON(appErr.Code, gin.H{"success": false, "message": appErr.Message})
}
