package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced by the purchase core.
type Kind string

const (
	// KindValidation is a user-correctable precondition failure.
	KindValidation Kind = "validation"
	// KindApproval covers rejected or reverted allowance approvals.
	KindApproval Kind = "approval"
	// KindPayment covers rejected or reverted payment transactions.
	KindPayment Kind = "payment"
	// KindFetch covers product, discount, balance and allowance lookups.
	KindFetch Kind = "fetch"
)

// Code identifies a specific failure reason within a kind.
type Code string

const (
	CodeTokenRequired            Code = "token_required"
	CodeAmountRequired           Code = "amount_required"
	CodeQuantityGreaterThanMax   Code = "quantity_greater_than_max_quantity"
	CodeInvalidQuantity          Code = "invalid_quantity"
	CodeOutOfStock               Code = "out_of_stock"
	CodeOverMaximumOrderQuantity Code = "over_maximum_order_quantity"
	CodeInsufficientBalance      Code = "insufficient_balance"
	CodeStartDateRequired        Code = "start_date_required"
	CodeDurationRequired         Code = "duration_required"
	CodeInvalidDuration          Code = "invalid_duration"
	CodeUnsupportedProduct       Code = "unsupported_product"
	CodeInvalidCommission        Code = "invalid_commission"
	CodeUnsupportedChain         Code = "unsupported_chain"
	CodeApprovalRequired         Code = "approval_required"

	CodeRejected  Code = "rejected"
	CodeReverted  Code = "reverted"
	CodeCancelled Code = "cancelled"
	CodeTransport Code = "transport"
)

// Error is the classified error type returned across the core boundary.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by kind and code so sentinel comparisons work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) || other == nil || e == nil {
		return false
	}
	if other.Code != "" && other.Code != e.Code {
		return false
	}
	return other.Kind == "" || other.Kind == e.Kind
}

// Validation sentinels, comparable with errors.Is.
var (
	ErrTokenRequired            = &Error{Kind: KindValidation, Code: CodeTokenRequired, Message: "Token Required"}
	ErrAmountRequired           = &Error{Kind: KindValidation, Code: CodeAmountRequired, Message: "Amount Required"}
	ErrQuantityGreaterThanMax   = &Error{Kind: KindValidation, Code: CodeQuantityGreaterThanMax, Message: "Quantity Greater Than Max Quantity"}
	ErrInvalidQuantity          = &Error{Kind: KindValidation, Code: CodeInvalidQuantity, Message: "Invalid Quantity"}
	ErrOutOfStock               = &Error{Kind: KindValidation, Code: CodeOutOfStock, Message: "Out of stock"}
	ErrOverMaximumOrderQuantity = &Error{Kind: KindValidation, Code: CodeOverMaximumOrderQuantity, Message: "Over Maximum Order Quantity"}
	ErrInsufficientBalance      = &Error{Kind: KindValidation, Code: CodeInsufficientBalance, Message: "Insufficient Balance"}
	ErrStartDateRequired        = &Error{Kind: KindValidation, Code: CodeStartDateRequired, Message: "Start Date Required"}
	ErrDurationRequired         = &Error{Kind: KindValidation, Code: CodeDurationRequired, Message: "Duration Required"}
	ErrInvalidDuration          = &Error{Kind: KindValidation, Code: CodeInvalidDuration, Message: "Invalid Duration"}
	ErrUnsupportedProduct       = &Error{Kind: KindFetch, Code: CodeUnsupportedProduct, Message: "Unsupported Product"}

	// ErrUnsupportedChain rejects work while the wallet is connected to a
	// chain other than the one the contracts were resolved for.
	ErrUnsupportedChain = &Error{Kind: KindValidation, Code: CodeUnsupportedChain, Message: "Unsupported Chain"}

	// ErrApprovalRequired rejects a payment the current approval does not
	// cover.
	ErrApprovalRequired = &Error{Kind: KindApproval, Code: CodeApprovalRequired, Message: "Approval Required"}
)

// InsufficientBalance builds the balance rejection naming the token symbol.
func InsufficientBalance(symbol string) *Error {
	symbol = strings.TrimSpace(symbol)
	msg := "Insufficient Balance"
	if symbol != "" {
		msg = fmt.Sprintf("Insufficient %s Balance", symbol)
	}
	return &Error{Kind: KindValidation, Code: CodeInsufficientBalance, Message: msg}
}

// New builds a classified error wrapping cause.
func New(kind Kind, code Code, cause error) *Error {
	return &Error{Kind: kind, Code: code, Err: cause}
}

// Classify converts any error into an *Error. Already classified errors are
// returned unchanged; everything else is attributed to fallback.
func Classify(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified
	}
	code := CodeTransport
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		code = CodeCancelled
	case isRejection(err):
		code = CodeRejected
	case isRevert(err):
		code = CodeReverted
	}
	return &Error{Kind: fallback, Code: code, Err: err}
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	var classified *Error
	if !stderrors.As(err, &classified) {
		return false
	}
	return classified.Kind == kind
}

func isRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

func isRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "status 0") || strings.Contains(msg, "execution failed")
}
