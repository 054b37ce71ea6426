package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Trader drives a single trade intent to a terminal result.
type Trader interface {
	Execute(ctx context.Context, in Intent) (Result, error)
}

type Action int

const (
	ActionOpen Action = iota
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

// ContractType is the venue's name for the direction.
func (d Direction) ContractType() (string, bool) {
	switch d {
	case DirectionUp:
		return "CALL", true
	case DirectionDown:
		return "PUT", true
	default:
		return "", false
	}
}

// ParseDirection accepts CALL/PUT as well as up/down.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "UP":
		return DirectionUp, nil
	case "PUT", "DOWN":
		return DirectionDown, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want CALL|PUT)", s)
	}
}

type DurationUnit int

const (
	Seconds DurationUnit = iota
	Minutes
	Hours
)

// Code maps the unit to the venue's duration_unit value.
func (u DurationUnit) Code() (string, bool) {
	switch u {
	case Seconds:
		return "s", true
	case Minutes:
		return "m", true
	case Hours:
		return "h", true
	default:
		return "", false
	}
}

func ParseDurationUnit(s string) (DurationUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seconds", "s":
		return Seconds, nil
	case "minutes", "m":
		return Minutes, nil
	case "hours", "h":
		return Hours, nil
	default:
		return 0, fmt.Errorf("unknown duration unit %q (want seconds|minutes|hours)", s)
	}
}

// Intent describes what the caller wants done. For ActionClose only
// ContractID is read.
type Intent struct {
	Action       Action
	Instrument   string
	Direction    Direction
	Stake        decimal.Decimal
	Duration     int
	DurationUnit DurationUnit
	Barrier      *string
	ContractID   string
}

// Validate reports a KindInvalidIntent error for malformed intents.
func (in Intent) Validate() error {
	switch in.Action {
	case ActionClose:
		if strings.TrimSpace(in.ContractID) == "" {
			return InvalidIntent("contractId is required to close a contract")
		}
		return nil
	case ActionOpen:
		if in.ContractID != "" {
			return InvalidIntent("contractId must be empty when opening a contract")
		}
		if strings.TrimSpace(in.Instrument) == "" {
			return InvalidIntent("symbol is required")
		}
		if !in.Stake.IsPositive() {
			return InvalidIntent("amount must be positive")
		}
		if in.Duration <= 0 {
			return InvalidIntent("duration must be positive")
		}
		if _, ok := in.Direction.ContractType(); !ok {
			return InvalidIntent(fmt.Sprintf("unsupported direction %d", int(in.Direction)))
		}
		if _, ok := in.DurationUnit.Code(); !ok {
			return InvalidIntent(fmt.Sprintf("unsupported duration unit %d", int(in.DurationUnit)))
		}
		return nil
	default:
		return InvalidIntent(fmt.Sprintf("unknown action %v", in.Action))
	}
}

type ResultKind int

const (
	ResultOpened ResultKind = iota + 1
	ResultClosed
)

// OpenResult is copied verbatim from the venue's purchase confirmation.
type OpenResult struct {
	ContractID   string
	BuyPrice     decimal.Decimal
	Payout       decimal.Decimal
	StartTime    int64
	PurchaseTime int64
	Longcode     string
}

// CloseResult is copied verbatim from the venue's sale confirmation.
type CloseResult struct {
	SoldFor       decimal.Decimal
	TransactionID string
}

// Result is the single successful outcome of one run. Failures are
// returned as *Error instead.
type Result struct {
	RunID  string
	Kind   ResultKind
	Opened *OpenResult
	Closed *CloseResult
}

type ErrorKind int

const (
	KindInvalidIntent ErrorKind = iota + 1
	KindTransport
	KindProtocolFault
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidIntent:
		return "invalid_intent"
	case KindTransport:
		return "transport"
	case KindProtocolFault:
		return "protocol_fault"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

const (
	MsgTimeout          = "Request timeout"
	MsgCanceled         = "Request canceled"
	MsgConnectionError  = "Connection error"
	MsgConnectionClosed = "Connection closed"
)

// Error is the failure outcome of a run. Message is what the caller sees;
// Err keeps the underlying cause, if any.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidIntent(msg string) *Error {
	return &Error{Kind: KindInvalidIntent, Message: msg}
}

func Transport(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

func ProtocolFault(msg string) *Error {
	return &Error{Kind: KindProtocolFault, Message: msg}
}

func Timeout(err error) *Error {
	return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: err}
}

// KindOf returns the kind of a *Error anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
