// Package rpc is the caller-facing boundary of the trade executor: it turns
// loosely typed requests into intents and every outcome, success or any
// kind of failure, into one uniform response shape.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/contracttrader/broker"
)

const (
	ActionPlace = "place"
	ActionClose = "close"
)

// Request is the JSON trade request.
type Request struct {
	Action       string           `json:"action" validate:"required,oneof=place close"`
	Symbol       string           `json:"symbol,omitempty" validate:"required_if=Action place"`
	Direction    string           `json:"direction,omitempty" validate:"required_if=Action place,omitempty,oneof=CALL PUT"`
	Amount       *decimal.Decimal `json:"amount,omitempty" validate:"required_if=Action place"`
	Duration     *int             `json:"duration,omitempty" validate:"required_if=Action place,omitempty,gt=0"`
	DurationType string           `json:"durationType,omitempty" validate:"required_if=Action place,omitempty,oneof=seconds minutes hours"`
	ContractID   string           `json:"contractId,omitempty" validate:"required_if=Action close"`
	Barrier      *string          `json:"barrier,omitempty"`
}

// Response is the JSON trade response. Only the fields of the matching
// outcome are set.
type Response struct {
	Success bool `json:"success"`

	ContractID   string      `json:"contractId,omitempty"`
	BuyPrice     json.Number `json:"buyPrice,omitempty"`
	Payout       json.Number `json:"payout,omitempty"`
	StartTime    *int64      `json:"startTime,omitempty"`
	PurchaseTime *int64      `json:"purchaseTime,omitempty"`
	Longcode     string      `json:"longcode,omitempty"`

	SoldFor       json.Number `json:"soldFor,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`

	Error string `json:"error,omitempty"`

	Kind broker.ErrorKind `json:"-"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the request shape. Errors are KindInvalidIntent. A close
// request ignores the place-only fields.
func (r Request) Validate() error {
	if r.Action == ActionClose {
		r = Request{Action: r.Action, ContractID: r.ContractID}
	}
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return broker.InvalidIntent(err.Error())
	}
	return broker.InvalidIntent(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", "|"))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Intent validates the request and converts it.
func (r Request) Intent() (broker.Intent, error) {
	if err := r.Validate(); err != nil {
		return broker.Intent{}, err
	}

	if r.Action == ActionClose {
		return broker.Intent{Action: broker.ActionClose, ContractID: strings.TrimSpace(r.ContractID)}, nil
	}

	dir, err := broker.ParseDirection(r.Direction)
	if err != nil {
		return broker.Intent{}, broker.InvalidIntent(err.Error())
	}
	unit, err := broker.ParseDurationUnit(r.DurationType)
	if err != nil {
		return broker.Intent{}, broker.InvalidIntent(err.Error())
	}
	in := broker.Intent{
		Action:       broker.ActionOpen,
		Instrument:   r.Symbol,
		Direction:    dir,
		Stake:        *r.Amount,
		Duration:     *r.Duration,
		DurationUnit: unit,
	}
	if r.Barrier != nil && strings.TrimSpace(*r.Barrier) != "" {
		b := strings.TrimSpace(*r.Barrier)
		in.Barrier = &b
	}
	return in, in.Validate()
}

// FromResult renders a successful result.
func FromResult(res broker.Result) Response {
	switch res.Kind {
	case broker.ResultOpened:
		o := res.Opened
		start, purchase := o.StartTime, o.PurchaseTime
		return Response{
			Success:      true,
			ContractID:   o.ContractID,
			BuyPrice:     json.Number(o.BuyPrice.String()),
			Payout:       json.Number(o.Payout.String()),
			StartTime:    &start,
			PurchaseTime: &purchase,
			Longcode:     o.Longcode,
		}
	case broker.ResultClosed:
		return Response{
			Success:       true,
			SoldFor:       json.Number(res.Closed.SoldFor.String()),
			TransactionID: res.Closed.TransactionID,
		}
	default:
		return Failure(fmt.Errorf("unknown result kind %d", res.Kind))
	}
}

// Failure renders any error as the failure shape.
func Failure(err error) Response {
	msg := broker.MessageOf(err)
	if msg == "" {
		msg = "Unknown error"
	}
	return Response{Success: false, Error: msg, Kind: broker.KindOf(err)}
}

// Handler executes requests against a Trader.
type Handler struct {
	trader broker.Trader
	log    *slog.Logger
}

func NewHandler(t broker.Trader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{trader: t, log: log}
}

// Handle never fails: every error becomes a failure Response.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	in, err := req.Intent()
	if err != nil {
		h.log.Info("rejected trade request", "action", req.Action, "error", broker.MessageOf(err))
		return Failure(err)
	}

	res, err := h.trader.Execute(ctx, in)
	if err != nil {
		return Failure(err)
	}
	return FromResult(res)
}
