// Package venue speaks the contract venue's websocket protocol: message
// shapes, the JSON wire codec, the connection and the orchestrator that
// drives one trade through it.
package venue

import "github.com/shopspring/decimal"

// Message is one protocol frame. The set of shapes is closed.
type Message interface {
	msgType() string
}

// TypeOf returns the venue's msg_type name for m.
func TypeOf(m Message) string {
	if m == nil {
		return ""
	}
	return m.msgType()
}

// Outbound frames.

type Authorize struct {
	Token string
}

type PriceRequest struct {
	Instrument   string
	Stake        decimal.Decimal
	Currency     string
	ContractType string // CALL or PUT
	Duration     int
	DurationUnit string // s, m or h
	Barrier      *string
}

type Commit struct {
	QuoteID string
	Price   decimal.Decimal
}

type Liquidate struct {
	ContractID string
}

// Inbound frames.

type Authorized struct {
	LoginID  string
	Currency string
}

type PriceQuote struct {
	QuoteID  string
	AskPrice decimal.Decimal
	Payout   decimal.Decimal
}

type Opened struct {
	ContractID    string
	Price         decimal.Decimal
	Payout        decimal.Decimal
	StartTime     int64
	PurchaseTime  int64
	Description   string
	TransactionID string
}

type Closed struct {
	SettlementAmount decimal.Decimal
	TransactionID    string
}

// Fault is the venue's error frame. It may replace any expected reply.
type Fault struct {
	Code    string
	Message string
	// ReplyTo is the msg_type of the request that failed, when known.
	ReplyTo string
}

// Notice is any frame the protocol does not act on (ping, time, balance...).
type Notice struct {
	Type string
}

func (Authorize) msgType() string    { return "authorize" }
func (PriceRequest) msgType() string { return "proposal" }
func (Commit) msgType() string       { return "buy" }
func (Liquidate) msgType() string    { return "sell" }
func (Authorized) msgType() string   { return "authorize" }
func (PriceQuote) msgType() string   { return "proposal" }
func (Opened) msgType() string       { return "buy" }
func (Closed) msgType() string       { return "sell" }
func (Fault) msgType() string        { return "error" }
func (n Notice) msgType() string     { return n.Type }
