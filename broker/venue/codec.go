package venue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

var ErrNotOutbound = errors.New("venue: message cannot be sent")

// ID is an opaque venue identifier. The venue uses integers for contract and
// transaction ids and strings for quote ids; both decode into ID. An ID is
// written back as a number only when it is the canonical decimal form of
// one, so "007" stays a string.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseUint(string(id), 10, 64); err == nil && strconv.FormatUint(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("venue: id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

type authorizeReq struct {
	Authorize string `json:"authorize"`
	ReqID     int    `json:"req_id,omitempty"`
}

type proposalReq struct {
	Proposal     int         `json:"proposal"`
	Amount       json.Number `json:"amount"`
	Basis        string      `json:"basis"`
	ContractType string      `json:"contract_type"`
	Currency     string      `json:"currency"`
	Duration     int         `json:"duration"`
	DurationUnit string      `json:"duration_unit"`
	Symbol       string      `json:"symbol"`
	Barrier      *string     `json:"barrier,omitempty"`
	ReqID        int         `json:"req_id,omitempty"`
}

// Quote ids are strings on the wire, even when they are all digits.
type buyReq struct {
	Buy   string      `json:"buy"`
	Price json.Number `json:"price"`
	ReqID int         `json:"req_id,omitempty"`
}

type sellReq struct {
	Sell  ID          `json:"sell"`
	Price json.Number `json:"price"`
	ReqID int         `json:"req_id,omitempty"`
}

// Encode renders an outbound message as a JSON frame. reqID is echoed by
// the venue; zero omits it.
func Encode(m Message, reqID int) ([]byte, error) {
	var v any
	switch m := m.(type) {
	case Authorize:
		v = authorizeReq{Authorize: m.Token, ReqID: reqID}
	case PriceRequest:
		v = proposalReq{
			Proposal:     1,
			Amount:       json.Number(m.Stake.String()),
			Basis:        "stake",
			ContractType: m.ContractType,
			Currency:     m.Currency,
			Duration:     m.Duration,
			DurationUnit: m.DurationUnit,
			Symbol:       m.Instrument,
			Barrier:      m.Barrier,
			ReqID:        reqID,
		}
	case Commit:
		v = buyReq{Buy: m.QuoteID, Price: json.Number(m.Price.String()), ReqID: reqID}
	case Liquidate:
		// price 0 sells at market
		v = sellReq{Sell: ID(m.ContractID), Price: "0", ReqID: reqID}
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotOutbound, m)
	}
	return json.Marshal(v)
}

type envelope struct {
	MsgType string         `json:"msg_type"`
	Error   *errorBody     `json:"error"`
	Auth    *authorizeBody `json:"authorize"`
	Quote   *proposalBody  `json:"proposal"`
	Buy     *buyBody       `json:"buy"`
	Sell    *sellBody      `json:"sell"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authorizeBody struct {
	LoginID  string `json:"loginid"`
	Currency string `json:"currency"`
}

type proposalBody struct {
	ID       ID              `json:"id"`
	AskPrice decimal.Decimal `json:"ask_price"`
	Payout   decimal.Decimal `json:"payout"`
}

type buyBody struct {
	ContractID    ID              `json:"contract_id"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	Payout        decimal.Decimal `json:"payout"`
	StartTime     int64           `json:"start_time"`
	PurchaseTime  int64           `json:"purchase_time"`
	Longcode      string          `json:"longcode"`
	TransactionID ID              `json:"transaction_id"`
}

type sellBody struct {
	SoldFor       decimal.Decimal `json:"sold_for"`
	TransactionID ID              `json:"transaction_id"`
}

// Decode parses one inbound frame. An error frame always decodes to Fault,
// whatever its msg_type. Frames of other types decode to Notice.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("venue: bad frame: %w (frame=%q)", err, trimForErr(b))
	}

	if env.Error != nil {
		return Fault{Code: env.Error.Code, Message: env.Error.Message, ReplyTo: env.MsgType}, nil
	}

	switch env.MsgType {
	case "authorize":
		if env.Auth == nil {
			return nil, missingBody(env.MsgType)
		}
		return Authorized{LoginID: env.Auth.LoginID, Currency: env.Auth.Currency}, nil
	case "proposal":
		if env.Quote == nil {
			return nil, missingBody(env.MsgType)
		}
		return PriceQuote{QuoteID: string(env.Quote.ID), AskPrice: env.Quote.AskPrice, Payout: env.Quote.Payout}, nil
	case "buy":
		if env.Buy == nil {
			return nil, missingBody(env.MsgType)
		}
		return Opened{
			ContractID:    string(env.Buy.ContractID),
			Price:         env.Buy.BuyPrice,
			Payout:        env.Buy.Payout,
			StartTime:     env.Buy.StartTime,
			PurchaseTime:  env.Buy.PurchaseTime,
			Description:   env.Buy.Longcode,
			TransactionID: string(env.Buy.TransactionID),
		}, nil
	case "sell":
		if env.Sell == nil {
			return nil, missingBody(env.MsgType)
		}
		return Closed{SettlementAmount: env.Sell.SoldFor, TransactionID: string(env.Sell.TransactionID)}, nil
	case "":
		return nil, fmt.Errorf("venue: frame without msg_type (frame=%q)", trimForErr(b))
	default:
		return Notice{Type: env.MsgType}, nil
	}
}

func missingBody(msgType string) error {
	return fmt.Errorf("venue: %s frame without %s body", msgType, msgType)
}

func trimForErr(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
