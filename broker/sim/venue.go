// Package sim is an in-process contract venue. It implements venue.Dialer so
// the orchestrator can be driven end to end without network access.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/contracttrader/broker/venue"
	"github.com/rustyeddy/contracttrader/pkg/id"
)

const (
	DefaultPayoutRatio = "1.9"
	loginID            = "VRTC0000001"
)

// Options tune the simulated venue. Zero values take defaults.
type Options struct {
	Token    string
	Currency string
	// PayoutRatio is payout / stake for every quote.
	PayoutRatio decimal.Decimal
	// Settle prices a contract when it is sold. Defaults to the buy price.
	Settle func(Contract) decimal.Decimal
	// Notices sends an auxiliary "time" frame ahead of every reply.
	Notices bool
	Now     func() time.Time
}

type quote struct {
	req      venue.PriceRequest
	askPrice decimal.Decimal
	payout   decimal.Decimal
}

// Venue answers the protocol the way the real venue does: authorize,
// proposal, buy and sell, with error frames for anything it rejects.
type Venue struct {
	opts Options
	book Book
}

var _ venue.Dialer = (*Venue)(nil)

func New(book Book, opts Options) *Venue {
	if opts.Currency == "" {
		opts.Currency = venue.DefaultCurrency
	}
	if !opts.PayoutRatio.IsPositive() {
		opts.PayoutRatio = decimal.RequireFromString(DefaultPayoutRatio)
	}
	if opts.Settle == nil {
		opts.Settle = func(c Contract) decimal.Decimal { return c.BuyPrice }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if book == nil {
		book = NewMemoryBook()
	}
	return &Venue{opts: opts, book: book}
}

func (v *Venue) Book() Book { return v.book }

// Dial opens a new session. Sessions share the book but nothing else.
func (v *Venue) Dial(ctx context.Context) (venue.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{
		venue:  v,
		in:     make(chan venue.Frame, 8),
		done:   make(chan struct{}),
		quotes: make(map[string]quote),
	}, nil
}

type session struct {
	venue *Venue

	mu         sync.Mutex
	authorized bool
	quotes     map[string]quote

	// sendMu keeps Close from closing in while Send is writing to it.
	sendMu    sync.Mutex
	in        chan venue.Frame
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	closes    atomic.Int32
}

func (s *session) Inbound() <-chan venue.Frame { return s.in }

func (s *session) Send(ctx context.Context, m venue.Message) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return venue.ErrClosed
	}

	replies := s.respond(ctx, m)
	if s.venue.opts.Notices {
		replies = append([]venue.Message{venue.Notice{Type: "time"}}, replies...)
	}
	for _, r := range replies {
		select {
		case s.in <- venue.Frame{Msg: r}:
		case <-s.done:
			return venue.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *session) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)

		s.sendMu.Lock()
		close(s.in)
		s.sendMu.Unlock()
	})
	return nil
}

func fault(code, msg, replyTo string) []venue.Message {
	return []venue.Message{venue.Fault{Code: code, Message: msg, ReplyTo: replyTo}}
}

func (s *session) respond(ctx context.Context, m venue.Message) []venue.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.venue.opts

	if _, ok := m.(venue.Authorize); !ok && !s.authorized {
		return fault("AuthorizationRequired", "Please log in.", venue.TypeOf(m))
	}

	switch m := m.(type) {
	case venue.Authorize:
		if opts.Token != "" && m.Token != opts.Token {
			return fault("InvalidToken", "The token is invalid.", "authorize")
		}
		s.authorized = true
		return []venue.Message{venue.Authorized{LoginID: loginID, Currency: opts.Currency}}

	case venue.PriceRequest:
		if m.Currency != opts.Currency {
			return fault("InvalidCurrency", fmt.Sprintf("Currency %s is not supported.", m.Currency), "proposal")
		}
		if !m.Stake.IsPositive() {
			return fault("ContractBuyValidationError", "Stake must be positive.", "proposal")
		}
		if m.Duration <= 0 || unitWord(m.DurationUnit) == "" {
			return fault("OfferingsValidationError", "Trading is not offered for this duration.", "proposal")
		}
		q := quote{
			req:      m,
			askPrice: m.Stake,
			payout:   m.Stake.Mul(opts.PayoutRatio).Round(2),
		}
		qid := id.Prefixed("q")
		s.quotes[qid] = q
		return []venue.Message{venue.PriceQuote{QuoteID: qid, AskPrice: q.askPrice, Payout: q.payout}}

	case venue.Commit:
		q, ok := s.quotes[m.QuoteID]
		if !ok {
			return fault("InvalidContractProposal", "Proposal not found.", "buy")
		}
		if m.Price.LessThan(q.askPrice) {
			return fault("PriceMoved", fmt.Sprintf("Contract price %s is below ask %s.", m.Price, q.askPrice), "buy")
		}
		delete(s.quotes, m.QuoteID)

		now := opts.Now().Unix()
		c := Contract{
			ID:           id.Prefixed("c"),
			Instrument:   q.req.Instrument,
			ContractType: q.req.ContractType,
			BuyPrice:     q.askPrice,
			Payout:       q.payout,
			StartTime:    now,
			PurchaseTime: now,
			Longcode:     longcode(q.req),
		}
		if err := s.venue.book.Put(ctx, c); err != nil {
			return fault("InternalServerError", err.Error(), "buy")
		}
		return []venue.Message{venue.Opened{
			ContractID:    c.ID,
			Price:         c.BuyPrice,
			Payout:        c.Payout,
			StartTime:     c.StartTime,
			PurchaseTime:  c.PurchaseTime,
			Description:   c.Longcode,
			TransactionID: id.Prefixed("t"),
		}}

	case venue.Liquidate:
		c, err := s.venue.book.Take(ctx, m.ContractID)
		if errors.Is(err, ErrContractNotFound) {
			return fault("InvalidSellContractProposal", "This contract was not found among your open positions.", "sell")
		}
		if err != nil {
			return fault("InternalServerError", err.Error(), "sell")
		}
		return []venue.Message{venue.Closed{
			SettlementAmount: opts.Settle(c),
			TransactionID:    id.Prefixed("t"),
		}}
	}

	return fault("UnrecognisedRequest", fmt.Sprintf("Unrecognised request %q.", venue.TypeOf(m)), venue.TypeOf(m))
}

func unitWord(code string) string {
	switch code {
	case "s":
		return "seconds"
	case "m":
		return "minutes"
	case "h":
		return "hours"
	default:
		return ""
	}
}

func longcode(req venue.PriceRequest) string {
	dir := "higher"
	if req.ContractType == "PUT" {
		dir = "lower"
	}
	target := "entry spot"
	if b := req.Barrier; b != nil {
		// relative barriers carry a sign, absolute ones are a price level
		if strings.HasPrefix(*b, "+") || strings.HasPrefix(*b, "-") {
			target = "entry spot " + *b
		} else {
			target = *b
		}
	}
	return fmt.Sprintf("Win payout if %s is strictly %s than %s at %d %s after contract start time.",
		req.Instrument, dir, target, req.Duration, unitWord(req.DurationUnit))
}
