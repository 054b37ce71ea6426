package venue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rustyeddy/contracttrader/broker"
	"github.com/rustyeddy/contracttrader/pkg/id"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultCurrency = "USD"
)

type state int

const (
	stateInit state = iota
	stateAuthorizing
	stateAwaitingQuote
	stateAwaitingOpenAck
	stateAwaitingCloseAck
	stateDone
	stateFaulted
	stateTimedOut
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateAuthorizing:
		return "authorizing"
	case stateAwaitingQuote:
		return "awaiting_quote"
	case stateAwaitingOpenAck:
		return "awaiting_open_ack"
	case stateAwaitingCloseAck:
		return "awaiting_close_ack"
	case stateDone:
		return "done"
	case stateFaulted:
		return "faulted"
	case stateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s state) terminal() bool {
	return s == stateDone || s == stateFaulted || s == stateTimedOut
}

// machine holds the protocol state of one run. It does no I/O: each input
// yields at most one frame to send and, on a terminal transition, the
// outcome.
type machine struct {
	intent   broker.Intent
	token    string
	currency string
	state    state
}

func (m *machine) start() Message {
	m.state = stateAuthorizing
	return Authorize{Token: m.token}
}

// handle applies one inbound message. Messages that are not expected in the
// current state are ignored and leave the state unchanged.
func (m *machine) handle(msg Message) (out Message, res *broker.Result, err *broker.Error) {
	if m.state.terminal() {
		return nil, nil, nil
	}

	if f, ok := msg.(Fault); ok {
		m.state = stateFaulted
		text := f.Message
		if text == "" {
			text = f.Code
		}
		return nil, nil, broker.ProtocolFault(text)
	}

	switch m.state {
	case stateAuthorizing:
		if _, ok := msg.(Authorized); !ok {
			return nil, nil, nil
		}
		if m.intent.Action == broker.ActionClose {
			m.state = stateAwaitingCloseAck
			return Liquidate{ContractID: m.intent.ContractID}, nil, nil
		}
		req, perr := m.priceRequest()
		if perr != nil {
			m.state = stateFaulted
			return nil, nil, perr
		}
		m.state = stateAwaitingQuote
		return req, nil, nil

	case stateAwaitingQuote:
		q, ok := msg.(PriceQuote)
		if !ok {
			return nil, nil, nil
		}
		m.state = stateAwaitingOpenAck
		return Commit{QuoteID: q.QuoteID, Price: q.AskPrice}, nil, nil

	case stateAwaitingOpenAck:
		o, ok := msg.(Opened)
		if !ok {
			return nil, nil, nil
		}
		m.state = stateDone
		return nil, &broker.Result{
			Kind: broker.ResultOpened,
			Opened: &broker.OpenResult{
				ContractID:   o.ContractID,
				BuyPrice:     o.Price,
				Payout:       o.Payout,
				StartTime:    o.StartTime,
				PurchaseTime: o.PurchaseTime,
				Longcode:     o.Description,
			},
		}, nil

	case stateAwaitingCloseAck:
		c, ok := msg.(Closed)
		if !ok {
			return nil, nil, nil
		}
		m.state = stateDone
		return nil, &broker.Result{
			Kind: broker.ResultClosed,
			Closed: &broker.CloseResult{
				SoldFor:       c.SettlementAmount,
				TransactionID: c.TransactionID,
			},
		}, nil
	}
	return nil, nil, nil
}

func (m *machine) priceRequest() (PriceRequest, *broker.Error) {
	unit, ok := m.intent.DurationUnit.Code()
	if !ok {
		return PriceRequest{}, broker.InvalidIntent(fmt.Sprintf("unsupported duration unit %d", int(m.intent.DurationUnit)))
	}
	ct, ok := m.intent.Direction.ContractType()
	if !ok {
		return PriceRequest{}, broker.InvalidIntent(fmt.Sprintf("unsupported direction %d", int(m.intent.Direction)))
	}
	req := PriceRequest{
		Instrument:   m.intent.Instrument,
		Stake:        m.intent.Stake,
		Currency:     m.currency,
		ContractType: ct,
		Duration:     m.intent.Duration,
		DurationUnit: unit,
	}
	if m.intent.Barrier != nil {
		b := *m.intent.Barrier
		req.Barrier = &b
	}
	return req, nil
}

// Orchestrator executes trade intents against the venue, one fresh
// connection per intent. It is safe for concurrent use.
type Orchestrator struct {
	dialer   Dialer
	token    string
	currency string
	timeout  time.Duration
	log      *slog.Logger
}

var _ broker.Trader = (*Orchestrator)(nil)

type Option func(*Orchestrator)

// WithTimeout sets the wall-clock budget of a run.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithCurrency(c string) Option {
	return func(o *Orchestrator) {
		if c != "" {
			o.currency = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func NewOrchestrator(d Dialer, token string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dialer:   d,
		token:    token,
		currency: DefaultCurrency,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute drives one intent to completion. Every failure is a *broker.Error;
// the connection is closed before Execute returns on every path.
func (o *Orchestrator) Execute(ctx context.Context, in broker.Intent) (broker.Result, error) {
	if err := in.Validate(); err != nil {
		return broker.Result{}, err
	}

	runID := id.New()
	log := o.log.With("run", runID, "action", in.Action.String())

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.run(ctx, log, in)
	if err != nil {
		var be *broker.Error
		if errors.As(err, &be) {
			log.Warn("trade failed", "kind", be.Kind.String(), "error", be.Message, "cause", be.Err)
		}
		return broker.Result{}, err
	}

	res.RunID = runID
	switch res.Kind {
	case broker.ResultOpened:
		log.Info("contract opened", "contract_id", res.Opened.ContractID,
			"buy_price", res.Opened.BuyPrice.String(), "payout", res.Opened.Payout.String())
	case broker.ResultClosed:
		log.Info("contract closed", "contract_id", in.ContractID,
			"sold_for", res.Closed.SoldFor.String(), "transaction_id", res.Closed.TransactionID)
	}
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, in broker.Intent) (broker.Result, error) {
	conn, err := o.dialer.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return broker.Result{}, ctxFailure(ctx)
		}
		return broker.Result{}, broker.Transport(broker.MsgConnectionError, err)
	}
	defer conn.Close()

	m := &machine{intent: in, token: o.token, currency: o.currency}
	if err := o.send(ctx, conn, m.start()); err != nil {
		return broker.Result{}, err
	}
	log.Debug("state", "state", m.state.String())

	for {
		select {
		case <-ctx.Done():
			m.state = stateTimedOut
			return broker.Result{}, ctxFailure(ctx)

		case f, ok := <-conn.Inbound():
			if !ok {
				m.state = stateFaulted
				return broker.Result{}, broker.Transport(broker.MsgConnectionClosed, io.ErrUnexpectedEOF)
			}
			if f.Err != nil {
				m.state = stateFaulted
				return broker.Result{}, broker.Transport(broker.MsgConnectionError, f.Err)
			}

			prev := m.state
			out, res, ferr := m.handle(f.Msg)
			if ferr != nil {
				return broker.Result{}, ferr
			}
			if res != nil {
				return *res, nil
			}
			if m.state == prev {
				log.Debug("ignored frame", "msg_type", TypeOf(f.Msg), "state", prev.String())
				continue
			}
			log.Debug("state", "state", m.state.String(), "after", TypeOf(f.Msg))
			if out != nil {
				if err := o.send(ctx, conn, out); err != nil {
					return broker.Result{}, err
				}
			}
		}
	}
}

func (o *Orchestrator) send(ctx context.Context, conn Conn, msg Message) error {
	if err := conn.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctxFailure(ctx)
		}
		return broker.Transport(broker.MsgConnectionError, fmt.Errorf("send %s: %w", TypeOf(msg), err))
	}
	return nil
}

func ctxFailure(ctx context.Context) *broker.Error {
	err := ctx.Err()
	if errors.Is(err, context.Canceled) {
		return &broker.Error{Kind: broker.KindTimeout, Message: broker.MsgCanceled, Err: err}
	}
	return broker.Timeout(err)
}
