package venue

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMap(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestEncodePriceRequest(t *testing.T) {
	req := PriceRequest{
		Instrument:   "frxUSDJPY",
		Stake:        decimal.NewFromInt(10),
		Currency:     "USD",
		ContractType: "CALL",
		Duration:     5,
		DurationUnit: "m",
	}

	b, err := Encode(req, 2)
	require.NoError(t, err)

	m := decodeMap(t, b)
	assert.Equal(t, float64(1), m["proposal"])
	assert.Equal(t, float64(10), m["amount"])
	assert.Equal(t, "stake", m["basis"])
	assert.Equal(t, "CALL", m["contract_type"])
	assert.Equal(t, "USD", m["currency"])
	assert.Equal(t, float64(5), m["duration"])
	assert.Equal(t, "m", m["duration_unit"])
	assert.Equal(t, "frxUSDJPY", m["symbol"])
	assert.Equal(t, float64(2), m["req_id"])
	_, hasBarrier := m["barrier"]
	assert.False(t, hasBarrier, "absent barrier must not be serialized")

	barrier := "+0.005"
	req.Barrier = &barrier
	b, err = Encode(req, 0)
	require.NoError(t, err)
	m = decodeMap(t, b)
	assert.Equal(t, "+0.005", m["barrier"])
	_, hasReqID := m["req_id"]
	assert.False(t, hasReqID)
}

func TestEncodeOthers(t *testing.T) {
	b, err := Encode(Authorize{Token: "tok"}, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"authorize":"tok","req_id":1}`, string(b))

	b, err = Encode(Commit{QuoteID: "Q1", Price: decimal.RequireFromString("10.5")}, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"buy":"Q1","price":10.5,"req_id":3}`, string(b))

	b, err = Encode(Liquidate{ContractID: "250111"}, 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sell":250111,"price":0,"req_id":2}`, string(b))

	b, err = Encode(Liquidate{ContractID: "C1"}, 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sell":"C1","price":0,"req_id":2}`, string(b))

	_, err = Encode(Opened{}, 1)
	assert.ErrorIs(t, err, ErrNotOutbound)
}

func TestEncodeKeepsOpaqueIDs(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"contract id with leading zero", Liquidate{ContractID: "007"}, `{"sell":"007","price":0,"req_id":1}`},
		{"numeric contract id", Liquidate{ContractID: "42"}, `{"sell":42,"price":0,"req_id":1}`},
		{"contract id with sign", Liquidate{ContractID: "+42"}, `{"sell":"+42","price":0,"req_id":1}`},
		{"digit quote id with leading zero", Commit{QuoteID: "0123456789", Price: decimal.NewFromInt(1)}, `{"buy":"0123456789","price":1,"req_id":1}`},
		{"digit quote id", Commit{QuoteID: "42", Price: decimal.NewFromInt(1)}, `{"buy":"42","price":1,"req_id":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.msg, 1)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Message
	}{
		{
			name:  "authorize",
			frame: `{"msg_type":"authorize","authorize":{"loginid":"CR90000","currency":"USD"}}`,
			want:  Authorized{LoginID: "CR90000", Currency: "USD"},
		},
		{
			name:  "proposal",
			frame: `{"msg_type":"proposal","proposal":{"id":"Q1","ask_price":10.5,"payout":19}}`,
			want:  PriceQuote{QuoteID: "Q1", AskPrice: decimal.RequireFromString("10.5"), Payout: decimal.NewFromInt(19)},
		},
		{
			name: "buy",
			frame: `{"msg_type":"buy","buy":{"contract_id":11542,"buy_price":10.5,"payout":19,
				"start_time":1000,"purchase_time":1000,"longcode":"Win payout","transaction_id":77}}`,
			want: Opened{
				ContractID:    "11542",
				Price:         decimal.RequireFromString("10.5"),
				Payout:        decimal.NewFromInt(19),
				StartTime:     1000,
				PurchaseTime:  1000,
				Description:   "Win payout",
				TransactionID: "77",
			},
		},
		{
			name:  "sell",
			frame: `{"msg_type":"sell","sell":{"sold_for":15,"transaction_id":"T1"}}`,
			want:  Closed{SettlementAmount: decimal.NewFromInt(15), TransactionID: "T1"},
		},
		{
			name:  "error wins over body",
			frame: `{"msg_type":"buy","error":{"code":"InvalidContractProposal","message":"Proposal expired"}}`,
			want:  Fault{Code: "InvalidContractProposal", Message: "Proposal expired", ReplyTo: "buy"},
		},
		{
			name:  "auxiliary",
			frame: `{"msg_type":"time","time":1700000000}`,
			want:  Notice{Type: "time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			require.IsType(t, tt.want, got)
			assert.Equal(t, TypeOf(tt.want), TypeOf(got))

			switch want := tt.want.(type) {
			case PriceQuote:
				g := got.(PriceQuote)
				assert.Equal(t, want.QuoteID, g.QuoteID)
				assert.True(t, want.AskPrice.Equal(g.AskPrice))
				assert.True(t, want.Payout.Equal(g.Payout))
			case Opened:
				g := got.(Opened)
				assert.Equal(t, want.ContractID, g.ContractID)
				assert.True(t, want.Price.Equal(g.Price))
				assert.True(t, want.Payout.Equal(g.Payout))
				assert.Equal(t, want.StartTime, g.StartTime)
				assert.Equal(t, want.PurchaseTime, g.PurchaseTime)
				assert.Equal(t, want.Description, g.Description)
				assert.Equal(t, want.TransactionID, g.TransactionID)
			case Closed:
				g := got.(Closed)
				assert.True(t, want.SettlementAmount.Equal(g.SettlementAmount))
				assert.Equal(t, want.TransactionID, g.TransactionID)
			default:
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`{"authorize":{}}`,
		`{"msg_type":"proposal"}`,
		`{"msg_type":"buy","buy":{"contract_id":{}}}`,
	} {
		_, err := Decode([]byte(frame))
		assert.Error(t, err, frame)
	}
}

func TestIDRoundTrip(t *testing.T) {
	var out struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
		D ID `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":123,"b":"x-9","c":null,"d":"007"}`), &out))
	assert.Equal(t, ID("123"), out.A)
	assert.Equal(t, ID("x-9"), out.B)
	assert.Equal(t, ID(""), out.C)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":123,"b":"x-9","c":"","d":"007"}`, string(b))
}
