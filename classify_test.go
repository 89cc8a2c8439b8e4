package wxpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		wantKind ErrorKind
		wantCode string
		wantMsg  string
	}{
		{
			name:   "Success",
			fields: map[string]string{"return_code": "SUCCESS", "result_code": "SUCCESS"},
		},
		{
			name: "Business error wins over protocol error",
			fields: map[string]string{
				"return_code": "FAIL", "result_code": "FAIL",
				"err_code": "ORDERPAID", "err_code_des": "该订单已支付", "return_msg": "参数格式校验错误",
			},
			wantKind: KindBusiness,
			wantCode: "ORDERPAID",
			wantMsg:  "该订单已支付",
		},
		{
			name:     "Protocol error",
			fields:   map[string]string{"return_code": "FAIL", "return_msg": "签名失败"},
			wantKind: KindProtocol,
			wantMsg:  "签名失败",
		},
		{
			name:     "Result code failure without details",
			fields:   map[string]string{"return_code": "SUCCESS", "result_code": "FAIL"},
			wantKind: KindUnknown,
		},
		{
			name:     "Missing result code",
			fields:   map[string]string{"return_code": "SUCCESS"},
			wantKind: KindUnknown,
		},
		{
			name:     "Lowercase success token",
			fields:   map[string]string{"return_code": "success", "result_code": "success"},
			wantKind: KindUnknown,
		},
		{
			name:     "Empty document",
			fields:   map[string]string{},
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkEnvelope("req", "resp", bodyMapOf(tt.fields))
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, "req", e.Request)
			assert.Equal(t, "resp", e.Response)
		})
	}
}

func TestParseTradeState(t *testing.T) {
	tests := map[string]TradeState{
		"SUCCESS":       TradeStateSuccess,
		"REFUND":        TradeStateRefund,
		"NOTPAY":        TradeStateNotPay,
		"CLOSED":        TradeStateClosed,
		"REVOKED":       TradeStateRevoked,
		"USERPAYING":    TradeStateUserPaying,
		"PAYERROR":      TradeStatePayError,
		"garbage-value": TradeStateUnknown,
		"success":       TradeStateUnknown,
		"":              TradeStateUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTradeState(in), in)
	}

	assert.Equal(t, "USERPAYING", TradeStateUserPaying.String())
	assert.Equal(t, "UNKNOWN", TradeStateUnknown.String())
}

func TestClassifyQuery(t *testing.T) {
	t.Run("Maps fields", func(t *testing.T) {
		out := &QueryResult{}
		err := classifyQuery(out)("", "", bodyMapOf(successFields(map[string]string{
			"trade_state":    "SUCCESS",
			"transaction_id": "1009660380201506130728806387",
			"out_trade_no":   "T1",
			"total_fee":      "1999",
			"attach":         "a|b|c",
		})))
		require.NoError(t, err)
		assert.Equal(t, TradeStateSuccess, out.TradeState)
		assert.Equal(t, "1009660380201506130728806387", out.TransactionID)
		assert.Equal(t, "a|b|c", out.Attach)

		yuan, err := out.TotalYuan()
		require.NoError(t, err)
		assert.Equal(t, "19.99", yuan.String())
	})

	t.Run("Unknown state is not an error", func(t *testing.T) {
		out := &QueryResult{}
		err := classifyQuery(out)("", "", bodyMapOf(successFields(map[string]string{"trade_state": "garbage-value"})))
		require.NoError(t, err)
		assert.Equal(t, TradeStateUnknown, out.TradeState)
	})

	t.Run("Missing trade state", func(t *testing.T) {
		err := classifyQuery(&QueryResult{})("", "", bodyMapOf(successFields(nil)))
		assert.ErrorIs(t, err, ErrParse)
		assert.Contains(t, err.Error(), "trade_state")
	})
}

func TestClassifyRefund(t *testing.T) {
	t.Run("Maps fields", func(t *testing.T) {
		out := &RefundResult{}
		err := classifyRefund(out)("", "", bodyMapOf(successFields(map[string]string{"refund_id": "2008450740201411110000174436", "refund_fee": "40"})))
		require.NoError(t, err)
		assert.Equal(t, "2008450740201411110000174436", out.RefundID)
		assert.Equal(t, "40", out.RefundFee)
	})

	t.Run("Missing refund fee is a parse error", func(t *testing.T) {
		err := classifyRefund(&RefundResult{})("", "", bodyMapOf(successFields(map[string]string{"refund_id": "1"})))
		assert.Equal(t, KindParse, KindOf(err))
	})
}

func TestClassifyPrepay(t *testing.T) {
	t.Run("Maps fields", func(t *testing.T) {
		out := &PrepayResult{}
		err := classifyPrepay(out)("", "", bodyMapOf(successFields(map[string]string{"trade_type": "APP", "prepay_id": "wx201410272009395522657a690389285100"})))
		require.NoError(t, err)
		assert.Equal(t, "APP", out.TradeType)
		assert.Equal(t, "wx201410272009395522657a690389285100", out.PrepayID)
	})

	t.Run("Missing prepay id", func(t *testing.T) {
		err := classifyPrepay(&PrepayResult{})("", "", bodyMapOf(successFields(map[string]string{"trade_type": "APP"})))
		assert.ErrorIs(t, err, ErrParse)
	})
}
