package wxpay

import (
	"github.com/go-pay/gopay"
	"github.com/shopspring/decimal"
)

// 响应字段
const (
	respReturnCode     = "return_code"
	respReturnMsg      = "return_msg"
	respResultCode     = "result_code"
	respErrCode        = "err_code"
	respErrCodeDes     = "err_code_des"
	respTradeState     = "trade_state"
	respTradeStateDesc = "trade_state_desc"
	respOpenID         = "openid"
	respTradeType      = "trade_type"
	respBankType       = "bank_type"
	respTotalFee       = "total_fee"
	respCashFee        = "cash_fee"
	respTransactionID  = "transaction_id"
	respOutTradeNo     = "out_trade_no"
	respTimeEnd        = "time_end"
	respAttach         = "attach"
	respRefundID       = "refund_id"
	respRefundFee      = "refund_fee"
	respPrepayID       = "prepay_id"
)

const codeSuccess = "SUCCESS"

// TradeState 订单交易状态
type TradeState int

// 交易状态常量定义
const (
	TradeStateUnknown    TradeState = iota // 无法识别的状态
	TradeStateSuccess                      // 支付成功
	TradeStateRefund                       // 转入退款
	TradeStateNotPay                       // 未支付
	TradeStateClosed                       // 已关闭
	TradeStateRevoked                      // 已撤销(刷卡支付)
	TradeStateUserPaying                   // 用户支付中
	TradeStatePayError                     // 支付失败
)

var tradeStateNames = map[TradeState]string{
	TradeStateSuccess:    "SUCCESS",
	TradeStateRefund:     "REFUND",
	TradeStateNotPay:     "NOTPAY",
	TradeStateClosed:     "CLOSED",
	TradeStateRevoked:    "REVOKED",
	TradeStateUserPaying: "USERPAYING",
	TradeStatePayError:   "PAYERROR",
}

func (s TradeState) String() string {
	if name, ok := tradeStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseTradeState 按微信的状态字符串精确匹配，无法识别时返回 TradeStateUnknown，不视为错误
func ParseTradeState(s string) TradeState {
	for state, name := range tradeStateNames {
		if name == s {
			return state
		}
	}
	return TradeStateUnknown
}

// classifyFunc 各接口的响应解析，在通用的通信/业务结果检查与验签之后调用
type classifyFunc func(req string, resp string, fields gopay.BodyMap) error

// checkEnvelope 检查 return_code 与 result_code
// 失败时按优先级分类：err_code > return_msg > 未知错误
func checkEnvelope(req string, resp string, fields gopay.BodyMap) error {
	if fields.GetString(respReturnCode) == codeSuccess && fields.GetString(respResultCode) == codeSuccess {
		return nil
	}

	if _, ok := fields[respErrCode]; ok {
		e := newError(KindBusiness, req, resp)
		e.Code = fields.GetString(respErrCode)
		e.Message = fields.GetString(respErrCodeDes)
		return e
	}
	if _, ok := fields[respReturnMsg]; ok {
		e := newError(KindProtocol, req, resp)
		e.Message = fields.GetString(respReturnMsg)
		return e
	}
	return newError(KindUnknown, req, resp)
}

// requireFields 检查必要字段是否存在，缺失时返回解析错误
func requireFields(req string, resp string, fields gopay.BodyMap, keys ...string) error {
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			e := newError(KindParse, req, resp)
			e.Message = "missing field " + k
			return e
		}
	}
	return nil
}

// QueryResult 查询订单结果
type QueryResult struct {
	TradeState     TradeState // 交易状态
	TradeStateDesc string     // 交易状态描述
	OpenID         string     // 用户标识
	TradeType      string     // 交易类型
	BankType       string     // 付款银行
	TotalFee       string     // 订单金额(分)
	CashFee        string     // 现金支付金额(分)
	TransactionID  string     // 微信支付订单号
	OutTradeNo     string     // 商户订单号
	TimeEnd        string     // 支付完成时间
	Attach         string     // 附加数据
}

// TotalYuan 订单金额(元)
func (r *QueryResult) TotalYuan() (decimal.Decimal, error) {
	return FenToYuan(r.TotalFee)
}

func classifyQuery(out *QueryResult) classifyFunc {
	return func(req string, resp string, fields gopay.BodyMap) error {
		if err := requireFields(req, resp, fields, respTradeState); err != nil {
			return err
		}
		out.TradeState = ParseTradeState(fields.GetString(respTradeState))
		out.OpenID = fields.GetString(respOpenID)
		out.TradeType = fields.GetString(respTradeType)
		out.BankType = fields.GetString(respBankType)
		out.TotalFee = fields.GetString(respTotalFee)
		out.CashFee = fields.GetString(respCashFee)
		out.TransactionID = fields.GetString(respTransactionID)
		out.OutTradeNo = fields.GetString(respOutTradeNo)
		out.TimeEnd = fields.GetString(respTimeEnd)
		out.TradeStateDesc = fields.GetString(respTradeStateDesc)
		out.Attach = fields.GetString(respAttach)
		return nil
	}
}

// RefundResult 申请退款结果
type RefundResult struct {
	RefundID  string // 微信退款单号
	RefundFee string // 退款金额(分)
}

func classifyRefund(out *RefundResult) classifyFunc {
	return func(req string, resp string, fields gopay.BodyMap) error {
		if err := requireFields(req, resp, fields, respRefundID, respRefundFee); err != nil {
			return err
		}
		out.RefundID = fields.GetString(respRefundID)
		out.RefundFee = fields.GetString(respRefundFee)
		return nil
	}
}

// PrepayResult 统一下单结果
type PrepayResult struct {
	TradeType           string // 交易类型
	PrepayID            string // 预支付交易会话标识
	PrepaySignedContent string // 调起支付所需的已签名参数(JSON)，仅 PrepayWithSign 填充
}

func classifyPrepay(out *PrepayResult) classifyFunc {
	return func(req string, resp string, fields gopay.BodyMap) error {
		if err := requireFields(req, resp, fields, respTradeType, respPrepayID); err != nil {
			return err
		}
		out.TradeType = fields.GetString(respTradeType)
		out.PrepayID = fields.GetString(respPrepayID)
		return nil
	}
}
