package wxpay

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayNotify 支付结果通知
type PayNotify struct {
	ResultCode    string // 业务结果 SUCCESS/FAIL
	ErrCode       string // 错误代码，支付失败时返回
	ErrCodeDes    string // 错误代码描述
	OutTradeNo    string // 商户订单号
	TransactionID string // 微信支付订单号
	OpenID        string // 用户标识
	TradeType     string // 交易类型
	BankType      string // 付款银行
	TotalFee      string // 订单金额(分)
	CashFee       string // 现金支付金额(分)
	Attach        string // 附加数据
	TimeEnd       string // 支付完成时间
}

// Paid 通知是否为支付成功
func (n *PayNotify) Paid() bool {
	return n.ResultCode == codeSuccess
}

// TotalYuan 订单金额(元)
func (n *PayNotify) TotalYuan() (decimal.Decimal, error) {
	return FenToYuan(n.TotalFee)
}

// ParsePayNotify 解析并验签微信异步支付结果通知
// 通知与接口响应使用相同的XML格式和签名规则
// 参数:
//   - body: 通知请求体
//
// 返回:
//   - *PayNotify: 通知内容
//   - error: *Error，验签失败为 KindVerifyFailed，缺少订单号为 KindParse
//
// result_code 为 FAIL 的通知不视为错误，由 PayNotify.Paid 区分
func (c *Client) ParsePayNotify(body []byte) (*PayNotify, error) {
	fields, err := c.parseVerified(body)
	if err != nil {
		c.logger.Warn("wxpay notify rejected", zap.Error(err))
		return nil, err
	}
	required := []string{respOutTradeNo}
	if fields.GetString(respResultCode) == codeSuccess {
		required = append(required, respTransactionID)
	}
	if err := requireFields("", string(body), fields, required...); err != nil {
		return nil, err
	}
	n := &PayNotify{
		ResultCode:    fields.GetString(respResultCode),
		ErrCode:       fields.GetString(respErrCode),
		ErrCodeDes:    fields.GetString(respErrCodeDes),
		OutTradeNo:    fields.GetString(respOutTradeNo),
		TransactionID: fields.GetString(respTransactionID),
		OpenID:        fields.GetString(respOpenID),
		TradeType:     fields.GetString(respTradeType),
		BankType:      fields.GetString(respBankType),
		TotalFee:      fields.GetString(respTotalFee),
		CashFee:       fields.GetString(respCashFee),
		Attach:        fields.GetString(respAttach),
		TimeEnd:       fields.GetString(respTimeEnd),
	}
	return n, nil
}

const notifyReplyFormat = "<xml><return_code><![CDATA[%s]]></return_code><return_msg><![CDATA[%s]]></return_msg></xml>"

// NotifyReply 生成通知应答XML，err 为空时回复 SUCCESS
func NotifyReply(err error) string {
	if err == nil {
		return fmt.Sprintf(notifyReplyFormat, codeSuccess, "OK")
	}
	return fmt.Sprintf(notifyReplyFormat, "FAIL", cdataEscape(err.Error()))
}

// cdataEscape 拆开内容中的 "]]>"，避免提前结束CDATA
func cdataEscape(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
