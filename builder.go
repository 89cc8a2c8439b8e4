package wxpay

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-pay/gopay"
)

// 请求字段
const (
	reqAppID          = "appid"
	reqMchID          = "mch_id"
	reqNonceStr       = "nonce_str"
	reqBody           = "body"
	reqAttach         = "attach"
	reqOutTradeNo     = "out_trade_no"
	reqTotalFee       = "total_fee"
	reqSpbillCreateIP = "spbill_create_ip"
	reqTimeExpire     = "time_expire"
	reqNotifyURL      = "notify_url"
	reqTradeType      = "trade_type"
	reqOpenID         = "openid"
	reqOutRefundNo    = "out_refund_no"
	reqRefundFee      = "refund_fee"
	reqRefundDesc     = "refund_desc"
	reqSecret         = "secret"
	reqJsCode         = "js_code"
	reqGrantType      = "grant_type"
)

// PrepayRequest 统一下单参数
type PrepayRequest struct {
	Amount      int64         `validate:"gt=0"`     // 订单金额(分)
	ValidTime   time.Duration `validate:"gt=0"`     // 订单有效期
	TradingCode string        `validate:"required"` // 商户订单号 out_trade_no
	RemoteIP    string        `validate:"required"` // 终端IP
	Body        string        `validate:"required"` // 商品描述
	CallbackURL string        `validate:"required"` // 支付结果通知地址
	Attach      string        // 附加数据，可选
	OpenID      string        // 用户标识，小程序支付时必传
}

// RefundRequest 申请退款参数
type RefundRequest struct {
	TotalAmount  int64  `validate:"gt=0"`                      // 订单总金额(分)
	RefundAmount int64  `validate:"gt=0,ltefield=TotalAmount"` // 退款金额(分)
	OutTradeNo   string `validate:"required"`                  // 商户订单号
	OutRefundNo  string `validate:"required"`                  // 商户退款单号
	Remarks      string // 退款原因，可选
	CallbackURL  string // 退款结果通知地址，可选
}

func errNilRequest() *Error {
	return &Error{Kind: KindInvalidRequest, Message: "nil request"}
}

func checkRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return &Error{Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}
	return nil
}

// baseFields 每个请求都带的 appid、mch_id、nonce_str
func (c *Client) baseFields() gopay.BodyMap {
	bm := make(gopay.BodyMap)
	bm.Set(reqAppID, c.creds.AppID).
		Set(reqMchID, c.creds.MchID).
		Set(reqNonceStr, nonceStr())
	return bm
}

// setOptional 仅在值非空时设置字段
func setOptional(bm gopay.BodyMap, key, value string) {
	if value != "" {
		bm.Set(key, value)
	}
}

// buildPrepay 统一下单请求
func (c *Client) buildPrepay(r *PrepayRequest) ([]byte, error) {
	bm := c.baseFields()
	bm.Set(reqBody, toUTF8(r.Body)).
		Set(reqOutTradeNo, r.TradingCode).
		Set(reqTotalFee, strconv.FormatInt(r.Amount, 10)).
		Set(reqSpbillCreateIP, r.RemoteIP).
		Set(reqTimeExpire, expireTimeStr(c.now(), r.ValidTime)).
		Set(reqNotifyURL, r.CallbackURL).
		Set(reqTradeType, c.creds.Flavor.tradeType())
	setOptional(bm, reqAttach, toUTF8(r.Attach))
	setOptional(bm, reqOpenID, r.OpenID)
	return c.signAndEncode(bm)
}

// buildRefund 申请退款请求
func (c *Client) buildRefund(r *RefundRequest) ([]byte, error) {
	bm := c.baseFields()
	bm.Set(reqOutTradeNo, r.OutTradeNo).
		Set(reqOutRefundNo, r.OutRefundNo).
		Set(reqTotalFee, strconv.FormatInt(r.TotalAmount, 10)).
		Set(reqRefundFee, strconv.FormatInt(r.RefundAmount, 10))
	setOptional(bm, reqNotifyURL, r.CallbackURL)
	setOptional(bm, reqRefundDesc, toUTF8(r.Remarks))
	return c.signAndEncode(bm)
}

// buildQuery 查询订单请求
func (c *Client) buildQuery(outTradeNo string) ([]byte, error) {
	bm := c.baseFields()
	bm.Set(reqOutTradeNo, outTradeNo)
	return c.signAndEncode(bm)
}

// buildLoginQuery 小程序登录的URL参数，按 appid、secret、js_code、grant_type 顺序拼接
func (c *Client) buildLoginQuery(jsCode string) string {
	pairs := [][2]string{
		{reqAppID, c.creds.AppID},
		{reqSecret, c.creds.AppSecret},
		{reqJsCode, jsCode},
		{reqGrantType, "authorization_code"},
	}
	var buf bytes.Buffer
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(p[0]))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(p[1]))
	}
	return buf.String()
}

func (c *Client) signAndEncode(bm gopay.BodyMap) ([]byte, error) {
	bm.Set(fieldSign, Sign(bm, c.creds.MchKey))
	return encodeXML(bm)
}

// xmlField 单个字段，值用CDATA包裹避免转义问题
type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",cdata"`
}

type xmlRequest struct {
	XMLName xml.Name `xml:"xml"`
	Fields  []xmlField
}

// encodeXML 按字段名升序输出，sign 放在最后
func encodeXML(bm gopay.BodyMap) ([]byte, error) {
	keys := make([]string, 0, len(bm))
	for k := range bm {
		if k != fieldSign {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := bm[fieldSign]; ok {
		keys = append(keys, fieldSign)
	}

	doc := xmlRequest{Fields: make([]xmlField, 0, len(keys))}
	for _, k := range keys {
		doc.Fields = append(doc.Fields, xmlField{XMLName: xml.Name{Local: k}, Value: bm.GetString(k)})
	}
	return xml.Marshal(doc)
}
