package wxpay

import (
	"context"
	"strconv"

	"github.com/casdoor/casdoor/util"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// QueryPayStatus 查询订单支付状态
// 参数:
//   - ctx: 上下文
//   - outTradeNo: 商户订单号
//
// 返回:
//   - *QueryResult: 查询结果，无法识别的状态为 TradeStateUnknown
//   - error: *Error
func (c *Client) QueryPayStatus(ctx context.Context, outTradeNo string) (res *QueryResult, err error) {
	ctx, done := c.startCall(ctx, "query", attribute.String("out_trade_no", outTradeNo))
	defer func() { done(err) }()

	log := c.logger.With(zap.String("operation", "query"), zap.String("out_trade_no", outTradeNo))
	req, err := c.buildQuery(outTradeNo)
	if err != nil {
		return nil, err
	}

	log.Info("querying wxpay order")
	out := &QueryResult{}
	if err := c.roundTrip(ctx, log, c.endpoints.Query, req, false, classifyQuery(out)); err != nil {
		return nil, err
	}
	log.Info("wxpay order queried", zap.Stringer("trade_state", out.TradeState))
	return out, nil
}

// Refund 申请退款，需要商户证书
// 参数:
//   - ctx: 上下文
//   - r: 退款参数
//
// 返回:
//   - *RefundResult: 退款单号与退款金额
//   - error: *Error，未配置证书时为 KindMissingCertInfo
func (c *Client) Refund(ctx context.Context, r *RefundRequest) (res *RefundResult, err error) {
	if r == nil {
		return nil, errNilRequest()
	}
	ctx, done := c.startCall(ctx, "refund",
		attribute.String("out_trade_no", r.OutTradeNo),
		attribute.String("out_refund_no", r.OutRefundNo),
	)
	defer func() { done(err) }()

	log := c.logger.With(
		zap.String("operation", "refund"),
		zap.String("out_trade_no", r.OutTradeNo),
		zap.String("out_refund_no", r.OutRefundNo),
		zap.Int64("refund_fee", r.RefundAmount),
	)
	if err := checkRequest(r); err != nil {
		return nil, err
	}
	req, err := c.buildRefund(r)
	if err != nil {
		return nil, err
	}

	log.Info("requesting wxpay refund")
	out := &RefundResult{}
	if err := c.roundTrip(ctx, log, c.endpoints.Refund, req, true, classifyRefund(out)); err != nil {
		return nil, err
	}
	log.Info("wxpay refund accepted", zap.String("refund_id", out.RefundID))
	return out, nil
}

// LoginResult 小程序登录结果
type LoginResult struct {
	SessionKey string // 会话密钥
	OpenID     string // 用户唯一标识
	UnionID    string // 开放平台唯一标识，可能为空
}

// SmallProgramLogin 小程序登录，用 wx.login 获取的 js_code 换取 openid 与 session_key
// 参数:
//   - ctx: 上下文
//   - jsCode: 登录凭证
//
// 返回:
//   - *LoginResult: 登录结果
//   - error: *Error，未配置AppSecret时为 KindMissingAppSecret
func (c *Client) SmallProgramLogin(ctx context.Context, jsCode string) (res *LoginResult, err error) {
	ctx, done := c.startCall(ctx, "login")
	defer func() { done(err) }()

	if c.creds.AppSecret == "" {
		return nil, newError(KindMissingAppSecret, "", "")
	}

	log := c.logger.With(zap.String("operation", "login"))
	query := c.buildLoginQuery(jsCode)
	status, body, err := c.transport.Get(ctx, c.endpoints.SmallProgramLogin+"?"+query)
	strResp := string(body)
	if err != nil || !isHTTPSuccess(status) {
		log.Error("wxpay request failed", zap.Int("status", status), zap.Error(err))
		e := newError(KindNetwork, query, strResp)
		e.Status = status
		e.Err = err
		return nil, e
	}

	login, ok := parseLoginJSON(body)
	if !ok {
		if login != nil && login.ErrCode != 0 {
			e := newError(KindBusiness, query, strResp)
			e.Code = strconv.FormatInt(login.ErrCode, 10)
			e.Message = login.ErrMsg
			log.Warn("wxpay login rejected", zap.Error(e))
			return nil, e
		}
		log.Warn("wxpay login response incomplete", zap.ByteString("response", body))
		return nil, newError(KindParse, query, strResp)
	}
	return &LoginResult{
		SessionKey: login.SessionKey,
		OpenID:     login.OpenID,
		UnionID:    login.UnionID,
	}, nil
}

// Prepay 统一下单
// 参数:
//   - ctx: 上下文
//   - r: 下单参数
//
// 返回:
//   - *PrepayResult: 交易类型与 prepay_id
//   - error: *Error
func (c *Client) Prepay(ctx context.Context, r *PrepayRequest) (res *PrepayResult, err error) {
	if r == nil {
		return nil, errNilRequest()
	}
	ctx, done := c.startCall(ctx, "prepay", attribute.String("out_trade_no", r.TradingCode))
	defer func() { done(err) }()
	return c.prepay(ctx, r)
}

func (c *Client) prepay(ctx context.Context, r *PrepayRequest) (*PrepayResult, error) {
	log := c.logger.With(
		zap.String("operation", "prepay"),
		zap.String("out_trade_no", r.TradingCode),
		zap.Int64("total_fee", r.Amount),
	)
	if err := checkRequest(r); err != nil {
		return nil, err
	}
	req, err := c.buildPrepay(r)
	if err != nil {
		return nil, err
	}

	log.Info("creating wxpay prepay order")
	out := &PrepayResult{}
	if err := c.roundTrip(ctx, log, c.endpoints.Prepay, req, false, classifyPrepay(out)); err != nil {
		return nil, err
	}
	log.Info("wxpay prepay order created", zap.String("prepay_id", out.PrepayID))
	return out, nil
}

// appPayParams App调起支付参数，字段顺序即输出顺序
type appPayParams struct {
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	PaySign   string `json:"paySign"`
	PrepayID  string `json:"prepayid"`
	PartnerID string `json:"partnerid"`
	AppID     string `json:"appid"`
}

// miniProgramPayParams 小程序 wx.requestPayment 参数
type miniProgramPayParams struct {
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// PrepayWithSign 统一下单并生成客户端调起支付的已签名参数
// App与小程序分别使用各自的签名模板和输出格式，结果写入 PrepaySignedContent
func (c *Client) PrepayWithSign(ctx context.Context, r *PrepayRequest) (res *PrepayResult, err error) {
	if r == nil {
		return nil, errNilRequest()
	}
	ctx, done := c.startCall(ctx, "prepay_with_sign", attribute.String("out_trade_no", r.TradingCode))
	defer func() { done(err) }()

	out, err := c.prepay(ctx, r)
	if err != nil {
		return nil, err
	}

	nonce := nonceStr()
	ts := timeStampStr(c.now())
	paySign := c.signClientPayload(nonce, ts, out.PrepayID)
	if c.creds.Flavor == FlavorMiniProgram {
		out.PrepaySignedContent = util.StructToJson(miniProgramPayParams{
			TimeStamp: ts,
			NonceStr:  nonce,
			Package:   "prepay_id=" + out.PrepayID,
			SignType:  "MD5",
			PaySign:   paySign,
		})
	} else {
		out.PrepaySignedContent = util.StructToJson(appPayParams{
			TimeStamp: ts,
			NonceStr:  nonce,
			Package:   "Sign=WXPay",
			PaySign:   paySign,
			PrepayID:  out.PrepayID,
			PartnerID: c.creds.MchID,
			AppID:     c.creds.AppID,
		})
	}
	return out, nil
}
