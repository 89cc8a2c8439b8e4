package wxpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casdoor/casdoor/util"
)

const defaultPayValidTime = 30 * time.Minute

// WechatPaymentProvider 微信支付提供商
// 基于 Client 实现 PaymentProvider
type WechatPaymentProvider struct {
	Client    *Client       // 微信支付客户端
	ValidTime time.Duration // 订单有效期
}

// NewWechatPaymentProvider 创建新的微信支付提供商实例
// 参数:
//   - client: 微信支付客户端
//
// 返回:
//   - *WechatPaymentProvider: 微信支付提供商实例
func NewWechatPaymentProvider(client *Client) *WechatPaymentProvider {
	return &WechatPaymentProvider{
		Client:    client,
		ValidTime: defaultPayValidTime,
	}
}

// Pay 执行微信支付操作
// 统一下单后返回App或小程序调起支付所需的参数
// 参数:
//   - ctx: 上下文
//   - r: 支付请求信息
//
// 返回:
//   - *PayResp: 支付响应信息
//   - error: 错误信息
func (pp *WechatPaymentProvider) Pay(ctx context.Context, r *PayReq) (*PayResp, error) {
	if r == nil {
		return nil, errNilRequest()
	}
	// 小程序支付必须有付款人OpenID
	if pp.Client.Flavor() == FlavorMiniProgram && r.PayerId == "" {
		return nil, errors.New("failed to get the payer's openid, please retry login")
	}

	req := &PrepayRequest{
		Amount:      YuanToFen(r.Price),
		ValidTime:   pp.ValidTime,
		TradingCode: r.PaymentName,
		RemoteIP:    r.PayerIp,
		Body:        r.ProductDisplayName,
		CallbackURL: r.NotifyUrl,
		Attach:      joinAttachString([]string{r.ProductDisplayName, r.ProductName, r.ProviderName}),
	}
	if pp.Client.Flavor() == FlavorMiniProgram {
		req.OpenID = r.PayerId
	}

	prepayRsp, err := pp.Client.PrepayWithSign(ctx, req)
	if err != nil {
		return nil, err
	}

	attachInfo := map[string]any{}
	if err := util.JsonToStruct(prepayRsp.PrepaySignedContent, &attachInfo); err != nil {
		return nil, err
	}

	payResp := &PayResp{
		OrderId:    r.PaymentName, // 微信可以使用paymentName作为OutTradeNo来查询订单状态
		PrepayId:   prepayRsp.PrepayID,
		AttachInfo: attachInfo,
	}
	return payResp, nil
}

// Notify 处理微信支付通知
// 通知内容验签通过后，再主动查询订单状态作为最终结果
// 参数:
//   - ctx: 上下文
//   - body: 通知内容
//   - orderId: 订单ID
//
// 返回:
//   - *NotifyResult: 通知结果
//   - error: 错误信息
func (pp *WechatPaymentProvider) Notify(ctx context.Context, body []byte, orderId string) (*NotifyResult, error) {
	if len(body) > 0 {
		notify, err := pp.Client.ParsePayNotify(body)
		if err != nil {
			return nil, err
		}
		if orderId == "" {
			orderId = notify.OutTradeNo
		}
		if notify.OutTradeNo != orderId {
			return nil, fmt.Errorf("wxpay notify order mismatch: expected %s, got %s", orderId, notify.OutTradeNo)
		}
	}

	notifyResult := &NotifyResult{OrderId: orderId}

	// 查询订单状态
	queryRsp, err := pp.Client.QueryPayStatus(ctx, orderId)
	if err != nil {
		return nil, err
	}

	// 根据交易状态设置支付状态
	switch queryRsp.TradeState {
	case TradeStateSuccess: // 支付成功
		// 继续处理
	case TradeStateClosed, TradeStateRevoked: // 已关闭、已撤销
		notifyResult.PaymentStatus = PaymentStateCanceled
		return notifyResult, nil
	case TradeStateNotPay, TradeStateUserPaying: // 未支付：等待用户支付；用户支付中：用户正在支付
		notifyResult.PaymentStatus = PaymentStateCreated
		return notifyResult, nil
	case TradeStateRefund: // 转入退款
		notifyResult.PaymentStatus = PaymentStateRefunded
		return notifyResult, nil
	default: // 支付失败或未知状态
		notifyResult.PaymentStatus = PaymentStateError
		notifyResult.NotifyMessage = fmt.Sprintf("unexpected wechat trade state: %v (%s)", queryRsp.TradeState, queryRsp.TradeStateDesc)
		return notifyResult, nil
	}

	// 解析产品信息
	productDisplayName, productName, providerName, _ := parseAttachString(queryRsp.Attach)

	price, err := queryRsp.TotalYuan()
	if err != nil {
		return nil, err
	}

	// 构造通知结果
	notifyResult = &NotifyResult{
		ProductName:        productName,
		ProductDisplayName: productDisplayName,
		ProviderName:       providerName,
		OrderId:            orderId,
		TransactionId:      queryRsp.TransactionID,
		Price:              price.InexactFloat64(),
		PaymentStatus:      PaymentStatePaid,
		PaymentName:        queryRsp.OutTradeNo,
	}
	return notifyResult, nil
}

// GetResponseError 获取微信支付通知应答
// 参数:
//   - err: 错误对象
//
// 返回:
//   - string: 应答XML
func (pp *WechatPaymentProvider) GetResponseError(err error) string {
	return NotifyReply(err)
}
