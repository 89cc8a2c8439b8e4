package wxpay

import (
	"context"
)

// PaymentState 支付状态类型
type PaymentState string

// 支付状态常量定义
const (
	PaymentStatePaid     PaymentState = "Paid"     // 已支付
	PaymentStateCreated  PaymentState = "Created"  // 已创建
	PaymentStateCanceled PaymentState = "Canceled" // 已取消
	PaymentStateRefunded PaymentState = "Refunded" // 已转入退款
	PaymentStateError    PaymentState = "Error"    // 错误
)

// PayReq 支付请求结构体
// 包含支付所需的所有参数信息
type PayReq struct {
	ProviderName       string  // 支付提供商名称
	ProductName        string  // 产品名称
	ProductDisplayName string  // 产品显示名称
	PayerId            string  // 付款人ID，小程序支付时为 openid
	PayerIp            string  // 付款人终端IP
	PaymentName        string  // 支付名称，作为商户订单号
	Price              float64 // 价格(元)

	NotifyUrl string // 通知URL
}

// PayResp 支付响应结构体
// 包含支付后返回的信息
type PayResp struct {
	OrderId    string         // 订单ID
	PrepayId   string         // 预支付交易会话标识
	AttachInfo map[string]any // 客户端调起支付所需的参数
}

// NotifyResult 支付通知结果结构体
// 包含支付通知回调的结果信息
type NotifyResult struct {
	PaymentName   string       // 支付名称
	PaymentStatus PaymentState // 支付状态
	NotifyMessage string       // 通知消息

	ProductName        string  // 产品名称
	ProductDisplayName string  // 产品显示名称
	ProviderName       string  // 支付提供商名称
	Price              float64 // 价格(元)

	OrderId       string // 订单ID
	TransactionId string // 微信支付订单号
}

// PaymentProvider 支付提供商接口
type PaymentProvider interface {
	// Pay 执行支付操作
	// 参数:
	//   - ctx: 上下文
	//   - req: 支付请求信息
	// 返回:
	//   - *PayResp: 支付响应信息
	//   - error: 错误信息
	Pay(ctx context.Context, req *PayReq) (*PayResp, error)

	// Notify 处理支付通知
	// 参数:
	//   - ctx: 上下文
	//   - body: 通知内容，为空时直接主动查询订单
	//   - orderId: 订单ID
	// 返回:
	//   - *NotifyResult: 通知结果
	//   - error: 错误信息
	Notify(ctx context.Context, body []byte, orderId string) (*NotifyResult, error)

	// GetResponseError 获取回复给支付平台的通知应答
	// 参数:
	//   - err: 错误对象
	// 返回:
	//   - string: 应答内容
	GetResponseError(err error) string
}
