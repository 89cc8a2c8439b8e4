package wxpay

import (
	"context"
	"time"

	"github.com/go-pay/gopay"
	"github.com/smart-unicom/wxpay/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// 接口地址
const (
	HrefPrepay            = "https://api.mch.weixin.qq.com/pay/unifiedorder"
	HrefQuery             = "https://api.mch.weixin.qq.com/pay/orderquery"
	HrefRefund            = "https://api.mch.weixin.qq.com/secapi/pay/refund"
	HrefSmallProgramLogin = "https://api.weixin.qq.com/sns/jscode2session"
)

const tracerName = "github.com/smart-unicom/wxpay"

// Endpoints 各接口地址，可替换为沙箱或测试地址
type Endpoints struct {
	Prepay            string
	Query             string
	Refund            string
	SmallProgramLogin string
}

// DefaultEndpoints 微信正式环境接口地址
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Prepay:            HrefPrepay,
		Query:             HrefQuery,
		Refund:            HrefRefund,
		SmallProgramLogin: HrefSmallProgramLogin,
	}
}

// Client 微信支付客户端
// 每次调用独立构造请求，不在调用之间共享可变状态，可并发使用
type Client struct {
	creds     Credentials
	transport Transport
	endpoints Endpoints
	logger    *zap.Logger
	metrics   metrics.Recorder
	tracer    trace.Tracer
	timeout   time.Duration
	now       func() time.Time
}

// Option 客户端选项
type Option func(*Client)

// WithTransport 注入传输层
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// WithTimeout 默认传输层的请求超时，注入 Transport 时无效
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithEndpoints 替换接口地址，空字段保留默认值
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		if e.Prepay != "" {
			c.endpoints.Prepay = e.Prepay
		}
		if e.Query != "" {
			c.endpoints.Query = e.Query
		}
		if e.Refund != "" {
			c.endpoints.Refund = e.Refund
		}
		if e.SmallProgramLogin != "" {
			c.endpoints.SmallProgramLogin = e.SmallProgramLogin
		}
	}
}

// WithTracerProvider 使用指定的 TracerProvider，默认使用全局的 otel.GetTracerProvider()
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// withClock 测试用的时钟
func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New 创建微信支付客户端
// 参数:
//   - creds: 商户配置，AppID、MchID、MchKey 必填
//   - opts: 可选项
//
// 返回:
//   - *Client: 客户端实例
//   - error: 配置校验失败
func New(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.check(); err != nil {
		return nil, err
	}

	c := &Client{
		creds:     creds,
		endpoints: DefaultEndpoints(),
		logger:    zap.NewNop(),
		metrics:   metrics.NoopRecorder{},
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewRestyTransport(c.timeout)
	}
	c.logger = c.logger.With(zap.String("mch_id", creds.MchID), zap.String("flavor", creds.Flavor.String()))
	return c, nil
}

// Flavor 返回客户端的接入方式
func (c *Client) Flavor() Flavor {
	return c.creds.Flavor
}

// startCall 开始一次调用的追踪，返回的结束函数记录指标与span状态
func (c *Client) startCall(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "wxpay."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		result := "success"
		if err != nil {
			result = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.IncCounter("requests", map[string]string{"operation": op, "result": result})
		c.metrics.ObserveLatency(op, time.Since(start), nil)
		span.End()
	}
}

// roundTrip 发送请求并解析响应
// 流程: 发送 -> 解析XML -> 检查通信与业务结果 -> 验签 -> 接口自身的字段解析
func (c *Client) roundTrip(ctx context.Context, log *zap.Logger, href string, req []byte, withCert bool, classify classifyFunc) error {
	strReq := string(req)

	var (
		status int
		resp   []byte
		err    error
	)
	if withCert {
		if !c.creds.hasCert() {
			return newError(KindMissingCertInfo, "", "")
		}
		status, resp, err = c.transport.PostWithCert(ctx, href, req, c.creds.CertPath, c.creds.KeyPath)
	} else {
		status, resp, err = c.transport.Post(ctx, href, req)
	}
	strResp := string(resp)
	if err != nil || !isHTTPSuccess(status) {
		log.Error("wxpay request failed", zap.Int("status", status), zap.Error(err))
		e := newError(KindNetwork, strReq, strResp)
		e.Status = status
		e.Err = err
		return e
	}

	fields := ParseXML(resp)
	if err := checkEnvelope(strReq, strResp, fields); err != nil {
		log.Warn("wxpay returned failure", zap.Error(err))
		return err
	}
	if !Verify(fields, c.creds.MchKey) {
		log.Warn("wxpay response signature mismatch", zap.ByteString("response", resp))
		return newError(KindVerifyFailed, strReq, strResp)
	}
	if err := classify(strReq, strResp, fields); err != nil {
		log.Warn("wxpay response incomplete", zap.Error(err))
		return err
	}
	return nil
}

func isHTTPSuccess(status int) bool {
	return status >= 200 && status < 300
}

// parseVerified 解析并校验一段由微信签名的XML(支付结果通知)
// 只要求 return_code 成功，result_code 为 FAIL 的通知是合法的支付失败结果，照常验签返回
func (c *Client) parseVerified(body []byte) (gopay.BodyMap, error) {
	str := string(body)
	fields := ParseXML(body)
	if fields.GetString(respReturnCode) != codeSuccess {
		return nil, checkEnvelope("", str, fields)
	}
	if !Verify(fields, c.creds.MchKey) {
		return nil, newError(KindVerifyFailed, "", str)
	}
	return fields, nil
}
