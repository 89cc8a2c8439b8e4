package wxpay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport 发送HTTP请求的能力，由调用方注入或使用默认实现
// 返回HTTP状态码与响应内容；err 非空表示请求未完成
type Transport interface {
	Post(ctx context.Context, url string, body []byte) (int, []byte, error)
	PostWithCert(ctx context.Context, url string, body []byte, certPath string, keyPath string) (int, []byte, error)
	Get(ctx context.Context, url string) (int, []byte, error)
}

const defaultTimeout = 15 * time.Second

// RestyTransport 基于 resty 的默认实现
// 带证书的请求按证书路径缓存客户端
type RestyTransport struct {
	client  *resty.Client
	timeout time.Duration

	mu       sync.Mutex
	certHTTP map[string]*resty.Client
}

// NewRestyTransport 创建默认传输层
// 参数:
//   - timeout: 单次请求超时，<=0 时使用15秒
//
// 返回:
//   - *RestyTransport: 传输层实例
func NewRestyTransport(timeout time.Duration) *RestyTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RestyTransport{
		client:   newRestyClient(timeout, nil),
		timeout:  timeout,
		certHTTP: map[string]*resty.Client{},
	}
}

func newRestyClient(timeout time.Duration, tlsConfig *tls.Config) *resty.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		base.TLSClientConfig = tlsConfig
	}
	return resty.New().
		SetTransport(otelhttp.NewTransport(base)).
		SetTimeout(timeout)
}

// Post 发送XML请求
func (t *RestyTransport) Post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	return post(ctx, t.client, url, body)
}

// PostWithCert 使用商户证书发送XML请求(退款等接口需要双向证书)
func (t *RestyTransport) PostWithCert(ctx context.Context, url string, body []byte, certPath string, keyPath string) (int, []byte, error) {
	client, err := t.certClient(certPath, keyPath)
	if err != nil {
		return 0, nil, err
	}
	return post(ctx, client, url, body)
}

// Get 发送GET请求
func (t *RestyTransport) Get(ctx context.Context, url string) (int, []byte, error) {
	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), resp.Body(), nil
}

func post(ctx context.Context, client *resty.Client, url string, body []byte) (int, []byte, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetBody(body).
		Post(url)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), resp.Body(), nil
}

func (t *RestyTransport) certClient(certPath string, keyPath string) (*resty.Client, error) {
	cacheKey := certPath + "\x00" + keyPath

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.certHTTP[cacheKey]; ok {
		return c, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load merchant cert: %w", err)
	}
	c := newRestyClient(t.timeout, &tls.Config{Certificates: []tls.Certificate{cert}})
	t.certHTTP[cacheKey] = c
	return c, nil
}
