package wxpay

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-pay/gopay"
	"github.com/stretchr/testify/require"
)

const testKey = "192006250b4c09247ec02edce69f6a2d"

var testNow = time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

type call struct {
	method   string
	url      string
	body     []byte
	certPath string
	keyPath  string
}

// fakeTransport 记录请求并返回预设响应
type fakeTransport struct {
	mu     sync.Mutex
	calls  []call
	status int
	body   []byte
	err    error
}

func (f *fakeTransport) record(c call) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	status := f.status
	if status == 0 && f.err == nil {
		status = 200
	}
	return status, f.body, f.err
}

func (f *fakeTransport) Post(_ context.Context, url string, body []byte) (int, []byte, error) {
	return f.record(call{method: "POST", url: url, body: body})
}

func (f *fakeTransport) PostWithCert(_ context.Context, url string, body []byte, certPath string, keyPath string) (int, []byte, error) {
	return f.record(call{method: "POST_CERT", url: url, body: body, certPath: certPath, keyPath: keyPath})
}

func (f *fakeTransport) Get(_ context.Context, url string) (int, []byte, error) {
	return f.record(call{method: "GET", url: url})
}

func (f *fakeTransport) lastCall(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func testCreds(flavor Flavor) Credentials {
	return Credentials{
		AppID:    "wxd930ea5d5a258f4f",
		MchID:    "10000100",
		MchKey:   testKey,
		CertPath: "/certs/apiclient_cert.pem",
		KeyPath:  "/certs/apiclient_key.pem",
		Flavor:   flavor,
	}
}

func newTestClient(t *testing.T, creds Credentials, ft *fakeTransport, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithTransport(ft), withClock(func() time.Time { return testNow })}, opts...)
	c, err := New(creds, opts...)
	require.NoError(t, err)
	return c
}

// xmlBody 按字段名排序输出XML，不签名
func xmlBody(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<xml>")
	for _, k := range keys {
		b.WriteString("<" + k + "><![CDATA[" + fields[k] + "]]></" + k + ">")
	}
	b.WriteString("</xml>")
	return []byte(b.String())
}

// signedXML 用 key 签名后输出XML
func signedXML(fields map[string]string, key string) []byte {
	bm := make(gopay.BodyMap)
	for k, v := range fields {
		bm.Set(k, v)
	}
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[fieldSign] = Sign(bm, key)
	return xmlBody(out)
}

func successFields(extra map[string]string) map[string]string {
	fields := map[string]string{
		respReturnCode: codeSuccess,
		respReturnMsg:  "OK",
		respResultCode: codeSuccess,
		"appid":        "wxd930ea5d5a258f4f",
		"mch_id":       "10000100",
		"nonce_str":    "IITRi8Iabbblz1Jc",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// recordingMetrics 记录指标调用，键为 operation/result
type recordingMetrics struct {
	mu        sync.Mutex
	counters  []string
	latencies []string
}

func (r *recordingMetrics) IncCounter(_ string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, labels["operation"]+"/"+labels["result"])
}

func (r *recordingMetrics) ObserveLatency(name string, _ time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, name)
}
