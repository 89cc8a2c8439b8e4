package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-pay/gopay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smart-unicom/wxpay"
	"github.com/smart-unicom/wxpay/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "192006250b4c09247ec02edce69f6a2d"

type stubTransport struct {
	body []byte
	urls []string
}

func (s *stubTransport) Post(_ context.Context, url string, _ []byte) (int, []byte, error) {
	s.urls = append(s.urls, url)
	return 200, s.body, nil
}

func (s *stubTransport) PostWithCert(_ context.Context, url string, _ []byte, _ string, _ string) (int, []byte, error) {
	s.urls = append(s.urls, url)
	return 200, s.body, nil
}

func (s *stubTransport) Get(_ context.Context, url string) (int, []byte, error) {
	s.urls = append(s.urls, url)
	return 200, s.body, nil
}

func signed(fields map[string]string) []byte {
	bm := make(gopay.BodyMap)
	var buf bytes.Buffer
	buf.WriteString("<xml>")
	for k, v := range fields {
		bm.Set(k, v)
		buf.WriteString("<" + k + ">" + v + "</" + k + ">")
	}
	buf.WriteString("<sign>" + wxpay.Sign(bm, testKey) + "</sign></xml>")
	return buf.Bytes()
}

func newTestApp(t *testing.T, st *stubTransport) (*app, *bytes.Buffer) {
	t.Helper()
	registry := prometheus.NewRegistry()
	client, err := wxpay.New(wxpay.Credentials{
		AppID:     "wx123",
		MchID:     "1900000109",
		MchKey:    testKey,
		AppSecret: "secret",
		Flavor:    wxpay.FlavorMiniProgram,
	}, wxpay.WithTransport(st), wxpay.WithMetrics(metrics.NewPrometheusRecorder(registry)))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &app{
		client:   client,
		provider: wxpay.NewWechatPaymentProvider(client),
		registry: registry,
		out:      out,
	}, out
}

func TestRun(t *testing.T) {
	t.Run("Query", func(t *testing.T) {
		st := &stubTransport{body: signed(map[string]string{
			"return_code": "SUCCESS", "result_code": "SUCCESS",
			"trade_state": "NOTPAY", "total_fee": "100",
		})}
		a, out := newTestApp(t, st)

		require.NoError(t, a.run(context.Background(), []string{"query", "--trade-no", "T1"}))
		assert.Contains(t, out.String(), "trade_state: NOTPAY")
		assert.Equal(t, []string{wxpay.HrefQuery}, st.urls)
	})

	t.Run("Prepay", func(t *testing.T) {
		st := &stubTransport{body: signed(map[string]string{
			"return_code": "SUCCESS", "result_code": "SUCCESS",
			"trade_type": "JSAPI", "prepay_id": "wx2017",
		})}
		a, out := newTestApp(t, st)

		err := a.run(context.Background(), []string{"prepay",
			"--amount", "100", "--trade-no", "T1", "--body", "test",
			"--notify-url", "https://cb", "--openid", "oid",
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "prepay_id: wx2017")
		assert.Contains(t, out.String(), `"signType":"MD5"`)
	})

	t.Run("Refund without cert", func(t *testing.T) {
		a, _ := newTestApp(t, &stubTransport{})

		err := a.run(context.Background(), []string{"refund", "--total", "100", "--amount", "100", "--trade-no", "T1", "--refund-no", "R1"})
		assert.ErrorIs(t, err, wxpay.ErrMissingCertInfo)
	})

	t.Run("Login", func(t *testing.T) {
		st := &stubTransport{body: []byte(`{"session_key":"sk","openid":"oid","unionid":"uid"}`)}
		a, out := newTestApp(t, st)

		require.NoError(t, a.run(context.Background(), []string{"login", "--code", "abc"}))
		assert.Contains(t, out.String(), "openid: oid")
	})

	t.Run("Missing flag", func(t *testing.T) {
		a, _ := newTestApp(t, &stubTransport{})
		assert.ErrorContains(t, a.run(context.Background(), []string{"query"}), "--trade-no")
		assert.ErrorContains(t, a.run(context.Background(), []string{"login"}), "--code")
	})

	t.Run("Unknown command", func(t *testing.T) {
		a, out := newTestApp(t, &stubTransport{})
		assert.Error(t, a.run(context.Background(), []string{"transfer"}))
		assert.Contains(t, out.String(), "usage: wxpay")

		assert.Error(t, a.run(context.Background(), nil))
		assert.NoError(t, a.run(context.Background(), []string{"help"}))
	})
}

func TestServeHandler(t *testing.T) {
	st := &stubTransport{body: signed(map[string]string{
		"return_code": "SUCCESS", "result_code": "SUCCESS",
		"trade_state": "SUCCESS", "out_trade_no": "T1",
		"transaction_id": "4200001", "total_fee": "100", "attach": "会员|vip|wechat",
	})}
	a, _ := newTestApp(t, st)
	h := a.handler()

	t.Run("Verified notify acknowledged", func(t *testing.T) {
		body := signed(map[string]string{
			"return_code": "SUCCESS", "result_code": "SUCCESS",
			"out_trade_no": "T1", "transaction_id": "4200001",
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<return_code><![CDATA[SUCCESS]]></return_code>")
		assert.Equal(t, []string{wxpay.HrefQuery}, st.urls)
	})

	t.Run("Forged notify rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		forged := "<xml><return_code>SUCCESS</return_code><result_code>SUCCESS</result_code><out_trade_no>T1</out_trade_no><sign>00</sign></xml>"
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(forged)))

		assert.Contains(t, rec.Body.String(), "<return_code><![CDATA[FAIL]]></return_code>")
	})

	t.Run("Only POST accepted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notify", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("Metrics reflect handled notifications", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `wxpay_events_total{operation="query",result="success",type="requests"} 1`)
		assert.Contains(t, rec.Body.String(), `wxpay_latency_seconds_count{operation="query"} 1`)
	})
}
