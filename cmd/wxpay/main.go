package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smart-unicom/wxpay"
	"github.com/smart-unicom/wxpay/internal/config"
	"github.com/smart-unicom/wxpay/internal/logger"
	"github.com/smart-unicom/wxpay/metrics"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const usage = `usage: wxpay <command> [flags]

commands:
  prepay         create an order and print the signed client payload
  query          query the pay status of an order
  refund         request a refund (merchant cert required)
  login          exchange a mini-program js_code for openid/session_key
  serve          handle pay notifications and expose prometheus metrics over http
`

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.L().Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	client, err := wxpay.New(cfg.Credentials(),
		wxpay.WithLogger(logger.L()),
		wxpay.WithMetrics(metrics.NewPrometheusRecorder(registry)),
		wxpay.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		logger.L().Fatal("failed to create wxpay client", zap.Error(err))
	}

	app := &app{
		client:      client,
		provider:    wxpay.NewWechatPaymentProvider(client),
		registry:    registry,
		metricsAddr: cfg.MetricsAddr,
		out:         os.Stdout,
	}
	if err := app.run(ctx, os.Args[1:]); err != nil {
		logger.L().Error("command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

type app struct {
	client      *wxpay.Client
	provider    wxpay.PaymentProvider
	registry    *prometheus.Registry
	metricsAddr string
	out         io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "prepay":
		return a.prepay(ctx, rest)
	case "query":
		return a.query(ctx, rest)
	case "refund":
		return a.refund(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "serve":
		return a.serve(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) prepay(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("prepay", pflag.ContinueOnError)
	req := &wxpay.PrepayRequest{}
	fs.Int64Var(&req.Amount, "amount", 0, "order amount in fen")
	fs.DurationVar(&req.ValidTime, "valid", 30*time.Minute, "order validity")
	fs.StringVar(&req.TradingCode, "trade-no", "", "merchant order number (out_trade_no)")
	fs.StringVar(&req.RemoteIP, "ip", "127.0.0.1", "payer ip")
	fs.StringVar(&req.Body, "body", "", "product description")
	fs.StringVar(&req.CallbackURL, "notify-url", "", "pay result notify url")
	fs.StringVar(&req.Attach, "attach", "", "attach data")
	fs.StringVar(&req.OpenID, "openid", "", "payer openid (mini-program only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.client.PrepayWithSign(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "prepay_id: %s\n%s\n", res.PrepayID, res.PrepaySignedContent)
	return nil
}

func (a *app) query(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	tradeNo := fs.String("trade-no", "", "merchant order number (out_trade_no)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tradeNo == "" {
		return errors.New("--trade-no is required")
	}

	res, err := a.client.QueryPayStatus(ctx, *tradeNo)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "trade_state: %s\ntransaction_id: %s\ntotal_fee: %s\n", res.TradeState, res.TransactionID, res.TotalFee)
	return nil
}

func (a *app) refund(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("refund", pflag.ContinueOnError)
	req := &wxpay.RefundRequest{}
	fs.Int64Var(&req.TotalAmount, "total", 0, "order total in fen")
	fs.Int64Var(&req.RefundAmount, "amount", 0, "refund amount in fen")
	fs.StringVar(&req.OutTradeNo, "trade-no", "", "merchant order number")
	fs.StringVar(&req.OutRefundNo, "refund-no", "", "merchant refund number")
	fs.StringVar(&req.Remarks, "reason", "", "refund reason")
	fs.StringVar(&req.CallbackURL, "notify-url", "", "refund result notify url")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.client.Refund(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "refund_id: %s\nrefund_fee: %s\n", res.RefundID, res.RefundFee)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	code := fs.String("code", "", "js_code from wx.login")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		return errors.New("--code is required")
	}

	res, err := a.client.SmallProgramLogin(ctx, *code)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "openid: %s\nunionid: %s\n", res.OpenID, res.UnionID)
	return nil
}

const maxNotifyBody = 1 << 20

// handler 支付结果通知与指标接口
// /notify 验签后查询订单状态并回复微信，/metrics 导出本进程的调用指标
func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/notify", a.handleNotify)
	return mux
}

func (a *app) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err == nil {
		var res *wxpay.NotifyResult
		res, err = a.provider.Notify(r.Context(), body, "")
		if err == nil {
			logger.L().Info("wxpay notify handled",
				zap.String("order_id", res.OrderId),
				zap.String("transaction_id", res.TransactionId),
				zap.String("payment_status", string(res.PaymentStatus)),
			)
		}
	}
	if err != nil {
		logger.L().Warn("wxpay notify failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if _, err := io.WriteString(w, a.provider.GetResponseError(err)); err != nil {
		logger.L().Warn("failed to write notify reply", zap.Error(err))
	}
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addr := fs.String("addr", a.metricsAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := &http.Server{Addr: *addr, Handler: a.handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L().Warn("failed to shutdown server", zap.Error(err))
		}
	}()

	logger.L().Info("serving wxpay notify and metrics", zap.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
