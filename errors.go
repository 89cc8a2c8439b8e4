// Package wxpay 微信支付(v2 MD5签名)客户端
package wxpay

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类型
type ErrorKind string

// 错误类型常量定义
const (
	KindMissingCertInfo    ErrorKind = "missing_cert_info"   // 未配置证书/私钥路径
	KindMissingAppSecret   ErrorKind = "missing_app_secret"  // 未配置AppSecret
	KindNetwork            ErrorKind = "network_error"       // 网络传输失败
	KindBusiness           ErrorKind = "err_code"            // 业务错误码
	KindProtocol           ErrorKind = "return_msg"          // 通信错误信息
	KindUnknown            ErrorKind = "unknown_error"       // 未知错误
	KindVerifyFailed       ErrorKind = "verify_failed"       // 响应验签失败
	KindParse              ErrorKind = "parse_error"         // 响应缺少必要字段或格式错误
	KindInvalidRequest     ErrorKind = "invalid_request"     // 请求参数校验失败
	KindInvalidCredentials ErrorKind = "invalid_credentials" // 商户配置校验失败
)

// 可用于 errors.Is 的哨兵错误，按 Kind 匹配
var (
	ErrMissingCertInfo    = &Error{Kind: KindMissingCertInfo}
	ErrMissingAppSecret   = &Error{Kind: KindMissingAppSecret}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrBusiness           = &Error{Kind: KindBusiness}
	ErrProtocol           = &Error{Kind: KindProtocol}
	ErrUnknown            = &Error{Kind: KindUnknown}
	ErrVerifyFailed       = &Error{Kind: KindVerifyFailed}
	ErrParse              = &Error{Kind: KindParse}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
)

// Error 微信支付调用错误
// 保留原始请求与响应内容，便于调用方记录日志排查问题
type Error struct {
	Kind     ErrorKind // 错误类型
	Request  string    // 原始请求内容
	Response string    // 原始响应内容
	Status   int       // HTTP状态码(网络错误时)
	Code     string    // 业务错误码 err_code / errcode
	Message  string    // 错误描述 return_msg / err_code_des / errmsg
	Err      error     // 底层错误
}

func newError(kind ErrorKind, req string, resp string) *Error {
	return &Error{Kind: kind, Request: req, Response: resp}
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("wxpay %s: %s (%s)", e.Kind, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("wxpay %s: %s", e.Kind, e.Code)
	case e.Message != "":
		return fmt.Sprintf("wxpay %s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("wxpay %s: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("wxpay %s: http status %d", e.Kind, e.Status)
	}
	return fmt.Sprintf("wxpay %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按错误类型匹配，使 errors.Is(err, ErrVerifyFailed) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf 返回错误类型，非 *Error 时返回空字符串
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
