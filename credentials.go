package wxpay

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Flavor 接入方式
// App支付与小程序支付使用不同的 trade_type、二次签名模板和客户端调起参数
type Flavor int

// 接入方式常量定义
const (
	FlavorApp         Flavor = iota // App支付
	FlavorMiniProgram               // 小程序支付
)

func (f Flavor) String() string {
	switch f {
	case FlavorApp:
		return "app"
	case FlavorMiniProgram:
		return "miniprogram"
	}
	return "unknown"
}

// tradeType 统一下单的交易类型
func (f Flavor) tradeType() string {
	if f == FlavorMiniProgram {
		return "JSAPI"
	}
	return "APP"
}

// ParseFlavor 解析接入方式字符串，无法识别时返回 false
func ParseFlavor(s string) (Flavor, bool) {
	switch s {
	case "app", "APP", "":
		return FlavorApp, true
	case "miniprogram", "mini-program", "JSAPI", "jsapi":
		return FlavorMiniProgram, true
	}
	return FlavorApp, false
}

// Credentials 商户配置
// 由 Client 持有一份副本，构造后不再修改，可被多个并发调用只读共享
type Credentials struct {
	AppID     string `validate:"required"` // 应用ID
	MchID     string `validate:"required"` // 商户号
	MchKey    string `validate:"required"` // 商户API密钥
	AppSecret string // 应用密钥，小程序登录时需要
	CertPath  string // 商户证书路径，退款时需要
	KeyPath   string // 商户证书私钥路径，退款时需要
	Flavor    Flavor `validate:"gte=0,lte=1"` // 接入方式
}

func (c Credentials) check() error {
	if err := validate.Struct(c); err != nil {
		return &Error{Kind: KindInvalidCredentials, Message: err.Error(), Err: err}
	}
	return nil
}

func (c Credentials) hasCert() bool {
	return c.CertPath != "" && c.KeyPath != ""
}
