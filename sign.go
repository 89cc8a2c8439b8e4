package wxpay

import (
	"sort"
	"strings"

	"github.com/casdoor/casdoor/util"
	"github.com/go-pay/gopay"
)

const (
	fieldSign = "sign"
	fieldKey  = "key"
)

// Canonicalize 生成待签名字符串
// 按字段名ASCII升序拼接 k=v，跳过空值与 sign 字段，末尾追加 key=商户密钥(不做URL编码)
// 参数:
//   - fields: 字段集合
//   - secret: 商户密钥
//
// 返回:
//   - string: 待签名字符串
func Canonicalize(fields gopay.BodyMap, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == fieldSign {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		v := fields.GetString(k)
		if v == "" {
			continue
		}
		appendPair(&buf, k, v)
	}
	appendPair(&buf, fieldKey, secret)
	return buf.String()
}

func appendPair(buf *strings.Builder, k, v string) {
	if buf.Len() > 0 {
		buf.WriteByte('&')
	}
	buf.WriteString(k)
	buf.WriteByte('=')
	buf.WriteString(v)
}

// Sign 计算MD5签名，返回32位大写十六进制字符串
func Sign(fields gopay.BodyMap, secret string) string {
	return digest(Canonicalize(fields, secret))
}

func digest(content string) string {
	return strings.ToUpper(util.GetMd5Hash(content))
}

// Verify 校验响应或通知签名
// 对除 sign 外的全部字段重新计算签名，与 sign 字段逐字节比较(区分大小写)
// 参数:
//   - fields: 解析后的响应字段
//   - secret: 商户密钥
//
// 返回:
//   - bool: 签名是否一致
func Verify(fields gopay.BodyMap, secret string) bool {
	got, ok := fields[fieldSign]
	if !ok {
		return false
	}
	sign, _ := got.(string)
	if sign == "" {
		return false
	}
	return Sign(fields, secret) == sign
}

// signClientPayload 调起支付的二次签名
// App与小程序的字段名不同，两套模板都已按字段名升序排列
func (c *Client) signClientPayload(nonceStr, timeStamp, prepayID string) string {
	bm := make(gopay.BodyMap)
	if c.creds.Flavor == FlavorMiniProgram {
		bm.Set("appId", c.creds.AppID).
			Set("nonceStr", nonceStr).
			Set("package", "prepay_id="+prepayID).
			Set("signType", "MD5").
			Set("timeStamp", timeStamp)
	} else {
		bm.Set("appid", c.creds.AppID).
			Set("noncestr", nonceStr).
			Set("package", "Sign=WXPay").
			Set("partnerid", c.creds.MchID).
			Set("prepayid", prepayID).
			Set("timestamp", timeStamp)
	}
	return Sign(bm, c.creds.MchKey)
}
