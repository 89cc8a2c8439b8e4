package wxpay

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const nonceLength = 32

var chinaLoc = loadChinaLocation()

func loadChinaLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// nonceStr 生成32位随机字符串
func nonceStr() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// timeStampStr 当前Unix时间戳(秒)
func timeStampStr(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10)
}

// expireTimeStr 订单失效时间，格式 yyyyMMddHHmmss(北京时间)
func expireTimeStr(now time.Time, validity time.Duration) string {
	return now.Add(validity).In(chinaLoc).Format("20060102150405")
}

// toUTF8 统一文本编码
// 已是合法UTF-8时原样返回；否则按GB18030解码，解码失败则原样返回，避免破坏原始输入
func toUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	out, err := simplifiedchinese.GB18030.NewDecoder().String(s)
	if err != nil || !utf8.ValidString(out) {
		return s
	}
	return out
}

// joinAttachString 将字符串数组用分隔符连接
func joinAttachString(tokens []string) string {
	return strings.Join(tokens, "|")
}

// parseAttachString 解析附加字符串
// 将用"|"分隔的字符串解析为三个部分
func parseAttachString(s string) (string, string, string, error) {
	tokens := strings.Split(s, "|")
	if len(tokens) != 3 {
		return "", "", "", fmt.Errorf("parseAttachString() error: len(tokens) expected 3, got: %d", len(tokens))
	}
	return tokens[0], tokens[1], tokens[2], nil
}

// FenToYuan 将分转换为元
// 参数:
//   - fen: 金额字符串(分)，如微信返回的 total_fee
//
// 返回:
//   - decimal.Decimal: 金额(元)
//   - error: 金额格式错误
func FenToYuan(fen string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(fen)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid fee %q: %w", fen, err)
	}
	return d.Shift(-2), nil
}

// YuanToFen 将元转换为分，四舍五入到分
func YuanToFen(yuan float64) int64 {
	return decimal.NewFromFloat(yuan).Shift(2).Round(0).IntPart()
}
