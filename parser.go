package wxpay

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/tidwall/gjson"
)

// ParseXML 将微信返回的XML扁平化为字段集合
// 只处理根节点的直接子元素，且该元素的第一个子节点必须是文本(含CDATA)，更深的嵌套忽略。
// 元素内首个文本节点之前的空白被忽略；普通文本压缩空白，CDATA原样保留，只取第一个文本节点。
// 文档格式错误时返回已解析出的部分，不返回错误，缺失字段由后续校验发现。
func ParseXML(body []byte) gopay.BodyMap {
	bm := make(gopay.BodyMap)
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		depth int
		name  string // 当前一级子元素名
		state int    // 当前子元素的第一个子节点类型
		value string
	)
	const (
		pending = iota
		isText
		notText
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			return bm
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 2:
				name, state, value = t.Name.Local, pending, ""
			case depth == 3 && state == pending:
				state = notText
			}
		case xml.CharData:
			if depth != 2 || state != pending {
				continue
			}
			if isCDATA(body, offset) {
				value, state = string(t), isText
				continue
			}
			if text := condenseSpace(t); text != "" {
				value, state = text, isText
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			if depth == 2 && state == pending {
				state = notText
			}
		case xml.EndElement:
			if depth == 2 && state == isText {
				bm.Set(name, value)
			}
			depth--
		}
	}
}

func isCDATA(body []byte, offset int64) bool {
	return offset >= 0 && offset < int64(len(body)) && bytes.HasPrefix(body[offset:], []byte("<![CDATA["))
}

// condenseSpace 去掉首尾空白，内部连续空白压缩为一个空格
func condenseSpace(b []byte) string {
	return strings.Join(strings.Fields(string(b)), " ")
}

// loginResponse 小程序登录接口 jscode2session 的返回
type loginResponse struct {
	SessionKey string
	OpenID     string
	UnionID    string
	ErrCode    int64
	ErrMsg     string
}

// parseLoginJSON 按字段名直接读取登录返回，session_key 与 openid 都必须是字符串
func parseLoginJSON(body []byte) (*loginResponse, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, false
	}
	resp := &loginResponse{
		UnionID: doc.Get("unionid").String(),
		ErrCode: doc.Get("errcode").Int(),
		ErrMsg:  doc.Get("errmsg").String(),
	}
	sessionKey := doc.Get("session_key")
	openID := doc.Get("openid")
	if sessionKey.Type != gjson.String || openID.Type != gjson.String {
		return resp, false
	}
	resp.SessionKey = sessionKey.String()
	resp.OpenID = openID.String()
	return resp, true
}
