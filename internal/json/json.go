package json

import (
	"io"

	"github.com/bytedance/sonic"
)

// 本包是对 bytedance/sonic 的薄封装，统一项目内的 JSON 编解码入口。
//
// 约定：
//   - 边界层（boundary）的所有跨语言 JSON 都必须经过本包；
//   - 配置使用 sonic.ConfigStd，保证与 encoding/json 兼容的字段顺序与转义行为，
//     避免宿主侧解析器因非标准输出而出错。
var api = sonic.ConfigStd

// Marshal 将对象编码为 JSON 字节序列。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalString 将对象编码为 JSON 字符串。
func MarshalString(v any) (string, error) {
	return api.MarshalToString(v)
}

// Unmarshal 将 JSON 字节序列解码到目标对象。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// UnmarshalString 将 JSON 字符串解码到目标对象。
func UnmarshalString(data string, v any) error {
	return api.UnmarshalFromString(data, v)
}

// NewEncoder 创建一个流式 JSON 编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return api.NewEncoder(w)
}

// NewDecoder 创建一个流式 JSON 解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return api.NewDecoder(r)
}
