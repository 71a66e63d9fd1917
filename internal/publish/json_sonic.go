//go:build sonic

package publish

import "github.com/bytedance/sonic"

var (
	jsonUnmarshal = sonic.Unmarshal
)

func jsonMarshalIndent(v any) ([]byte, error) {
	return sonic.MarshalIndent(v, "", "  ")
}
