//go:build !sonic

package publish

import "github.com/goccy/go-json"

var (
	jsonUnmarshal = json.Unmarshal
)

func jsonMarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
