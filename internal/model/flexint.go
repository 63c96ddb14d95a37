package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexInt はJSONの数値と数字文字列のどちらでも受け付ける整数。
// null、空文字列、数字として解釈できない文字列は0（未設定）として扱う。
type FlexInt int64

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexInt(parseLenient(strings.TrimSpace(s)))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("数値または数字文字列が必要です: %s", data)
	}
	*f = FlexInt(parseLenient(n.String()))
	return nil
}

// Int64 はint64に変換する。
func (f FlexInt) Int64() int64 {
	return int64(f)
}

func parseLenient(s string) int64 {
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
		return int64(v)
	}
	return 0
}
