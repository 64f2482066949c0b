package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EmptySentinel 作为值写入时表示删除标签
const EmptySentinel = "empty"

// TagValue 标签叶子值：数字或字符串
type TagValue struct {
	Num   float64
	Str   string
	IsNum bool
}

// Number 构造数字值
func Number(n float64) TagValue {
	return TagValue{Num: n, IsNum: true}
}

// String 构造字符串值
func String(s string) TagValue {
	return TagValue{Str: s}
}

// Empty 缺失值（空字符串）
func Empty() TagValue {
	return TagValue{}
}

// ValueOf 从JSON解码后的任意值转换
func ValueOf(v any) (TagValue, bool) {
	switch x := v.(type) {
	case float64:
		return Number(x), true
	case float32:
		return Number(float64(x)), true
	case int:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String()), true
		}
		return Number(f), true
	case string:
		return String(x), true
	case bool:
		return String(strconv.FormatBool(x)), true
	case TagValue:
		return x, true
	}
	return TagValue{}, false
}

// IsEmpty 缺失或空字符串
func (v TagValue) IsEmpty() bool {
	return !v.IsNum && v.Str == ""
}

// IsDeleteSentinel 是否为删除标记
func (v TagValue) IsDeleteSentinel() bool {
	return !v.IsNum && v.Str == EmptySentinel
}

// Float 数值形式；数字字符串也会被解析
func (v TagValue) Float() (float64, bool) {
	if v.IsNum {
		return v.Num, true
	}
	if v.Str == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Str, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Any 转为可JSON编码的值
func (v TagValue) Any() any {
	if v.IsNum {
		return v.Num
	}
	return v.Str
}

func (v TagValue) String() string {
	if v.IsNum {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

func (v TagValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *TagValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = Empty()
		return nil
	}
	tv, ok := ValueOf(raw)
	if !ok {
		return fmt.Errorf("标签值必须是数字或字符串: %s", string(data))
	}
	*v = tv
	return nil
}
