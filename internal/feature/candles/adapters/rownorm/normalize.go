// Package rownorm は形式の異なる生のOHLCV行を正規のローソク足に変換します。
//
// 行は位置指定の配列 [time, open, high, low, close, volume?] か、長い名前（time, open, ...）または
// 短い名前（t, o, ...）をキーに持つオブジェクトです。完全なローソク足にならない行はエラーではなくSkipになります。
package rownorm

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"chart_backend/internal/feature/candles/domain/entity"
)

// Result は1行の正規化結果です。実体は Ok か Skip のどちらかです。
type Result interface {
	result()
}

// Ok は正規化済みのローソク足を保持します。
type Ok struct {
	Candle entity.Candle
}

// Skip は破棄された行を表します。
type Skip struct {
	Reason string
}

func (Ok) result()   {}
func (Skip) result() {}

// Skipの理由。メトリクスのラベルに使うため種類を増やさないこと。
const (
	ReasonShape   = "shape"
	ReasonMissing = "missing"
	ReasonInvalid = "invalid"
)

type field struct {
	long, short string
}

var (
	fieldTime   = field{"time", "t"}
	fieldOpen   = field{"open", "o"}
	fieldHigh   = field{"high", "h"}
	fieldLow    = field{"low", "l"}
	fieldClose  = field{"close", "c"}
	fieldVolume = field{"volume", "v"}
)

type rawValue struct {
	data []byte
	typ  jsonparser.ValueType
}

func (v rawValue) absent() bool {
	return v.typ == jsonparser.NotExist || v.typ == jsonparser.Null
}

// Normalize は生のJSON行1つをローソク足に変換します。
func Normalize(row []byte) Result {
	row = bytes.TrimSpace(row)
	if len(row) == 0 {
		return Skip{Reason: ReasonShape}
	}

	var vals [6]rawValue
	switch row[0] {
	case '[':
		i := 0
		_, err := jsonparser.ArrayEach(row, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
			if i < len(vals) {
				vals[i] = rawValue{data: value, typ: dataType}
			}
			i++
		})
		if err != nil {
			return Skip{Reason: ReasonShape}
		}
	case '{':
		for i, f := range []field{fieldTime, fieldOpen, fieldHigh, fieldLow, fieldClose, fieldVolume} {
			vals[i] = lookup(row, f)
		}
	default:
		return Skip{Reason: ReasonShape}
	}
	return build(vals)
}

// lookup は長い名前を読み、存在しないかnullの場合は短い名前にフォールスルーします。
func lookup(row []byte, f field) rawValue {
	if v, ok := get(row, f.long); ok {
		return v
	}
	v, _ := get(row, f.short)
	return v
}

func get(row []byte, key string) (rawValue, bool) {
	value, typ, _, err := jsonparser.Get(row, key)
	if err != nil {
		return rawValue{typ: jsonparser.NotExist}, false
	}
	v := rawValue{data: value, typ: typ}
	return v, !v.absent()
}

func build(vals [6]rawValue) Result {
	for _, v := range vals[:5] {
		if v.absent() {
			return Skip{Reason: ReasonMissing}
		}
	}

	rawTime, err := number(vals[0])
	if err != nil {
		return Skip{Reason: ReasonInvalid}
	}
	sec, ok := entity.EpochSeconds(rawTime)
	if !ok {
		return Skip{Reason: ReasonInvalid}
	}
	c := entity.Candle{Time: sec}

	dst := [4]*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i := range dst {
		f, err := number(vals[i+1])
		if err != nil {
			return Skip{Reason: ReasonInvalid}
		}
		*dst[i] = f
	}

	// 解釈できない出来高は未設定として扱う
	if v := vals[5]; !v.absent() {
		if f, err := number(v); err == nil {
			c.Volume = entity.Float64(f)
		}
	}
	return Ok{Candle: c}
}

// number はJSONの数値と数値文字列を受け付けます。有限でない値は拒否します。
func number(v rawValue) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v.typ {
	case jsonparser.Number:
		f, err = jsonparser.ParseFloat(v.data)
	case jsonparser.String:
		f, err = strconv.ParseFloat(strings.TrimSpace(string(v.data)), 64)
	default:
		return 0, fmt.Errorf("unexpected %s value", v.typ)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", v.data)
	}
	return f, nil
}
