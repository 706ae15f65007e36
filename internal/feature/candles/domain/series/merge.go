package series

import (
	"cmp"
	"slices"

	"chart_backend/internal/feature/candles/domain/entity"
)

// ApplyUpdate は1本のローソク足をシーケンスにマージします。
// 同じ時刻の要素があれば置き換え（確定前の足の更新）、なければ末尾から逆方向に走査して挿入位置を決めます。
// 入力が昇順・重複なしであれば、結果も昇順・重複なしです。上限の適用は呼び出し側の責務です。
func ApplyUpdate(seq []entity.Candle, c entity.Candle) []entity.Candle {
	i := len(seq)
	for i > 0 && seq[i-1].Time >= c.Time {
		if seq[i-1].Time == c.Time {
			seq[i-1] = c
			return seq
		}
		i--
	}
	return slices.Insert(seq, i, c)
}

// MergeAll はcsの各要素をApplyUpdateで順にマージします。
func MergeAll(seq []entity.Candle, cs []entity.Candle) []entity.Candle {
	for _, c := range cs {
		seq = ApplyUpdate(seq, c)
	}
	return seq
}

// TrimFront はシーケンスが limit 件を超える場合に古い要素を先頭から削除します。
// limit <= 0 は無制限を意味します。
func TrimFront(seq []entity.Candle, limit int) []entity.Candle {
	if limit <= 0 || len(seq) <= limit {
		return seq
	}
	n := copy(seq, seq[len(seq)-limit:])
	clear(seq[n:])
	return seq[:n]
}

// Canonicalize は時刻で安定ソートし、同じ時刻が複数ある場合は後に現れた要素を残します。
// 入力スライスは並べ替えられます。
func Canonicalize(seq []entity.Candle) []entity.Candle {
	slices.SortStableFunc(seq, func(a, b entity.Candle) int {
		return cmp.Compare(a.Time, b.Time)
	})
	out := seq[:0]
	for _, c := range seq {
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	clear(seq[len(out):])
	return out
}

// Lookup は昇順シーケンスから時刻tに一致するローソク足を探します。
func Lookup(seq []entity.Candle, t int64) (entity.Candle, bool) {
	i, found := slices.BinarySearchFunc(seq, t, func(c entity.Candle, t int64) int {
		return cmp.Compare(c.Time, t)
	})
	if !found {
		return entity.Candle{}, false
	}
	return seq[i], true
}
