package tetris

import (
	"fmt"
	"math/rand/v2"
)

// RandomBag は7-bagシステムのピース生成器です。
// バッグが空になったら7種類を1つずつ補充し、残りの中から一様ランダムに1つずつ取り出します。
type RandomBag struct {
	rng       *rand.Rand
	remaining []PieceKind // 現在のバッグに残っているピース (補充順)
}

// NewRandomBag は指定された乱数生成器を使うバッグを作成します。
func NewRandomBag(rng *rand.Rand) *RandomBag {
	return &RandomBag{rng: rng}
}

// Next は次のピースを返します。ブロックもエラーもしません。
func (b *RandomBag) Next() PieceKind {
	if len(b.remaining) == 0 {
		b.remaining = append(b.remaining[:0], AllKinds[:]...)
	}
	i := b.rng.IntN(len(b.remaining))
	kind := b.remaining[i]
	// 残りの順序を保ったまま取り除く (セーブデータに順序ごと残すため)
	b.remaining = append(b.remaining[:i], b.remaining[i+1:]...)
	return kind
}

// Remaining は現在のバッグの中身のコピーを返します。
func (b *RandomBag) Remaining() []PieceKind {
	return append([]PieceKind(nil), b.remaining...)
}

// Restore はセーブデータからバッグの中身を復元します。
// 7種類のうち重複のない部分集合でなければエラーを返します。
func (b *RandomBag) Restore(remaining []PieceKind) error {
	seen := make(map[PieceKind]bool, len(remaining))
	for _, kind := range remaining {
		if !kind.Valid() {
			return fmt.Errorf("bag contains invalid piece kind %d", uint8(kind))
		}
		if seen[kind] {
			return fmt.Errorf("bag contains %s twice", kind)
		}
		seen[kind] = true
	}
	b.remaining = append([]PieceKind(nil), remaining...)
	return nil
}
