package tetris

import "fmt"

// RotationSystem は回転時に試す壁蹴り (Wall Kick) のテーブルを選択します。
type RotationSystem string

const (
	// RotationSRS はガイドラインのSuper Rotation Systemのキックテーブルを使います。
	RotationSRS RotationSystem = "srs"
	// RotationNone はキックを行わず、回転後の位置だけを判定します。
	RotationNone RotationSystem = "none"
)

// Valid は定義済みの回転システムかどうかを返します。
func (rs RotationSystem) Valid() bool {
	return rs == RotationSRS || rs == RotationNone
}

type kickKey struct {
	from, to Facing
}

// jlstzKicks はJ, L, S, T, Zミノ共通のキックテーブルです。
// (列, 行) のオフセットで、行は上方向が正です。先頭から順に試します。
var jlstzKicks = map[kickKey][]Point{
	{FacingN, FacingE}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{FacingE, FacingN}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{FacingE, FacingS}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{FacingS, FacingE}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{FacingS, FacingW}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
	{FacingW, FacingS}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{FacingW, FacingN}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{FacingN, FacingW}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
}

// iKicks はIミノ専用のキックテーブルです。
var iKicks = map[kickKey][]Point{
	{FacingN, FacingE}: {{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	{FacingE, FacingN}: {{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
	{FacingE, FacingS}: {{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
	{FacingS, FacingE}: {{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
	{FacingS, FacingW}: {{0, 0}, {2, 0}, {-1, 0}, {2, 1}, {-1, -2}},
	{FacingW, FacingS}: {{0, 0}, {-2, 0}, {1, 0}, {-2, -1}, {1, 2}},
	{FacingW, FacingN}: {{0, 0}, {1, 0}, {-2, 0}, {1, -2}, {-2, 1}},
	{FacingN, FacingW}: {{0, 0}, {-1, 0}, {2, 0}, {-1, 2}, {2, -1}},
}

var noKicks = []Point{{0, 0}}

// Kicks は from から to へ回転するときに試すオフセットを優先順に返します。
func (rs RotationSystem) Kicks(kind PieceKind, from, to Facing) []Point {
	if rs != RotationSRS {
		return noKicks
	}
	switch kind {
	case KindO:
		return noKicks
	case KindI:
		return iKicks[kickKey{from, to}]
	default:
		return jlstzKicks[kickKey{from, to}]
	}
}

// Rotate はピースを回転させた候補を作り、キックテーブルの順に置けるかを試します。
// すべて失敗した場合は元のピースと false を返します (副作用なし)。
// Oミノの回転は常に元のピースを返します。
//
// Parameters:
//
//	b         : 判定に使うボード
//	p         : 現在のピース (ボードに書き込まれていてもよい)
//	clockwise : trueなら時計回り
//	rs        : 使用する回転システム
//
// Returns:
//
//	Piece: 回転後のピース (失敗時は p)
//	bool : 回転できた場合はtrue
func Rotate(b *Board, p Piece, clockwise bool, rs RotationSystem) (Piece, bool) {
	if p.Kind == KindO {
		return p, false
	}
	to := p.Facing.Next(clockwise)
	rotated := p.WithFacing(to)
	for _, kick := range rs.Kicks(p.Kind, p.Facing, to) {
		candidate := rotated.Translate(kick.Col, kick.Row)
		if b.IsLegal(candidate, &p) {
			return candidate, true
		}
	}
	return p, false
}

// ParseRotationSystem は設定値から回転システムを読み取ります。
func ParseRotationSystem(s string) (RotationSystem, error) {
	rs := RotationSystem(s)
	if s == "" {
		rs = RotationSRS
	}
	if !rs.Valid() {
		return "", fmt.Errorf("unknown rotation system %q", s)
	}
	return rs, nil
}
