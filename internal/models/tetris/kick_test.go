package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotate_CounterRotationRestores(t *testing.T) {
	board := NewBoard()
	for _, kind := range AllKinds {
		if kind == KindO {
			continue
		}
		for f := FacingN; f <= FacingW; f++ {
			p := Piece{Kind: kind, Facing: f, Anchor: Point{Col: 3, Row: 8}}

			cw, ok := Rotate(&board, p, true, RotationSRS)
			assert.True(t, ok, "%s cw from %s", kind, f)
			back, ok := Rotate(&board, cw, false, RotationSRS)
			assert.True(t, ok, "%s ccw from %s", kind, cw.Facing)
			assert.Equal(t, p, back, "%s facing %s", kind, f)
		}
	}
}

func TestRotate_OPieceIsNoOp(t *testing.T) {
	board := NewBoard()
	o := Spawn(KindO)
	rotated, ok := Rotate(&board, o, true, RotationSRS)
	assert.False(t, ok)
	assert.Equal(t, o, rotated)
}

func TestRotate_WallKick(t *testing.T) {
	board := NewBoard()
	// 縦向きのIミノを左の壁に付ける (ブロックは0列目)
	i := Piece{Kind: KindI, Facing: FacingE, Anchor: Point{Col: -2, Row: 5}}
	assert.True(t, board.IsLegal(i, nil))

	rotated, ok := Rotate(&board, i, true, RotationSRS)
	assert.True(t, ok)
	assert.Equal(t, FacingS, rotated.Facing)
	assert.Equal(t, Point{Col: 0, Row: 5}, rotated.Anchor)
	assert.True(t, board.IsLegal(rotated, nil))

	// キックなしでは壁にめり込むので回転できない
	unchanged, ok := Rotate(&board, i, true, RotationNone)
	assert.False(t, ok)
	assert.Equal(t, i, unchanged)
}

func TestRotate_BlockedEverywhere(t *testing.T) {
	board := NewBoard()
	for row := 0; row < BoardHeight; row++ {
		for col := 0; col < BoardWidth; col++ {
			board[row][col] = Occupied(KindZ)
		}
	}
	p := Piece{Kind: KindT, Facing: FacingN, Anchor: Point{Col: 3, Row: 8}}
	board.Stamp(p) // ピース自身のマスだけTにする

	got, ok := Rotate(&board, p, true, RotationSRS)
	assert.False(t, ok)
	assert.Equal(t, p, got)
}

func TestKickTables(t *testing.T) {
	for from := FacingN; from <= FacingW; from++ {
		for _, cw := range []bool{true, false} {
			to := from.Next(cw)
			for _, kind := range []PieceKind{KindI, KindT} {
				kicks := RotationSRS.Kicks(kind, from, to)
				assert.Len(t, kicks, 5, "%s %s->%s", kind, from, to)
				assert.Equal(t, Point{}, kicks[0])
			}
			assert.Equal(t, []Point{{}}, RotationNone.Kicks(KindT, from, to))
		}
	}
}

func TestParseRotationSystem(t *testing.T) {
	rs, err := ParseRotationSystem("")
	assert.NoError(t, err)
	assert.Equal(t, RotationSRS, rs)

	rs, err = ParseRotationSystem("none")
	assert.NoError(t, err)
	assert.Equal(t, RotationNone, rs)

	_, err = ParseRotationSystem("ars")
	assert.Error(t, err)
}
