package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawn_Positions(t *testing.T) {
	tests := []struct {
		kind PieceKind
		want []Point
	}{
		{KindI, []Point{{4, 20}, {5, 20}, {6, 20}, {7, 20}}},
		{KindO, []Point{{5, 21}, {6, 21}, {5, 20}, {6, 20}}},
		{KindT, []Point{{5, 21}, {4, 20}, {5, 20}, {6, 20}}},
		{KindL, []Point{{6, 21}, {4, 20}, {5, 20}, {6, 20}}},
		{KindJ, []Point{{4, 21}, {4, 20}, {5, 20}, {6, 20}}},
		{KindS, []Point{{5, 21}, {6, 21}, {4, 20}, {5, 20}}},
		{KindZ, []Point{{4, 21}, {5, 21}, {5, 20}, {6, 20}}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			p := Spawn(tt.kind)
			blocks := p.Blocks()
			assert.ElementsMatch(t, tt.want, blocks[:])
			assert.Equal(t, FacingN, p.Facing)
			assert.Equal(t, 20, p.LowestRow())
		})
	}
}

func TestPieceShapes_FourDistinctBlocks(t *testing.T) {
	for _, kind := range AllKinds {
		for f := FacingN; f <= FacingW; f++ {
			p := Piece{Kind: kind, Facing: f, Anchor: Point{Col: 3, Row: 5}}
			seen := map[Point]bool{}
			for _, pt := range p.Blocks() {
				seen[pt] = true
			}
			assert.Len(t, seen, 4, "%s facing %s", kind, f)
		}
	}
}

func TestPiece_TranslateAndFacing(t *testing.T) {
	p := Spawn(KindT)
	moved := p.Translate(-1, -3)
	assert.Equal(t, Point{Col: 3, Row: 16}, moved.Anchor)
	assert.Equal(t, Point{Col: 4, Row: 19}, p.Anchor, "元のピースは変わらない")

	assert.Equal(t, FacingE, p.WithFacing(FacingE).Facing)
	assert.Equal(t, FacingN, Spawn(KindO).WithFacing(FacingE).Facing)

	assert.True(t, p.Occupies(Point{Col: 5, Row: 21}))
	assert.False(t, p.Occupies(Point{Col: 4, Row: 21}))
}

func TestFacing_Next(t *testing.T) {
	f := FacingN
	for i := 0; i < 4; i++ {
		f = f.Next(true)
	}
	assert.Equal(t, FacingN, f)
	assert.Equal(t, FacingW, FacingN.Next(false))
	assert.Equal(t, FacingE, FacingN.Next(true))
}

func TestParsePieceKind(t *testing.T) {
	kind, ok := ParsePieceKind("t")
	assert.True(t, ok)
	assert.Equal(t, KindT, kind)

	kind, ok = ParsePieceKind("")
	assert.True(t, ok)
	assert.Equal(t, KindNone, kind)

	_, ok = ParsePieceKind("X")
	assert.False(t, ok)

	text, err := KindZ.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Z", string(text))

	_, err = PieceKind(12).MarshalText()
	assert.Error(t, err)
}
