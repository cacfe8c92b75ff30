package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fillRow はテスト用に1行をすべてkindのブロックで埋めます。
func fillRow(b *Board, row int, kind PieceKind) {
	for c := 0; c < BoardWidth; c++ {
		b[row][c] = Occupied(kind)
	}
}

func TestNewBoard(t *testing.T) {
	board := NewBoard()
	assert.Equal(t, BoardHeight, len(board))
	assert.Equal(t, BoardWidth, len(board[0]))
	assert.Equal(t, 0, board.OccupiedCount())
	assert.NoError(t, board.Validate())
}

func TestIsLegal(t *testing.T) {
	board := NewBoard()
	tPiece := Spawn(KindT)

	// 出現位置は空のボードでは常に置ける
	for _, kind := range AllKinds {
		assert.True(t, board.IsLegal(Spawn(kind), nil), "spawn %s", kind)
	}

	// 左右の壁・床・天井の外
	assert.False(t, board.IsLegal(tPiece.Translate(-5, 0), nil))
	assert.False(t, board.IsLegal(tPiece.Translate(4, 0), nil))
	assert.False(t, board.IsLegal(tPiece.Translate(0, -21), nil))
	assert.False(t, board.IsLegal(tPiece.Translate(0, 1), nil))
	assert.True(t, board.IsLegal(tPiece.Translate(-4, 0), nil))
	assert.True(t, board.IsLegal(tPiece.Translate(3, 0), nil))
	assert.True(t, board.IsLegal(tPiece.Translate(0, -20), nil))

	// 種類なしは置けない
	assert.False(t, board.IsLegal(Piece{Kind: KindNone}, nil))

	// 他のブロックとの重なり
	board[20][5] = Occupied(KindJ)
	assert.False(t, board.IsLegal(tPiece, nil))
	assert.True(t, board.IsLegal(tPiece.Translate(0, -2), nil))
}

func TestIsLegal_SelfAndGhost(t *testing.T) {
	board := NewBoard()
	p := Spawn(KindO)
	board.Stamp(p)

	down := p.Translate(0, -1)
	// 自分自身と重なるマスは self を渡せば障害物にならない
	assert.False(t, board.IsLegal(down, nil))
	assert.True(t, board.IsLegal(down, &p))

	// ゴーストは障害物にならない
	board.Erase(p)
	board.StampGhost(p.Translate(0, -20))
	assert.True(t, board.IsLegal(p.Translate(0, -20), nil))
}

func TestStampGhost_DoesNotOverwriteBlocks(t *testing.T) {
	board := NewBoard()
	board[0][5] = Occupied(KindI)
	ghost := Piece{Kind: KindO, Anchor: Point{Col: 5, Row: 0}}

	board.StampGhost(ghost)
	assert.Equal(t, Occupied(KindI), board[0][5])
	assert.Equal(t, Ghost(KindO), board[0][6])
	assert.True(t, board[1][5].IsGhost())
	assert.Equal(t, KindO, board[1][5].Kind())

	board.EraseGhost(ghost)
	assert.Equal(t, Occupied(KindI), board[0][5])
	assert.True(t, board[0][6].IsEmpty())
	assert.Equal(t, 1, board.OccupiedCount())
}

func TestDropDistance(t *testing.T) {
	board := NewBoard()
	i := Spawn(KindI)
	assert.Equal(t, 20, board.DropDistance(i, nil))

	fillRow(&board, 0, KindZ)
	fillRow(&board, 1, KindZ)
	assert.Equal(t, 18, board.DropDistance(i, nil))
}

func TestScanAndClearRows_NonAdjacent(t *testing.T) {
	board := NewBoard()
	fillRow(&board, 0, KindZ)
	fillRow(&board, 2, KindZ)
	fillRow(&board, 5, KindZ)
	board[1][0] = Occupied(KindT) // 残る行の目印
	board[3][9] = Occupied(KindJ)
	board[6][4] = Occupied(KindL)

	rows := board.ScanFullRows()
	assert.Equal(t, []int{5, 2, 0}, rows)

	cleared := board.ClearRows(rows)
	assert.Equal(t, 3, cleared)

	// 残った行は順序を保って下に詰められる
	assert.Equal(t, Occupied(KindT), board[0][0])
	assert.Equal(t, Occupied(KindJ), board[1][9])
	assert.Equal(t, Occupied(KindL), board[3][4])
	assert.Equal(t, 3, board.OccupiedCount())
	for row := BoardHeight - 3; row < BoardHeight; row++ {
		assert.Equal(t, Row{}, board[row], "row %d should be empty", row)
	}
	assert.Empty(t, board.ScanFullRows())
}

func TestClearRows_AllRows(t *testing.T) {
	board := NewBoard()
	for row := 0; row < BoardHeight; row++ {
		fillRow(&board, row, AllKinds[row%len(AllKinds)])
	}
	rows := board.ScanFullRows()
	assert.Len(t, rows, BoardHeight)

	assert.Equal(t, BoardHeight, board.ClearRows(rows))
	assert.Equal(t, NewBoard(), board)
}

func TestClearRows_NoRows(t *testing.T) {
	board := NewBoard()
	board[0][3] = Occupied(KindS)
	before := board

	assert.Empty(t, board.ScanFullRows())
	assert.Equal(t, 0, board.ClearRows(nil))
	assert.Equal(t, before, board)
}

func TestClearRows_IgnoresDuplicatesAndOutOfRange(t *testing.T) {
	board := NewBoard()
	fillRow(&board, 0, KindO)
	board[1][2] = Occupied(KindI)

	assert.Equal(t, 1, board.ClearRows([]int{0, 0, -1, BoardHeight}))
	assert.Equal(t, Occupied(KindI), board[0][2])
}

func TestIsRowFull_IgnoresGhosts(t *testing.T) {
	board := NewBoard()
	fillRow(&board, 0, KindT)
	board[0][4] = Ghost(KindT)
	assert.False(t, board.IsRowFull(0))
	assert.False(t, board.IsRowFull(-1))
	assert.False(t, board.IsRowFull(BoardHeight))
}

func TestBoardValidate(t *testing.T) {
	board := NewBoard()
	board[3][3] = Ghost(KindS)
	assert.NoError(t, board.Validate())

	board[4][4] = Cell(42)
	assert.Error(t, board.Validate())
}

func TestVisible(t *testing.T) {
	board := NewBoard()
	board[19][0] = Occupied(KindI)
	board[21][0] = Occupied(KindI) // 生成領域は描画されない

	visible := board.Visible()
	assert.Equal(t, BoardVisibleHeight, len(visible))
	assert.Equal(t, Occupied(KindI), visible[19][0])
}
