package tetris

import "fmt"

const (
	BoardWidth         = 10 // ボードの幅
	BoardHeight        = 22 // 生成領域を含むボードの高さ
	BoardVisibleHeight = 20 // 表示部分の高さ (上2行は描画しない)
)

// Cell はボード上の1マスの状態です。
// 0 は空、1-7 はテトリミノ (PieceKindと同じ番号)、11-17 はゴースト表示です。
type Cell uint8

const (
	CellEmpty Cell = 0
	ghostBase Cell = 10
)

// Occupied はkindのブロックで埋まったセルを返します。
func Occupied(kind PieceKind) Cell {
	return Cell(kind)
}

// Ghost はkindのゴーストを表示するセルを返します。
func Ghost(kind PieceKind) Cell {
	return ghostBase + Cell(kind)
}

func (c Cell) IsEmpty() bool { return c == CellEmpty }

// IsOccupied はブロックがあるマスかどうかを返します。ゴーストは含みません。
func (c Cell) IsOccupied() bool {
	return PieceKind(c).Valid()
}

func (c Cell) IsGhost() bool {
	return c > ghostBase && PieceKind(c-ghostBase).Valid()
}

// Kind はセルを埋めている (またはゴーストの) テトリミノの種類を返します。
func (c Cell) Kind() PieceKind {
	switch {
	case c.IsOccupied():
		return PieceKind(c)
	case c.IsGhost():
		return PieceKind(c - ghostBase)
	default:
		return KindNone
	}
}

// Valid は定義済みのセル値かどうかを返します。セーブデータの検証に使います。
func (c Cell) Valid() bool {
	return c.IsEmpty() || c.IsOccupied() || c.IsGhost()
}

// Row はボードの1行分です。
type Row [BoardWidth]Cell

// Board はゲームボードです。Board[row][col] でアクセスし、row 0 が最下段です。
type Board [BoardHeight]Row

// NewBoard は新しい空のボードを初期化して返します。
// Goの配列はゼロ値 (CellEmpty) で初期化されるため、特別な初期化は不要です。
func NewBoard() Board {
	var board Board
	return board
}

// InBounds は座標がボード内 ([0,9]×[0,21]) にあるかどうかを判定します。
func InBounds(pt Point) bool {
	return pt.Col >= 0 && pt.Col < BoardWidth && pt.Row >= 0 && pt.Row < BoardHeight
}

// At は座標のセルを返します。範囲外は空として扱います。
func (b *Board) At(pt Point) Cell {
	if !InBounds(pt) {
		return CellEmpty
	}
	return b[pt.Row][pt.Col]
}

// IsLegal は指定されたピースを置けるかどうかを判定します。
// 4つのブロックがすべてボード内にあり、対象のマスが空・ゴースト、
// または self (移動前の自分自身) のブロックであれば true です。
//
// Parameters:
//
//	p    : 判定するピース
//	self : 現在ボードに書き込まれている自分自身 (なければ nil)
func (b *Board) IsLegal(p Piece, self *Piece) bool {
	if !p.Kind.Valid() {
		return false
	}
	for _, pt := range p.Blocks() {
		if !InBounds(pt) {
			return false
		}
		cell := b[pt.Row][pt.Col]
		if !cell.IsOccupied() {
			continue // 空またはゴーストは障害物にならない
		}
		if self != nil && self.Occupies(pt) {
			continue
		}
		return false
	}
	return true
}

// Stamp はピースの4マスをブロックで埋めます。呼び出し側で IsLegal を確認済みであることが前提です。
func (b *Board) Stamp(p Piece) {
	for _, pt := range p.Blocks() {
		if InBounds(pt) {
			b[pt.Row][pt.Col] = Occupied(p.Kind)
		}
	}
}

// Erase はピースの4マスを空に戻します。
func (b *Board) Erase(p Piece) {
	for _, pt := range p.Blocks() {
		if InBounds(pt) && b[pt.Row][pt.Col] == Occupied(p.Kind) {
			b[pt.Row][pt.Col] = CellEmpty
		}
	}
}

// StampGhost はゴーストを書き込みます。既にブロックがあるマスは上書きしません。
func (b *Board) StampGhost(p Piece) {
	for _, pt := range p.Blocks() {
		if InBounds(pt) && b[pt.Row][pt.Col].IsEmpty() {
			b[pt.Row][pt.Col] = Ghost(p.Kind)
		}
	}
}

// EraseGhost はゴーストのマスだけを空に戻します。
func (b *Board) EraseGhost(p Piece) {
	for _, pt := range p.Blocks() {
		if InBounds(pt) && b[pt.Row][pt.Col].IsGhost() {
			b[pt.Row][pt.Col] = CellEmpty
		}
	}
}

// ClearGhosts はボード上のすべてのゴーストを消します。
func (b *Board) ClearGhosts() {
	for r := range b {
		for c := range b[r] {
			if b[r][c].IsGhost() {
				b[r][c] = CellEmpty
			}
		}
	}
}

// DropDistance は self を下方向に何段落とせるかを返します。
func (b *Board) DropDistance(p Piece, self *Piece) int {
	dist := 0
	for b.IsLegal(p.Translate(0, -(dist+1)), self) {
		dist++
	}
	return dist
}

// IsRowFull は行のすべてのマスがブロックで埋まっているかどうかを返します。
func (b *Board) IsRowFull(row int) bool {
	if row < 0 || row >= BoardHeight {
		return false
	}
	for _, cell := range b[row] {
		if !cell.IsOccupied() {
			return false
		}
	}
	return true
}

// ScanFullRows は揃っている行のインデックスを最上段 (21) から順に返します。
func (b *Board) ScanFullRows() []int {
	var rows []int
	for row := BoardHeight - 1; row >= 0; row-- {
		if b.IsRowFull(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// ClearRows は指定された行をすべて取り除き、上に空の行を補充します。
// 残りの行の相対順序は保たれます。範囲外や重複したインデックスは無視します。
//
// Returns:
//
//	int: 実際に取り除いた行数
func (b *Board) ClearRows(rows []int) int {
	if len(rows) == 0 {
		return 0
	}
	remove := make(map[int]bool, len(rows))
	for _, row := range rows {
		if row >= 0 && row < BoardHeight {
			remove[row] = true
		}
	}

	newBoard := NewBoard()
	dest := 0
	for row := 0; row < BoardHeight; row++ {
		if remove[row] {
			continue
		}
		newBoard[dest] = b[row]
		dest++
	}
	*b = newBoard // 残りの行はすでに空
	return len(remove)
}

// Visible は描画用に表示部分 (下から20行) を返します。
func (b *Board) Visible() [BoardVisibleHeight]Row {
	var out [BoardVisibleHeight]Row
	copy(out[:], b[:BoardVisibleHeight])
	return out
}

// OccupiedCount はブロックがあるマスの数を返します。
func (b *Board) OccupiedCount() int {
	n := 0
	for _, row := range b {
		for _, cell := range row {
			if cell.IsOccupied() {
				n++
			}
		}
	}
	return n
}

// Validate はすべてのセル値が定義済みであることを確認します。
func (b *Board) Validate() error {
	for r, row := range b {
		for c, cell := range row {
			if !cell.Valid() {
				return fmt.Errorf("invalid cell value %d at col %d row %d", cell, c, r)
			}
		}
	}
	return nil
}
