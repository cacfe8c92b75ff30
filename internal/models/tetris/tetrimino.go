package tetris

import (
	"fmt"
	"strings"
)

// PieceKind はテトリミノの種類を表します。
// 値はグリッドに保存するセル番号 (O=1 ... Z=7) と同じです。
type PieceKind uint8

const (
	KindNone PieceKind = iota // 0: 種類なし (ホールド空など)
	KindO                     // 1: O-ミノ
	KindI                     // 2: I-ミノ
	KindT                     // 3: T-ミノ
	KindL                     // 4: L-ミノ
	KindJ                     // 5: J-ミノ
	KindS                     // 6: S-ミノ
	KindZ                     // 7: Z-ミノ
)

// AllKinds は7種類すべてのテトリミノです。7-bagの補充順序にも使います。
var AllKinds = [7]PieceKind{KindO, KindI, KindT, KindL, KindJ, KindS, KindZ}

var kindNames = map[PieceKind]string{
	KindNone: "",
	KindO:    "O",
	KindI:    "I",
	KindT:    "T",
	KindL:    "L",
	KindJ:    "J",
	KindS:    "S",
	KindZ:    "Z",
}

// Valid は7種類のいずれかであればtrueを返します。
func (k PieceKind) Valid() bool {
	return k >= KindO && k <= KindZ
}

func (k PieceKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PieceKind(%d)", uint8(k))
}

// ParsePieceKind は "I", "O" などの文字列をPieceKindに変換します。
// 空文字列は KindNone として扱います。
func ParsePieceKind(s string) (PieceKind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if name == s {
			return kind, true
		}
	}
	return KindNone, false
}

// MarshalText はJSONでピース種類を "T" のような文字列で保存するためのものです。
func (k PieceKind) MarshalText() ([]byte, error) {
	if k != KindNone && !k.Valid() {
		return nil, fmt.Errorf("invalid piece kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText は MarshalText の逆変換です。
func (k *PieceKind) UnmarshalText(text []byte) error {
	kind, ok := ParsePieceKind(string(text))
	if !ok {
		return fmt.Errorf("unknown piece kind %q", string(text))
	}
	*k = kind
	return nil
}

// Facing はピースの向きです。時計回りに N → E → S → W → N と循環します。
type Facing uint8

const (
	FacingN Facing = iota
	FacingE
	FacingS
	FacingW
)

var facingNames = [4]string{"N", "E", "S", "W"}

func (f Facing) String() string {
	if f > FacingW {
		return fmt.Sprintf("Facing(%d)", uint8(f))
	}
	return facingNames[f]
}

// Next は回転後の向きを返します。
func (f Facing) Next(clockwise bool) Facing {
	if clockwise {
		return (f + 1) % 4
	}
	return (f + 3) % 4
}

// ParseFacing は "N"/"E"/"S"/"W" をFacingに変換します。
func ParseFacing(s string) (Facing, bool) {
	for i, name := range facingNames {
		if name == s {
			return Facing(i), true
		}
	}
	return FacingN, false
}

func (f Facing) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Facing) UnmarshalText(text []byte) error {
	facing, ok := ParseFacing(string(text))
	if !ok {
		return fmt.Errorf("unknown facing %q", string(text))
	}
	*f = facing
	return nil
}

// Point はボード上の座標です。Colは左から、Rowは下から数えます。
type Point struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// pieceShapes は各PieceKindの各向きにおけるブロックの相対座標を定義します。
// [PieceKind][Facing][BlockIndex]
// 座標はバウンディングボックス左下からの相対値で、行は上方向に増えます。
// JLSTZは3x3、Iは4x4のボックス内で中心回転したものです (SRS準拠)。
var pieceShapes = map[PieceKind][4][4]Point{
	KindO: { // O-ミノ (回転しない)
		{{0, 1}, {1, 1}, {0, 0}, {1, 0}},
		{{0, 1}, {1, 1}, {0, 0}, {1, 0}},
		{{0, 1}, {1, 1}, {0, 0}, {1, 0}},
		{{0, 1}, {1, 1}, {0, 0}, {1, 0}},
	},
	KindI: {
		{{0, 2}, {1, 2}, {2, 2}, {3, 2}}, // N (横)
		{{2, 3}, {2, 2}, {2, 1}, {2, 0}}, // E (縦)
		{{3, 1}, {2, 1}, {1, 1}, {0, 1}}, // S (横)
		{{1, 0}, {1, 1}, {1, 2}, {1, 3}}, // W (縦)
	},
	KindT: {
		{{1, 2}, {0, 1}, {1, 1}, {2, 1}},
		{{2, 1}, {1, 2}, {1, 1}, {1, 0}},
		{{1, 0}, {2, 1}, {1, 1}, {0, 1}},
		{{0, 1}, {1, 0}, {1, 1}, {1, 2}},
	},
	KindL: {
		{{2, 2}, {0, 1}, {1, 1}, {2, 1}},
		{{2, 0}, {1, 2}, {1, 1}, {1, 0}},
		{{0, 0}, {2, 1}, {1, 1}, {0, 1}},
		{{0, 2}, {1, 0}, {1, 1}, {1, 2}},
	},
	KindJ: {
		{{0, 2}, {0, 1}, {1, 1}, {2, 1}},
		{{2, 2}, {1, 2}, {1, 1}, {1, 0}},
		{{2, 0}, {2, 1}, {1, 1}, {0, 1}},
		{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
	},
	KindS: {
		{{1, 2}, {2, 2}, {0, 1}, {1, 1}},
		{{2, 1}, {2, 0}, {1, 2}, {1, 1}},
		{{1, 0}, {0, 0}, {2, 1}, {1, 1}},
		{{0, 1}, {0, 2}, {1, 0}, {1, 1}},
	},
	KindZ: {
		{{0, 2}, {1, 2}, {1, 1}, {2, 1}},
		{{2, 2}, {2, 1}, {1, 1}, {1, 0}},
		{{2, 0}, {1, 0}, {1, 1}, {0, 1}},
		{{0, 0}, {0, 1}, {1, 1}, {1, 2}},
	},
}

// spawnAnchors は各種類の出現時のボックス左下座標です。
// N向きで最下段のブロックが20行目 (見えない生成領域の1段目) に来ます。
var spawnAnchors = map[PieceKind]Point{
	KindO: {Col: 5, Row: 20},
	KindI: {Col: 4, Row: 18},
	KindT: {Col: 4, Row: 19},
	KindL: {Col: 4, Row: 19},
	KindJ: {Col: 4, Row: 19},
	KindS: {Col: 4, Row: 19},
	KindZ: {Col: 4, Row: 19},
}

// Piece は操作中のテトリミノです。値として扱い、移動や回転のたびに新しい値を作ります。
type Piece struct {
	Kind   PieceKind `json:"kind"`
	Facing Facing    `json:"facing"`
	Anchor Point     `json:"anchor"` // バウンディングボックス左下のボード座標
}

// Spawn は指定された種類のN向きのピースを出現位置に作成します。
func Spawn(kind PieceKind) Piece {
	return Piece{Kind: kind, Facing: FacingN, Anchor: spawnAnchors[kind]}
}

// SpawnAnchor は種類ごとの出現位置を返します。
func SpawnAnchor(kind PieceKind) Point {
	return spawnAnchors[kind]
}

// Blocks は4つのブロックのボード上の絶対座標を返します。
func (p Piece) Blocks() [4]Point {
	var out [4]Point
	shape := pieceShapes[p.Kind][p.Facing%4]
	for i, off := range shape {
		out[i] = Point{Col: p.Anchor.Col + off.Col, Row: p.Anchor.Row + off.Row}
	}
	return out
}

// Translate は (dc, dr) だけずらしたピースを返します。drは正で上方向です。
func (p Piece) Translate(dc, dr int) Piece {
	p.Anchor.Col += dc
	p.Anchor.Row += dr
	return p
}

// WithFacing は向きだけを変えたピースを返します (壁蹴りなし)。
func (p Piece) WithFacing(f Facing) Piece {
	if p.Kind == KindO {
		return p
	}
	p.Facing = f
	return p
}

// Occupies はピースが指定座標を占めているかどうかを返します。
func (p Piece) Occupies(pt Point) bool {
	for _, b := range p.Blocks() {
		if b == pt {
			return true
		}
	}
	return false
}

// LowestRow はピースの最も低いブロックの行を返します。
func (p Piece) LowestRow() int {
	blocks := p.Blocks()
	lowest := blocks[0].Row
	for _, b := range blocks[1:] {
		if b.Row < lowest {
			lowest = b.Row
		}
	}
	return lowest
}

func (p Piece) String() string {
	return fmt.Sprintf("%s/%s@(%d,%d)", p.Kind, p.Facing, p.Anchor.Col, p.Anchor.Row)
}
