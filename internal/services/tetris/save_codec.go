package tetris

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models/tetris"
)

// SaveSchemaVersion は現在のセーブデータの形式です。
const SaveSchemaVersion = 1

var (
	// ErrCorruptSave はセーブデータが壊れている (読めない・不整合) ときに返されます。
	ErrCorruptSave = errors.New("corrupt save")
	// ErrUnsupportedSaveVersion は知らない形式のセーブデータです。ErrCorruptSave でもあります。
	ErrUnsupportedSaveVersion = fmt.Errorf("%w: unsupported schema version", ErrCorruptSave)
)

// SaveMeta はゲーム状態以外にセーブデータへ記録する情報です。
type SaveMeta struct {
	SavedAt  time.Time `json:"saved_at"`
	Initials string    `json:"initials,omitempty"`
}

// saveRecord はセーブファイルのJSON表現です。
type saveRecord struct {
	SchemaVersion int                `json:"schema_version"`
	SavedAt       time.Time          `json:"saved_at"`
	Initials      string             `json:"initials,omitempty"`
	Phase         Phase              `json:"phase"`
	Paused        bool               `json:"paused"`
	CurrentPiece  *tetris.Piece      `json:"current_piece"`
	Hold          tetris.PieceKind   `json:"hold"`
	HoldUsed      bool               `json:"hold_used"`
	NextQueue     []tetris.PieceKind `json:"next_queue"`
	Bag           []tetris.PieceKind `json:"bag"`
	RNG           string             `json:"rng"` // PCGの内部状態 (base64)
	Stats         Stats              `json:"stats"`
	Options       Options            `json:"options"`
	FallElapsed   time.Duration      `json:"fall_elapsed"`
	LockElapsed   time.Duration      `json:"lock_elapsed"`
	LockResets    int                `json:"lock_resets"`
	LowestRow     int                `json:"lowest_row"`
	Grid          [][]int            `json:"grid"` // grid[row][col]、row 0 が最下段、ゴーストは含まない
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSave, fmt.Sprintf(format, args...))
}

// EncodeSave はゲーム状態をセーブデータに変換します。ゴースト表示は保存しません。
//
// Parameters:
//
//	s    : 保存するゲーム状態
//	meta : 保存日時とイニシャル
//
// Returns:
//
//	[]byte: JSONのセーブデータ
//	error : 乱数状態の書き出しに失敗した場合
func EncodeSave(s *GameState, meta SaveMeta) ([]byte, error) {
	rng, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("乱数状態の保存に失敗しました: %w", err)
	}
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now()
	}

	grid := make([][]int, tetris.BoardHeight)
	for r, row := range s.Board {
		grid[r] = make([]int, tetris.BoardWidth)
		for c, cell := range row {
			if cell.IsOccupied() {
				grid[r][c] = int(cell)
			}
		}
	}

	rec := saveRecord{
		SchemaVersion: SaveSchemaVersion,
		SavedAt:       meta.SavedAt.UTC(),
		Initials:      meta.Initials,
		Phase:         s.phase,
		Paused:        s.paused,
		CurrentPiece:  s.current,
		Hold:          s.hold,
		HoldUsed:      s.holdUsed,
		NextQueue:     append([]tetris.PieceKind(nil), s.queue...),
		Bag:           s.bag.Remaining(),
		RNG:           base64.StdEncoding.EncodeToString(rng),
		Stats:         s.Stats,
		Options:       s.opts,
		FallElapsed:   s.fallElapsed,
		LockElapsed:   s.lockElapsed,
		LockResets:    s.lockResets,
		LowestRow:     s.lowestRow,
		Grid:          grid,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("セーブデータの変換に失敗しました: %w", err)
	}
	log.Debug().Int("bytes", len(data)).Str("initials", meta.Initials).Msg("[SaveCodec] encoded save")
	return data, nil
}

// DecodeSave はセーブデータから新しいゲーム状態を作成します。
// すべての項目を検証してから状態を組み立てるため、失敗した場合に中途半端な状態が返ることはありません。
//
// Returns:
//
//	*GameState: 復元したゲーム状態
//	SaveMeta  : 保存日時とイニシャル
//	error     : 壊れている場合 ErrCorruptSave、知らない形式の場合 ErrUnsupportedSaveVersion
func DecodeSave(data []byte) (*GameState, SaveMeta, error) {
	var header struct {
		SchemaVersion *int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, SaveMeta{}, corrupt("invalid JSON: %v", err)
	}
	if header.SchemaVersion == nil {
		return nil, SaveMeta{}, corrupt("missing schema_version")
	}
	if *header.SchemaVersion != SaveSchemaVersion {
		return nil, SaveMeta{}, fmt.Errorf("%w: %d", ErrUnsupportedSaveVersion, *header.SchemaVersion)
	}

	var rec saveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, SaveMeta{}, corrupt("invalid record: %v", err)
	}
	s, err := rec.restore()
	if err != nil {
		log.Warn().Err(err).Msg("[SaveCodec] rejected save")
		return nil, SaveMeta{}, err
	}
	return s, SaveMeta{SavedAt: rec.SavedAt, Initials: rec.Initials}, nil
}

// restore はレコードを検証して GameState を組み立てます。
func (rec *saveRecord) restore() (*GameState, error) {
	if err := rec.Options.Validate(); err != nil {
		return nil, corrupt("options: %v", err)
	}
	if rec.Initials != "" {
		if _, err := models.NormalizeInitials(rec.Initials); err != nil {
			return nil, corrupt("%v", err)
		}
	}

	board, err := decodeGrid(rec.Grid)
	if err != nil {
		return nil, err
	}

	if len(rec.NextQueue) != MaxNextQueueDepth {
		return nil, corrupt("next queue must hold %d pieces, got %d", MaxNextQueueDepth, len(rec.NextQueue))
	}
	for i, kind := range rec.NextQueue {
		if !kind.Valid() {
			return nil, corrupt("next queue slot %d is empty", i)
		}
	}
	if rec.Hold != tetris.KindNone && !rec.Hold.Valid() {
		return nil, corrupt("invalid hold piece")
	}

	st := rec.Stats
	if st.Score < 0 || st.Lines < 0 || st.Level < 1 || st.Goal <= st.Lines {
		return nil, corrupt("inconsistent stats %+v", st)
	}
	if rec.FallElapsed < 0 || rec.LockElapsed < 0 || rec.LockResets < 0 {
		return nil, corrupt("negative timers")
	}
	if rows := board.ScanFullRows(); len(rows) > 0 {
		return nil, corrupt("full rows %v were never cleared", rows)
	}
	if rec.LowestRow < 0 || rec.LowestRow >= tetris.BoardHeight {
		return nil, corrupt("lowest_row %d out of range", rec.LowestRow)
	}

	switch rec.Phase {
	case PhaseFalling:
		if rec.CurrentPiece == nil {
			return nil, corrupt("falling without a current piece")
		}
		if err := checkPlaced(&board, *rec.CurrentPiece); err != nil {
			return nil, err
		}
		if low := rec.CurrentPiece.LowestRow(); rec.LowestRow > low {
			return nil, corrupt("lowest_row %d is above the current piece (%d)", rec.LowestRow, low)
		}
	case PhaseIdle, PhaseGameOver:
		if rec.CurrentPiece != nil {
			return nil, corrupt("phase %s cannot have a current piece", rec.Phase)
		}
		if rec.Paused {
			return nil, corrupt("phase %s cannot be paused", rec.Phase)
		}
	default:
		return nil, corrupt("unknown phase %q", rec.Phase)
	}

	rng, err := base64.StdEncoding.DecodeString(rec.RNG)
	if err != nil {
		return nil, corrupt("rng: %v", err)
	}

	s, err := NewGameStateWithSeed(rec.Options, 0, 0)
	if err != nil {
		return nil, corrupt("options: %v", err)
	}
	if err := s.pcg.UnmarshalBinary(rng); err != nil {
		return nil, corrupt("rng: %v", err)
	}
	if err := s.bag.Restore(rec.Bag); err != nil {
		return nil, corrupt("%v", err)
	}

	s.Board = board
	s.Stats = st
	s.queue = append(s.queue[:0], rec.NextQueue...)
	s.hold = rec.Hold
	s.holdUsed = rec.HoldUsed
	s.phase = rec.Phase
	s.paused = rec.Paused
	s.fallElapsed = rec.FallElapsed
	s.lockElapsed = rec.LockElapsed
	s.lockResets = rec.LockResets
	s.lowestRow = rec.LowestRow
	if rec.CurrentPiece != nil {
		cur := *rec.CurrentPiece
		s.current = &cur
		s.refreshGhost()
	}
	if rec.Phase == PhaseGameOver {
		s.cause = fmt.Errorf("%w: restored from save", ErrSpawnBlocked)
	}
	return s, nil
}

// decodeGrid は22行×10列で、すべてのセルが空かブロックであることを確認します。
func decodeGrid(grid [][]int) (tetris.Board, error) {
	board := tetris.NewBoard()
	if len(grid) != tetris.BoardHeight {
		return board, corrupt("grid must have %d rows, got %d", tetris.BoardHeight, len(grid))
	}
	for r, row := range grid {
		if len(row) != tetris.BoardWidth {
			return board, corrupt("grid row %d must have %d cells, got %d", r, tetris.BoardWidth, len(row))
		}
		for c, v := range row {
			if v < 0 || v > int(tetris.KindZ) {
				return board, corrupt("invalid cell value %d at col %d row %d", v, c, r)
			}
			board[r][c] = tetris.Cell(v)
		}
	}
	return board, nil
}

// checkPlaced は操作中のピースがボード上に書き込まれた位置と一致しているか確認します。
func checkPlaced(board *tetris.Board, p tetris.Piece) error {
	if !p.Kind.Valid() || p.Facing > tetris.FacingW {
		return corrupt("invalid current piece %v", p)
	}
	if !board.IsLegal(p, &p) {
		return corrupt("current piece %v is out of bounds", p)
	}
	for _, pt := range p.Blocks() {
		if board.At(pt) != tetris.Occupied(p.Kind) {
			return corrupt("current piece %v is not on the grid", p)
		}
	}
	return nil
}
