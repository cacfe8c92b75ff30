package tetris

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models/tetris"
)

// Command はプレイヤーが送ってくる操作です。
type Command string

const (
	CommandMoveLeft  Command = "move_left"
	CommandMoveRight Command = "move_right"
	CommandSoftDrop  Command = "soft_drop"
	CommandHardDrop  Command = "hard_drop"
	CommandRotateCW  Command = "rotate_cw"
	CommandRotateCCW Command = "rotate_ccw"
	CommandHold      Command = "hold"
	CommandPause     Command = "pause"
	CommandResume    Command = "resume"
	CommandStart     Command = "start"
	CommandRestart   Command = "restart"
)

// commandAliases はクライアントが送ってくる旧名称の操作です。
var commandAliases = map[string]Command{
	"rotate":       CommandRotateCW,
	"rotate_right": CommandRotateCW,
	"rotate_left":  CommandRotateCCW,
	"drop":         CommandHardDrop,
}

// allCommands は受け付ける操作の一覧です。
var allCommands = []Command{
	CommandMoveLeft, CommandMoveRight, CommandSoftDrop, CommandHardDrop,
	CommandRotateCW, CommandRotateCCW, CommandHold,
	CommandPause, CommandResume, CommandStart, CommandRestart,
}

// Commands は受け付ける操作の一覧を返します (別名は含みません)。
func Commands() []Command {
	return slices.Clone(allCommands)
}

// ParseCommand は文字列の操作名をCommandに変換します。
func ParseCommand(action string) (Command, bool) {
	if cmd, ok := commandAliases[action]; ok {
		return cmd, true
	}
	if cmd := Command(action); slices.Contains(allCommands, cmd) {
		return cmd, true
	}
	return "", false
}

// 1マスごとのドロップ得点
const (
	SoftDropPointsPerRow = 1
	HardDropPointsPerRow = 2
)

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalMove, fmt.Sprintf(format, args...))
}

// Apply はプレイヤーの操作を1つ適用します。
// 操作が受け付けられなかった場合は ErrIllegalMove をラップしたエラーを返し、状態は一切変化しません。
// ホールドや固定の結果として新しいピースが出現できなかった場合は ErrSpawnBlocked を返し、ゲームオーバーになります。
//
// Parameters:
//
//	cmd : 適用する操作
//
// Returns:
//
//	error: 受け付けられなかった理由 (成功時は nil)
func (s *GameState) Apply(cmd Command) error {
	log.Debug().Str("command", string(cmd)).Str("phase", string(s.phase)).Msg("[GameState] applying command")

	switch cmd {
	case CommandStart:
		return s.StartGame()
	case CommandRestart:
		return s.RestartGame()
	}

	if s.phase == PhaseGameOver {
		return fmt.Errorf("%w: %w", ErrIllegalMove, ErrGameOver)
	}
	if s.phase == PhaseIdle {
		return illegal("game has not started")
	}

	switch cmd {
	case CommandPause:
		return s.pause()
	case CommandResume:
		return s.resume()
	}

	if s.paused {
		return illegal("%s while paused", cmd)
	}
	if s.current == nil {
		return illegal("no active piece")
	}

	switch cmd {
	case CommandMoveLeft:
		return s.shift(-1)
	case CommandMoveRight:
		return s.shift(1)
	case CommandSoftDrop:
		return s.softDrop()
	case CommandHardDrop:
		return s.hardDrop()
	case CommandRotateCW:
		return s.rotate(true)
	case CommandRotateCCW:
		return s.rotate(false)
	case CommandHold:
		return s.holdPiece()
	}
	return illegal("unknown command %q", cmd)
}

// ApplyPlayerInput は文字列の操作を適用し、ゲーム状態が変化したかどうかを返します。
// WebSocketから届いたアクションをそのまま渡すためのものです。
//
// Parameters:
//
//	state  : 更新するゲーム状態
//	action : 操作名 (例: "move_left", "rotate")
//
// Returns:
//
//	bool: 状態が変化した場合はtrue
func ApplyPlayerInput(state *GameState, action string) bool {
	cmd, ok := ParseCommand(action)
	if !ok {
		log.Warn().Str("action", action).Msg("[GameState] unknown action")
		return false
	}
	// 出現できずにゲームオーバーになった場合も状態は変化している
	return !errors.Is(state.Apply(cmd), ErrIllegalMove)
}

// StartGame はIdle状態から最初のピースを出現させます。
func (s *GameState) StartGame() error {
	if s.phase != PhaseIdle {
		return illegal("game already started")
	}
	log.Debug().Msg("[GameState] game started")
	return s.generate()
}

// RestartGame はボード・統計・ホールドを初期化して新しいゲームを始めます。設定は引き継ぎます。
func (s *GameState) RestartGame() error {
	s.reset()
	log.Debug().Msg("[GameState] game restarted")
	return s.generate()
}

func (s *GameState) pause() error {
	if s.paused {
		return illegal("already paused")
	}
	s.paused = true
	log.Debug().Msg("[GameState] paused")
	return nil
}

func (s *GameState) resume() error {
	if !s.paused {
		return illegal("not paused")
	}
	s.paused = false
	log.Debug().Msg("[GameState] resumed")
	return nil
}

// grounded は現在のピースがこれ以上下に移動できないかどうかを返します。
func (s *GameState) grounded() bool {
	if s.current == nil {
		return false
	}
	cur := *s.current
	return !s.Board.IsLegal(cur.Translate(0, -1), &cur)
}

// tryMove は候補の位置に置けるか判定し、置ける場合だけボードを更新します。
func (s *GameState) tryMove(candidate tetris.Piece) bool {
	cur := *s.current
	if !s.Board.IsLegal(candidate, &cur) {
		return false
	}
	s.clearGhost()
	s.Board.Erase(cur)
	s.Board.Stamp(candidate)
	s.current = &candidate
	s.refreshGhost()
	return true
}

// noteDescent は最低到達行を更新し、新しい行に降りたらExtendedのリセット回数を戻します。
func (s *GameState) noteDescent() {
	if low := s.current.LowestRow(); low < s.lowestRow {
		s.lowestRow = low
		s.lockResets = 0
		s.lockElapsed = 0
	}
}

// noteManipulation は接地中の移動・回転によるロックタイマーのリセットを扱います。
func (s *GameState) noteManipulation(wasGrounded bool) {
	s.noteDescent()
	if !wasGrounded {
		return
	}
	switch s.opts.LockDown {
	case LockDownExtended:
		if s.lockResets < s.opts.Timing.MaxLockResets {
			s.lockResets++
			s.lockElapsed = 0
		}
	case LockDownInfinite:
		s.lockElapsed = 0
	}
}

func (s *GameState) shift(dc int) error {
	wasGrounded := s.grounded()
	if !s.tryMove(s.current.Translate(dc, 0)) {
		return illegal("cannot shift %s by %d", s.current, dc)
	}
	s.noteManipulation(wasGrounded)
	return nil
}

func (s *GameState) rotate(clockwise bool) error {
	if s.current.Kind == tetris.KindO {
		return nil // Oミノは回転しても形も位置も変わらない
	}
	wasGrounded := s.grounded()
	rotated, ok := tetris.Rotate(&s.Board, *s.current, clockwise, s.opts.Rotation)
	if !ok || !s.tryMove(rotated) {
		return illegal("cannot rotate %s", s.current)
	}
	s.noteManipulation(wasGrounded)
	return nil
}

// softDrop は1段下げて1点加算します。下げられない場合、Classic では固定し、それ以外は何もしません。
func (s *GameState) softDrop() error {
	if !s.tryMove(s.current.Translate(0, -1)) {
		// Classic は遅延なしで、下に動けなければその場で固定する
		if s.opts.LockDown == LockDownClassic {
			return s.lockPiece()
		}
		return illegal("cannot soft drop %s", s.current)
	}
	s.Stats.Score += SoftDropPointsPerRow
	s.fallElapsed = 0
	s.noteDescent()
	return nil
}

// hardDrop は着地点まで一気に落として即座に固定します。
func (s *GameState) hardDrop() error {
	cur := *s.current
	dist := s.Board.DropDistance(cur, &cur)
	if dist > 0 {
		s.tryMove(cur.Translate(0, -dist))
	}
	s.Stats.Score += dist * HardDropPointsPerRow
	return s.lockPiece()
}

// holdPiece は現在のピースをホールドに入れ、ホールド中のピース (なければネクストの先頭) を出現させます。
// 1つのピースにつき1回だけ使えます。
func (s *GameState) holdPiece() error {
	if !s.opts.HoldEnabled {
		return illegal("hold is disabled")
	}
	if s.holdUsed {
		return illegal("hold already used for this piece")
	}
	cur := *s.current
	s.clearGhost()
	s.Board.Erase(cur)
	s.current = nil

	held := s.hold
	s.hold = cur.Kind
	s.holdUsed = true
	log.Debug().Stringer("held", cur.Kind).Stringer("released", held).Msg("[GameState] hold")
	if held == tetris.KindNone {
		return s.generate()
	}
	return s.spawn(held)
}

// Advance は経過時間を進め、自動落下と固定を処理します。
// 実行中でない (Idle・一時停止・ゲームオーバー) 場合は何もしません。
//
// Parameters:
//
//	elapsed : 前回の呼び出しからの経過時間
//
// Returns:
//
//	error: 固定後の出現に失敗した場合 ErrSpawnBlocked
func (s *GameState) Advance(elapsed time.Duration) error {
	if s.phase != PhaseFalling || s.paused || s.current == nil || elapsed <= 0 {
		return nil
	}
	s.fallElapsed += elapsed

	if s.opts.LockDown != LockDownClassic && s.grounded() {
		s.lockElapsed += elapsed
		if s.lockElapsed >= s.opts.Timing.LockDelay {
			return s.lockPiece()
		}
	}

	interval := s.FallInterval()
	for s.phase == PhaseFalling && s.fallElapsed >= interval {
		s.fallElapsed -= interval
		if err := s.gravityStep(); err != nil {
			return err
		}
	}
	return nil
}

// gravityStep は自動落下を1段分行います。
func (s *GameState) gravityStep() error {
	if s.tryMove(s.current.Translate(0, -1)) {
		s.noteDescent()
		return nil
	}
	if s.opts.LockDown == LockDownClassic {
		return s.lockPiece()
	}
	// Extended / Infinite はロックタイマーに任せる
	s.fallElapsed = 0
	return nil
}

// lockPiece は現在のピースをボードに固定し、ライン消去・レベル判定・次のピースの出現まで進めます。
func (s *GameState) lockPiece() error {
	s.phase = PhaseLock
	locked := *s.current
	s.clearGhost()
	s.current = nil
	s.holdUsed = false
	log.Debug().Stringer("piece", locked).Msg("[GameState] piece locked")

	s.clearLines()
	s.complete()
	return s.generate()
}

// clearLines は揃った行を消して得点を加算します (LineClear フェーズ)。
func (s *GameState) clearLines() {
	s.phase = PhaseLineClear
	rows := s.Board.ScanFullRows()
	if len(rows) == 0 {
		s.lastClear = ClearResult{}
		return
	}
	n := s.Board.ClearRows(rows)
	points := s.scoring.LineClear(n, s.Stats.Level)
	s.Stats.Lines += n
	s.Stats.Score += points
	s.lastClear = ClearResult{Rows: rows, Points: points}
	log.Debug().Ints("rows", rows).Int("points", points).Int("score", s.Stats.Score).
		Msg("[GameState] lines cleared")
}

// complete はライン数が目標に達していればレベルを上げ、次の目標を設定します (Completion フェーズ)。
// 次の目標は 目標 + 新レベル×5 です。
func (s *GameState) complete() {
	s.phase = PhaseCompletion
	for s.Stats.Lines >= s.Stats.Goal {
		s.Stats.Level++
		s.Stats.Goal += s.Stats.Level * 5
		log.Debug().Int("level", s.Stats.Level).Int("goal", s.Stats.Goal).Msg("[GameState] level up")
	}
}
