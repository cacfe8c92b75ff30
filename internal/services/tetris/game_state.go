package tetris

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models/tetris"
)

var (
	// ErrIllegalMove は操作が受け付けられなかった (状態は変化していない) ことを表します。致命的ではありません。
	ErrIllegalMove = errors.New("illegal move")
	// ErrSpawnBlocked は新しいピースが出現位置で既存のブロックと重なったことを表します。ゲームオーバーになります。
	ErrSpawnBlocked = errors.New("spawn blocked")
	// ErrGameOver はゲーム終了後に操作しようとしたときに ErrIllegalMove と一緒に返されます。
	ErrGameOver = errors.New("game over")
)

// Phase はゲームの進行状態です。
// Generation → Falling → Lock → LineClear → Completion → Generation と循環し、
// 呼び出しの合間に外から観測されるのは Idle, Falling, GameOver のいずれかです。
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGeneration Phase = "generation"
	PhaseFalling    Phase = "falling"
	PhaseLock       Phase = "lock"
	PhaseLineClear  Phase = "line_clear"
	PhaseCompletion Phase = "completion"
	PhaseGameOver   Phase = "game_over"
)

// Stats はスコア・ライン数・レベル・次のレベルまでの目標ライン数です。
type Stats struct {
	Score int `json:"score"`
	Lines int `json:"lines"`
	Level int `json:"level"`
	Goal  int `json:"goal"` // レベルアップに必要な累計ライン数
}

// initialStats は新しいゲームの統計です。レベル1、目標5ラインから始まります。
func initialStats() Stats {
	return Stats{Level: 1, Goal: 5}
}

// ClearResult は直近のラインクリアの結果です (UIの演出用)。
type ClearResult struct {
	Rows   []int `json:"rows"`
	Points int   `json:"points"`
}

// GameState は1人分のライン消去ゲームの状態です。
// 呼び出し側 (セッション) が排他的に所有し、1つのゴルーチンからのみ操作されることを前提とします。
type GameState struct {
	Board tetris.Board // 生成領域を含むボード
	Stats Stats

	opts    Options
	scoring ScoreTable

	current  *tetris.Piece      // 現在操作中のテトリミノ (ボードに書き込み済み)
	ghost    *tetris.Piece      // ボードに書き込まれているゴーストの位置
	queue    []tetris.PieceKind // ネクストキュー (常に MaxNextQueueDepth 個)
	hold     tetris.PieceKind
	holdUsed bool // 現在のピースでホールドが使用済みかどうか

	phase  Phase
	paused bool
	cause  error // ゲームオーバーの原因

	pcg *rand.PCG
	bag *tetris.RandomBag

	fallElapsed time.Duration // 最後の落下からの経過時間
	lockElapsed time.Duration // 接地してからの経過時間
	lockResets  int           // Extendedで使ったリセット回数
	lowestRow   int           // このピースが到達した最も低い行

	lastClear ClearResult
}

// NewGameState は現在時刻をシードにした新しいゲーム状態を作成します。
//
// Parameters:
//
//	opts : ゲーム設定
//
// Returns:
//
//	*GameState: 初期化されたゲーム状態 (StartGame前のIdle状態)
//	error     : 設定が範囲外の場合 ErrConfigOutOfRange
func NewGameState(opts Options) (*GameState, error) {
	seed := uint64(time.Now().UnixNano())
	return NewGameStateWithSeed(opts, seed, seed^0x9e3779b97f4a7c15)
}

// NewGameStateWithSeed は指定したシードで決定的なゲーム状態を作成します (テストやリプレイ用)。
func NewGameStateWithSeed(opts Options, seed1, seed2 uint64) (*GameState, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	table, _ := opts.Scoring.Table()
	pcg := rand.NewPCG(seed1, seed2)
	s := &GameState{
		opts:    opts,
		scoring: table,
		pcg:     pcg,
		bag:     tetris.NewRandomBag(rand.New(pcg)),
	}
	s.reset()
	return s, nil
}

// reset はボードと統計を初期化し、ネクストキューを埋め直します。乱数の状態は引き継ぎます。
func (s *GameState) reset() {
	s.Board = tetris.NewBoard()
	s.Stats = initialStats()
	s.current = nil
	s.ghost = nil
	s.hold = tetris.KindNone
	s.holdUsed = false
	s.phase = PhaseIdle
	s.paused = false
	s.cause = nil
	s.fallElapsed = 0
	s.lockElapsed = 0
	s.lockResets = 0
	s.lastClear = ClearResult{}
	s.queue = s.queue[:0]
	for len(s.queue) < MaxNextQueueDepth {
		s.queue = append(s.queue, s.bag.Next())
	}
}

// Options は現在の設定を返します。
func (s *GameState) Options() Options {
	return s.opts
}

// Configure は設定を検証してから適用します。
// 範囲外の場合は ErrConfigOutOfRange を返し、以前の設定をそのまま使い続けます。
func (s *GameState) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		log.Warn().Err(err).Msg("[GameState] rejected configuration")
		return err
	}
	table, _ := opts.Scoring.Table()
	ghostChanged := opts.GhostPieceEnabled != s.opts.GhostPieceEnabled
	s.opts = opts
	s.scoring = table
	if ghostChanged && s.current != nil {
		s.clearGhost()
		s.refreshGhost()
	}
	log.Debug().Interface("options", opts).Msg("[GameState] configuration applied")
	return nil
}

// Phase は現在の進行状態を返します。
func (s *GameState) Phase() Phase { return s.phase }

// Running はゲームが開始済みで、まだ終了していなければtrueです。
func (s *GameState) Running() bool {
	return s.phase != PhaseIdle && s.phase != PhaseGameOver
}

func (s *GameState) Paused() bool   { return s.paused }
func (s *GameState) GameOver() bool { return s.phase == PhaseGameOver }

// GameOverCause はゲームオーバーの原因 (ErrSpawnBlockedをラップ) を返します。
func (s *GameState) GameOverCause() error { return s.cause }

// CurrentPiece は操作中のピースを返します。ない場合はfalseです。
func (s *GameState) CurrentPiece() (tetris.Piece, bool) {
	if s.current == nil {
		return tetris.Piece{}, false
	}
	return *s.current, true
}

// HoldKind はホールド中のピースの種類を返します (空なら KindNone)。
func (s *GameState) HoldKind() tetris.PieceKind { return s.hold }

// NextQueue は設定された表示数だけネクストキューを返します。
func (s *GameState) NextQueue() []tetris.PieceKind {
	n := s.opts.NextQueueDepth
	if n > len(s.queue) {
		n = len(s.queue)
	}
	return append([]tetris.PieceKind(nil), s.queue[:n]...)
}

// FallInterval は現在のレベルの自動落下間隔です。
func (s *GameState) FallInterval() time.Duration {
	return s.opts.Timing.FallInterval(s.Stats.Level)
}

// popQueue はキューの先頭を取り出し、末尾をバッグから補充します。
func (s *GameState) popQueue() tetris.PieceKind {
	kind := s.queue[0]
	s.queue = append(s.queue[1:], s.bag.Next())
	log.Debug().Stringer("kind", kind).Stringer("pulled", s.queue[len(s.queue)-1]).
		Msg("[GameState] piece taken from next queue")
	return kind
}

// generate はキューの先頭のピースを出現させます (Generation フェーズ)。
func (s *GameState) generate() error {
	return s.spawn(s.popQueue())
}

// spawn は指定された種類のピースを出現位置に置きます。
// 出現位置が既存のブロックと重なっていればゲームオーバーにして ErrSpawnBlocked を返します。
func (s *GameState) spawn(kind tetris.PieceKind) error {
	s.phase = PhaseGeneration
	piece := tetris.Spawn(kind)
	if !s.Board.IsLegal(piece, nil) {
		err := fmt.Errorf("%w: %s cannot enter at %v", ErrSpawnBlocked, kind, piece.Anchor)
		s.endGame(err)
		return err
	}
	s.Board.Stamp(piece)
	s.current = &piece
	s.fallElapsed = 0
	s.lockElapsed = 0
	s.lockResets = 0
	s.lowestRow = piece.LowestRow()
	s.refreshGhost()
	s.phase = PhaseFalling
	log.Debug().Stringer("piece", piece).Msg("[GameState] piece added to the grid")
	return nil
}

// endGame はゲームを終了状態にします。
func (s *GameState) endGame(cause error) {
	s.clearGhost()
	s.current = nil
	s.paused = false
	s.phase = PhaseGameOver
	s.cause = cause
	log.Info().Err(cause).Int("score", s.Stats.Score).Int("lines", s.Stats.Lines).Int("level", s.Stats.Level).
		Msg("[GameState] game over")
}

// refreshGhost は現在のピースの着地位置にゴーストを書き込みます。
func (s *GameState) refreshGhost() {
	if !s.opts.GhostPieceEnabled || s.current == nil {
		return
	}
	cur := *s.current
	ghost := cur.Translate(0, -s.Board.DropDistance(cur, &cur))
	s.Board.StampGhost(ghost)
	s.ghost = &ghost
}

func (s *GameState) clearGhost() {
	if s.ghost == nil {
		return
	}
	s.Board.EraseGhost(*s.ghost)
	s.ghost = nil
}

// Snapshot は描画レイヤーに渡す読み取り専用の状態です。
type Snapshot struct {
	Grid          tetris.Board       `json:"grid"`
	NextQueue     []tetris.PieceKind `json:"next_queue"`
	Hold          tetris.PieceKind   `json:"hold"`
	HoldAvailable bool               `json:"hold_available"`
	Current       *tetris.Piece      `json:"current_piece,omitempty"`
	Ghost         *tetris.Piece      `json:"ghost_piece,omitempty"`
	Stats         Stats              `json:"stats"`
	Phase         Phase              `json:"phase"`
	Running       bool               `json:"running"`
	Paused        bool               `json:"paused"`
	GameOver      bool               `json:"game_over"`
	LastClear     ClearResult        `json:"last_clear"`
	FallInterval  time.Duration      `json:"fall_interval"`
}

// Snapshot は現在の状態のコピーを返します。
func (s *GameState) Snapshot() Snapshot {
	snap := Snapshot{
		Grid:          s.Board,
		NextQueue:     s.NextQueue(),
		Hold:          s.hold,
		HoldAvailable: s.opts.HoldEnabled && !s.holdUsed && s.Running(),
		Stats:         s.Stats,
		Phase:         s.phase,
		Running:       s.Running(),
		Paused:        s.paused,
		GameOver:      s.GameOver(),
		LastClear:     s.lastClear,
		FallInterval:  s.FallInterval(),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	if s.ghost != nil {
		ghost := *s.ghost
		snap.Ghost = &ghost
	}
	return snap
}
