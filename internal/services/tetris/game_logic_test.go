package tetris

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models/tetris"
)

// oneFall はレベル1の自動落下間隔です。
var oneFall = DefaultTiming().InitialFallInterval

// fillRowExcept は指定した列以外を埋めます。
func fillRowExcept(b *tetris.Board, row int, holes ...int) {
	skip := map[int]bool{}
	for _, c := range holes {
		skip[c] = true
	}
	for c := 0; c < tetris.BoardWidth; c++ {
		if !skip[c] {
			b[row][c] = tetris.Occupied(tetris.KindJ)
		}
	}
}

// currentLowestRow は操作中のピースの最下段を返します。
func currentLowestRow(t *testing.T, s *GameState) int {
	t.Helper()
	cur, ok := s.CurrentPiece()
	require.True(t, ok)
	return cur.LowestRow()
}

func TestParseCommand(t *testing.T) {
	tests := map[string]Command{
		"move_left":   CommandMoveLeft,
		"rotate":      CommandRotateCW,
		"rotate_left": CommandRotateCCW,
		"hard_drop":   CommandHardDrop,
		"drop":        CommandHardDrop,
		"restart":     CommandRestart,
	}
	for in, want := range tests {
		got, ok := ParseCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseCommand("teleport")
	assert.False(t, ok)
}

func TestIPieceSpawnAndSoftDropToFloor(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindI)

	cur, _ := s.CurrentPiece()
	blocks := cur.Blocks()
	assert.ElementsMatch(t, []tetris.Point{{Col: 4, Row: 20}, {Col: 5, Row: 20}, {Col: 6, Row: 20}, {Col: 7, Row: 20}}, blocks[:])

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Apply(CommandSoftDrop), "soft drop %d", i)
	}
	assert.Equal(t, 0, currentLowestRow(t, s))
	assert.Equal(t, 20*SoftDropPointsPerRow, s.Stats.Score)

	// 床に着いたらソフトドロップは何もしない
	err := s.Apply(CommandSoftDrop)
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, 0, currentLowestRow(t, s))
	assert.Equal(t, 20, s.Stats.Score)
	for c := 4; c <= 7; c++ {
		assert.Equal(t, tetris.Occupied(tetris.KindI), s.Board[0][c])
	}
}

func TestMoveBlockedByWall(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindI)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Apply(CommandMoveLeft))
	}
	before, _ := s.CurrentPiece()
	assert.ErrorIs(t, s.Apply(CommandMoveLeft), ErrIllegalMove)
	after, _ := s.CurrentPiece()
	assert.Equal(t, before, after)
	assert.Equal(t, 0, before.Anchor.Col)
}

func TestRotateCommand(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindT, tetris.KindO)

	require.NoError(t, s.Apply(CommandRotateCW))
	cur, _ := s.CurrentPiece()
	assert.Equal(t, tetris.FacingE, cur.Facing)
	assert.Equal(t, 4, s.Board.OccupiedCount())

	require.NoError(t, s.Apply(CommandRotateCCW))
	cur, _ = s.CurrentPiece()
	assert.Equal(t, tetris.Spawn(tetris.KindT), cur)

	// Oミノの回転は何も変えない
	require.NoError(t, s.Apply(CommandHardDrop))
	o, _ := s.CurrentPiece()
	require.Equal(t, tetris.KindO, o.Kind)
	require.NoError(t, s.Apply(CommandRotateCW))
	after, _ := s.CurrentPiece()
	assert.Equal(t, o, after)
}

func TestHardDrop(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindI, tetris.KindT)

	require.NoError(t, s.Apply(CommandHardDrop))
	assert.Equal(t, 20*HardDropPointsPerRow, s.Stats.Score)
	for c := 4; c <= 7; c++ {
		assert.Equal(t, tetris.Occupied(tetris.KindI), s.Board[0][c])
	}
	cur, _ := s.CurrentPiece()
	assert.Equal(t, tetris.KindT, cur.Kind)
	assert.Equal(t, PhaseFalling, s.Phase())
}

func TestOPieceClearsBottomRow(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	fillRowExcept(&s.Board, 0, 3, 4)
	startWith(t, s, tetris.KindO)

	require.NoError(t, s.Apply(CommandMoveLeft))
	require.NoError(t, s.Apply(CommandMoveLeft))
	require.NoError(t, s.Apply(CommandHardDrop))

	assert.Equal(t, 1, s.Stats.Lines)
	assert.Equal(t, 20*HardDropPointsPerRow+100, s.Stats.Score)
	assert.Equal(t, []int{0}, s.lastClear.Rows)

	// Oミノの上半分だけが最下段に残る
	for c := 0; c < tetris.BoardWidth; c++ {
		want := c == 3 || c == 4
		assert.Equal(t, want, s.Board[0][c].IsOccupied(), "col %d", c)
	}
	assert.Equal(t, tetris.Occupied(tetris.KindO), s.Board[0][3])
}

func TestTetrisBeatsFourSingles(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	for row := 0; row < 4; row++ {
		fillRowExcept(&s.Board, row, 9)
	}
	startWith(t, s, tetris.KindI)

	require.NoError(t, s.Apply(CommandRotateCW))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Apply(CommandMoveRight))
	}
	require.NoError(t, s.Apply(CommandHardDrop))

	assert.Equal(t, 4, s.Stats.Lines)
	assert.Equal(t, []int{3, 2, 1, 0}, s.lastClear.Rows)
	single := s.scoring.LineClear(1, 1)
	assert.Greater(t, s.lastClear.Points, 4*single)
	assert.Equal(t, 1600, s.lastClear.Points)
	assert.Equal(t, 0, s.Board.OccupiedCount()-4, "消去後に残るのは新しいピースだけ")
}

func TestComplete_LevelUp(t *testing.T) {
	s := newTestState(t, DefaultOptions())

	s.Stats = Stats{Lines: 4, Level: 1, Goal: 5}
	s.complete()
	assert.Equal(t, Stats{Lines: 4, Level: 1, Goal: 5}, s.Stats)

	s.Stats = Stats{Lines: 5, Level: 1, Goal: 5}
	s.complete()
	assert.Equal(t, Stats{Lines: 5, Level: 2, Goal: 15}, s.Stats)

	// 一度に複数レベル上がる場合
	s.Stats = Stats{Lines: 20, Level: 1, Goal: 5}
	s.complete()
	assert.Equal(t, Stats{Lines: 20, Level: 3, Goal: 30}, s.Stats)
}

func TestFallInterval_DecreasesWithLevel(t *testing.T) {
	timing := DefaultTiming()
	prev := timing.FallInterval(1)
	for level := 2; level <= 30; level++ {
		cur := timing.FallInterval(level)
		assert.LessOrEqual(t, cur, prev, "level %d", level)
		assert.GreaterOrEqual(t, cur, timing.MinFallInterval)
		prev = cur
	}
	assert.Equal(t, timing.MinFallInterval, timing.FallInterval(100))
}

func TestAdvance_Gravity(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindT)
	assert.Equal(t, 20, currentLowestRow(t, s))

	require.NoError(t, s.Advance(oneFall/2))
	assert.Equal(t, 20, currentLowestRow(t, s))

	require.NoError(t, s.Advance(oneFall/2))
	assert.Equal(t, 19, currentLowestRow(t, s))

	require.NoError(t, s.Advance(3*oneFall))
	assert.Equal(t, 16, currentLowestRow(t, s))
}

func TestAdvance_IdleDoesNothing(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	require.NoError(t, s.Advance(oneFall))
	assert.Equal(t, PhaseIdle, s.Phase())
}

// groundedState はIミノを床まで落とした状態を作ります。
func groundedState(t *testing.T, opts Options) *GameState {
	t.Helper()
	s := newTestState(t, opts)
	startWith(t, s, tetris.KindI, tetris.KindT)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Apply(CommandSoftDrop))
	}
	require.Equal(t, 0, currentLowestRow(t, s))
	return s
}

func TestLockDown_Classic(t *testing.T) {
	opts := DefaultOptions()
	opts.LockDown = LockDownClassic
	s := groundedState(t, opts)

	// 移動してもタイマーはリセットされず、次の落下タイミングで固定される
	require.NoError(t, s.Advance(oneFall-time.Millisecond))
	require.NoError(t, s.Apply(CommandMoveLeft))
	assert.Equal(t, 0, currentLowestRow(t, s))

	require.NoError(t, s.Advance(time.Millisecond))
	assert.Greater(t, currentLowestRow(t, s), 0, "次のピースが出現している")
	assert.Equal(t, tetris.Occupied(tetris.KindI), s.Board[0][3])
}

func TestLockDown_ClassicSoftDropAtFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.LockDown = LockDownClassic
	s := groundedState(t, opts)
	score := s.Stats.Score

	// 下に動けないソフトドロップは即座に固定する
	require.NoError(t, s.Apply(CommandSoftDrop))
	assert.Equal(t, tetris.Occupied(tetris.KindI), s.Board[0][3])
	assert.Greater(t, currentLowestRow(t, s), 0, "次のピースが出現している")
	assert.Equal(t, score, s.Stats.Score, "動いていないので加点なし")

	// Extended では何もしない
	s = groundedState(t, DefaultOptions())
	err := s.Apply(CommandSoftDrop)
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, 0, currentLowestRow(t, s))
}

func TestLockDown_Extended(t *testing.T) {
	opts := DefaultOptions()
	opts.LockDown = LockDownExtended
	s := groundedState(t, opts)
	delay := opts.Timing.LockDelay

	require.NoError(t, s.Advance(delay-100*time.Millisecond))
	require.NoError(t, s.Apply(CommandMoveLeft)) // リセット
	require.NoError(t, s.Advance(delay-100*time.Millisecond))
	assert.Equal(t, 0, currentLowestRow(t, s), "リセットされたのでまだ固定されない")

	require.NoError(t, s.Advance(100*time.Millisecond))
	assert.Greater(t, currentLowestRow(t, s), 0)
}

func TestLockDown_ExtendedResetLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.LockDown = LockDownExtended
	opts.Timing.MaxLockResets = 2
	s := groundedState(t, opts)
	step := opts.Timing.LockDelay - 100*time.Millisecond

	require.NoError(t, s.Advance(step))
	require.NoError(t, s.Apply(CommandMoveLeft)) // 1回目
	require.NoError(t, s.Advance(step))
	require.NoError(t, s.Apply(CommandMoveRight)) // 2回目
	require.NoError(t, s.Advance(step))
	assert.Equal(t, 0, currentLowestRow(t, s))

	// 上限に達したのでリセットされない
	require.NoError(t, s.Apply(CommandMoveLeft))
	require.NoError(t, s.Advance(100*time.Millisecond))
	assert.Greater(t, currentLowestRow(t, s), 0)
}

func TestLockDown_Infinite(t *testing.T) {
	opts := DefaultOptions()
	opts.LockDown = LockDownInfinite
	opts.Timing.MaxLockResets = 2
	s := groundedState(t, opts)
	step := opts.Timing.LockDelay - 100*time.Millisecond

	moves := []Command{CommandMoveLeft, CommandMoveRight}
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Advance(step))
		require.NoError(t, s.Apply(moves[i%2]))
	}
	require.NoError(t, s.Advance(100*time.Millisecond))
	assert.Equal(t, 0, currentLowestRow(t, s), "何度でもリセットできる")

	require.NoError(t, s.Advance(opts.Timing.LockDelay))
	assert.Greater(t, currentLowestRow(t, s), 0)
}

func TestGhostFollowsPiece(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	startWith(t, s, tetris.KindI)
	assert.Equal(t, tetris.Ghost(tetris.KindI), s.Board[0][4])

	require.NoError(t, s.Apply(CommandMoveRight))
	assert.True(t, s.Board[0][4].IsEmpty())
	assert.Equal(t, tetris.Ghost(tetris.KindI), s.Board[0][8])

	// ピースがゴーストに重なるとブロックが優先される
	require.NoError(t, s.Apply(CommandHardDrop))
	assert.Equal(t, tetris.Occupied(tetris.KindI), s.Board[0][8])
}

func TestApplyPlayerInput(t *testing.T) {
	s := newTestState(t, DefaultOptions())
	assert.False(t, ApplyPlayerInput(s, "move_left"), "開始前")
	assert.True(t, ApplyPlayerInput(s, "start"))
	assert.True(t, ApplyPlayerInput(s, "rotate"))
	assert.False(t, ApplyPlayerInput(s, "teleport"))
}

func TestScoreTables(t *testing.T) {
	q := QuadraticScoring{Base: 100}
	assert.Equal(t, 0, q.LineClear(0, 3))
	assert.Equal(t, 100, q.LineClear(1, 1))
	assert.Equal(t, 1600*3, q.LineClear(4, 3))
	assert.NoError(t, ValidateScoreTable(q))

	g := GuidelineScoring{}
	assert.Equal(t, 800*2, g.LineClear(4, 2))
	assert.NoError(t, ValidateScoreTable(g))

	// 別々に消したほうが得な表は受け付けない
	assert.ErrorIs(t, ValidateScoreTable(flatScoring{}), ErrConfigOutOfRange)
	assert.ErrorIs(t, ValidateScoreTable(QuadraticScoring{Base: 0}), ErrConfigOutOfRange)
}

type flatScoring struct{}

func (flatScoring) LineClear(lines, level int) int { return 100 * lines * level }

func TestParseLockDownPolicy(t *testing.T) {
	p, err := ParseLockDownPolicy("classic")
	assert.NoError(t, err)
	assert.Equal(t, LockDownClassic, p)

	p, err = ParseLockDownPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, LockDownExtended, p)

	_, err = ParseLockDownPolicy("forever")
	assert.ErrorIs(t, err, ErrConfigOutOfRange)
}
