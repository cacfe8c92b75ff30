package tetris

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models/tetris"
)

const (
	MinNextQueueDepth = 1 // ネクストキューの表示数の下限
	MaxNextQueueDepth = 6 // ネクストキューの表示数の上限 (内部キューの長さでもある)
)

// ErrConfigOutOfRange は設定値が許容範囲外のときに返されます。以前の設定はそのまま残ります。
var ErrConfigOutOfRange = errors.New("configuration out of range")

// LockDownPolicy は接地したピースがいつ固定されるかのルールです。
type LockDownPolicy string

const (
	// LockDownClassic は接地した状態で落下タイミングが来たら即座に固定します。操作によるリセットはありません。
	LockDownClassic LockDownPolicy = "Classic"
	// LockDownExtended は移動・回転で固定タイマーをリセットできますが、回数に上限があります。
	LockDownExtended LockDownPolicy = "Extended"
	// LockDownInfinite は移動・回転のたびに固定タイマーを無制限にリセットします。
	LockDownInfinite LockDownPolicy = "Infinite"
)

// ParseLockDownPolicy は "classic" のような大文字小文字を問わない文字列を変換します。
func ParseLockDownPolicy(s string) (LockDownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic":
		return LockDownClassic, nil
	case "extended", "":
		return LockDownExtended, nil
	case "infinite":
		return LockDownInfinite, nil
	}
	return "", fmt.Errorf("%w: unknown lock down policy %q", ErrConfigOutOfRange, s)
}

// Options はゲーム開始時に適用される設定です。セッション中は Configure でのみ変更できます。
type Options struct {
	NextQueueDepth    int                   `json:"next_queue_depth"`    // ネクストキューの表示数 (1-6)
	HoldEnabled       bool                  `json:"hold_enabled"`        // ホールド機能の有無
	GhostPieceEnabled bool                  `json:"ghost_piece_enabled"` // ゴーストピースの表示
	LockDown          LockDownPolicy        `json:"lock_down_policy"`    // 固定ルール
	Rotation          tetris.RotationSystem `json:"rotation_system"`     // 壁蹴りテーブル
	Timing            Timing                `json:"timing"`
	Scoring           ScoringRule           `json:"scoring"`
}

// DefaultOptions はデフォルトのゲーム設定を返します (ネクスト6個、ホールドとゴースト有効、Extended)。
func DefaultOptions() Options {
	return Options{
		NextQueueDepth:    6,
		HoldEnabled:       true,
		GhostPieceEnabled: true,
		LockDown:          LockDownExtended,
		Rotation:          tetris.RotationSRS,
		Timing:            DefaultTiming(),
		Scoring:           ScoringQuadratic,
	}
}

// Validate は設定値を検証します。問題があれば ErrConfigOutOfRange をラップして返します。
func (o Options) Validate() error {
	if o.NextQueueDepth < MinNextQueueDepth || o.NextQueueDepth > MaxNextQueueDepth {
		return fmt.Errorf("%w: next_queue_depth must be %d-%d, got %d",
			ErrConfigOutOfRange, MinNextQueueDepth, MaxNextQueueDepth, o.NextQueueDepth)
	}
	switch o.LockDown {
	case LockDownClassic, LockDownExtended, LockDownInfinite:
	default:
		return fmt.Errorf("%w: unknown lock down policy %q", ErrConfigOutOfRange, o.LockDown)
	}
	if !o.Rotation.Valid() {
		return fmt.Errorf("%w: unknown rotation system %q", ErrConfigOutOfRange, o.Rotation)
	}
	if err := o.Timing.Validate(); err != nil {
		return err
	}
	table, err := o.Scoring.Table()
	if err != nil {
		return err
	}
	return ValidateScoreTable(table)
}

// Timing は落下速度と固定猶予の設定です。
type Timing struct {
	InitialFallInterval time.Duration `json:"initial_fall_interval"` // レベル1の自動落下間隔
	FallIntervalStep    time.Duration `json:"fall_interval_step"`    // 1レベルごとに短縮する時間
	MinFallInterval     time.Duration `json:"min_fall_interval"`     // 落下間隔の下限
	LockDelay           time.Duration `json:"lock_delay"`            // 接地してから固定されるまでの猶予
	MaxLockResets       int           `json:"max_lock_resets"`       // Extendedで許可するリセット回数
}

// DefaultTiming はデフォルトの落下・固定設定です。
func DefaultTiming() Timing {
	return Timing{
		InitialFallInterval: 1000 * time.Millisecond,
		FallIntervalStep:    50 * time.Millisecond,
		MinFallInterval:     100 * time.Millisecond,
		LockDelay:           500 * time.Millisecond,
		MaxLockResets:       15,
	}
}

// Validate は時間設定の整合性を検証します。
func (t Timing) Validate() error {
	switch {
	case t.MinFallInterval <= 0:
		return fmt.Errorf("%w: min_fall_interval must be positive", ErrConfigOutOfRange)
	case t.InitialFallInterval < t.MinFallInterval:
		return fmt.Errorf("%w: initial_fall_interval must be >= min_fall_interval", ErrConfigOutOfRange)
	case t.FallIntervalStep < 0:
		return fmt.Errorf("%w: fall_interval_step must not be negative", ErrConfigOutOfRange)
	case t.LockDelay < 0:
		return fmt.Errorf("%w: lock_delay must not be negative", ErrConfigOutOfRange)
	case t.MaxLockResets < 0:
		return fmt.Errorf("%w: max_lock_resets must not be negative", ErrConfigOutOfRange)
	}
	return nil
}

// FallInterval は現在のレベルに基づいた自動落下間隔を計算して返します。
// レベルが上がるごとに単調に短くなり、MinFallIntervalで止まります。
func (t Timing) FallInterval(level int) time.Duration {
	if level < 1 {
		level = 1
	}
	interval := t.InitialFallInterval - time.Duration(level-1)*t.FallIntervalStep
	if interval < t.MinFallInterval {
		interval = t.MinFallInterval
	}
	return interval
}

// ScoreTable はラインクリアの得点計算です。差し替え可能ですが、
// 同時に消したほうが別々に消すより必ず多く得点できる (優加法的) 必要があります。
type ScoreTable interface {
	// LineClear は lines 行を同時に消したときの得点を返します。
	LineClear(lines, level int) int
}

// QuadraticScoring は Base × 行数² × レベル で得点を計算します。
type QuadraticScoring struct {
	Base int
}

func (q QuadraticScoring) LineClear(lines, level int) int {
	if lines <= 0 {
		return 0
	}
	return q.Base * lines * lines * levelMultiplier(level)
}

// GuidelineScoring は Single/Double/Triple/Tetris = 100/300/500/800 × レベル の表です。
type GuidelineScoring struct{}

var guidelineBase = [5]int{0, 100, 300, 500, 800}

func (GuidelineScoring) LineClear(lines, level int) int {
	if lines <= 0 {
		return 0
	}
	if lines >= len(guidelineBase) {
		// 4行より多く消えることは通常ないが、Tetrisの比率で外挿する
		return guidelineBase[4] * lines * lines / 16 * levelMultiplier(level)
	}
	return guidelineBase[lines] * levelMultiplier(level)
}

func levelMultiplier(level int) int {
	if level < 1 {
		return 1
	}
	return level
}

// ScoringRule はセーブデータに書き込める得点表の名前です。
type ScoringRule string

const (
	ScoringQuadratic ScoringRule = "quadratic"
	ScoringGuideline ScoringRule = "guideline"
)

// Table はルール名に対応する得点表を返します。
func (r ScoringRule) Table() (ScoreTable, error) {
	switch r {
	case ScoringQuadratic, "":
		return QuadraticScoring{Base: 100}, nil
	case ScoringGuideline:
		return GuidelineScoring{}, nil
	}
	return nil, fmt.Errorf("%w: unknown scoring rule %q", ErrConfigOutOfRange, r)
}

// maxSimultaneousLines は1回の固定で消せる最大行数です (Iミノの高さ)。
const maxSimultaneousLines = 4

// ValidateScoreTable は得点表が非負かつ優加法的であることを確認します。
// n行同時消しの得点が、1..n-1行に分けて消した場合の最大合計を上回る必要があります。
func ValidateScoreTable(table ScoreTable) error {
	for level := 1; level <= 30; level++ {
		best := make([]int, maxSimultaneousLines+1) // best[n]: n行を分割して得られる最大得点
		for n := 1; n <= maxSimultaneousLines; n++ {
			score := table.LineClear(n, level)
			if score < 0 {
				return fmt.Errorf("%w: negative score for %d lines", ErrConfigOutOfRange, n)
			}
			split := 0
			for k := 1; k < n; k++ {
				if s := best[k] + best[n-k]; s > split {
					split = s
				}
			}
			if n > 1 && score <= split {
				return fmt.Errorf("%w: clearing %d lines at once (%d) must beat clearing them separately (%d)",
					ErrConfigOutOfRange, n, score, split)
			}
			if score > split {
				best[n] = score
			} else {
				best[n] = split
			}
		}
	}
	return nil
}
