package tetris

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// テスト中は警告以上のログだけを出力する
func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}
