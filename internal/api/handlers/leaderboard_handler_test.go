package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

func TestLeaderboard(t *testing.T) {
	srv := newTestServer(t)
	info := createSession(t, srv, "")
	cmdPath := "/api/sessions/" + info.ID + "/commands"
	submitPath := "/api/sessions/" + info.ID + "/leaderboard"

	var board struct {
		Order   models.SortOrder             `json:"order"`
		Entries []models.LeaderboardResponse `json:"entries"`
	}
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/leaderboard", "", &board))
	assert.Equal(t, models.SortDescending, board.Order)
	assert.Empty(t, board.Entries)

	call(t, srv, http.MethodPost, cmdPath, `{"command":"start"}`, &commandResponse{})

	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, submitPath, `{"initials":"ABC"}`, &errBody),
		"ゲームオーバー前は登録できない")

	var res commandResponse
	for i := 0; i < 200 && !res.State.GameOver; i++ {
		require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, cmdPath, `{"command":"hard_drop"}`, &res))
	}
	require.True(t, res.State.GameOver)

	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, submitPath, `{"initials":"TOOLONG"}`, &errBody))

	var submitted struct {
		Entry models.LeaderboardEntry `json:"entry"`
	}
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, submitPath, `{"initials":"xyz"}`, &submitted))
	assert.Equal(t, "XYZ", submitted.Entry.Initials)
	assert.Equal(t, res.State.Stats.Score, submitted.Entry.Score)

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, submitPath, `{"initials":"XYZ"}`, &errBody),
		"同じゲームは1回だけ")

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/api/leaderboard?order=asc&limit=5", "", &board))
	assert.Equal(t, models.SortAscending, board.Order)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 1, board.Entries[0].Rank)

	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/api/leaderboard?order=sideways", "", &errBody))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/api/leaderboard?limit=-1", "", &errBody))
}
