package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

// LeaderboardHandler はランキング関連のハンドラーを管理する構造体です。
type LeaderboardHandler struct {
	sessionManager *tetris.SessionManager
}

// NewLeaderboardHandler は新しいLeaderboardHandlerインスタンスを作成します。
func NewLeaderboardHandler(sm *tetris.SessionManager) *LeaderboardHandler {
	return &LeaderboardHandler{sessionManager: sm}
}

// GetLeaderboard はランキングを取得するハンドラーです。
// GET /api/leaderboard?order=desc&limit=10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	order, err := models.ParseSortOrder(r.URL.Query().Get("order"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.sessionManager.Leaderboard(r.Context(), order, limit)
	if err != nil {
		log.Error().Err(err).Msg("[LeaderboardHandler] ランキング取得エラー")
		WriteErrorResponse(w, http.StatusInternalServerError, "ランキング取得に失敗しました")
		return
	}
	if entries == nil {
		entries = []models.LeaderboardResponse{}
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   order,
		"entries": entries,
	})
}

// SubmitScore はゲームオーバーになったセッションのスコアをランキングに登録するハンドラーです。
// POST /api/sessions/{id}/leaderboard {"initials": "ABC"}
func (h *LeaderboardHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	var req models.LeaderboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}

	entry, err := h.sessionManager.SubmitScore(r.Context(), id, req.Initials)
	if err != nil {
		log.Warn().Err(err).Msg("[LeaderboardHandler] スコア登録エラー")
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"entry":   entry,
	})
}
