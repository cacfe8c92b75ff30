package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

// PublicHandler handles public API endpoints
type PublicHandler struct {
	DatabaseService *database.DatabaseService // ファイル保存の場合は nil
	DefaultOptions  tetris.Options
}

// NewPublicHandler creates a new instance of PublicHandler
func NewPublicHandler(dbService *database.DatabaseService, defaults tetris.Options) *PublicHandler {
	return &PublicHandler{
		DatabaseService: dbService,
		DefaultOptions:  defaults,
	}
}

func (h *PublicHandler) storage() string {
	if h.DatabaseService != nil {
		return "postgres"
	}
	return "file"
}

// Info はサーバーの設定を返します。
// GET /api/public
func (h *PublicHandler) Info(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"service":         "lineclear",
		"storage":         h.storage(),
		"default_options": h.DefaultOptions,
		"commands":        tetris.Commands(),
	})
}

// Health はデータベースに接続できるかを確認します。
// GET /healthz
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DatabaseService != nil {
		if err := h.DatabaseService.DB.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("[PublicHandler] データベースのPingに失敗しました")
			WriteErrorResponse(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok", "storage": h.storage()})
}
