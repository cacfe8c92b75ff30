package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket" // WebSocketライブラリ
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

// GameHandler はゲームセッション関連のHTTPリクエスト（作成、操作、セーブ/ロード、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager // ゲームセッションの管理サービス
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//
//	sm             : セッションマネージャーへのポインタ
//	allowedOrigins : WebSocket接続を許可するOrigin (空なら同一オリジンのみ)
//
// Returns:
//
//	*GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, allowedOrigins []string) *GameHandler {
	h := &GameHandler{sessionManager: sm}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

// CreateSession は新しいゲームセッションを作成します。
// POST /api/sessions (ボディは省略可能。指定した項目だけデフォルト設定を上書き)
func (h *GameHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	opts := h.sessionManager.DefaultOptions()
	if _, err := decodeOptionalJSON(r, &opts); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}

	info, err := h.sessionManager.CreateSession(userID, &opts)
	if err != nil {
		log.Warn().Err(err).Msgf("[GameHandler] Failed to create session for user %s", userID)
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, info)
}

// GetSession はセッションの現在の状態を返します。
// GET /api/sessions/{id}
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	info, err := h.sessionManager.SessionInfo(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, info)
}

// DeleteSession はセッションを終了します。
// DELETE /api/sessions/{id}
func (h *GameHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	if err := h.sessionManager.EndSession(id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commandResponse は操作の結果です。受け付けられなかった操作は performed=false で現在の状態を返します。
type commandResponse struct {
	Performed bool            `json:"performed"`
	State     tetris.Snapshot `json:"state"`
}

// ApplyCommand はプレイヤーの操作を1つ適用します。
// POST /api/sessions/{id}/commands {"command": "move_left"}
func (h *GameHandler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	cmd, known := tetris.ParseCommand(req.Command)
	if !known {
		WriteErrorResponse(w, http.StatusBadRequest, "不明な操作です: "+req.Command)
		return
	}

	snap, err := h.sessionManager.ApplyCommand(id, cmd)
	switch {
	case err == nil, errors.Is(err, tetris.ErrSpawnBlocked):
		WriteJSONResponse(w, http.StatusOK, commandResponse{Performed: true, State: snap})
	case errors.Is(err, tetris.ErrIllegalMove):
		WriteJSONResponse(w, http.StatusOK, commandResponse{Performed: false, State: snap})
	default:
		writeServiceError(w, err)
	}
}

// AdvanceSession はセッションの時間を手動で進めます。自動落下を待たずにクライアントが進めたい場合に使います。
// POST /api/sessions/{id}/advance {"elapsed_ms": 1000}
func (h *GameHandler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		ElapsedMS int64 `json:"elapsed_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ElapsedMS < 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "elapsed_ms は0以上の整数で指定してください")
		return
	}
	snap, err := h.sessionManager.AdvanceSession(id, time.Duration(req.ElapsedMS)*time.Millisecond)
	if err != nil && !errors.Is(err, tetris.ErrSpawnBlocked) {
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, snap)
}

// UpdateOptions はセッションのゲーム設定を変更します。省略した項目は現在の設定のままです。
// PUT /api/sessions/{id}/options
func (h *GameHandler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	current, err := h.sessionManager.SessionInfo(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	opts := current.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	info, err := h.sessionManager.Configure(id, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, info)
}

// SaveSession は現在のゲーム状態を保存します。
// POST /api/sessions/{id}/save {"initials": "ABC"}
func (h *GameHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	var req models.SaveRequest
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	info, err := h.sessionManager.SaveSession(r.Context(), id, req.Initials)
	if err != nil {
		log.Warn().Err(err).Msg("[GameHandler] セーブに失敗しました")
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, info)
}

// LoadSession はセーブデータを読み込みます。save_id を省略すると最新のセーブデータを読み込みます。
// POST /api/sessions/{id}/load {"save_id": "..."}
func (h *GameHandler) LoadSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	var req models.SaveRequest
	if _, err := decodeOptionalJSON(r, &req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	info, err := h.sessionManager.LoadSession(r.Context(), id, req.SaveID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, info)
}

// ListSaves はセーブデータの一覧を返します。
// GET /api/saves?limit=20
func (h *GameHandler) ListSaves(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	saves, err := h.sessionManager.ListSaves(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("[GameHandler] セーブデータ一覧の取得に失敗しました")
		writeServiceError(w, err)
		return
	}
	if saves == nil {
		saves = []models.SaveInfo{}
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"saves": saves})
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// その後、WebSocketメッセージの送受信をセッションマネージャーに引き渡します。
// GET /ws/sessions/{id}
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := authorizeSession(w, r, h.sessionManager)
	if !ok {
		return
	}
	userID := requestUserID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msgf("[GameHandler] Failed to upgrade to websocket for session %s", sessionID)
		return // アップグレード失敗時はUpgraderがレスポンスを書き込み済み
	}
	log.Info().Msgf("[GameHandler] WebSocket upgraded for session %s.", sessionID)

	// readPump と writePump はSessionManagerが開始し、コネクションも管理する
	if err := h.sessionManager.RegisterClient(sessionID, userID, conn); err != nil {
		log.Warn().Err(err).Msgf("[GameHandler] Failed to register client %s to session %s", userID, sessionID)
		conn.Close()
	}
}

// parseLimit は limit クエリパラメータを読み取ります。省略時は0 (全件) です。
func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit は0以上の整数で指定してください: %q", s)
	}
	return limit, nil
}
