package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

// anonymousUserID は認証ミドルウェアを通らないリクエストのユーザーIDです。
const anonymousUserID = "anonymous"

// ExtractUserIDFromContext はリクエストのコンテキストからユーザーIDを抽出します。
func ExtractUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("ユーザーIDがコンテキストに見つかりません")
	}
	return userID, nil
}

// requestUserID はリクエストのユーザーIDを返します。認証ミドルウェアを通っていなければ anonymousUserID です。
func requestUserID(r *http.Request) string {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		return anonymousUserID
	}
	return userID
}

// authorizeSession はパスの {id} のセッションをリクエストしたユーザーが操作できるか確認します。
// 操作できない場合はエラーレスポンスを書き込み、falseを返します。
func authorizeSession(w http.ResponseWriter, r *http.Request, sm *tetris.SessionManager) (string, bool) {
	sessionID := mux.Vars(r)["id"]
	if err := sm.Authorize(sessionID, requestUserID(r)); err != nil {
		writeServiceError(w, err)
		return "", false
	}
	return sessionID, true
}

// WriteErrorResponse はエラーレスポンスをJSON形式で書き込みます。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSONResponse(w, statusCode, map[string]string{"error": message})
}

// WriteJSONResponse はJSONレスポンスを書き込みます。
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// statusFor はサービス層のエラーをHTTPステータスに変換します。
func statusFor(err error) int {
	switch {
	case errors.Is(err, tetris.ErrSessionNotFound), errors.Is(err, models.ErrSaveNotFound):
		return http.StatusNotFound
	case errors.Is(err, tetris.ErrConfigOutOfRange), errors.Is(err, models.ErrInvalidInitials):
		return http.StatusBadRequest
	case errors.Is(err, tetris.ErrNotSessionOwner):
		return http.StatusForbidden
	case errors.Is(err, tetris.ErrCorruptSave):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tetris.ErrIllegalMove),
		errors.Is(err, tetris.ErrGameNotOver),
		errors.Is(err, tetris.ErrScoreAlreadySubmitted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError はエラーの種類に応じたステータスでエラーレスポンスを書き込みます。
func writeServiceError(w http.ResponseWriter, err error) {
	WriteErrorResponse(w, statusFor(err), err.Error())
}

// decodeOptionalJSON はリクエストボディが空でなければ v にデコードします。
//
// Returns:
//
//	bool : ボディがあったかどうか
//	error: JSONとして不正な場合
func decodeOptionalJSON(r *http.Request, v any) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return err == nil, err
}
