package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter はAPIのルーティングを設定したルーターを返します。
//
// Parameters:
//
//	public : 公開エンドポイントのハンドラー
//	game   : セッション関連のハンドラー
//	lb     : ランキング関連のハンドラー
//	auth   : 認証が必要なルートに適用するミドルウェア
func NewRouter(public *PublicHandler, game *GameHandler, lb *LeaderboardHandler, auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()

	// 認証不要な公開エンドポイント
	r.HandleFunc("/healthz", public.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/public", public.Info).Methods(http.MethodGet)
	r.HandleFunc("/api/leaderboard", lb.GetLeaderboard).Methods(http.MethodGet)

	// 認証が必要なルート
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/sessions", game.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", game.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", game.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/commands", game.ApplyCommand).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/advance", game.AdvanceSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/options", game.UpdateOptions).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/save", game.SaveSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/load", game.LoadSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/leaderboard", lb.SubmitScore).Methods(http.MethodPost)
	api.HandleFunc("/saves", game.ListSaves).Methods(http.MethodGet)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(auth)
	ws.HandleFunc("/sessions/{id}", game.HandleWebSocketConnection).Methods(http.MethodGet)

	return r
}
