package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type UserIDKey struct{}

// GetUserIDFromContext retrieves the user ID from the context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey{}).(string)
	return userID, ok
}

// WithUserID はユーザーIDを設定したコンテキストを返します。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey{}, userID)
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// AuthConfig は AuthMiddleware の設定です。
type AuthConfig struct {
	JWTSecret  string // SUPABASE_JWT_SECRET
	BypassAuth bool   // テスト用: trueなら毎回ランダムなユーザーIDを割り当てる
}

// bearerToken は Authorization ヘッダーからトークンを取り出します。
// WebSocketはブラウザからヘッダーを付けられないため、token クエリパラメータも受け付けます。
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("Authorization header is required")
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("Invalid Authorization header format. Must be 'Bearer <token>'")
	}
	return token, nil
}

// AuthMiddleware is a middleware function that checks for a valid JWT token.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.BypassAuth {
				testUserID := uuid.New().String()
				log.Debug().Msgf("[AuthMiddleware] BYPASS_AUTH enabled, generated test user ID: %s", testUserID)
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), testUserID)))
				return
			}

			tokenString, err := bearerToken(r)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if cfg.JWTSecret == "" {
				log.Error().Msg("[AuthMiddleware] SUPABASE_JWT_SECRET environment variable is not set.")
				writeJSONError(w, http.StatusInternalServerError, "Server configuration error: JWT secret missing")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				// アルゴリズムがHMACであることを確認
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("[AuthMiddleware] JWT parse error")
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			// SupabaseのJWTはユーザーIDを 'sub' クレームに格納します。
			userID, err := token.Claims.GetSubject()
			if err != nil || userID == "" {
				log.Warn().Msgf("[AuthMiddleware] JWT claims missing 'sub' (userID): %v", token.Claims)
				writeJSONError(w, http.StatusUnauthorized, "Invalid token: missing user ID")
				return
			}

			log.Debug().Msgf("[AuthMiddleware] Successfully authenticated user: %s", userID)
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
