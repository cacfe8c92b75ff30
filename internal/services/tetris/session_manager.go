package tetris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

var (
	// ErrSessionNotFound は指定されたIDのセッションが存在しないときに返されます。
	ErrSessionNotFound = errors.New("session not found")
	// ErrGameNotOver はゲームオーバー前にスコアを登録しようとしたときに返されます。
	ErrGameNotOver = errors.New("game is not over")
	// ErrScoreAlreadySubmitted は同じゲームのスコアを2回登録しようとしたときに返されます。
	ErrScoreAlreadySubmitted = errors.New("score already submitted")
	// ErrNotSessionOwner はセッションを作成したユーザー以外が操作しようとしたときに返されます。
	ErrNotSessionOwner = errors.New("not the session owner")
)

// LeaderboardRepository はランキングの保存先です (CSVファイルまたはPostgreSQL)。
type LeaderboardRepository interface {
	// AddEntry は新しいスコアを追加します
	AddEntry(ctx context.Context, initials string, score int) (*models.LeaderboardEntry, error)
	// GetEntries はランキングを指定した順序で最大limit件取得します (limit <= 0 は全件)
	GetEntries(ctx context.Context, order models.SortOrder, limit int) ([]models.LeaderboardResponse, error)
}

// SaveRepository はセーブデータの保存先です (ディレクトリまたはPostgreSQL)。
type SaveRepository interface {
	// SaveGame はセーブデータを保存し、採番したIDを含む情報を返します
	SaveGame(ctx context.Context, info models.SaveInfo, data []byte) (*models.SaveInfo, error)
	// LoadGame はセーブデータを読み込みます。idが空なら最も新しいものを返します
	LoadGame(ctx context.Context, id string) ([]byte, *models.SaveInfo, error)
	// ListSaves は新しい順にセーブデータの一覧を返します
	ListSaves(ctx context.Context, limit int) ([]models.SaveInfo, error)
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	ID        string          // 接続ごとのID
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // 観戦・操作しているセッションのID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed    bool            // チャネルが閉じられたかどうかのフラグ
	mu        sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// PlayerInputEvent はWebSocketから届いたプレイヤーの操作です。
type PlayerInputEvent struct {
	ClientID  string `json:"-"`
	SessionID string `json:"-"`
	Action    string `json:"action"` // 例: "move_left", "rotate", "hard_drop"
}

// SessionMessage はWebSocketでクライアントに送るメッセージです。
type SessionMessage struct {
	Type      string    `json:"type"` // "state" または "error"
	SessionID string    `json:"session_id"`
	State     *Snapshot `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// GameSession は1人のプレイヤーのゲームです。GameStateへのアクセスは mu で直列化します。
type GameSession struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu        sync.Mutex
	state     *GameState
	lastTick  time.Time
	submitted bool // このゲームのスコアを登録済みか
}

// SessionInfo はAPIレスポンス用のセッション情報です。
type SessionInfo struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Options   Options   `json:"options"`
	State     Snapshot  `json:"state"`
}

func (gs *GameSession) info() SessionInfo {
	return SessionInfo{
		ID:        gs.ID,
		OwnerID:   gs.OwnerID,
		CreatedAt: gs.CreatedAt,
		Options:   gs.state.Options(),
		State:     gs.state.Snapshot(),
	}
}

// ManagerConfig は SessionManager の動作設定です。
type ManagerConfig struct {
	TickInterval   time.Duration // 自動落下処理の間隔
	DefaultOptions Options       // セッション作成時に指定がなければ使う設定
	// EnforceOwnership がtrueの場合、セッションを作成したユーザーだけが操作できます。
	// BYPASS_AUTH ではリクエストごとにユーザーIDが変わるため false にします。
	EnforceOwnership bool
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	sessions    map[string]*GameSession // sessionID -> GameSession
	clients     map[string]*Client      // clientID -> Client
	register    chan *Client
	unregister  chan *Client
	inputEvents chan PlayerInputEvent
	quit        chan struct{}
	quitOnce    sync.Once
	mu          sync.RWMutex // sessions と clients マップへのアクセスを保護するためのRWMutex

	cfg         ManagerConfig
	leaderboard LeaderboardRepository
	saves       SaveRepository
}

// NewSessionManager は新しい SessionManager インスタンスを作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//
//	cfg         : ティック間隔とデフォルトのゲーム設定
//	leaderboard : ランキングの保存先
//	saves       : セーブデータの保存先
//
// Returns:
//
//	*SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(cfg ManagerConfig, leaderboard LeaderboardRepository, saves SaveRepository) *SessionManager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	sm := &SessionManager{
		sessions:    make(map[string]*GameSession),
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inputEvents: make(chan PlayerInputEvent, 512),
		quit:        make(chan struct{}),
		cfg:         cfg,
		leaderboard: leaderboard,
		saves:       saves,
	}
	go sm.Run()
	return sm
}

// Run は SessionManager のメインイベントループです。
// クライアントの登録/解除、プレイヤー入力の処理、自動落下のティックを処理します。
func (sm *SessionManager) Run() {
	ticker := time.NewTicker(sm.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-sm.register:
			sm.mu.Lock()
			sm.clients[client.ID] = client
			sm.mu.Unlock()
			log.Info().Msgf("[SessionManager] Client registered: %s (Session: %s)", client.ID, client.SessionID)
			sm.BroadcastGameState(client.SessionID)

		case client := <-sm.unregister:
			sm.mu.Lock()
			if registered, ok := sm.clients[client.ID]; ok {
				registered.SafeClose()
				delete(sm.clients, client.ID)
				log.Info().Msgf("[SessionManager] Client unregistered: %s (Session: %s)", client.ID, client.SessionID)
			}
			sm.mu.Unlock()

		case event := <-sm.inputEvents:
			cmd, ok := ParseCommand(event.Action)
			if !ok {
				sm.sendError(event.ClientID, event.SessionID, fmt.Errorf("unknown action %q", event.Action))
				continue
			}
			if _, err := sm.ApplyCommand(event.SessionID, cmd); err != nil && !errors.Is(err, ErrIllegalMove) {
				sm.sendError(event.ClientID, event.SessionID, err)
			}

		case now := <-ticker.C:
			sm.tick(now)

		case <-sm.quit:
			log.Info().Msg("[SessionManager] シャットダウンシグナルを受信、メインループを終了します")
			return
		}
	}
}

// tick は実行中の全セッションの時間を進めます。
func (sm *SessionManager) tick(now time.Time) {
	sm.mu.RLock()
	active := make([]*GameSession, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		active = append(active, session)
	}
	sm.mu.RUnlock()

	for _, session := range active {
		session.mu.Lock()
		elapsed := now.Sub(session.lastTick)
		session.lastTick = now
		running := session.state.Running() && !session.state.Paused()
		var err error
		if running {
			err = session.state.Advance(elapsed)
		}
		session.mu.Unlock()

		if err != nil {
			log.Info().Err(err).Msgf("[SessionManager] Game over in session %s", session.ID)
		}
		if running {
			sm.BroadcastGameState(session.ID)
		}
	}
}

// AdvanceSession は指定したセッションの時間を elapsed だけ進めます (テストや手動ステップ用)。
func (sm *SessionManager) AdvanceSession(sessionID string, elapsed time.Duration) (Snapshot, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	session.mu.Lock()
	err = session.state.Advance(elapsed)
	snap := session.state.Snapshot()
	session.mu.Unlock()
	sm.BroadcastGameState(sessionID)
	return snap, err
}

// CreateSession は新しいゲームセッションを作成します。ゲームは "start" 操作で始まります。
//
// Parameters:
//
//	ownerID : セッションを作成したユーザーのID
//	opts    : ゲーム設定 (nilならデフォルト)
//
// Returns:
//
//	SessionInfo: 作成されたセッションの情報
//	error      : 設定が範囲外の場合 ErrConfigOutOfRange
func (sm *SessionManager) CreateSession(ownerID string, opts *Options) (SessionInfo, error) {
	o := sm.cfg.DefaultOptions
	if opts != nil {
		o = *opts
	}
	state, err := NewGameState(o)
	if err != nil {
		return SessionInfo{}, err
	}

	now := time.Now()
	session := &GameSession{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		CreatedAt: now,
		state:     state,
		lastTick:  now,
	}
	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	log.Info().Msgf("[SessionManager] Session %s created by %s", session.ID, ownerID)
	return session.info(), nil
}

// DefaultOptions はセッション作成時のデフォルト設定を返します。
func (sm *SessionManager) DefaultOptions() Options { return sm.cfg.DefaultOptions }

// GetGameSession は指定されたIDのゲームセッションを取得します。
func (sm *SessionManager) GetGameSession(sessionID string) (*GameSession, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// Authorize はユーザーがセッションを操作できるかを確認します。
//
// Parameters:
//
//	sessionID : 操作対象のセッション
//	userID    : リクエストしたユーザーのID
//
// Returns:
//
//	error: セッションがなければ ErrSessionNotFound、所有者でなければ ErrNotSessionOwner
func (sm *SessionManager) Authorize(sessionID, userID string) error {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return err
	}
	if sm.cfg.EnforceOwnership && session.OwnerID != userID {
		log.Warn().Msgf("[SessionManager] User %s is not the owner of session %s", userID, sessionID)
		return fmt.Errorf("%w: %s", ErrNotSessionOwner, sessionID)
	}
	return nil
}

// SessionInfo は現在のセッション情報を返します。
func (sm *SessionManager) SessionInfo(sessionID string) (SessionInfo, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.info(), nil
}

// ApplyCommand は操作を1つ適用し、適用後のスナップショットを返します。
// 受け付けられなかった操作も ErrIllegalMove と一緒に現在のスナップショットを返します。
func (sm *SessionManager) ApplyCommand(sessionID string, cmd Command) (Snapshot, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	session.mu.Lock()
	err = session.state.Apply(cmd)
	if cmd == CommandStart || cmd == CommandRestart {
		session.lastTick = time.Now()
		if err == nil {
			session.submitted = false
		}
	}
	snap := session.state.Snapshot()
	session.mu.Unlock()

	if err != nil && errors.Is(err, ErrSpawnBlocked) {
		log.Info().Err(err).Msgf("[SessionManager] Game over in session %s", sessionID)
	}
	if !errors.Is(err, ErrIllegalMove) {
		sm.BroadcastGameState(sessionID)
	}
	return snap, err
}

// Configure はセッションのゲーム設定を変更します。範囲外の場合は以前の設定のままです。
func (sm *SessionManager) Configure(sessionID string, opts Options) (SessionInfo, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	session.mu.Lock()
	err = session.state.Configure(opts)
	info := session.info()
	session.mu.Unlock()
	if err == nil {
		sm.BroadcastGameState(sessionID)
	}
	return info, err
}

// SaveSession は現在のゲーム状態をセーブデータとして保存します。
//
// Parameters:
//
//	ctx       : リクエストのコンテキスト
//	sessionID : 保存するセッション
//	initials  : セーブデータに記録するイニシャル (空でもよい)
func (sm *SessionManager) SaveSession(ctx context.Context, sessionID, initials string) (*models.SaveInfo, error) {
	if initials != "" {
		normalized, err := models.NormalizeInitials(initials)
		if err != nil {
			return nil, err
		}
		initials = normalized
	}
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return nil, err
	}

	meta := SaveMeta{SavedAt: time.Now().UTC(), Initials: initials}
	session.mu.Lock()
	data, err := EncodeSave(session.state, meta)
	score := session.state.Stats.Score
	session.mu.Unlock()
	if err != nil {
		return nil, err
	}

	info, err := sm.saves.SaveGame(ctx, models.SaveInfo{
		SessionID: sessionID,
		Initials:  initials,
		Score:     score,
		SavedAt:   meta.SavedAt,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("セーブデータの保存に失敗しました: %w", err)
	}
	log.Info().Msgf("[SessionManager] Session %s saved as %s", sessionID, info.ID)
	return info, nil
}

// LoadSession はセーブデータを読み込んでセッションのゲーム状態を置き換えます。
// セーブデータが壊れている場合はセッションの状態を一切変更しません。
//
// Parameters:
//
//	saveID : 読み込むセーブデータのID (空なら最新)
func (sm *SessionManager) LoadSession(ctx context.Context, sessionID, saveID string) (SessionInfo, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}

	data, saveInfo, err := sm.saves.LoadGame(ctx, saveID)
	if err != nil {
		return SessionInfo{}, err
	}
	state, _, err := DecodeSave(data)
	if err != nil {
		log.Warn().Err(err).Msgf("[SessionManager] Rejected save %q for session %s", saveID, sessionID)
		return SessionInfo{}, err
	}

	session.mu.Lock()
	session.state = state
	session.lastTick = time.Now()
	session.submitted = false
	info := session.info()
	session.mu.Unlock()

	log.Info().Msgf("[SessionManager] Session %s loaded save %s", sessionID, saveInfo.ID)
	sm.BroadcastGameState(sessionID)
	return info, nil
}

// ListSaves はセーブデータの一覧を返します。
func (sm *SessionManager) ListSaves(ctx context.Context, limit int) ([]models.SaveInfo, error) {
	return sm.saves.ListSaves(ctx, limit)
}

// SubmitScore はゲームオーバーになったセッションのスコアをランキングに登録します。
func (sm *SessionManager) SubmitScore(ctx context.Context, sessionID, initials string) (*models.LeaderboardEntry, error) {
	normalized, err := models.NormalizeInitials(initials)
	if err != nil {
		return nil, err
	}
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if !session.state.GameOver() {
		return nil, ErrGameNotOver
	}
	if session.submitted {
		return nil, ErrScoreAlreadySubmitted
	}
	entry, err := sm.leaderboard.AddEntry(ctx, normalized, session.state.Stats.Score)
	if err != nil {
		return nil, fmt.Errorf("ランキングへの登録に失敗しました: %w", err)
	}
	session.submitted = true
	log.Info().Msgf("[SessionManager] Score %d submitted by %s from session %s", entry.Score, normalized, sessionID)
	return entry, nil
}

// Leaderboard はランキングを取得します。
func (sm *SessionManager) Leaderboard(ctx context.Context, order models.SortOrder, limit int) ([]models.LeaderboardResponse, error) {
	return sm.leaderboard.GetEntries(ctx, order, limit)
}

// RegisterClient は新しいWebSocketクライアントをSessionManagerに登録します。
//
// Parameters:
//
//	sessionID : クライアントが接続するセッションのID
//	userID    : クライアントのユーザーID
//	conn      : WebSocketコネクション
func (sm *SessionManager) RegisterClient(sessionID, userID string, conn *websocket.Conn) error {
	if _, err := sm.GetGameSession(sessionID); err != nil {
		return err
	}
	client := &Client{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	go sm.readPump(client)
	go client.writePump()
	select {
	case sm.register <- client:
	case <-sm.quit:
		client.SafeClose()
		return errors.New("session manager is shut down")
	}
	return nil
}

// readPump はクライアントからのWebSocketメッセージを読み込み、 inputEvents チャネルに送信します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("[SessionManager] Panic in readPump for client %s: %v", client.ID, r)
		}
		select {
		case sm.unregister <- client:
		case <-sm.quit:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(1024)
	client.Conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(300 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msgf("[SessionManager] WebSocket unexpected close for client %s", client.ID)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var event PlayerInputEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Warn().Err(err).Msgf("[SessionManager] Failed to unmarshal input message from %s", client.ID)
			continue
		}
		event.ClientID = client.ID
		event.SessionID = client.SessionID // 接続先のセッション以外は操作させない

		select {
		case sm.inputEvents <- event:
		default:
			log.Warn().Msgf("[SessionManager] Input events channel is full, dropping message from %s", client.ID)
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Msgf("[Client] Error writing message for client %s", c.ID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastGameState はセッションの現在の状態を、接続している全てのクライアントに送信します。
func (sm *SessionManager) BroadcastGameState(sessionID string) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return
	}
	session.mu.Lock()
	snap := session.state.Snapshot()
	session.mu.Unlock()

	payload, err := json.Marshal(SessionMessage{Type: "state", SessionID: sessionID, State: &snap})
	if err != nil {
		log.Error().Err(err).Msgf("[SessionManager] Error marshaling game state for session %s", sessionID)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, client := range sm.clients {
		if client.SessionID == sessionID && !client.SafeSend(payload) {
			log.Debug().Msgf("[SessionManager] Failed to send to client %s (channel closed or full)", client.ID)
		}
	}
}

func (sm *SessionManager) sendError(clientID, sessionID string, cause error) {
	payload, err := json.Marshal(SessionMessage{Type: "error", SessionID: sessionID, Error: cause.Error()})
	if err != nil {
		return
	}
	sm.mu.RLock()
	client, ok := sm.clients[clientID]
	sm.mu.RUnlock()
	if ok {
		client.SafeSend(payload)
	}
}

// EndSession はセッションを削除し、接続中のクライアントを切断します。
func (sm *SessionManager) EndSession(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(sm.sessions, sessionID)
	for id, client := range sm.clients {
		if client.SessionID == sessionID {
			client.SafeClose()
			delete(sm.clients, id)
		}
	}
	log.Info().Msgf("[SessionManager] Session %s ended", sessionID)
	return nil
}

// Shutdown はSessionManagerを安全にシャットダウンします
func (sm *SessionManager) Shutdown() {
	sm.quitOnce.Do(func() {
		log.Info().Msg("[SessionManager] シャットダウン開始...")
		close(sm.quit)

		sm.mu.Lock()
		for _, client := range sm.clients {
			if client.Conn != nil {
				client.Conn.Close()
			}
			client.SafeClose()
		}
		sm.clients = make(map[string]*Client)
		sm.sessions = make(map[string]*GameSession)
		sm.mu.Unlock()
		log.Info().Msg("[SessionManager] シャットダウン完了")
	})
}
