// Package web は進行モニタ用のHTTP/WebSocketサーバーなのだ。
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shouni/go-cinema-kit/internal/history"
)

const defaultRunListLimit = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// ローカルモニタ用途なのでオリジンは制限しないのだ
		return true
	},
}

// Server は進行モニタのHTTPサーバーなのだ。
type Server struct {
	hub       *Hub
	progress  *ProgressObserver
	runs      *history.Store
	outputDir string
}

// NewServer はサーバーを組み立てるのだ。runs はnil許容(履歴なし運用)。
func NewServer(hub *Hub, progress *ProgressObserver, runs *history.Store, outputDir string) *Server {
	return &Server{hub: hub, progress: progress, runs: runs, outputDir: outputDir}
}

// Router はginのルーティングを構築するのだ。
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/runs", s.handleRuns)
		api.GET("/runs/:run_id/assets", s.handleRunAssets)
	}

	if s.outputDir != "" {
		r.Static("/assets", s.outputDir)
	}
	return r
}

// ListenAndServe はctxが閉じるまでサーバーを動かすのだ。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	state := s.progress.State()
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "実行中の状態がまだありません"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []any{}})
		return
	}
	runs, err := s.runs.RecentRuns(defaultRunListLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunAssets(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "履歴ストアが無効です"})
		return
	}
	records, err := s.runs.AssetsForRun(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": records})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		hub:  s.hub,
	}
	s.hub.register <- client
	go client.readPump()
}
