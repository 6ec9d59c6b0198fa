package server

import (
	"log"
	"net/http"
	"sync/atomic"

	"github.com/ButyrinIA/feedsync/internal/config"
	"github.com/ButyrinIA/feedsync/internal/storage"
)

// Server - тестовый REST-бэкенд ленты. Повторяет причуды настоящего сервиса:
// смешанное именование полей, 400 на повторный лайк, турецкие сообщения
// и 500 после успешно сохраненного лайка.
type Server struct {
	cfg     *config.Config
	storage storage.Storage
	events  *hub
	handler http.Handler
	likes   atomic.Int64
}

func New(cfg *config.Config, storage storage.Storage) *Server {
	s := &Server{cfg: cfg, storage: storage, events: newHub()}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Run() error {
	log.Printf("Сервер слушает порт %s (локаль %s)", s.cfg.Server.Port, s.cfg.Server.Locale)
	return http.ListenAndServe(":"+s.cfg.Server.Port, s.handler)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", s.tokenHandler)
	mux.HandleFunc("GET /ws", s.wsHandler)

	mux.HandleFunc("GET /posts", s.optionalAuth(s.listPosts))
	mux.HandleFunc("POST /posts", s.requireAuth(s.createPost))
	mux.HandleFunc("GET /posts/{id}", s.optionalAuth(s.getPost))
	mux.HandleFunc("POST /posts/{id}/like", s.requireAuth(s.likePost))
	mux.HandleFunc("DELETE /posts/{id}/like", s.requireAuth(s.unlikePost))
	mux.HandleFunc("POST /posts/{id}/save", s.requireAuth(s.savePost))
	mux.HandleFunc("DELETE /posts/{id}/save", s.requireAuth(s.unsavePost))
	mux.HandleFunc("GET /posts/{id}/comments", s.optionalAuth(s.listComments))
	mux.HandleFunc("POST /posts/{id}/comments", s.requireAuth(s.createComment))

	mux.HandleFunc("DELETE /comments/{id}", s.requireAuth(s.deleteComment))
	mux.HandleFunc("POST /comments/{id}/like", s.requireAuth(s.likeComment))
	mux.HandleFunc("DELETE /comments/{id}/like", s.requireAuth(s.unlikeComment))

	return mux
}

// anomaly решает, ответить ли 500 на уже сохраненный лайк.
func (s *Server) anomaly() bool {
	every := s.cfg.Server.AnomalyEvery
	if every <= 0 {
		return false
	}
	return s.likes.Add(1)%int64(every) == 0
}
