package web

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/skinned_mesh/animator"
)

type Server struct {
	anim    *animator.Animator
	frames  *frameHub
	cancel  func()
	handler http.Handler
}

// NewServer routes pose updates into anim and streams its frames.
func NewServer(anim *animator.Animator) *Server {
	s := &Server{
		anim:   anim,
		frames: newFrameHub(),
	}
	s.cancel = anim.Subscribe(s.frames.broadcast)

	r := mux.NewRouter()
	r.HandleFunc("/json/skeleton", s.HandlerSkeleton).Methods("GET")
	r.HandleFunc("/json/frame", s.HandlerFrame).Methods("GET")
	r.HandleFunc("/json/pose", s.HandlerPose).Methods("POST")
	r.HandleFunc("/json/reset", s.HandlerReset).Methods("POST")
	r.HandleFunc("/ws/frames", s.HandlerFrameStream)

	s.handler = handlers.RecoveryHandler()(r)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops streaming frames to websocket clients.
func (s *Server) Close() {
	s.cancel()
	s.frames.close()
}

func StartServer(addr string, anim *animator.Animator) error {
	s := NewServer(anim)
	defer s.Close()

	h := handlers.LoggingHandler(os.Stdout, s)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
