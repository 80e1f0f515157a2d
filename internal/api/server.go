// Package api exposes the voice controller over HTTP: the rendered page, a
// JSON action API and a WebSocket stream of state snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/loqalabs/loqa-narrator/internal/ui"
	"github.com/loqalabs/loqa-narrator/internal/voice"
)

// Narrator is the controller surface the API drives.
type Narrator interface {
	Snapshot() voice.Snapshot
	Subscribe() (<-chan voice.Snapshot, func())
	Speak(ctx context.Context, text string) error
	Pause() error
	Resume() error
	Stop()
	SelectVoice(name string)
	SetRate(value string)
	SetPitch(value string)
	SetMessage(text string)
	LogStatus(ctx context.Context)
	RunDebugTest(ctx context.Context) error
}

type Options struct {
	Title  string
	Logger *slog.Logger
}

type Server struct {
	narrator Narrator
	title    string
	logger   *slog.Logger
	mux      *http.ServeMux
}

func New(n Narrator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		narrator: n,
		title:    opts.Title,
		logger:   logger.With(slog.String("component", "api")),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("POST "+ui.PathModalOpen, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/?modal=1", http.StatusSeeOther)
	})
	s.mux.HandleFunc("POST "+ui.PathModalClose, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/ws", s.handleStream)
	s.mux.HandleFunc("POST /api/speak", s.handleSpeak)
	s.mux.HandleFunc("POST /api/pause", s.action(func(*http.Request, input) error { return s.narrator.Pause() }))
	s.mux.HandleFunc("POST /api/resume", s.action(func(*http.Request, input) error { return s.narrator.Resume() }))
	s.mux.HandleFunc("POST /api/stop", s.action(func(*http.Request, input) error {
		s.narrator.Stop()
		return nil
	}))
	s.mux.HandleFunc("POST /api/voice", s.action(func(_ *http.Request, in input) error {
		s.narrator.SelectVoice(in.Voice)
		return nil
	}))
	s.mux.HandleFunc("POST /api/rate", s.action(func(_ *http.Request, in input) error {
		s.narrator.SetRate(in.Value)
		return nil
	}))
	s.mux.HandleFunc("POST /api/pitch", s.action(func(_ *http.Request, in input) error {
		s.narrator.SetPitch(in.Value)
		return nil
	}))
	s.mux.HandleFunc("POST /api/message", s.action(func(_ *http.Request, in input) error {
		if in.Text != nil {
			s.narrator.SetMessage(*in.Text)
		}
		return nil
	}))
	s.mux.HandleFunc("POST /api/debug", s.action(func(r *http.Request, _ input) error {
		return s.narrator.RunDebugTest(r.Context())
	}))
	s.mux.HandleFunc("POST /api/log-status", s.action(func(r *http.Request, _ input) error {
		s.narrator.LogStatus(r.Context())
		return nil
	}))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := ui.RenderPage(w, ui.PageData{
		Title:     s.title,
		Snapshot:  s.narrator.Snapshot(),
		ModalOpen: r.URL.Query().Get("modal") == "1",
	})
	if err != nil {
		s.logger.Error("failed to render page", slogError(err))
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: s.narrator.Snapshot()})
}

// handleSpeak speaks the submitted text, or the stored message when no text
// is given. Submitted text also becomes the stored message.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Error: err.Error(), State: s.narrator.Snapshot()})
		return
	}
	text := s.narrator.Snapshot().Message
	if in.Text != nil {
		text = *in.Text
		s.narrator.SetMessage(text)
	}
	s.respond(w, r, s.narrator.Speak(r.Context(), text))
}

func (s *Server) action(fn func(*http.Request, input) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := readInput(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, stateResponse{Error: err.Error(), State: s.narrator.Snapshot()})
			return
		}
		s.respond(w, r, fn(r, in))
	}
}

// respond sends browsers back to the page and API clients the new state.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	resp := stateResponse{State: s.narrator.Snapshot()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var submitErr *voice.SubmitError
	switch {
	case errors.Is(err, voice.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, voice.ErrUnsupported), errors.Is(err, voice.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &submitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleStream pushes a snapshot on connect and after every state change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slogError(err))
		return
	}
	defer conn.CloseNow()

	updates, cancel := s.narrator.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "narrator shutting down")
				return
			}
			if err := wsjson.Write(ctx, conn, snap); err != nil {
				s.logger.Debug("websocket write failed", slogError(err))
				return
			}
		}
	}
}

type stateResponse struct {
	Error string         `json:"error,omitempty"`
	State voice.Snapshot `json:"state"`
}

// input carries the parameters any action accepts, from a form or JSON body.
type input struct {
	Text  *string `json:"text"`
	Voice string  `json:"voice"`
	Value string  `json:"value"`
}

func readInput(r *http.Request) (input, error) {
	var in input
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			return in, fmt.Errorf("decode request: %w", err)
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, fmt.Errorf("parse form: %w", err)
	}
	if _, ok := r.Form["text"]; ok {
		text := r.Form.Get("text")
		in.Text = &text
	}
	in.Voice = r.Form.Get("voice")
	in.Value = r.Form.Get("value")
	return in, nil
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
