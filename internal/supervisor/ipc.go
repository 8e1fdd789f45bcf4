package supervisor

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/msgpack"

// startIPC removes any stale socket file, binds a fresh Unix listener,
// and serves the chi router on it in the background. The control plane
// never touches TCP: operators reach it with a local Unix-socket client,
// matching the bridge's local-only RPC model but over HTTP routes
// instead of a raw message loop.
func (s *Supervisor) startIPC() error {
	if s.socketPath == "" {
		return nil
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing stale ipc socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding ipc socket: %w", err)
	}
	s.listener = ln

	s.httpServer = &http.Server{Handler: s.router()}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("ipc server stopped")
		}
	}()

	s.log.Info().Str("socket", s.socketPath).Msg("ipc listening")
	return nil
}

func writeMsgpack(w http.ResponseWriter, status int, v interface{}) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", msgpackContentType)
	w.WriteHeader(status)
	w.Write(body)
}

type errorReply struct {
	Error string `msgpack:"error"`
}

// handleStatus answers the STATUS command with a full worker/host
// health snapshot.
func (s *Supervisor) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeMsgpack(w, http.StatusOK, s.Status())
}

// handleShutdown answers the SHUTDOWN command by tearing the process
// down in the background — the HTTP response goes out over the same
// listener Stop() is about to close, so it's sent before Shutdown runs.
func (s *Supervisor) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeMsgpack(w, http.StatusAccepted, struct {
		Accepted bool `msgpack:"accepted"`
	}{true})
	go s.Stop(gracefulShutdownTimeout)
}

// handleRefresh answers the REFRESH command by restarting the named
// worker in place.
func (s *Supervisor) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "worker")
	if err := s.RestartWorker(name); err != nil {
		writeMsgpack(w, http.StatusNotFound, errorReply{Error: err.Error()})
		return
	}
	writeMsgpack(w, http.StatusOK, struct {
		Restarted string `msgpack:"restarted"`
	}{name})
}
