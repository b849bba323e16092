package bully

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 2 * time.Second

// Router exposes the participant status and the driver hooks over HTTP
func (n *Node) Router() *mux.Router {
	r := mux.NewRouter()
	sr := r.PathPrefix("/api").Subrouter()
	sr.Path("/status").Methods("GET").HandlerFunc(n.handleStatus)
	sr.Path("/election").Methods("POST").HandlerFunc(n.handleElection)
	sr.Path("/offline").Methods("POST").HandlerFunc(n.handleOffline)
	sr.Path("/online").Methods("POST").HandlerFunc(n.handleOnline)

	return r
}

// ServeAPI serves Router on addr until ctx is done
func (n *Node) ServeAPI(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: n.Router(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			n.log.Errorf("api shutdown: %v", err)
		}
	}()

	n.log.Infof("api listening on %s", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (n *Node) handleStatus(w http.ResponseWriter, r *http.Request) {
	n.writeStatus(w)
}

// handleElection accepts ?force=false and ?reason=...; elections are forced by default
func (n *Node) handleElection(w http.ResponseWriter, r *http.Request) {
	force := true
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "force must be a boolean", http.StatusBadRequest)
			return
		}
		force = b
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "api"
	}

	n.StartElection(reason, force)
	n.writeStatus(w)
}

func (n *Node) handleOffline(w http.ResponseWriter, r *http.Request) {
	n.GoOffline()
	n.writeStatus(w)
}

func (n *Node) handleOnline(w http.ResponseWriter, r *http.Request) {
	n.ComeOnline()
	n.writeStatus(w)
}

func (n *Node) writeStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(n.Status()); err != nil {
		n.log.Errorf("writing status: %v", err)
	}
}
