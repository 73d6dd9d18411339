package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/claimhub/search-service/pkg/build"
	"github.com/claimhub/search-service/pkg/search"
	"github.com/claimhub/search-service/pkg/telemetry"
)

var log = logging.Logger("server")

// Queryer dispatches session queries by name.
type Queryer interface {
	Query(ctx context.Context, name string, payload json.RawMessage) (*search.Outputs, error)
}

type queryRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// ListenAndServe creates a new search service HTTP server, and starts it up.
func ListenAndServe(addr string, service Queryer) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewServer(service),
	}
	log.Infof("Listening on %s", addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewServer creates a new search service HTTP server.
func NewServer(service Queryer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", GetRootHandler())
	mux.HandleFunc("POST /query", PostQueryHandler(service))
	return mux
}

// GetRootHandler displays version info when a GET request is sent to "/".
func GetRootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fmt.Sprintf("🔎 search-service %s\n", build.Version)))
		w.Write([]byte("- https://github.com/claimhub/search-service\n"))
	}
}

// PostQueryHandler dispatches a session query when a POST request is sent to
// "/query". The body selects resolve or search and carries its payload.
func PostQueryHandler(service Queryer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, s := telemetry.StartSpan(r.Context(), "PostQueryHandler")
		defer s.End()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid query request: %s", err), http.StatusBadRequest)
			return
		}

		out, err := service.Query(ctx, req.Method, req.Params)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, search.ErrUnknownQuery) {
				http.Error(w, fmt.Sprint(err), http.StatusBadRequest)
				return
			}
			log.Errorf("dispatching %s query: %s", req.Method, err)
			http.Error(w, fmt.Sprintf("processing query: %s", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warnf("sending query response: %s", err)
		}
	}
}
