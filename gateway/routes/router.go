package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftminter/core/catalog"
	coreerrors "nftminter/core/errors"
	"nftminter/core/router"
	"nftminter/core/types"
	"nftminter/gateway/middleware"
	"nftminter/storage/journal"
)

// Chain is the read path for one chain.
type Chain struct {
	Catalog *catalog.Catalog
	Router  *router.Router
}

// JournalReader is the read side of the purchase journal.
type JournalReader interface {
	Transaction(hash string) (journal.Transaction, error)
	Entries(after uint64, limit int) ([]journal.Entry, error)
}

// Config wires the quote API.
type Config struct {
	Chains         map[uint64]Chain
	DefaultChainID uint64
	Commissions    []types.CommissionInfo
	EmbedderFee    string
	// Journal enables the transaction and event endpoints.
	Journal       JournalReader
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

type server struct {
	cfg    Config
	logger *slog.Logger
}

// New builds the HTTP handler.
func New(cfg Config) (http.Handler, error) {
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("routes: at least one chain required")
	}
	if _, ok := cfg.Chains[cfg.DefaultChainID]; !ok {
		return nil, fmt.Errorf("routes: default chain %d not configured", cfg.DefaultChainID)
	}
	s := &server{cfg: cfg, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	r.Route("/v1/products", func(sr chi.Router) {
		s.instrument(sr, "quotes")
		sr.Get("/{id}", s.getProduct)
		sr.Get("/{id}/quote", s.getQuote)
	})
	if cfg.Journal != nil {
		r.Route("/v1/journal", func(sr chi.Router) {
			s.instrument(sr, "journal")
			sr.Get("/transactions/{hash}", s.getTransaction)
			sr.Get("/events", s.listEvents)
		})
	}
	return r, nil
}

func (s *server) instrument(r chi.Router, route string) {
	if s.cfg.RateLimiter != nil {
		r.Use(s.cfg.RateLimiter.Middleware(route))
	}
	if s.cfg.Observability != nil {
		r.Use(s.cfg.Observability.Middleware(route))
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeCoreError maps a classified error onto an HTTP status.
func (s *server) writeCoreError(w http.ResponseWriter, err error) {
	var classified *coreerrors.Error
	if !errors.As(err, &classified) {
		s.logger.Warn("quote failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream", err.Error())
		return
	}
	message := classified.Message
	if message == "" {
		message = classified.Error()
	}
	switch {
	case classified.Code == coreerrors.CodeUnsupportedProduct:
		writeError(w, http.StatusNotFound, string(classified.Code), message)
	case classified.Kind == coreerrors.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, string(classified.Code), message)
	default:
		s.logger.Warn("quote failed", "code", string(classified.Code), "error", err)
		writeError(w, http.StatusBadGateway, string(classified.Code), message)
	}
}
