// Package api exposes committed cart reconstruction over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"committed-cart/encryption"
	"committed-cart/models"
	"committed-cart/service"
)

type Server struct {
	carts  *service.CartService
	rounds service.RoundSource
}

type CartRequest struct {
	RoundAddress       string `json:"round_address"`
	EncryptionKey      string `json:"encryption_key"`
	ContributorAddress string `json:"contributor_address"`
}

type CartResponse struct {
	RoundAddress       common.Address     `json:"round_address"`
	ContributorAddress common.Address     `json:"contributor_address"`
	Items              []*models.CartItem `json:"items"`
}

func NewServer(carts *service.CartService, rounds service.RoundSource) *Server {
	return &Server{
		carts:  carts,
		rounds: rounds,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/cart", s.handleGetCart)
	r.Get("/api/rounds/{address}", s.handleGetRound)
	r.Get("/api/metrics", s.handleGetMetrics)
}

// Handler returns the routes wrapped in request id, panic recovery and
// request logging middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(assignRequestID)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	s.RegisterRoutes(r)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting cart API", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down cart API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req CartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.RoundAddress) {
		http.Error(w, "Invalid round address", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.ContributorAddress) {
		http.Error(w, "Invalid contributor address", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.EncryptionKey) == "" {
		http.Error(w, "Encryption key is required", http.StatusBadRequest)
		return
	}

	roundAddress := common.HexToAddress(req.RoundAddress)
	contributor := common.HexToAddress(req.ContributorAddress)

	round, ok := s.lookupRound(w, r, roundAddress)
	if !ok {
		return
	}

	items, err := s.carts.GetCommittedCart(r.Context(), round, req.EncryptionKey, contributor)
	if err != nil {
		if errors.Is(err, encryption.ErrEmptySeed) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to reconstruct cart: %v", err), http.StatusBadGateway)
		return
	}

	writeJSON(w, CartResponse{
		RoundAddress:       roundAddress,
		ContributorAddress: contributor,
		Items:              items,
	})
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !common.IsHexAddress(address) {
		http.Error(w, "Invalid round address", http.StatusBadRequest)
		return
	}

	round, ok := s.lookupRound(w, r, common.HexToAddress(address))
	if !ok {
		return
	}
	writeJSON(w, round)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.carts.Metrics().GetMetrics())
}

func (s *Server) lookupRound(w http.ResponseWriter, r *http.Request, address common.Address) (*models.RoundInfo, bool) {
	round, err := s.rounds.RoundInfo(r.Context(), address)
	if errors.Is(err, service.ErrRoundNotFound) {
		http.Error(w, "Round not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load round: %v", err), http.StatusBadGateway)
		return nil, false
	}
	return round, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "err", err)
	}
}
