package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/auctionlab/bidding-engine-go/bidengine"
)

type server struct {
	engine   *bidengine.Engine
	logger   bidengine.Logger
	upgrader websocket.Upgrader
}

type bidRequest struct {
	ItemID     string `json:"itemId"`
	Amount     int64  `json:"amount"`
	BidderID   string `json:"bidderId"`
	BidderName string `json:"bidderName"`
}

type bidResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CurrentPrice int64  `json:"currentPrice"`
}

type priceResponse struct {
	ItemID string `json:"itemId"`
	Price  int64  `json:"price"`
}

type simulationRequest struct {
	Enabled bool `json:"enabled"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func newServer(engine *bidengine.Engine, logger bidengine.Logger) *server {
	return &server{
		engine:   engine,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bids", s.handleBid)
	mux.HandleFunc("GET /price", s.handlePrice)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /simulation", s.handleSimulation)
	mux.HandleFunc("GET /ws", s.handleStream)

	return mux
}

func (s *server) handleBid(w http.ResponseWriter, r *http.Request) {
	var request bidRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := s.engine.ProposeBid(r.Context(), request.ItemID, request.Amount, request.BidderID, request.BidderName)

	writeJSON(w, bidResponse{
		Success:      result.Success,
		Message:      result.Message,
		CurrentPrice: result.CurrentPrice,
	})
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item")

	price, found := s.engine.GetCurrentPrice(itemID)
	if !found {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	writeJSON(w, priceResponse{ItemID: itemID, Price: price})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item")

	if _, found := s.engine.GetCurrentPrice(itemID); !found {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	history := s.engine.GetHistory(itemID)
	if history == nil {
		history = []bidengine.BidRecord{}
	}

	writeJSON(w, history)
}

func (s *server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var request simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.engine.SetSimulationEnabled(r.Context(), request.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

// handleStream bridges engine updates onto a websocket connection. Each
// connection is one engine subscriber; closing the connection unsubscribes,
// and the engine stops the simulation when the last observer leaves.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var writeMu sync.Mutex

	unsubscribe := s.engine.Subscribe(func(update bidengine.Update) {
		writeMu.Lock()
		defer writeMu.Unlock()

		if writeErr := conn.WriteJSON(outboundMessage{Type: "price_update", Data: update}); writeErr != nil {
			s.logger.Debug("websocket write failed", "error", writeErr.Error())
		}
	})
	defer unsubscribe()
	defer func() { _ = conn.Close() }()

	// Drain the connection until the client goes away.
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encoding response failed", http.StatusInternalServerError)
	}
}
