package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shopflow/internal/contracts"
	"shopflow/internal/order"
	"shopflow/internal/trace"
)

type OrderServer struct {
	orderSvc *order.Service
	trace    *trace.Store
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewOrderServer(orderSvc *order.Service, traceStore *trace.Store, logger *slog.Logger) *OrderServer {
	s := &OrderServer{
		orderSvc: orderSvc,
		trace:    traceStore,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *OrderServer) routes() {
	s.mux.HandleFunc("POST /orders", s.createOrder)
	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("GET /orders/{orderID}", s.getOrder)
	mountTrace(s.mux, s.trace)
}

func (s *OrderServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// HandleFunc registers extra routes, such as the websocket endpoint.
func (s *OrderServer) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

type createOrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type createOrderRequest struct {
	CustomerID string            `json:"customerId"`
	Items      []createOrderItem `json:"items"`
}

func (s *OrderServer) createOrder(w http.ResponseWriter, r *http.Request) {
	traceID := r.Header.Get(contracts.TraceHeader)

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	// Recorded before validation, so the wording must hold for commands
	// that end up rejected.
	s.trace.Record(traceID, "Order:Create: request received")

	o, err := s.orderSvc.Create(r.Context(), customerID, items, traceID)
	if err != nil {
		if errors.Is(err, order.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("create order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (s *OrderServer) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(r.URL.Query().Get("customerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	orders, err := s.orderSvc.List(r.Context(), customerID)
	if err != nil {
		s.logger.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *OrderServer) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.orderSvc.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error("get order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, o)
}
