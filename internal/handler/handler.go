// Package handler exposes the print pipeline over HTTP to the POS front-end.
// The front-end only ever sees {success, error} result bodies; byte buffers
// and device handles stay below this boundary.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/domain/receipt"
	"github.com/platewise/printd/internal/printer"
	"github.com/platewise/printd/internal/settings"
	"github.com/platewise/printd/internal/usb"
)

// Handler routes print API requests to the dispatcher and device session.
type Handler struct {
	dispatcher *printer.Dispatcher
	session    *usb.Session
	store      settings.Store
}

// New constructs a Handler.
func New(dispatcher *printer.Dispatcher, session *usb.Session, store settings.Store) *Handler {
	return &Handler{dispatcher: dispatcher, session: session, store: store}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /print", h.print)
	mux.HandleFunc("POST /printer/test", h.testPrint)
	mux.HandleFunc("POST /printer/connect", h.connect)
	mux.HandleFunc("POST /printer/disconnect", h.disconnect)
	mux.HandleFunc("GET /printer/status", h.status)
	mux.HandleFunc("GET /settings", h.getSettings)
	mux.HandleFunc("PUT /settings", h.putSettings)
}

// printResult is the uniform response body for print operations.
type printResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	Copies  int    `json:"copies,omitempty"`
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	var doc receipt.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, printResult{Error: "malformed JSON: " + err.Error()})
		return
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = time.Now()
	}
	h.dispatch(w, r, &doc)
}

func (h *Handler) testPrint(w http.ResponseWriter, r *http.Request) {
	doc := receipt.Document{
		Kind:     receipt.KindTest,
		IssuedAt: time.Now(),
	}
	_ = json.NewDecoder(r.Body).Decode(&doc.Business) // body is optional
	h.dispatch(w, r, &doc)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, doc *receipt.Document) {
	ctx := r.Context()

	cfg, err := h.store.Load(ctx)
	if err != nil {
		zctx.From(ctx).Error("settings load failed", zap.Error(err))
		cfg = settings.Default()
	}

	rep, err := h.dispatcher.Dispatch(ctx, doc, cfg)
	if err != nil {
		writeJSON(w, statusFor(err), printResult{Error: err.Error(), Copies: rep.CopiesPrinted})
		return
	}
	writeJSON(w, http.StatusOK, printResult{
		Success: true,
		Channel: rep.Channel,
		Copies:  rep.CopiesPrinted,
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Connect(r.Context()); err != nil {
		writeJSON(w, statusFor(err), printResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, printResult{Success: true})
}

func (h *Handler) disconnect(w http.ResponseWriter, _ *http.Request) {
	h.session.Disconnect()
	writeJSON(w, http.StatusOK, printResult{Success: true})
}

// statusResponse describes the device session for the settings screen.
type statusResponse struct {
	State     string  `json:"state"`
	VendorID  *uint16 `json:"vendor_id,omitempty"`
	ProductID *uint16 `json:"product_id,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{State: h.session.State().String()}
	if desc, ok := h.session.Descriptor(); ok {
		resp.VendorID = &desc.VendorID
		resp.ProductID = &desc.ProductID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, printResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, printResult{Error: "malformed JSON: " + err.Error()})
		return
	}
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, printResult{Error: err.Error()})
		return
	}
	if err := h.store.Save(r.Context(), cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, printResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, printResult{Success: true})
}

// statusFor maps pipeline errors onto HTTP status codes while keeping the
// body shape uniform.
func statusFor(err error) int {
	switch {
	case errors.Is(err, receipt.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, printer.ErrDisabled),
		errors.Is(err, usb.ErrAlreadyConnecting):
		return http.StatusConflict
	case errors.Is(err, usb.ErrNotSupported), errors.Is(err, usb.ErrAccessDenied):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
