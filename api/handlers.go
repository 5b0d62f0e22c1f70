/*
handlers.go - HTTP API handlers for the invoice engine

PURPOSE:
  Exposes the vendor invoice lifecycle engine via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Actions:
    POST   /api/invoices/actions              Apply a lifecycle action

  Documents:
    GET    /api/invoices/{docNo}              Document + recomputed amounts
    GET    /api/invoices/{docNo}/history      Send-back/reject history
    GET    /api/invoices/{docNo}/sendback-levels  Legal send-back targets

  Queues:
    GET    /api/inbox?actorId=                Approver inbox
    GET    /api/worklist?acCode=              Originator drafts + send-backs

  Reports:
    GET    /api/reports/register?acCode=&from=&to=
    GET    /api/reports/outstanding?acCode=
    GET    /api/reports/status?acCode=

  Reference documents:
    GET    /api/refdocs/{refDocNo}/items      Lines for seeding a draft

ERROR HANDLING:
  Errors map to HTTP status by engine category:
  - 400: validation, policy violation, routing, illegal transition
  - 403: authorization
  - 404: unknown document
  - 409: concurrent modification (retry the whole action)
  - 500: persistence failure
  Action errors come back as {"ok": false, "reason": ...} so the caller
  of the action endpoint has one shape to handle.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/invoice-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Lifecycle *engine.Lifecycle
	Docs      engine.DocumentStore
	RefDocs   engine.RefDocStore

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new handler around the lifecycle service.
func NewHandler(lc *engine.Lifecycle, docs engine.DocumentStore, refDocs engine.RefDocStore, log zerolog.Logger) *Handler {
	return &Handler{
		Lifecycle: lc,
		Docs:      docs,
		RefDocs:   refDocs,
		validate:  validator.New(),
		log:       log,
	}
}

// =============================================================================
// ACTION ENDPOINT
// =============================================================================

// ApplyAction handles POST /api/invoices/actions.
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.actionError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.actionError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := engine.ActionInput{
		Action:   engine.Action(req.Action),
		ActorID:  req.ActorID,
		Remark:   req.Remark,
		Document: toDocument(req.Document),
	}
	if req.TargetLevel != nil {
		lvl := engine.FlowLevel(*req.TargetLevel)
		in.TargetLevel = &lvl
	}

	result, err := h.Lifecycle.Apply(r.Context(), in)
	if err != nil {
		h.log.Warn().
			Str("action", req.Action).
			Str("actor", req.ActorID).
			Str("docNo", req.Document.DocNo).
			Err(err).
			Msg("action rejected")
		h.actionError(w, statusFor(err), err.Error())
		return
	}

	h.log.Info().
		Str("action", req.Action).
		Str("actor", req.ActorID).
		Str("docNo", result.DocNo).
		Str("newState", string(result.NewState)).
		Int("flowLevel", int(result.FlowLevel)).
		Msg("action applied")

	writeJSON(w, http.StatusOK, ActionResponse{
		OK:        true,
		DocNo:     result.DocNo,
		NewState:  string(result.NewState),
		FlowLevel: int(result.FlowLevel),
	})
}

func (h *Handler) actionError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, ActionResponse{OK: false, Reason: reason})
}

// statusFor maps an engine error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case engine.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// DOCUMENT ENDPOINTS
// =============================================================================

// GetDocument handles GET /api/invoices/{docNo}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docNo := chi.URLParam(r, "docNo")
	doc, err := h.Docs.Get(r.Context(), docNo)
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromDocument(doc))
}

// GetHistory handles GET /api/invoices/{docNo}/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	docNo := chi.URLParam(r, "docNo")
	entries, err := h.Docs.History(r.Context(), docNo)
	if err != nil {
		h.queryError(w, err)
		return
	}

	dtos := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, HistoryEntryDTO{
			Action:    string(e.Action),
			Remark:    e.Remark,
			Actor:     e.Actor,
			FromLevel: int(e.FromLevel),
			ToLevel:   int(e.ToLevel),
			At:        e.At.Format(time.RFC3339),
			Display:   e.Display(),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSendBackLevels handles GET /api/invoices/{docNo}/sendback-levels.
func (h *Handler) GetSendBackLevels(w http.ResponseWriter, r *http.Request) {
	docNo := chi.URLParam(r, "docNo")
	actorID := r.URL.Query().Get("actorId")

	levels, err := h.Lifecycle.SendBackLevels(r.Context(), docNo, actorID)
	if err != nil {
		h.queryError(w, err)
		return
	}

	out := make([]int, len(levels))
	for i, lvl := range levels {
		out[i] = int(lvl)
	}
	writeJSON(w, http.StatusOK, map[string]any{"docNo": docNo, "levels": out})
}

// =============================================================================
// QUEUE ENDPOINTS
// =============================================================================

// GetInbox handles GET /api/inbox?actorId=.
func (h *Handler) GetInbox(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actorId")
	if actorID == "" {
		writeError(w, http.StatusBadRequest, "actorId is required")
		return
	}

	docs, err := h.Lifecycle.Inbox(r.Context(), actorID)
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentList(docs))
}

// GetWorklist handles GET /api/worklist?acCode=.
func (h *Handler) GetWorklist(w http.ResponseWriter, r *http.Request) {
	acCode := r.URL.Query().Get("acCode")
	if acCode == "" {
		writeError(w, http.StatusBadRequest, "acCode is required")
		return
	}

	docs, err := h.Docs.ListWorklist(r.Context(), acCode)
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentList(docs))
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetRegister handles GET /api/reports/register?acCode=&from=&to=.
func (h *Handler) GetRegister(w http.ResponseWriter, r *http.Request) {
	docs, ok := h.postedDocs(w, r)
	if !ok {
		return
	}
	rows, totals := engine.ProjectRegister(docs)
	writeJSON(w, http.StatusOK, fromStatement(rows, totals))
}

// GetOutstanding handles GET /api/reports/outstanding?acCode=.
func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	docs, ok := h.postedDocs(w, r)
	if !ok {
		return
	}
	rows, totals := engine.ProjectOutstanding(docs)
	writeJSON(w, http.StatusOK, fromStatement(rows, totals))
}

// GetStatus handles GET /api/reports/status?acCode=.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	docs, ok := h.postedDocs(w, r)
	if !ok {
		return
	}

	rows := engine.ProjectStatus(docs)
	dtos := make([]StatusRowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, StatusRowDTO{
			DocNo:         row.DocNo,
			RefDocNo:      row.RefDocNo,
			InvoiceNumber: row.InvoiceNumber,
			DocDate:       formatDate(row.DocDate),
			LastAction:    string(row.LastAction),
			FlowLevel:     int(row.FlowLevel),
			FinalAmount:   row.Totals.FinalAmount,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// postedDocs resolves the account's posted documents for a report query.
func (h *Handler) postedDocs(w http.ResponseWriter, r *http.Request) ([]*engine.InvoiceRequest, bool) {
	acCode := r.URL.Query().Get("acCode")
	if acCode == "" {
		writeError(w, http.StatusBadRequest, "acCode is required")
		return nil, false
	}
	from := parseDate(r.URL.Query().Get("from"))
	to := parseDate(r.URL.Query().Get("to"))

	docs, err := h.Docs.ListPosted(r.Context(), acCode, from, to)
	if err != nil {
		h.queryError(w, err)
		return nil, false
	}
	return docs, true
}

// =============================================================================
// REFERENCE DOCUMENTS
// =============================================================================

// GetRefItems handles GET /api/refdocs/{refDocNo}/items.
func (h *Handler) GetRefItems(w http.ResponseWriter, r *http.Request) {
	refDocNo := chi.URLParam(r, "refDocNo")

	pdo, lines, err := h.RefDocs.RefLines(r.Context(), refDocNo)
	if err != nil {
		h.queryError(w, err)
		return
	}

	items := engine.LinesFromRef(lines, pdo)
	resp := RefItemsResponse{RefDocNo: refDocNo, PdoType: string(pdo)}
	for _, item := range items {
		resp.Items = append(resp.Items, LineItemDTO{
			SerialNo:    item.SerialNo,
			Description: item.Description,
			OriginalQty: item.OriginalQty,
			PdoType:     string(item.PdoType),
			Qty:         item.Qty,
			Price:       item.Price,
			TaxPercent1: item.TaxPercent1,
			CurrCode:    item.CurrCode,
			ExRate:      item.ExRate,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) queryError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("query failed")
	}
	writeError(w, status, err.Error())
}

func documentList(docs []*engine.InvoiceRequest) []*DocumentDTO {
	out := make([]*DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
