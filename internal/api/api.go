// Package api is the HTTP boundary: create, list and delete booking
// reminders, plus the calendar artifact and a dispatch log view. It
// holds no state of its own; everything goes through the booking
// service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"tatkald/internal/audit"
	"tatkald/internal/model"
	"tatkald/internal/store"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

// CreateResult reports what happened when an entry was created: which
// timers were actually armed and the resolved instants, so callers can
// tell a scheduled reminder from one whose window already passed.
type CreateResult struct {
	Entry    model.Entry     `json:"entry"`
	Instants tatkal.Instants `json:"instants"`
	PreArmed bool            `json:"preArmed"`
	T0Armed  bool            `json:"t0Armed"`
}

// Service is the booking core the handlers call into.
type Service interface {
	Create(ctx context.Context, e model.Entry) (CreateResult, error)
	List(ctx context.Context) ([]model.Entry, error)
	Delete(ctx context.Context, id string) error
	Dispatches(ctx context.Context, n int) ([]audit.Dispatch, error)
}

type Handler struct {
	log          logx.Logger
	svc          Service
	validate     *validator.Validate
	calendarPath string
}

func NewHandler(svc Service, calendarPath string, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		log:          log,
		svc:          svc,
		validate:     validator.New(),
		calendarPath: calendarPath,
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Post("/api/tatkal", h.create)
	r.Get("/api/list", h.list)
	r.Delete("/api/tatkal/{id}", h.delete)
	r.Get("/api/dispatches", h.dispatches)
	r.Get("/calendar.ics", h.calendar)
	r.Get("/healthz", h.health)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(logx.String("req_id", middleware.GetReqID(r.Context())))

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("create: bad request body", logx.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, respError("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Warn("create: validation failed", logx.String("detail", validationMessage(verrs)))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, respError(validationMessage(verrs)))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, respError("invalid request"))
		return
	}

	entry := model.Entry{
		Date:         req.Date,
		Train:        req.Train,
		From:         req.From,
		To:           req.To,
		TravelClass:  req.Class,
		Category:     req.TatkalType,
		Passengers:   req.passengers(),
		NotifyTarget: req.NotifyTarget,
	}

	res, err := h.svc.Create(r.Context(), entry)
	if err != nil {
		if errors.Is(err, tatkal.ErrInvalidCategory) || errors.Is(err, tatkal.ErrInvalidDate) {
			log.Warn("create: rejected", logx.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, respError(err.Error()))
			return
		}
		log.Error("create failed", logx.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, respError("could not create entry"))
		return
	}

	log.Info("entry created",
		logx.String("id", res.Entry.ID),
		logx.Bool("pre_armed", res.PreArmed),
		logx.Bool("t0_armed", res.T0Armed))
	render.JSON(w, r, respOK(res))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		h.log.Error("list failed", logx.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, respError("could not list entries"))
		return
	}
	render.JSON(w, r, respOK(map[string]any{"entries": entries, "count": len(entries)}))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.svc.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, respError("not found"))
			return
		}
		h.log.Error("delete failed", logx.String("id", id), logx.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, respError("could not delete entry"))
		return
	}
	h.log.Info("entry deleted", logx.String("id", id))
	render.JSON(w, r, respOK(nil))
}

func (h *Handler) dispatches(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Dispatches(r.Context(), 100)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, respError("dispatch log unavailable"))
		return
	}
	render.JSON(w, r, respOK(map[string]any{"dispatches": items}))
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	b, err := os.ReadFile(h.calendarPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "no calendar yet", http.StatusNotFound)
			return
		}
		http.Error(w, "calendar unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tatkal-events.ics"`)
	_, _ = w.Write(b)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, respOK(map[string]any{"time": time.Now().UTC()}))
}
