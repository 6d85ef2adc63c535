package httpadapter

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen --config=oapi-codegen.yaml ../../../api/openapi.yaml

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"

	"dealscore/api"
	"dealscore/internal/domain"
	"dealscore/internal/ports"
	"dealscore/internal/workers/recalcrunner"
)

// SourceManual labels recalculations requested through the API.
const SourceManual = "manual"

const inlineTimeout = 30 * time.Second

// Server serves the recommendation API and the notification tracking endpoints.
type Server struct {
	recs    ports.Recommendations
	engage  ports.Engagement
	trigger ports.Trigger
	recalc  ports.Recalculator
}

func New(recs ports.Recommendations, engage ports.Engagement, trigger ports.Trigger, recalc ports.Recalculator) *Server {
	return &Server{recs: recs, engage: engage, trigger: trigger, recalc: recalc}
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.GetHealthz)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/recommendations", func(r chi.Router) {
		r.Post("/", s.PostRecommendation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/status", s.GetStatus)
			r.Post("/status", s.PostStatus)
			r.Get("/audit", s.GetAuditTrail)
			r.Post("/recalculate", s.PostRecalculate)
			r.Post("/invites", s.PostInvite)
			r.Post("/communications", s.PostCommunication)
		})
	})

	r.Route("/t", func(r chi.Router) {
		r.Get("/open/{inviteID}", s.GetOpenPixel)
		r.Post("/view/{inviteID}", s.PostProposalView)
	})
	return r
}

func (s *Server) GetHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.Spec)
}

func (s *Server) PostRecommendation(w http.ResponseWriter, r *http.Request) {
	var req CreateRecommendationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.recs.Create(r.Context(), domain.Recommendation{
		Title:           req.Title,
		CreatedBy:       req.CreatedBy,
		WeightedMonthly: req.WeightedMonthly,
		WeightedOnetime: req.WeightedOnetime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecommendation(rec))
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	view, err := s.recs.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatus(view))
}

func (s *Server) PostStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := domain.Actor{ID: r.Header.Get("X-Actor-ID"), Role: r.Header.Get("X-Actor-Role")}
	rec, err := s.recs.ChangeStatus(r.Context(), actor, id, to, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendation(rec))
}

func (s *Server) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	trail, err := s.recs.AuditTrail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrail(trail))
}

// PostRecalculate queues a rescore, or with ?wait=true runs it inline and
// returns the fresh status.
func (s *Server) PostRecalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid wait: " + err.Error()})
		return
	}
	if _, err := s.recs.Status(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if wait == nil || !*wait {
		s.trigger.Trigger(id, SourceManual)
		writeJSON(w, http.StatusAccepted, RecalculateAccepted{RecommendationID: id, Queued: true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), inlineTimeout)
	defer cancel()
	// Same recalculator the workers use.
	if err := recalcrunner.ProcessInline(ctx, s.recalc, id, SourceManual); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.recs.Status(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatus(view))
}

func (s *Server) PostInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req AddInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inv, err := s.recs.AddInvite(r.Context(), id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, InviteResponse{
		ID:               inv.ID,
		RecommendationID: inv.RecommendationID,
		Email:            inv.Email,
		SentAt:           inv.SentAt,
		CreatedAt:        inv.CreatedAt,
	})
}

func (s *Server) PostCommunication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var req LogCommunicationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comm := domain.Communication{
		RecommendationID: id,
		Direction:        domain.Direction(req.Direction),
		Channel:          req.Channel,
		Source:           req.Source,
	}
	if req.ContactAt != nil {
		comm.ContactAt = *req.ContactAt
	}
	if err := s.engage.LogCommunication(r.Context(), &comm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommunicationResponse{
		ID:               comm.ID,
		RecommendationID: comm.RecommendationID,
		Direction:        comm.Direction,
		Channel:          comm.Channel,
		ContactAt:        comm.ContactAt,
		Source:           comm.Source,
	})
}

// transparent 1x1 GIF
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// GetOpenPixel always answers with the pixel; mail clients must never see
// an error, whatever happened to the open event.
func (s *Server) GetOpenPixel(w http.ResponseWriter, r *http.Request) {
	inviteID := chi.URLParam(r, "inviteID")
	if err := s.engage.EmailOpened(r.Context(), inviteID, time.Time{}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Printf("tracking pixel: invite %s: %v", inviteID, err)
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixel)
}

func (s *Server) PostProposalView(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := pathParam(w, r, "inviteID")
	if !ok {
		return
	}
	if err := s.engage.ProposalViewed(r.Context(), inviteID, time.Time{}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: err.Error()})
		return "", false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "missing body"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Anything unexpected is
// logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, APIError{Error: verr.Message})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, APIError{Error: "not found"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, APIError{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, APIError{Error: err.Error()})
	default:
		log.Printf("http: %v", err)
		writeJSON(w, http.StatusInternalServerError, APIError{Error: "internal error"})
	}
}
