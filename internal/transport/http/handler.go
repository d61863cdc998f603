// Package httptransport is the thin HTTP layer. Handlers translate wire
// requests into the admission service's types and back; policy lives in
// the service, not here.
package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"dilldrill/internal/admission"
	"dilldrill/internal/admission/models"
	"dilldrill/internal/catalog"
	"dilldrill/internal/export"
	"dilldrill/internal/friction"
	"dilldrill/internal/geo"
	"dilldrill/internal/i18n"
	"dilldrill/internal/spatial"
	pkgerrors "dilldrill/pkg/errors"
)

type Handler struct {
	service  *admission.Service
	verifier friction.Verifier
	cat      *catalog.Catalog
	bbox     geo.BBox
	secure   bool
	logger   *slog.Logger
}

func NewHandler(service *admission.Service, verifier friction.Verifier, cat *catalog.Catalog, bbox geo.BBox, env string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		verifier: verifier,
		cat:      cat,
		bbox:     bbox,
		secure:   env == "production",
		logger:   logger,
	}
}

// lastResults is the replay state for KMZ downloads, stored client-side so
// the server keeps no per-user search history.
type lastResults struct {
	IDs []string `json:"ids"`
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
}

func (h *Handler) handleFindNearest(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	var req findNearestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "malformed request body"))
		return
	}

	center, err := parseCoordinates(req.Coordinates)
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.bbox.Contains(center) {
		writeError(w, pkgerrors.New(pkgerrors.CodeInvalidInput, "coordinates outside the service area"))
		return
	}

	frictionPassed := false
	if req.TurnstileToken != "" {
		frictionPassed, err = h.verifier.Verify(r.Context(), req.TurnstileToken, id.IP)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	rc := models.RequestContext{
		AnonID:          id.AnonID,
		Tier:            id.Tier,
		TrustedOverride: id.TrustedOverride,
		FrictionPassed:  frictionPassed,
		AreaCode:        geo.AreaCode(center),
	}

	decision, selected, err := h.service.Search(r.Context(), rc, center)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed() {
		writeVerdict(w, decision)
		return
	}

	h.setLastResultsCookie(w, selected, center)
	writeJSON(w, http.StatusOK, findNearestResponse{
		Decision: decision,
		Results:  toResults(selected, req.IncludeCoordinates, export.MapsLink),
	})
}

func (h *Handler) handleDownloadKMZ(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	state, err := h.readLastResultsCookie(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rc := models.RequestContext{
		AnonID:          id.AnonID,
		Tier:            id.Tier,
		TrustedOverride: id.TrustedOverride,
		AreaCode:        geo.AreaCode(geo.Point{Lat: state.Lat, Lon: state.Lon}),
	}
	decision, err := h.service.AuthorizeExport(r.Context(), rc)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed() {
		writeVerdict(w, decision)
		return
	}

	// Stale cookie ids that left the catalog are skipped, not fatal.
	pois := make([]catalog.POI, 0, len(state.IDs))
	for _, poiID := range state.IDs {
		if p, err := h.cat.Get(poiID); err == nil {
			pois = append(pois, p)
		}
	}
	results := h.service.Distances(geo.Point{Lat: state.Lat, Lon: state.Lon}, pois)

	kmz, err := export.KMZ(results)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kmz")
	w.Header().Set("Content-Disposition", `attachment; filename="results.kmz"`)
	_, _ = w.Write(kmz)
}

func (h *Handler) handleTranslations(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = IdentityFrom(r.Context()).Lang
	}
	writeJSON(w, http.StatusOK, i18n.Translations(lang))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setLastResultsCookie(w http.ResponseWriter, selected []spatial.Candidate, center geo.Point) {
	state := lastResults{Lat: center.Lat, Lon: center.Lon}
	for _, c := range selected {
		state.IDs = append(state.IDs, c.POI.ID)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieLastResults,
		Value:    base64.URLEncoding.EncodeToString(raw),
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

func (h *Handler) readLastResultsCookie(r *http.Request) (lastResults, error) {
	c, err := r.Cookie(cookieLastResults)
	if err != nil || c.Value == "" {
		return lastResults{}, pkgerrors.New(pkgerrors.CodeBadRequest, "no previous search result found")
	}
	raw, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return lastResults{}, pkgerrors.New(pkgerrors.CodeBadRequest, "unreadable search state")
	}
	var state lastResults
	if err := json.Unmarshal(raw, &state); err != nil || len(state.IDs) == 0 {
		return lastResults{}, pkgerrors.New(pkgerrors.CodeBadRequest, "unreadable search state")
	}
	return state, nil
}
