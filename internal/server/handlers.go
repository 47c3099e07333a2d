package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bosth/ottoman-routing/internal/control"
	"github.com/bosth/ottoman-routing/internal/corpus"
	"github.com/bosth/ottoman-routing/internal/route"
	"github.com/bosth/ottoman-routing/internal/selection"
	"github.com/bosth/ottoman-routing/internal/suggest"
	"github.com/bosth/ottoman-routing/internal/viewport"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Routes returns the session API router; mount it under /api.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Delete("/", s.handleDeleteSession)
		r.Get("/features", s.handleFeatures)
		r.Get("/suggest", s.handleSuggest)
		r.Post("/select", s.handleSelect)
		r.Post("/click", s.handleClick)
		r.Get("/selected", s.handleSelected)
		r.Get("/route", s.handleRoute)
		r.Get("/nodes/{id}/names", s.handleNodeNames)
		r.Post("/year", s.handleYear)
		r.Post("/viewport", s.handleViewport)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// parseRole accepts both the slot names and the UI-facing aliases.
func parseRole(s string) (selection.Role, bool) {
	switch s {
	case "source", "start":
		return selection.RoleSource, true
	case "target", "destination":
		return selection.RoleTarget, true
	}
	return 0, false
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request) (*control.Control, bool) {
	sid := chi.URLParam(r, "sid")
	ctl, ok := s.lookup(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session", map[string]interface{}{"session": sid})
		return nil, false
	}
	return ctl, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.createSession(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "corpus load failed", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if !s.deleteSession(sid) {
		writeError(w, http.StatusNotFound, "unknown session", map[string]interface{}{"session": sid})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctl.Features())
}

// suggestionRow is the JSON shape of one suggestion list row.
type suggestionRow struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	Label      string `json:"label"`
	RankLabel  string `json:"rankLabel,omitempty"`
	Selectable bool   `json:"selectable"`
	Synthetic  bool   `json:"synthetic,omitempty"`
}

func rowKindString(k suggest.RowKind) string {
	switch k {
	case suggest.RowHeading:
		return "heading"
	case suggest.RowHeader:
		return "header"
	case suggest.RowMember:
		return "member"
	}
	return "standalone"
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	role, ok := parseRole(r.URL.Query().Get("role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be start or destination", nil)
		return
	}

	rows := ctl.Search(role, r.URL.Query().Get("q"))
	out := make([]suggestionRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, suggestionRow{
			Index:      i,
			Kind:       rowKindString(row.Kind),
			ID:         row.Location.ID,
			Label:      row.Label,
			RankLabel:  row.RankLabel,
			Selectable: row.Selectable(),
			Synthetic:  row.Synthetic,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": out, "count": len(out)})
}

type selectRequest struct {
	Role  string `json:"role"`
	ID    string `json:"id,omitempty"`
	Index *int   `json:"index,omitempty"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be start or destination", nil)
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = ctl.SelectRow(role, *req.Index)
	case req.ID != "":
		err = setSlot(ctl, role, req.ID)
	default:
		err = setSlot(ctl, role, nil) // explicit clear
	}

	switch {
	case errors.Is(err, selection.ErrDuplicateEndpoint):
		writeError(w, http.StatusConflict, "node already selected for the other endpoint", map[string]interface{}{"id": req.ID})
		return
	case errors.Is(err, selection.ErrUnknownNode):
		writeError(w, http.StatusNotFound, "unknown node", map[string]interface{}{"id": req.ID})
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, selectedResponse(ctl))
}

func setSlot(ctl *control.Control, role selection.Role, v interface{}) error {
	if role == selection.RoleSource {
		return ctl.SetSource(v)
	}
	return ctl.SetTarget(v)
}

type clickRequest struct {
	Role string  `json:"role,omitempty"`
	Lng  float64 `json:"lng"`
	Lat  float64 `json:"lat"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}

	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Role != "" {
		role, ok := parseRole(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "role must be start or destination", nil)
			return
		}
		ctl.Activate(role)
	}

	loc, hit := ctl.MapClick(orb.Point{req.Lng, req.Lat})
	resp := map[string]interface{}{"hit": hit}
	if hit {
		resp["id"] = loc.ID
		resp["name"] = loc.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

type slotJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	RankLabel string `json:"rankLabel"`
}

func slotOf(loc *corpus.Location) *slotJSON {
	if loc == nil {
		return nil
	}
	return &slotJSON{ID: loc.ID, Name: loc.Name, Rank: loc.Rank, RankLabel: loc.RankLabel()}
}

func selectedResponse(ctl *control.Control) map[string]interface{} {
	sel := ctl.Selected()
	return map[string]interface{}{
		"source": slotOf(sel.Source),
		"target": slotOf(sel.Target),
	}
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, selectedResponse(ctl))
}

type segmentJSON struct {
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Line     string            `json:"line,omitempty"`
	Mode     string            `json:"mode"`
	Color    string            `json:"color"`
	Cost     float64           `json:"cost"`
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
}

type stepJSON struct {
	Kind      string `json:"kind"`
	NodeID    string `json:"nodeId,omitempty"`
	Label     string `json:"label,omitempty"`
	RankLabel string `json:"rankLabel,omitempty"`
	Terminal  string `json:"terminal,omitempty"`
	Line      string `json:"line,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Color     string `json:"color,omitempty"`
	CostLabel string `json:"cost,omitempty"`
}

type cameraJSON struct {
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	DurationMS int64      `json:"durationMs"`
}

func terminalString(t route.Terminal) string {
	switch t {
	case route.TerminalSource:
		return "source"
	case route.TerminalDestination:
		return "destination"
	}
	return ""
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}

	// Let an in-flight fetch settle before reading.
	ctl.Wait()

	res, cam, ok := ctl.Route()
	if !ok {
		sel := ctl.Selected()
		if sel.Source == nil || sel.Target == nil {
			writeError(w, http.StatusNotFound, "no route: selection incomplete", nil)
			return
		}
		writeError(w, http.StatusBadGateway, "route unavailable", map[string]interface{}{
			"source": sel.Source.ID,
			"target": sel.Target.ID,
		})
		return
	}

	segs := make([]segmentJSON, 0, len(res.Segments))
	for _, seg := range res.Segments {
		sj := segmentJSON{
			Source: seg.SourceID,
			Target: seg.TargetID,
			Line:   seg.Line,
			Mode:   seg.Mode.String(),
			Color:  seg.Color,
			Cost:   seg.Cost,
		}
		if seg.Geometry != nil {
			sj.Geometry = geojson.NewGeometry(seg.Geometry)
		}
		segs = append(segs, sj)
	}

	steps := make([]stepJSON, 0, len(res.Steps))
	for _, st := range res.Steps {
		if st.Kind == route.StepNode {
			steps = append(steps, stepJSON{
				Kind:      "node",
				NodeID:    st.NodeID,
				Label:     st.Label,
				RankLabel: st.RankLabel,
				Terminal:  terminalString(st.Terminal),
			})
			continue
		}
		steps = append(steps, stepJSON{
			Kind:      "segment",
			Line:      st.Line,
			Mode:      st.Mode.String(),
			Color:     st.Color,
			CostLabel: st.CostLabel,
		})
	}

	resp := map[string]interface{}{
		"source":    res.SourceID,
		"target":    res.TargetID,
		"segments":  segs,
		"itinerary": steps,
	}
	if cam != nil {
		resp["camera"] = cameraJSON{
			Center:     [2]float64{cam.Center[0], cam.Center[1]},
			Zoom:       cam.Zoom,
			DurationMS: cam.Duration.Milliseconds(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNodeNames(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	detail, err := ctl.NodeNames(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "node detail unavailable", map[string]interface{}{
			"id": id, "internal": err.Error(),
		})
		return
	}

	names := make([]map[string]string, 0, len(detail.Names))
	for _, n := range detail.Names {
		entry := map[string]string{"name": n.Name}
		if n.Lang != "" {
			entry["lang"] = n.Lang
		}
		names = append(names, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"names": names,
		"lines": detail.Lines,
	})
}

type yearRequest struct {
	Year int `json:"year"`
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	var req yearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Year == 0 {
		writeError(w, http.StatusBadRequest, "year is required", nil)
		return
	}
	ctl.SetYear(req.Year)
	writeJSON(w, http.StatusOK, map[string]int{"year": ctl.Year()})
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Zoom   float64 `json:"zoom"`
	Panel  struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"panel"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	ctl, ok := s.withSession(w, r)
	if !ok {
		return
	}
	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "viewport width and height are required", nil)
		return
	}
	ctl.SetViewport(
		viewport.View{Width: req.Width, Height: req.Height},
		viewport.Rect{X: req.Panel.X, Y: req.Panel.Y, Width: req.Panel.Width, Height: req.Panel.Height},
		req.Zoom,
	)
	w.WriteHeader(http.StatusNoContent)
}
