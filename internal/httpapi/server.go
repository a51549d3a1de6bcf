package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kestrelworks/nervecenter/internal/mixture"
	"github.com/kestrelworks/nervecenter/internal/nervous"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region server
// Server exposes one HTTP endpoint per orchestrator operation, JSON bodies
// matching the journal record schemas. External collaborators go through
// this surface (or the library API); nothing touches the journal directly.
type Server struct {
	sys *nervous.System
}

// NewRouter builds the gin engine for a system.
func NewRouter(sys *nervous.System) *gin.Engine {
	s := &Server{sys: sys}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/actors", s.registerActor)
		v1.GET("/actors", s.listActors)
		v1.GET("/actors/:id", s.getActor)

		v1.POST("/events", s.recordEvent)
		v1.GET("/events", s.queryEvents)
		v1.GET("/events/:id", s.getEvent)
		v1.PATCH("/events/:id", s.updateEvent)

		v1.POST("/hypotheses", s.createHypothesis)
		v1.GET("/hypotheses", s.listHypotheses)
		v1.GET("/hypotheses/:id", s.getHypothesis)
		v1.PATCH("/hypotheses/:id", s.updateHypothesis)
		v1.POST("/hypotheses/:id/falsifiers/:index", s.recordFalsification)

		v1.GET("/consensus", s.consensus)

		v1.POST("/tests", s.createTest)
		v1.GET("/tests/:id", s.getTest)
		v1.POST("/tests/:id/results", s.recordTestResult)

		v1.GET("/attribution/:id", s.attribution)
		v1.GET("/audit/:id", s.auditTrail)
		v1.GET("/stats", s.stats)
		v1.GET("/verify", s.verify)
	}
	return r
}
// #endregion server

// #region error-mapping
// writeError maps orchestrator error kinds onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case nervous.IsNotFound(err):
		status = http.StatusNotFound
	case nervous.IsUnknownActor(err):
		status = http.StatusUnprocessableEntity
	case nervous.IsPermission(err):
		status = http.StatusForbidden
	case nervous.IsValidation(err):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
// #endregion error-mapping

// #region actor-handlers
type actorRequest struct {
	Name        string   `json:"name" binding:"required"`
	Type        string   `json:"type"`
	Permissions []string `json:"permissions"`
}

func (s *Server) registerActor(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	a, err := s.sys.RegisterActor(nervous.ActorDraft{
		Name:        req.Name,
		Type:        record.ActorType(req.Type),
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) getActor(c *gin.Context) {
	a, err := s.sys.GetActor(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) listActors(c *gin.Context) {
	actors := s.sys.ListActors()
	c.JSON(http.StatusOK, gin.H{"actors": actors, "count": len(actors)})
}
// #endregion actor-handlers

// #region event-handlers
type eventRequest struct {
	ActorID       string               `json:"actorId" binding:"required"`
	Intent        *record.IntentToken  `json:"intent"`
	Readout       *record.EventReadout `json:"readout"`
	Mixture       *mixture.Vector      `json:"mixture"`
	RelatedEvents []string             `json:"relatedEvents"`
	Metadata      map[string]any       `json:"metadata"`
}

func (s *Server) recordEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	ev, err := s.sys.RecordEvent(nervous.EventDraft{
		ActorID:       req.ActorID,
		Intent:        req.Intent,
		Readout:       req.Readout,
		Mixture:       req.Mixture,
		RelatedEvents: req.RelatedEvents,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

type eventUpdateRequest struct {
	Intent  *record.IntentToken  `json:"intent"`
	Readout *record.EventReadout `json:"readout"`
	Mixture *mixture.Vector      `json:"mixture"`
}

func (s *Server) updateEvent(c *gin.Context) {
	var req eventUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	ev, err := s.sys.UpdateEvent(c.Param("id"), nervous.EventUpdate{
		Intent:  req.Intent,
		Readout: req.Readout,
		Mixture: req.Mixture,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (s *Server) getEvent(c *gin.Context) {
	ev, err := s.sys.GetEvent(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (s *Server) queryEvents(c *gin.Context) {
	filter := nervous.EventFilter{ActorID: c.Query("actorId")}
	if v := c.Query("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time", "details": err.Error()})
			return
		}
		filter.Start = ts
	}
	if v := c.Query("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time", "details": err.Error()})
			return
		}
		filter.End = ts
	}
	events := s.sys.QueryEvents(filter)
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
// #endregion event-handlers

// #region hypothesis-handlers
type hypothesisRequest struct {
	ModelType   string          `json:"modelType" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Probability *float64        `json:"probability"`
	Falsifiers  []string        `json:"falsifiers"`
	Mixture     *mixture.Vector `json:"mixture"`
}

func (s *Server) createHypothesis(c *gin.Context) {
	var req hypothesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	h, err := s.sys.CreateHypothesis(nervous.HypothesisDraft{
		ModelType:   record.ModelType(req.ModelType),
		Description: req.Description,
		Probability: req.Probability,
		Falsifiers:  req.Falsifiers,
		Mixture:     req.Mixture,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h)
}

type hypothesisUpdateRequest struct {
	Probability  *float64 `json:"probability"`
	AddEvidence  string   `json:"addEvidence"`
	AddTest      string   `json:"addTest"`
	AddFalsifier string   `json:"addFalsifier"`
}

func (s *Server) updateHypothesis(c *gin.Context) {
	var req hypothesisUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	h, err := s.sys.UpdateHypothesis(c.Param("id"), nervous.HypothesisUpdate{
		Probability:  req.Probability,
		AddEvidence:  req.AddEvidence,
		AddTest:      req.AddTest,
		AddFalsifier: req.AddFalsifier,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) getHypothesis(c *gin.Context) {
	h, err := s.sys.GetHypothesis(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) listHypotheses(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model query parameter is required"})
		return
	}
	mt, err := record.ParseModelType(model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hyps := s.sys.HypothesesByModel(mt)
	c.JSON(http.StatusOK, gin.H{"hypotheses": hyps, "count": len(hyps)})
}

type falsificationRequest struct {
	Result *bool `json:"result" binding:"required"`
}

func (s *Server) recordFalsification(c *gin.Context) {
	var req falsificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid falsifier index"})
		return
	}
	h, err := s.sys.RecordFalsification(c.Param("id"), idx, *req.Result)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) consensus(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids query parameter is required"})
		return
	}
	ids := strings.Split(raw, ",")

	consensus, err := s.sys.Consensus(ids)
	if err != nil {
		writeError(c, err)
		return
	}
	divergence, err := s.sys.Divergence(ids)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ids":        ids,
		"consensus":  consensus,
		"divergence": divergence,
	})
}
// #endregion hypothesis-handlers

// #region test-handlers
type testRequest struct {
	Name         string         `json:"name" binding:"required"`
	HypothesisID string         `json:"hypothesisId" binding:"required"`
	TestType     string         `json:"testType"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) createTest(c *gin.Context) {
	var req testRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	to, err := s.sys.CreateTest(nervous.TestDraft{
		Name:         req.Name,
		HypothesisID: req.HypothesisID,
		TestType:     record.TestType(req.TestType),
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, to)
}

func (s *Server) getTest(c *gin.Context) {
	to, err := s.sys.GetTest(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, to)
}

// recordTestResult ingests an externally executed result. Remote callers
// run their procedures on their side; the server records outcomes.
func (s *Server) recordTestResult(c *gin.Context) {
	var res record.TestResult
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	recorded, err := s.sys.RecordTestResult(c.Param("id"), res)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recorded)
}
// #endregion test-handlers

// #region readonly-handlers
func (s *Server) attribution(c *gin.Context) {
	attr, err := s.sys.Attribution(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attr)
}

func (s *Server) auditTrail(c *gin.Context) {
	entries, err := s.sys.AuditTrail(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records for id " + c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.sys.Stats())
}

func (s *Server) verify(c *gin.Context) {
	res, err := s.sys.Verify()
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if !res.Passed {
		status = http.StatusConflict
	}
	c.JSON(status, res)
}
// #endregion readonly-handlers
