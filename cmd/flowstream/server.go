package main

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
	"github.com/randalmurphal/flowstream/pkg/flowstream/snapshot"
)

// router builds the HTTP surface:
//
//	POST /events  - process a batch ({"events": [...]})
//	GET  /events  - index snapshot, filtered by ?host=, ?service=, ?state=
//	GET  /healthz - liveness and sizes
//	GET  /metrics - Prometheus exposition, when metrics are enabled
//
//	GET    /snapshots       - list saved index snapshots
//	POST   /snapshots/:name - save the current index as name
//	GET    /snapshots/:name - events of a snapshot
//	DELETE /snapshots/:name - remove a snapshot
func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(a.logger))

	r.POST("/events", a.handlePostEvents)
	r.GET("/events", a.handleGetEvents)
	r.GET("/healthz", a.handleHealth)

	snaps := r.Group("/snapshots")
	snaps.GET("", a.handleListSnapshots)
	snaps.POST("/:name", a.handleSaveSnapshot)
	snaps.GET("/:name", a.handleGetSnapshot)
	snaps.DELETE("/:name", a.handleDeleteSnapshot)
	if a.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(a.metricsHandler))
	}
	return r
}

func (a *app) handlePostEvents(c *gin.Context) {
	var msg event.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.streams.ProcessMessage(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"events": len(msg.Events),
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"events": len(msg.Events)})
}

func (a *app) handleGetEvents(c *gin.Context) {
	host, service, state := c.Query("host"), c.Query("service"), c.Query("state")

	events := a.index.AllEvents()
	events = slices.DeleteFunc(events, func(e event.Event) bool {
		return (host != "" && e.Host != host) ||
			(service != "" && e.Service != service) ||
			(state != "" && e.State != state)
	})
	sortByKey(events)

	c.JSON(http.StatusOK, event.Message{Events: events})
}

func (a *app) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"roots":  a.streams.Len(),
		"events": a.index.Len(),
	})
}

func (a *app) handleListSnapshots(c *gin.Context) {
	infos, err := a.snapshots.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": infos})
}

func (a *app) handleSaveSnapshot(c *gin.Context) {
	name := c.Param("name")
	events := a.index.AllEvents()
	if err := a.snapshots.Save(name, a.sched.Now(), events); err != nil {
		c.JSON(snapshotStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name, "events": len(events)})
}

func (a *app) handleGetSnapshot(c *gin.Context) {
	events, err := a.snapshots.Load(c.Param("name"))
	if err != nil {
		c.JSON(snapshotStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event.Message{Events: events})
}

func (a *app) handleDeleteSnapshot(c *gin.Context) {
	if err := a.snapshots.Delete(c.Param("name")); err != nil {
		c.JSON(snapshotStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func snapshotStatus(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, snapshot.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sortByKey(events []event.Event) {
	slices.SortFunc(events, func(x, y event.Event) int {
		return strings.Compare(event.Key(x), event.Key(y))
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := observability.TimedOperation()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Float64("duration_ms", done()),
		)
	}
}
