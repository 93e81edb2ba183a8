package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"medinearby/internal/catalog"
	"medinearby/internal/excel"
	"medinearby/internal/geo"
	"medinearby/internal/jobs"
	"medinearby/internal/models"
)

func (s *Server) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "categories": models.Categories})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.vm.State())
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) setQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s.vm.SetQuery(req.Query)
	c.JSON(http.StatusOK, s.vm.State())
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) setCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s.vm.SetCategory(req.Category)
	c.JSON(http.StatusOK, s.vm.State())
}

// locateRequest carries what the client's own geolocation produced. An empty
// body means the client has no position to offer.
type locateRequest struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Denied      bool     `json:"denied"`
	Unsupported bool     `json:"unsupported"`
}

func (s *Server) platformFor(c *gin.Context, req locateRequest) geo.Platform {
	switch {
	case req.Denied:
		return geo.Denied()
	case req.Unsupported:
		return geo.Unavailable()
	case req.Lat != nil && req.Lng != nil:
		return geo.Reported(models.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
	case s.ipLocator != nil:
		return s.ipLocator.ForIP(c.ClientIP())
	default:
		return nil
	}
}

func (s *Server) locate(c *gin.Context) {
	var req locateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	var reported models.Coordinate
	if req.Lat != nil {
		reported.Lat = *req.Lat
	}
	if req.Lng != nil {
		reported.Lng = *req.Lng
	}
	if !reported.Valid() {
		respondWithError(c, http.StatusBadRequest, "coordinate out of range")
		return
	}

	coord := s.vm.Locate(c.Request.Context(), s.platformFor(c, req))
	c.JSON(http.StatusOK, gin.H{"ok": true, "coordinate": coord, "state": s.vm.State()})
}

func (s *Server) selectProvider(c *gin.Context) {
	var key models.Key
	if err := c.ShouldBindJSON(&key); err != nil || key.Source == "" || key.ID == "" {
		respondWithError(c, http.StatusBadRequest, "source and id are required")
		return
	}
	s.vm.Select(key)
	c.JSON(http.StatusOK, s.vm.State())
}

func (s *Server) clearSelection(c *gin.Context) {
	s.vm.ClearSelection()
	c.JSON(http.StatusOK, s.vm.State())
}

// stream pushes every new view state as an SSE "state" event.
func (s *Server) stream(c *gin.Context) {
	ctx := c.Request.Context()
	states := s.vm.Watch(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("connected", gin.H{"timestamp": time.Now()})
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("client_ip", c.ClientIP()).Msg("stream client disconnected")
			return
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": time.Now()})
			c.Writer.Flush()
		case state, ok := <-states:
			if !ok {
				return
			}
			c.SSEvent("state", state)
			c.Writer.Flush()
		}
	}
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "message is required")
		return
	}
	reply := s.responder.Respond(req.Message, s.vm.Catalog().Providers(), s.vm.User())
	c.JSON(http.StatusOK, gin.H{"ok": true, "reply": reply})
}

func (s *Server) importSpec() (catalog.SourceSpec, bool) {
	for _, spec := range s.merger.Specs() {
		if spec.ID == s.opts.ImportSource {
			return spec, true
		}
	}
	return catalog.SourceSpec{}, false
}

// importWorkbook stores the uploaded workbook and folds its sheet into the
// import source in a background job.
func (s *Server) importWorkbook(c *gin.Context) {
	spec, ok := s.importSpec()
	if !ok {
		respondWithError(c, http.StatusBadRequest, "workbook import is not enabled")
		return
	}

	file, err := c.FormFile("input_file")
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "input_file is required")
		return
	}
	sheet := c.DefaultPostForm("sheet", spec.ID)

	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create upload dir")
		respondWithError(c, http.StatusInternalServerError, "could not store upload")
		return
	}
	inputPath := filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		log.Error().Err(err).Msg("failed to save upload")
		respondWithError(c, http.StatusInternalServerError, "could not store upload")
		return
	}

	job := s.jobs.Start(func(job *jobs.Job) (*jobs.Result, error) {
		job.Log(fmt.Sprintf("Processing file: %s", filepath.Base(inputPath)))

		f, err := excel.OpenFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("could not open workbook: %w", err)
		}
		defer f.Close()

		job.Log(fmt.Sprintf("Reading sheet %s...", sheet))
		records, err := excel.ReadSheet(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("could not read sheet %s: %w", sheet, err)
		}
		job.SetProgress(1, 2, fmt.Sprintf("%d rows read.", len(records)))

		if err := s.merger.ApplySnapshot(spec.ID, spec.Stamp(records)); err != nil {
			return nil, fmt.Errorf("could not apply snapshot: %w", err)
		}
		return &jobs.Result{Source: spec.ID, Rows: len(records), Sheet: sheet}, nil
	})

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

func (s *Server) job(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusNotFound, "job not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "job": job.View()})
}

func (s *Server) export(c *gin.Context) {
	state := s.vm.State()

	f, err := excel.BuildResult(state.Results, "Results")
	if err != nil {
		log.Error().Err(err).Msg("failed to build export")
		respondWithError(c, http.StatusInternalServerError, "export failed")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("results_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("failed to write export")
	}
}
