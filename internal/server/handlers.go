package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/formats"
	"github.com/tanq16/vidgrab/internal/jobs"
	"github.com/tanq16/vidgrab/internal/utils"
)

type downloadBody struct {
	URL      string `json:"url"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
	Path     string `json:"path"`
}

type urlBody struct {
	URL string `json:"url"`
}

func (s *Server) handleVideoInfo(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		writeError(c, utils.NewError(utils.KindInvalidURL, "missing url parameter"))
		return
	}
	md, err := s.prober.Probe(c.Request.Context(), rawURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.auth.CheckAccess(c.Request.Context(), c.Query("url")))
}

func (s *Server) handleAuthGet(c *gin.Context) {
	var body urlBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.WrapError(utils.KindInvalidRequest, err, "invalid JSON body"))
		return
	}
	c.JSON(http.StatusOK, s.auth.ObtainCredentials(c.Request.Context(), body.URL))
}

func (s *Server) handleDefaultPath(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"path": s.options.DefaultDir})
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, s.diag.Report(c.Request.Context()))
}

// buildRequest fills the defaults of a download body.
func (s *Server) buildRequest(body downloadBody) jobs.Request {
	dir := strings.TrimSpace(body.Path)
	if dir == "" {
		dir = s.options.DefaultDir
	}
	dir = utils.ExpandHome(dir)
	language := strings.TrimSpace(body.Language)
	if language == "" {
		language = formats.Untagged
	}
	quality := strings.TrimSpace(body.Quality)
	if quality == "" {
		quality = formats.FallbackSelector
	}
	return jobs.Request{
		URL:            strings.TrimSpace(body.URL),
		LanguageCode:   language,
		FormatID:       quality,
		DestinationDir: dir,
	}
}

// makeDestination creates dir and returns the topmost directory it had to create, if any.
func makeDestination(dir string) (string, error) {
	created := ""
	for p := filepath.Clean(dir); ; {
		if _, err := os.Stat(p); err == nil {
			break
		}
		created = p
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return created, nil
}

// submit creates the destination and starts the job. A rejected submit removes
// any directory it created.
func (s *Server) submit(c *gin.Context, req jobs.Request) (string, bool) {
	if !utils.IsHTTPURL(req.URL) {
		writeError(c, utils.NewError(utils.KindInvalidRequest, "url must be an absolute http or https address"))
		return "", false
	}
	created := ""
	if req.DestinationDir != "" {
		var err error
		if created, err = makeDestination(req.DestinationDir); err != nil {
			writeError(c, utils.WrapError(utils.KindInvalidRequest, err, "could not create destination directory"))
			return "", false
		}
	}
	id, err := s.jobs.Submit(req)
	if err != nil {
		if created != "" {
			if rmErr := os.RemoveAll(created); rmErr != nil {
				log.Warn().Str("op", "server/submit").Err(rmErr).Msgf("could not remove %s", created)
			}
		}
		writeError(c, err)
		return "", false
	}
	return id, true
}

func (s *Server) bindDownload(c *gin.Context) (jobs.Request, bool) {
	var body downloadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.WrapError(utils.KindInvalidRequest, err, "invalid JSON body"))
		return jobs.Request{}, false
	}
	return s.buildRequest(body), true
}

// handleDownload runs a job to completion within the request.
func (s *Server) handleDownload(c *gin.Context) {
	req, ok := s.bindDownload(c)
	if !ok {
		return
	}
	id, ok := s.submit(c, req)
	if !ok {
		return
	}
	job, err := s.jobs.Wait(c.Request.Context(), id)
	if err != nil {
		log.Warn().Str("op", "server/download").Err(err).Msgf("client left before job %s finished", id)
		c.Abort()
		return
	}
	if failure := job.Failure(); failure != nil {
		writeError(c, failure, gin.H{"id": job.ID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"id":       job.ID,
		"title":    job.Title,
		"filepath": job.ResultPath,
	})
}

func (s *Server) handleSubmitJob(c *gin.Context) {
	req, ok := s.bindDownload(c)
	if !ok {
		return
	}
	id, ok := s.submit(c, req)
	if !ok {
		return
	}
	job, err := s.jobs.Status(id)
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"id": id})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.List()})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	job, err := s.jobs.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.jobs.Cancel(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}

// handleJobEvents streams progress ticks as server-sent events and a final "done" event.
func (s *Server) handleJobEvents(c *gin.Context) {
	id := c.Param("id")
	ticks, unsubscribe, err := s.jobs.Subscribe(id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer unsubscribe()
	c.Stream(func(w io.Writer) bool {
		select {
		case tick, ok := <-ticks:
			if !ok {
				if job, err := s.jobs.Status(id); err == nil {
					c.SSEvent("done", job)
				}
				return false
			}
			c.SSEvent("progress", tick)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
