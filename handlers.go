package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoicescan/models"
	"invoicescan/pkg/ocr"
	"invoicescan/pkg/store"
	"invoicescan/process/batch"
)

// recordReader is the part of the store the server reads from.
type recordReader interface {
	RecentRecords(ctx context.Context, limit int) ([]models.ScanRecord, error)
	Run(ctx context.Context, runID string) (models.ScanRun, error)
}

type server struct {
	extractor *batch.Extractor
	records   recordReader // nil when no database is configured
	auth      authenticator
	maxUpload int64
	log       logrus.FieldLogger
}

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/healthz", s.healthHandler)
	r.POST("/login", s.loginHandler)
	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.POST("/extract", s.extractHandler)
	authGroup.GET("/records", s.listRecordsHandler)
	authGroup.GET("/runs/:id", s.getRunHandler)
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.auth.enabled() {
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		sub, err := s.auth.verify(authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.Set("subject", sub)
		c.Next()
	}
}

func (s *server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"engine": s.extractor.EngineName(),
		"auth":   s.auth.enabled(),
		"store":  s.records != nil,
	})
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.auth.enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "login disabled"})
		return
	}
	token, err := s.auth.login(req.Password, time.Now())
	if errors.Is(err, errInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Errorf("sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(tokenTTL.Seconds())})
}

// extractHandler runs the single-image pipeline on the uploaded `file`.
// OCR failures still answer 200 with a blank record and the error text, the
// same way a batch row is recovered.
func (s *server) extractHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if fh.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large (max " + strconv.FormatInt(s.maxUpload, 10) + " bytes)"})
		return
	}
	if !batch.IsSupportedExt(fh.Filename) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot decode image: " + err.Error()})
		return
	}

	fr := s.extractor.ExtractImage(c.Request.Context(), img, fh.Filename)
	resp := gin.H{
		"record": fr.Record,
		"lines":  fr.Lines,
		"offset": gin.H{"x": fr.Offset.X, "y": fr.Offset.Y},
	}
	if fr.Err != nil {
		s.log.WithField("file", fh.Filename).Warnf("extract: %v", fr.Err)
		resp["error"] = ocr.Snippet(fr.Err.Error(), 250)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) listRecordsHandler(c *gin.Context) {
	if s.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	items, err := s.records.RecentRecords(c.Request.Context(), limit)
	if err != nil {
		s.log.Errorf("recent records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// getRunHandler returns one stored run with its rows in report order.
func (s *server) getRunHandler(c *gin.Context) {
	if s.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
		return
	}
	run, err := s.records.Run(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		s.log.Errorf("load run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	rows := make([]models.ExtractedRecord, len(run.Records))
	failed := make([]string, 0)
	for i, r := range run.Records {
		rows[i] = r.Record()
		if r.Failed {
			failed = append(failed, r.SourceFile)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      run.RunID,
		"created_at":  run.CreatedAt,
		"input_dir":   run.InputDir,
		"output_path": run.OutputPath,
		"files":       run.Files,
		"records":     rows,
		"failed":      failed,
	})
}
