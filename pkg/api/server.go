// Package api provides the REST API server for handsplit
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/james-see/handsplit/internal/logging"
	"github.com/james-see/handsplit/pkg/instrument"
	"github.com/james-see/handsplit/pkg/performance"
	"github.com/james-see/handsplit/pkg/splitter"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Handsplit API
// @version 1.0
// @description API for splitting piano performances into right-hand and left-hand MIDI files
// @host localhost:8080
// @BasePath /api/v1

// MaxUploadSize caps the size of an uploaded performance
const MaxUploadSize = 32 << 20

// Options configures the API server
type Options struct {
	SplitPoint int
	Logger     *logging.Logger
}

type server struct {
	opts   Options
	logger *logging.Logger
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(opts Options) *gin.Engine {
	s := &server{opts: opts, logger: opts.Logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestMiddleware())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/split/simple", s.handleSplitSimple)
		v1.POST("/split/smart", s.handleSplitSmart)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/instrument", s.handleInstrument)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, opts Options) error {
	opts.Logger.Info("starting API server", "port", port)
	return NewRouter(opts).Run(fmt.Sprintf(":%d", port))
}

// requestMiddleware tags each request with an id and logs it on completion
func (s *server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		s.logger.Debug("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Right-Events, X-Left-Events, X-Meta-Events")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "handsplit",
	})
}

// handleSplitSimple godoc
// @Summary Split a performance with the fixed split point
// @Description Upload a MIDI file and receive a three-track (meta, right hand, left hand) MIDI file split at a fixed pitch
// @Tags split
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file to split"
// @Param split_point query int false "Split point pitch (default: 60)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/split/simple [post]
func (s *server) handleSplitSimple(c *gin.Context) {
	s.handleSplit(c, splitter.VariantSimple)
}

// handleSplitSmart godoc
// @Summary Split a performance around clustered pitch centroids
// @Description Upload a MIDI file and receive a three-track (meta, right hand, left hand) MIDI file split by 2-means pitch clustering
// @Tags split
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file to split"
// @Param split_point query int false "Fallback split point when the file has no notes (default: 60)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/split/smart [post]
func (s *server) handleSplitSmart(c *gin.Context) {
	s.handleSplit(c, splitter.VariantSmart)
}

func (s *server) handleSplit(c *gin.Context, variant splitter.Variant) {
	name, p, ok := s.readPerformance(c)
	if !ok {
		return
	}

	splitPoint := s.opts.SplitPoint
	if v := c.Query("split_point"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 127 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "split_point must be an integer between 0 and 127"})
			return
		}
		splitPoint = n
	}

	res, err := splitter.New(splitter.Options{SplitPoint: splitPoint}, s.logger).Split(p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := res.Simple
	suffix := splitter.SimpleSuffix
	if variant == splitter.VariantSmart {
		out = res.Smart
		suffix = splitter.SmartSuffix
	}

	data, err := performance.Encode(out.Performance)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Meta-Events", strconv.Itoa(out.Stats.Meta))
	c.Header("X-Right-Events", strconv.Itoa(out.Stats.Right))
	c.Header("X-Left-Events", strconv.Itoa(out.Stats.Left))
	sendMIDI(c, performance.Stem(name)+suffix+".mid", data)
}

// handleAnalyze godoc
// @Summary Analyze a performance
// @Description Upload a MIDI file and receive its event counts, pitch range and pitch centroids
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to analyze"
// @Success 200 {object} splitter.Analysis
// @Failure 400 {object} map[string]string
// @Router /api/v1/analyze [post]
func (s *server) handleAnalyze(c *gin.Context) {
	_, p, ok := s.readPerformance(c)
	if !ok {
		return
	}

	a, err := splitter.New(splitter.Options{SplitPoint: s.opts.SplitPoint}, s.logger).Analyze(p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

// handleInstrument godoc
// @Summary Change the instrument of a performance
// @Description Upload a MIDI file and receive it with every channel switched to one General MIDI program
// @Tags instrument
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file to rewrite"
// @Param program query int false "General MIDI program 0-127 (default: 65, Alto Sax)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/instrument [post]
func (s *server) handleInstrument(c *gin.Context) {
	program := instrument.DefaultProgram
	if v := c.Query("program"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "program must be an integer"})
			return
		}
		program = n
	}

	name, p, ok := s.readPerformance(c)
	if !ok {
		return
	}

	out, err := instrument.ChangeProgram(p, program)
	if errors.Is(err, instrument.ErrInvalidProgram) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := performance.Encode(out)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sendMIDI(c, performance.Stem(name)+instrument.DefaultSuffix+".mid", data)
}

// readPerformance parses the uploaded "file" field. On failure it writes the
// error response and returns ok=false.
func (s *server) readPerformance(c *gin.Context) (name string, p *performance.Performance, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return "", nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return "", nil, false
	}

	if performance.DetectFormatFromContent(data) != performance.FormatMIDI {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a Standard MIDI File"})
		return "", nil, false
	}

	p, err = performance.Parse(data)
	if err != nil {
		s.logger.Warn("rejected upload", "file", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", nil, false
	}

	name = header.Filename
	if name == "" {
		name = "performance.mid"
	}
	return name, p, true
}

func sendMIDI(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "audio/midi", data)
}
