package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/logger"
)

type intakeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*intake.Result
}

type errorResponse struct {
	Error    string           `json:"error"`
	Details  string           `json:"details,omitempty"`
	Hint     string           `json:"hint,omitempty"`
	Failures []intake.Failure `json:"failures,omitempty"`
}

type parseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.opts.HealthCheck != nil {
		if err := s.opts.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleEmailTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"message":               "Email webhook is running",
		"endpoint":              "/api/webhooks/email",
		"method":                http.MethodPost,
		"signatureVerification": s.verifier.Enabled(),
	})
}

func (s *Server) handleEmail(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large", Details: err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	sig := c.GetHeader(s.opts.SignatureHeader)
	ts := c.GetHeader(s.opts.TimestampHeader)
	if err := s.verifier.Verify(sig, ts, raw); err != nil {
		s.logger.Warn("webhook signature rejected",
			zap.String(logger.FieldRequestID, requestIDFrom(c)),
			zap.Error(err),
		)
		s.respondError(c, err, nil)
		return
	}

	var email intake.Email
	if err := c.ShouldBind(&email); err != nil {
		s.respondError(c, &intake.Error{Kind: intake.KindValidation, Err: intake.ErrMissingFields, Details: err.Error()}, nil)
		return
	}

	result, err := s.pipeline.ProcessEmail(c.Request.Context(), requestIDFrom(c), email)
	s.respondIntake(c, result, err)
}

func (s *Server) handleManual(c *gin.Context) {
	var sub intake.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.respondError(c, &intake.Error{Kind: intake.KindValidation, Err: intake.ErrMissingFields, Details: err.Error()}, nil)
		return
	}

	result, err := s.pipeline.ProcessManual(c.Request.Context(), requestIDFrom(c), sub)
	s.respondIntake(c, result, err)
}

func (s *Server) handleParse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, &intake.Error{Kind: intake.KindValidation, Err: intake.ErrMissingFields, Details: "text is required"}, nil)
		return
	}

	extraction, err := s.pipeline.Parse(c.Request.Context(), req.Text)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "proposal": extraction})
}

func (s *Server) handleCompare(c *gin.Context) {
	rfpID, err := strconv.ParseInt(c.Param("rfpId"), 10, 64)
	if err != nil || rfpID <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid rfp id", Details: c.Param("rfpId")})
		return
	}

	cmp, err := s.pipeline.Compare(c.Request.Context(), rfpID)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rfp": cmp.RFP, "compared": cmp.Proposals})
}

func (s *Server) respondIntake(c *gin.Context, result *intake.Result, err error) {
	if err != nil {
		s.respondError(c, err, result)
		return
	}
	c.JSON(http.StatusOK, intakeResponse{
		Success: true,
		Message: result.Message(),
		Result:  result,
	})
}

func (s *Server) respondError(c *gin.Context, err error, result *intake.Result) {
	_ = c.Error(err)

	var ierr *intake.Error
	if !errors.As(err, &ierr) {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Details: err.Error()})
		return
	}

	body := errorResponse{
		Error:   ierr.Err.Error(),
		Details: ierr.Details,
		Hint:    ierr.Hint,
	}
	if result != nil {
		body.Failures = result.Failures
	}
	c.JSON(statusFor(ierr.Kind), body)
}

func statusFor(kind intake.Kind) int {
	switch kind {
	case intake.KindValidation:
		return http.StatusBadRequest
	case intake.KindAuthentication:
		return http.StatusUnauthorized
	case intake.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
