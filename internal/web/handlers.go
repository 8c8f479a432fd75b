package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lucasnoah/sprintfactory/internal/analytics"
	"github.com/lucasnoah/sprintfactory/internal/ingest"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
)

const defaultEventLimit = 50

type answerRequest struct {
	Answer string `json:"answer" form:"answer"`
}

type planRequest struct {
	Force bool `json:"force"`
}

type correctionRequest struct {
	Correction string `json:"correction"`
}

type ingestResponse struct {
	ingest.BatchReport
	Status *orchestrator.Status `json:"status,omitempty"`
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.orch.Status(c.Request().Context(), c.QueryParam("session"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleContext(c echo.Context) error {
	q := c.QueryParam("q")
	text, err := s.orch.Context(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"query": q, "context": text})
}

func (s *Server) handleEvents(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	events, err := s.orch.Events(c.Request().Context(), "", limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// handleAnalytics summarises the event log; ?since=168h limits the window.
func (s *Server) handleAnalytics(c echo.Context) error {
	var from time.Time
	if q := c.QueryParam("since"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid since %q", q))
		}
		from = time.Now().UTC().Add(-d)
	}
	events, err := s.orch.Events(c.Request().Context(), "", 0)
	if err != nil {
		return err
	}
	report := analytics.Build(analytics.Since(events, from))
	if !from.IsZero() {
		report.Since = from.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleSessionEvents(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	events, err := s.orch.Events(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleIngestResumes(c echo.Context) error {
	srcs, err := uploads(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rep := s.orch.IngestResumes(ctx, srcs)
	return s.ingestReply(c, rep)
}

func (s *Server) handleIngestBacklog(c echo.Context) error {
	srcs, err := uploads(c)
	if err != nil {
		return err
	}
	rep := s.orch.IngestBacklog(c.Request().Context(), srcs)
	return s.ingestReply(c, rep)
}

// ingestReply answers 200 when every file was stored and 207 when some
// failed. Failures never abort the batch.
func (s *Server) ingestReply(c echo.Context, rep ingest.BatchReport) error {
	st, err := s.orch.Status(c.Request().Context(), "")
	if err != nil {
		return err
	}
	code := http.StatusOK
	if !rep.OK() {
		code = http.StatusMultiStatus
	}
	return c.JSON(code, ingestResponse{BatchReport: rep, Status: st})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.orch.Reset(c.Request().Context(), c.QueryParam("session")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListSessions(c echo.Context) error {
	list, err := s.orch.Sessions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateSession(c echo.Context) error {
	sess, err := s.orch.CreateSession(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.orch.Session(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.orch.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStartInterview(c echo.Context) error {
	res, err := s.orch.StartInterview(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleAnswer accepts a JSON body or a multipart form with an "answer"
// field and optional "files" attachments.
func (s *Server) handleAnswer(c echo.Context) error {
	var (
		req   answerRequest
		files []ingest.Source
	)
	if isMultipart(c) {
		req.Answer = c.FormValue("answer")
		var err error
		if files, err = uploads(c); err != nil {
			return err
		}
	} else if err := c.Bind(&req); err != nil {
		return err
	}

	res, err := s.orch.Answer(c.Request().Context(), c.Param("id"), req.Answer, files...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleGeneratePlan runs the pipeline. Planning before the interview is
// ready requires {"force": true} or ?force=true.
func (s *Server) handleGeneratePlan(c echo.Context) error {
	var req planRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return err
		}
	}
	if q := c.QueryParam("force"); q != "" {
		force, err := strconv.ParseBool(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid force %q", q))
		}
		req.Force = req.Force || force
	}

	plan, err := s.orch.GeneratePlan(c.Request().Context(), c.Param("id"), req.Force)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleGetPlan(c echo.Context) error {
	sess, err := s.orch.Session(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if sess.Plan == nil {
		return orchestrator.ErrNoPlan
	}
	return c.JSON(http.StatusOK, sess.Plan)
}

func (s *Server) handleCorrect(c echo.Context) error {
	var req correctionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	plan, err := s.orch.Correct(c.Request().Context(), c.Param("id"), req.Correction)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// uploads reads every "files" part of a multipart request.
func uploads(c echo.Context) ([]ingest.Source, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "expected multipart form with files")
	}
	var srcs []ingest.Source
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		srcs = append(srcs, ingest.Source{Name: fh.Filename, Data: data})
	}
	return srcs, nil
}

func limitParam(c echo.Context) (int, error) {
	q := c.QueryParam("limit")
	if q == "" {
		return defaultEventLimit, nil
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid limit %q", q))
	}
	return n, nil
}
