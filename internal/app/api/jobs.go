package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// createJob はリクエストを検証してからジョブを開始する
// 不正なリクエストはジョブを作らずに 400 を返す
func (s *Server) createJob(c echo.Context) error {
	var req catalog.Request
	if err := c.Bind(&req); err != nil {
		return err
	}

	normalized, err := s.validator.Validate(req)
	if err != nil {
		return err
	}

	created, err := s.opts.Orchestrator.Submit(c.Request().Context(), normalized)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/jobs/"+created.ID.String())
	return c.JSON(http.StatusAccepted, created)
}

func (s *Server) listJobs(c echo.Context) error {
	limit := defaultListLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	jobs, err := s.opts.Orchestrator.Jobs().List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": emptyIfNil(jobs)})
}

func (s *Server) getJob(c echo.Context) error {
	j, err := s.findJob(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, j)
}

// jobEvents は since より後のイベントを返す
// クライアントは nextSeq を次回の since に渡してポーリングする
func (s *Server) jobEvents(c echo.Context) error {
	j, err := s.findJob(c)
	if err != nil {
		return err
	}

	var since int64
	if err := echo.QueryParamsBinder(c).Int64("since", &since).BindError(); err != nil {
		return err
	}

	events := s.opts.Orchestrator.Jobs().Events().Since(j.ID, since)
	next := since
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	return c.JSON(http.StatusOK, echo.Map{
		"jobId":    j.ID,
		"state":    j.State,
		"progress": j.Progress,
		"events":   emptyIfNil(events),
		"nextSeq":  next,
	})
}

func (s *Server) cancelJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	cancelled, err := s.opts.Orchestrator.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cancelled)
}

func (s *Server) findJob(c echo.Context) (job.Job, error) {
	id, err := jobID(c)
	if err != nil {
		return job.Job{}, err
	}
	found, err := s.opts.Orchestrator.Jobs().Get(c.Request().Context(), id)
	if err != nil {
		return job.Job{}, err
	}
	j, ok := found.Get()
	if !ok {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrJobNotFound, id)
	}
	return j, nil
}

func jobID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid job id")
	}
	return id, nil
}
