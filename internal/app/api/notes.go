package api

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/jinford/study-notes/internal/core/notes"
)

func (s *Server) getNotes(c echo.Context) error {
	n, err := s.findNotes(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) getNotesMarkdown(c echo.Context) error {
	n, err := s.findNotes(c)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=UTF-8", []byte(notes.RenderMarkdown(n)))
}

// getPDF は完了済みジョブのPDFを返す
func (s *Server) getPDF(c echo.Context) error {
	j, err := s.findJob(c)
	if err != nil {
		return err
	}
	if j.ArtifactPath == "" {
		return errArtifactNotReady
	}

	rc, err := s.opts.Artifacts.Open(c.Request().Context(), j.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filepath.Base(j.ArtifactPath)))
	return c.Stream(http.StatusOK, "application/pdf", rc)
}

func (s *Server) findNotes(c echo.Context) (*notes.Notes, error) {
	j, err := s.findJob(c)
	if err != nil {
		return nil, err
	}
	found, err := s.opts.Notes.GetNotesByJob(c.Request().Context(), j.ID)
	if err != nil {
		return nil, err
	}
	n, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("%w: job %s", notes.ErrNotesNotFound, j.ID)
	}
	return n, nil
}
