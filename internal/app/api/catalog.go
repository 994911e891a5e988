package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jinford/study-notes/internal/core/catalog"
)

type boardResponse struct {
	catalog.Board
	Classes []int `json:"classes"`
}

func (s *Server) listBoards(c echo.Context) error {
	boards := s.opts.Catalog.ListBoards()
	resp := make([]boardResponse, 0, len(boards))
	for _, b := range boards {
		resp = append(resp, boardResponse{Board: b, Classes: s.opts.Catalog.ListClasses(b.Code)})
	}
	return c.JSON(http.StatusOK, echo.Map{"boards": resp})
}

func (s *Server) listSubjects(c echo.Context) error {
	var (
		board string
		class int
	)
	err := echo.QueryParamsBinder(c).
		MustString("board", &board).
		MustInt("class", &class).
		BindError()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"subjects": emptyIfNil(s.opts.Catalog.ListSubjects(board, class))})
}

func (s *Server) listChapters(c echo.Context) error {
	var (
		board, subject string
		class          int
	)
	err := echo.QueryParamsBinder(c).
		MustString("board", &board).
		MustInt("class", &class).
		MustString("subject", &subject).
		BindError()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"chapters": emptyIfNil(s.opts.Catalog.ListChapters(board, class, subject))})
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
