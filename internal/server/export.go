package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/brd-breakdown/internal/export"
)

func (s *Server) handleExport(c echo.Context) error {
	id, err := pathID(c, "generation")
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}

	art, err := s.exports.ExportGeneration(c.Request().Context(), id, format)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Filename))
	return c.Blob(http.StatusOK, art.ContentType, art.Body)
}
