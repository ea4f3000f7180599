package ui

import (
	"fmt"
	"net/http"
	"strconv"

	"tidyframe/app"
	"tidyframe/ports"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// handleSave writes the current dataset under the optional {"filename"} from the body
func (s *Server) handleSave(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	res, err := s.service.Save(c.Request.Context(), s.sessionID(c), gjson.GetBytes(body, "filename").String())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListSaved(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	sessions, err := s.service.ListSaved(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*ports.SavedSession{}
	}
	c.JSON(http.StatusOK, gin.H{"saved_sessions": sessions})
}

func (s *Server) handleOpenSaved(c *gin.Context) {
	view, err := s.service.OpenSaved(c.Request.Context(), s.sessionID(c), c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.setSession(c, view.SessionID)
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteSaved(c *gin.Context) {
	filename := c.Param("filename")
	if err := s.service.DeleteSaved(c.Request.Context(), filename); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Saved session '%s' deleted.", filename)})
}

func (s *Server) handleDownload(c *gin.Context) {
	export, err := s.service.Download(s.sessionID(c), c.Param("filetype"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendExport(c, export)
}

func (s *Server) handleDownloadSaved(c *gin.Context) {
	export, err := s.service.DownloadSaved(c.Request.Context(), c.Param("filename"), c.Param("filetype"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendExport(c, export)
}

func sendExport(c *gin.Context, export app.Export) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
