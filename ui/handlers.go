package ui

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"tidyframe/adapters/sqlsource"
	"tidyframe/app"
	"tidyframe/domain/core"
	"tidyframe/internal/formula"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// handleUpload parses the multipart file and starts a fresh session, replacing any previous one
func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, core.NewInvalidParameterError("no file part in the request"))
		return
	}
	file, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	view, err := s.service.Upload(c.Request.Context(), file, fh.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	if previous := s.sessionID(c); previous != "" {
		s.service.Reset(previous)
	}
	s.setSession(c, view.SessionID)
	log.Printf("[API] Uploaded %s into session %s (%d rows)", fh.Filename, view.SessionID, view.TotalRows)
	c.JSON(http.StatusOK, view)
}

type databaseQueryRequest struct {
	sqlsource.Source
	Query string `json:"query" form:"query"`
}

// handleDatabaseQuery loads a query result into a new session. It accepts JSON or form fields.
func (s *Server) handleDatabaseQuery(c *gin.Context) {
	var req databaseQueryRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, core.NewInvalidParameterError("invalid database query request: %v", err))
		return
	}

	view, err := s.service.LoadQuery(c.Request.Context(), req.Source, req.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	if previous := s.sessionID(c); previous != "" {
		s.service.Reset(previous)
	}
	s.setSession(c, view.SessionID)
	log.Printf("[API] Loaded %s into session %s (%d rows)", req.Source.Describe(), view.SessionID, view.TotalRows)
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleTable(c *gin.Context) {
	s.respondView(c)(s.service.Table(s.sessionID(c)))
}

func (s *Server) handleReset(c *gin.Context) {
	s.service.Reset(s.sessionID(c))
	s.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Session reset."})
}

func (s *Server) handleHistory(c *gin.Context) {
	entries, err := s.service.History(s.sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// handleCleanOperation expects {"operation": name, "params": {...}}
func (s *Server) handleCleanOperation(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	name := strings.TrimSpace(gjson.GetBytes(body, "operation").String())
	if name == "" {
		respondError(c, core.NewInvalidParameterError("'operation' is required"))
		return
	}
	var params []byte
	if p := gjson.GetBytes(body, "params"); p.Exists() && p.Type != gjson.Null {
		params = []byte(p.Raw)
	}
	s.respondView(c)(s.service.ApplyOperation(s.sessionID(c), name, params))
}

func (s *Server) handleUndo(c *gin.Context) {
	s.respondView(c)(s.service.Undo(s.sessionID(c)))
}

func (s *Server) handleRedo(c *gin.Context) {
	s.respondView(c)(s.service.Redo(s.sessionID(c)))
}

func (s *Server) handleAutoClean(c *gin.Context) {
	view, steps, err := s.service.AutoClean(s.sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, struct {
		app.TableView
		Steps interface{} `json:"steps"`
	}{view, steps})
}

func (s *Server) handleOptimizeCategories(c *gin.Context) {
	s.respondView(c)(s.service.OptimizeCategories(s.sessionID(c)))
}

func (s *Server) handleGetAutoCleanConfig(c *gin.Context) {
	cfg, err := s.service.AutoCleanConfig(s.sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

// handleSaveAutoCleanConfig accepts the config object itself or wrapped as {"config": {...}}
func (s *Server) handleSaveAutoCleanConfig(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if wrapped := gjson.GetBytes(body, "config"); wrapped.IsObject() {
		body = []byte(wrapped.Raw)
	}
	cfg, rejected, err := s.service.SaveAutoCleanConfig(s.sessionID(c), body)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Auto-clean configuration saved."
	if len(rejected) > 0 {
		message += " Invalid values were reset to defaults: " + strings.Join(rejected, ", ") + "."
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "config": cfg, "rejected_keys": rejected})
}

func (s *Server) handleOutlierRanges(c *gin.Context) {
	ranges, err := s.service.OutlierRanges(c.Request.Context(), s.sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(ranges) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No numeric columns found for outlier range calculation."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranges_data": ranges})
}

// handleColumnStats answers 404 for an unknown column, unlike the other endpoints
// handleColumnStats uses a catch-all so column names may contain '/'
func (s *Server) handleColumnStats(c *gin.Context) {
	column := strings.TrimPrefix(c.Param("column"), "/")
	if column == "" {
		respondError(c, core.NewInvalidParameterError("column name is required"))
		return
	}
	stats, err := s.service.ColumnStats(s.sessionID(c), column)
	if err != nil {
		if core.IsColumnNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "dtype": stats.DataType})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	column := c.Query("column")
	if column == "" {
		respondError(c, core.NewInvalidParameterError("'column' is required"))
		return
	}
	suggestions, err := s.service.Suggestions(s.sessionID(c), column, c.Query("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type searchRequest struct {
	Column string `json:"column"`
	Term   string `json:"term"`
}

func (s *Server) handlePerformSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, core.NewInvalidParameterError("invalid search request: %v", err))
		return
	}
	if req.Column == "" && req.Term != "" {
		respondError(c, core.NewInvalidParameterError("'column' is required"))
		return
	}
	s.respondView(c)(s.service.Search(s.sessionID(c), req.Column, req.Term))
}

func (s *Server) handleClearSearch(c *gin.Context) {
	s.respondView(c)(s.service.ClearSearch(s.sessionID(c)))
}

func (s *Server) handleValidFormulaColumns(c *gin.Context) {
	columns, err := s.service.ValidFormulaColumns(s.sessionID(c), c.Query("formula"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": columns})
}

// handleApplyFormula reads {formula, column_name, parameter?, row_start?, row_end?}; numbers may be strings
func (s *Server) handleApplyFormula(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	req := formula.Request{
		Formula:   gjson.GetBytes(body, "formula").String(),
		Column:    gjson.GetBytes(body, "column_name").String(),
		Parameter: gjson.GetBytes(body, "parameter").String(),
	}
	if req.Column == "" {
		req.Column = gjson.GetBytes(body, "column").String()
	}
	var err error
	if req.RowStart, err = optionalInt(body, "row_start"); err != nil {
		respondError(c, err)
		return
	}
	if req.RowEnd, err = optionalInt(body, "row_end"); err != nil {
		respondError(c, err)
		return
	}
	res, err := s.service.ApplyFormula(s.sessionID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// respondView writes a table view or the error
func (s *Server) respondView(c *gin.Context) func(app.TableView, error) {
	return func(view app.TableView, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		respondError(c, core.NewInvalidParameterError("request body is not valid JSON"))
		return nil, false
	}
	return body, true
}

func optionalInt(body []byte, key string) (*int, error) {
	r := gjson.GetBytes(body, key)
	if !r.Exists() || r.Type == gjson.Null || strings.TrimSpace(r.String()) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(r.String()))
	if err != nil {
		return nil, core.NewInvalidParameterError("'%s' must be an integer, got '%s'", key, r.String())
	}
	return &n, nil
}
