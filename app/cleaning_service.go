package app

import (
	"context"
	"io"
	"log"

	"tidyframe/adapters/excel"
	"tidyframe/adapters/sqlsource"
	"tidyframe/domain/core"
	"tidyframe/domain/frame"
	"tidyframe/internal/autoclean"
	"tidyframe/internal/cleaning"
	"tidyframe/internal/formula"
	"tidyframe/internal/outlier"
	"tidyframe/internal/profiling"
	"tidyframe/internal/render"
	"tidyframe/internal/search"
	"tidyframe/internal/session"
	"tidyframe/ports"

	"github.com/tidwall/gjson"
)

// OpAutoClean labels history records written by the auto-clean pipeline
const OpAutoClean = "auto_clean"

// ServiceConfig holds the display limits the service applies to responses
type ServiceConfig struct {
	StatsSampleCap  int
	SuggestionLimit int
}

// QueryLoader loads a dataset from a SQL query
type QueryLoader interface {
	Load(ctx context.Context, src sqlsource.Source, query string) (*frame.Frame, error)
}

// CleaningService is the façade every endpoint calls. It resolves the session, runs the engines
// inside the session lock and shapes the result for the client.
type CleaningService struct {
	sessions *session.Manager
	engine   *cleaning.Engine
	pipeline *autoclean.Pipeline
	renderer *render.Renderer
	reader   *excel.DataReader
	writer   *excel.DataWriter
	frames   session.FrameStore
	saved    ports.SavedSessionRepository
	queries  QueryLoader
	config   ServiceConfig
}

// NewCleaningService wires the engines together
func NewCleaningService(
	sessions *session.Manager,
	engine *cleaning.Engine,
	renderer *render.Renderer,
	reader *excel.DataReader,
	writer *excel.DataWriter,
	frames session.FrameStore,
	saved ports.SavedSessionRepository,
	queries QueryLoader,
	config ServiceConfig,
) *CleaningService {
	return &CleaningService{
		sessions: sessions,
		engine:   engine,
		pipeline: autoclean.NewPipeline(engine),
		renderer: renderer,
		reader:   reader,
		writer:   writer,
		frames:   frames,
		saved:    saved,
		queries:  queries,
		config:   config,
	}
}

// SessionCount reports live sessions for health checks
func (s *CleaningService) SessionCount() int {
	return s.sessions.Len()
}

// Upload parses a file and starts a new session around it
func (s *CleaningService) Upload(ctx context.Context, src io.Reader, filename string) (TableView, error) {
	f, err := s.reader.Read(src, filename)
	if err != nil {
		return TableView{}, err
	}
	sess := s.sessions.Create(f, filename)
	view, err := s.tableView(sess.State(), "File uploaded successfully.")
	if err != nil {
		return TableView{}, err
	}
	return view, nil
}

// LoadQuery runs a SQL query and starts a new session around its result
func (s *CleaningService) LoadQuery(ctx context.Context, src sqlsource.Source, query string) (TableView, error) {
	if s.queries == nil {
		return TableView{}, core.NewInvalidParameterError("database queries are disabled")
	}
	f, err := s.queries.Load(ctx, src, query)
	if err != nil {
		return TableView{}, err
	}
	sess := s.sessions.Create(f, querySourceName(src, query))
	return s.tableView(sess.State(), "Query successful.")
}

// Table renders the current view of a session
func (s *CleaningService) Table(id core.SessionID) (TableView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	return s.tableView(sess.State(), "")
}

// ApplyOperation validates and runs one named operation as a single history entry
func (s *CleaningService) ApplyOperation(id core.SessionID, name string, params []byte) (TableView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	op, err := cleaning.Decode(name, params)
	if err != nil {
		return TableView{}, err
	}

	out, err := sess.Mutate(op.Name(), paramsMap(params), func(cur *frame.Frame) (session.Mutation, error) {
		res, err := s.engine.Apply(cur, op)
		if err != nil {
			return session.Mutation{}, err
		}
		return session.Mutation{Frame: res.Frame, Message: res.Message, Modified: res.Modified, Change: res.Change}, nil
	})
	if err != nil {
		return TableView{}, err
	}
	return s.outcomeView(out)
}

// OptimizeCategories converts low-cardinality text columns to categories
func (s *CleaningService) OptimizeCategories(id core.SessionID) (TableView, error) {
	return s.ApplyOperation(id, cleaning.OpOptimizeCategories, nil)
}

// Undo reverts the most recent operation
func (s *CleaningService) Undo(id core.SessionID) (TableView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	out, err := sess.Undo()
	if err != nil {
		return TableView{}, err
	}
	return s.outcomeView(out)
}

// Redo reapplies the most recently undone operation
func (s *CleaningService) Redo(id core.SessionID) (TableView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	out, err := sess.Redo()
	if err != nil {
		return TableView{}, err
	}
	return s.outcomeView(out)
}

// AutoClean runs the pipeline with the session's config as one history entry
func (s *CleaningService) AutoClean(id core.SessionID) (TableView, []autoclean.StepResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, nil, err
	}
	var steps []autoclean.StepResult
	out, err := sess.MutateWithConfig(OpAutoClean, nil, func(cur *frame.Frame, cfg autoclean.Config) (session.Mutation, error) {
		report, err := s.pipeline.Run(cur, cfg)
		if err != nil {
			return session.Mutation{}, err
		}
		steps = report.Steps
		return session.Mutation{Frame: report.Frame, Message: report.Message, Modified: report.Modified}, nil
	})
	if err != nil {
		return TableView{}, nil, err
	}
	view, err := s.outcomeView(out)
	return view, steps, err
}

// AutoCleanConfig returns the session's auto-clean configuration
func (s *CleaningService) AutoCleanConfig(id core.SessionID) (autoclean.Config, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return autoclean.Config{}, err
	}
	return sess.State().Config, nil
}

// SaveAutoCleanConfig validates raw key by key; invalid values fall back to their defaults
func (s *CleaningService) SaveAutoCleanConfig(id core.SessionID, raw []byte) (autoclean.Config, []string, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return autoclean.Config{}, nil, err
	}
	if !autoclean.Validate(raw) {
		return autoclean.Config{}, nil, core.NewInvalidParameterError("config must be a JSON object")
	}
	cfg, rejected := autoclean.Parse(raw)
	sess.SetConfig(cfg)
	if len(rejected) > 0 {
		log.Printf("[CleaningService] Session %s config: reset %d invalid key(s) to defaults: %v", id, len(rejected), rejected)
	}
	return cfg, rejected, nil
}

// OutlierRanges computes IQR and Z-score bounds for every numeric column. A nil map means the
// dataset has no numeric columns.
func (s *CleaningService) OutlierRanges(ctx context.Context, id core.SessionID) (map[string]outlier.ColumnRanges, error) {
	st, err := s.loadedState(id)
	if err != nil {
		return nil, err
	}
	return outlier.ComputeRanges(ctx, st.Frame, st.Config.OutlierIQRFactor, st.Config.OutlierZScoreThreshold)
}

// ColumnStats computes the statistics panel for one column
func (s *CleaningService) ColumnStats(id core.SessionID, column string) (profiling.ColumnStats, error) {
	st, err := s.loadedState(id)
	if err != nil {
		return profiling.ColumnStats{}, err
	}
	return profiling.ComputeFor(st.Frame, column, s.config.StatsSampleCap)
}

// Suggestions returns distinct values of column containing query
func (s *CleaningService) Suggestions(id core.SessionID, column, query string) ([]string, error) {
	st, err := s.loadedState(id)
	if err != nil {
		return nil, err
	}
	return search.Suggest(st.Frame, column, query, s.config.SuggestionLimit)
}

// Search narrows the view to rows whose column contains term. An empty term clears the filter.
func (s *CleaningService) Search(id core.SessionID, column, term string) (TableView, error) {
	if term == "" {
		return s.ClearSearch(id)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	st, err := sess.ApplySearch(func(cur *frame.Frame) (*session.SearchState, error) {
		res, err := search.Apply(cur, column, term)
		if err != nil {
			return nil, err
		}
		return &session.SearchState{Column: res.Column, Term: res.Term, OriginalRowCount: res.OriginalRowCount, Rows: res.Rows}, nil
	})
	if err != nil {
		return TableView{}, err
	}
	view, err := s.tableView(st, "")
	if err != nil {
		return TableView{}, err
	}
	view.SearchApplied = true
	view.Message = searchMessage(st.Search)
	return view, nil
}

// ClearSearch removes the view filter
func (s *CleaningService) ClearSearch(id core.SessionID) (TableView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TableView{}, err
	}
	st, _ := sess.ClearSearch()
	view, err := s.tableView(st, "Search filter cleared.")
	if err != nil {
		return TableView{}, err
	}
	view.SearchCleared = true
	return view, nil
}

// ValidFormulaColumns lists the columns formula accepts
func (s *CleaningService) ValidFormulaColumns(id core.SessionID, name string) ([]string, error) {
	st, err := s.loadedState(id)
	if err != nil {
		return nil, err
	}
	return formula.ValidColumns(st.Frame, name)
}

// ApplyFormula evaluates a formula over the full dataset
func (s *CleaningService) ApplyFormula(id core.SessionID, req formula.Request) (formula.Result, error) {
	st, err := s.loadedState(id)
	if err != nil {
		return formula.Result{}, err
	}
	return formula.Apply(st.Frame, req)
}

// History lists the undoable operations, oldest first
func (s *CleaningService) History(id core.SessionID) ([]HistoryEntry, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	records := sess.History()
	out := make([]HistoryEntry, len(records))
	for i, rec := range records {
		out[i] = HistoryEntry{Operation: rec.Operation, Message: rec.Message, Change: rec.Change.Kind(), At: rec.AppliedAt}
	}
	return out, nil
}

// Reset tears the session down
func (s *CleaningService) Reset(id core.SessionID) bool {
	ok := s.sessions.Delete(id)
	if ok {
		log.Printf("[CleaningService] Session %s reset", id)
	}
	return ok
}

func (s *CleaningService) loadedState(id core.SessionID) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}
	st := sess.State()
	if st.Frame == nil {
		return session.State{}, core.ErrNoData
	}
	return st, nil
}

func (s *CleaningService) outcomeView(out session.Outcome) (TableView, error) {
	view, err := s.tableView(out.State, out.Message)
	if err != nil {
		return TableView{}, err
	}
	view.DFModified = out.Modified
	view.SearchCleared = out.SearchCleared
	return view, nil
}

func (s *CleaningService) tableView(st session.State, message string) (TableView, error) {
	var rows []int
	if st.Search != nil {
		rows = st.Search.Rows
	}
	table, err := s.renderer.Render(st.Frame, rows)
	if err != nil {
		return TableView{}, err
	}
	view := TableView{
		SessionID:    st.ID,
		TableHTML:    table.HTML,
		TotalRows:    table.TotalRows,
		TotalColumns: table.TotalColumns,
		Columns:      table.Columns,
		UndoRedo:     UndoRedoStatus{UndoEnabled: st.Status.UndoEnabled, RedoEnabled: st.Status.RedoEnabled},
		Message:      message,
	}
	if st.Search != nil {
		filtered, original := st.Search.FilteredRowCount(), st.Search.OriginalRowCount
		view.FilteredRowCount = &filtered
		view.OriginalRowCount = &original
		view.SearchTerm = st.Search.Term
		view.SearchColumn = st.Search.Column
	}
	return view, nil
}

// paramsMap keeps the request params on the history record
func paramsMap(raw []byte) map[string]interface{} {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	m, _ := gjson.ParseBytes(raw).Value().(map[string]interface{})
	return m
}
