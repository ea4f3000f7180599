package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"tidyframe/adapters/excel"
	"tidyframe/adapters/memory"
	"tidyframe/adapters/sqlsource"
	"tidyframe/domain/core"
	"tidyframe/internal/autoclean"
	"tidyframe/internal/cleaning"
	"tidyframe/internal/formula"
	"tidyframe/internal/render"
	"tidyframe/internal/session"
	"tidyframe/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSavedRepo struct {
	mock.Mock
}

func (m *mockSavedRepo) Upsert(ctx context.Context, s *ports.SavedSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSavedRepo) GetByFilename(ctx context.Context, filename string) (*ports.SavedSession, error) {
	args := m.Called(ctx, filename)
	if v := args.Get(0); v != nil {
		return v.(*ports.SavedSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSavedRepo) List(ctx context.Context, limit int) ([]*ports.SavedSession, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*ports.SavedSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSavedRepo) Delete(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

const peopleCSV = "name,age\nSmith,30\nJones,10\nSmiley,20\n"

func newService(t *testing.T, repo ports.SavedSessionRepository) *CleaningService {
	t.Helper()
	store, err := session.NewLocalFrameStore(t.TempDir())
	require.NoError(t, err)
	return NewCleaningService(
		session.NewManager(session.ManagerConfig{HistoryDepth: 10}),
		cleaning.NewEngine(nil),
		render.NewRenderer(0),
		excel.NewDataReader(excel.DefaultReaderConfig(), nil),
		excel.NewDataWriter(excel.WriterConfig{}),
		store,
		repo,
		sqlsource.NewLoader(sqlsource.Config{}, nil),
		ServiceConfig{},
	)
}

func upload(t *testing.T, svc *CleaningService) TableView {
	t.Helper()
	view, err := svc.Upload(context.Background(), strings.NewReader(peopleCSV), "people.csv")
	require.NoError(t, err)
	require.NotEmpty(t, view.SessionID)
	return view
}

func TestUploadRendersTable(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	view := upload(t, svc)

	assert.Equal(t, 3, view.TotalRows)
	assert.Equal(t, 2, view.TotalColumns)
	assert.Equal(t, []string{"name", "age"}, view.Columns)
	assert.Contains(t, view.TableHTML, "<td>Smiley</td>")
	assert.False(t, view.UndoRedo.UndoEnabled)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestOperationUndoRedo(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	view, err := svc.ApplyOperation(id, cleaning.OpRenameColumn, []byte(`{"old_name":"age","new_name":"Age"}`))
	require.NoError(t, err)
	assert.True(t, view.DFModified)
	assert.Equal(t, []string{"name", "Age"}, view.Columns)
	assert.Equal(t, UndoRedoStatus{UndoEnabled: true}, view.UndoRedo)

	history, err := svc.History(id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, cleaning.OpRenameColumn, history[0].Operation)

	view, err = svc.Undo(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, view.Columns)
	assert.Equal(t, UndoRedoStatus{RedoEnabled: true}, view.UndoRedo)

	view, err = svc.Redo(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "Age"}, view.Columns)

	_, err = svc.Redo(id)
	assert.True(t, errors.Is(err, core.ErrNoHistory))
}

func TestConcurrentOperationsReturnTheirOwnState(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	var csv strings.Builder
	csv.WriteString("n\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&csv, "%d\n", i)
	}
	view, err := svc.Upload(context.Background(), strings.NewReader(csv.String()), "n.csv")
	require.NoError(t, err)

	views := make([]TableView, 20)
	errs := make([]error, 20)
	var wg sync.WaitGroup
	for k := 1; k <= 20; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			params := fmt.Sprintf(`{"column":"n","condition":"lt","value":%d,"action":"drop"}`, k)
			views[k-1], errs[k-1] = svc.ApplyOperation(view.SessionID, cleaning.OpFilterRows, []byte(params))
		}(k)
	}
	wg.Wait()

	for i, v := range views {
		require.NoError(t, errs[i])
		if !v.DFModified {
			continue
		}
		require.True(t, strings.HasPrefix(v.Message, "Removed "), v.Message)
		var remain int
		_, err := fmt.Sscanf(v.Message[strings.LastIndex(v.Message, ";")+1:], " %d remain.", &remain)
		require.NoError(t, err, v.Message)
		assert.Equal(t, remain, v.TotalRows, v.Message)
	}

	final, err := svc.Table(view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 20, final.TotalRows)
}

func TestLoadQueryDisabledAndSourceName(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	svc.queries = nil
	_, err := svc.LoadQuery(context.Background(), sqlsource.Source{Type: "sqlite", Name: "x.db"}, "SELECT 1")
	assert.True(t, core.IsInvalidParameter(err))
	assert.Contains(t, err.Error(), "disabled")

	name := querySourceName(sqlsource.Source{Type: "sqlite", Name: "shop.db"},
		"SELECT id,\n       item FROM orders WHERE item LIKE '%pen%' ORDER BY id DESC")
	assert.Equal(t, "SQLite: shop.db (Query: SELECT id, item FROM orders WHERE item LIKE '%pen%...)", name)
}

func TestRejectedOperationLeavesSession(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	_, err := svc.ApplyOperation(id, cleaning.OpDropColumns, []byte(`{"columns_to_drop":["nope"]}`))
	assert.True(t, core.IsClientError(err))

	_, err = svc.ApplyOperation(id, "explode", nil)
	assert.True(t, core.IsInvalidParameter(err))

	view, err := svc.Table(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, view.Columns)
	assert.False(t, view.UndoRedo.UndoEnabled)
}

func TestSearchIsClearedByDataChange(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	view, err := svc.Search(id, "name", "smi")
	require.NoError(t, err)
	assert.True(t, view.SearchApplied)
	assert.Equal(t, 2, view.TotalRows)
	require.NotNil(t, view.FilteredRowCount)
	assert.Equal(t, 2, *view.FilteredRowCount)
	assert.Equal(t, 3, *view.OriginalRowCount)
	assert.Equal(t, "smi", view.SearchTerm)

	view, err = svc.ApplyOperation(id, cleaning.OpSortValues, []byte(`{"columns_to_sort_by":["age"]}`))
	require.NoError(t, err)
	assert.True(t, view.SearchCleared)
	assert.Equal(t, 3, view.TotalRows)
	assert.Nil(t, view.FilteredRowCount)
}

func TestEmptySearchTermClears(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	_, err := svc.Search(id, "name", "jo")
	require.NoError(t, err)
	view, err := svc.Search(id, "name", "")
	require.NoError(t, err)
	assert.True(t, view.SearchCleared)
	assert.Equal(t, 3, view.TotalRows)
}

func TestAutoCleanConfigAndRun(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	cfg, rejected, err := svc.SaveAutoCleanConfig(id, []byte(`{"case_change_method":"upper","outlier_iqr_factor":-1}`))
	require.NoError(t, err)
	assert.Equal(t, autoclean.CaseUpper, cfg.CaseChangeMethod)
	assert.Equal(t, 1.5, cfg.OutlierIQRFactor)
	assert.Equal(t, []string{"outlier_iqr_factor"}, rejected)

	_, _, err = svc.SaveAutoCleanConfig(id, []byte(`[1,2]`))
	assert.True(t, core.IsInvalidParameter(err))

	view, steps, err := svc.AutoClean(id)
	require.NoError(t, err)
	assert.True(t, view.DFModified)
	assert.NotEmpty(t, steps)
	assert.Contains(t, view.TableHTML, "SMITH")
	assert.True(t, view.UndoRedo.UndoEnabled)
}

func TestReadOnlyQueries(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	stats, err := svc.ColumnStats(id, "age")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRows)
	_, err = svc.ColumnStats(id, "missing")
	assert.True(t, core.IsColumnNotFound(err))

	suggestions, err := svc.Suggestions(id, "name", "sm")
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith", "Smiley"}, suggestions)

	ranges, err := svc.OutlierRanges(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, ranges, "age")

	cols, err := svc.ValidFormulaColumns(id, "SUM")
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, cols)

	res, err := svc.ApplyFormula(id, formula.Request{Formula: "sum", Column: "age"})
	require.NoError(t, err)
	assert.Equal(t, "60", res.Value)
}

func TestSaveAndOpenWithMockRepository(t *testing.T) {
	ctx := context.Background()
	repo := new(mockSavedRepo)
	svc := newService(t, repo)
	id := upload(t, svc).SessionID

	_, _, err := svc.SaveAutoCleanConfig(id, []byte(`{"case_change_method":"title"}`))
	require.NoError(t, err)

	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *ports.SavedSession) bool {
		return s.Filename == "my_data" && s.RowCount == 3 && s.ColumnCount == 2 &&
			s.SourceName == "people.csv" && strings.Contains(string(s.AutoCleanConfig), `"title"`)
	})).Return(nil).Once()

	saved, err := svc.Save(ctx, id, "my data.csv")
	require.NoError(t, err)
	assert.Equal(t, "my_data", saved.SavedFilename)

	repo.On("GetByFilename", mock.Anything, "my_data").Return(&ports.SavedSession{
		Filename:        "my_data",
		SourceName:      "people.csv",
		AutoCleanConfig: json.RawMessage(`{"case_change_method":"title"}`),
	}, nil).Once()

	view, err := svc.OpenSaved(ctx, id, "my_data")
	require.NoError(t, err)
	assert.NotEqual(t, id, view.SessionID)
	assert.Equal(t, 3, view.TotalRows)

	cfg, err := svc.AutoCleanConfig(view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, autoclean.CaseTitle, cfg.CaseChangeMethod)

	_, err = svc.Table(id)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))

	export, err := svc.Download(view.SessionID, "csv")
	require.NoError(t, err)
	assert.Equal(t, "my_data_cleaned.csv", export.Filename)
	assert.Equal(t, peopleCSV, string(export.Data))

	repo.AssertExpectations(t)
}

func TestOpenSavedMissingFile(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	_, err := svc.OpenSaved(context.Background(), "", "ghost")
	assert.True(t, core.IsNotFoundError(err))

	err = svc.DeleteSaved(context.Background(), "ghost")
	assert.True(t, errors.Is(err, core.ErrSavedFileNotFound))
}

func TestDeleteAndPurgeSaved(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSavedSessionRepository()
	svc := newService(t, repo)
	id := upload(t, svc).SessionID

	_, err := svc.Save(ctx, id, "keep")
	require.NoError(t, err)
	_, err = svc.Save(ctx, id, "drop")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSaved(ctx, "drop"))
	list, err := svc.ListSaved(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Filename)

	removed, err := svc.PurgeSaved(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	list, err = svc.ListSaved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDownloadRejectsUnknownType(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID

	_, err := svc.Download(id, "parquet")
	assert.True(t, core.IsInvalidParameter(err))

	export, err := svc.Download(id, "XLSX")
	require.NoError(t, err)
	assert.Equal(t, "people_cleaned.xlsx", export.Filename)
	assert.NotEmpty(t, export.Data)
}

func TestDownloadSavedWithoutSession(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID
	_, err := svc.Save(ctx, id, "archive")
	require.NoError(t, err)

	export, err := svc.DownloadSaved(ctx, "archive", "csv")
	require.NoError(t, err)
	assert.Equal(t, "archive.csv", export.Filename)
	assert.Equal(t, peopleCSV, string(export.Data))

	_, err = svc.DownloadSaved(ctx, "missing", "csv")
	assert.True(t, errors.Is(err, core.ErrSavedFileNotFound))

	_, err = svc.DownloadSaved(ctx, "archive", "json")
	assert.True(t, core.IsInvalidParameter(err))
}

func TestSavedName(t *testing.T) {
	assert.Equal(t, "report_2024", SavedName("report 2024.xlsx", "x.csv"))
	assert.Equal(t, "a_b", SavedName("../a/b", "x.csv"))
	assert.True(t, strings.HasPrefix(SavedName("", "sales data.csv"), "sales_data_"))
	assert.True(t, strings.HasPrefix(SavedName("!!!", "x.csv"), "session_"))
}

func TestResetRemovesSession(t *testing.T) {
	svc := newService(t, memory.NewSavedSessionRepository())
	id := upload(t, svc).SessionID
	assert.True(t, svc.Reset(id))
	assert.False(t, svc.Reset(id))
	_, err := svc.Table(id)
	assert.True(t, core.IsNotFoundError(err))
}
