package render

import (
	"html/template"
	"log"
	"strings"

	"tidyframe/domain/frame"
)

// DefaultMaxRows is how many rows a table preview shows
const DefaultMaxRows = 999

// NullLabel marks missing cells in the preview
const NullLabel = "NULL"

const emptyTable = `<p class="text-center text-muted p-4">No data to display or data is empty.</p>`

var tableTemplate = template.Must(template.New("table").Parse(
	`<table class="table table-bordered table-hover table-sm">` +
		`<thead><tr><th>#</th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr><td>{{.Number}}</td>` +
		`{{range .Cells}}{{if .Missing}}<td class="null-cell">{{.Text}}</td>{{else}}<td>{{.Text}}</td>{{end}}{{end}}` +
		`</tr>{{end}}</tbody></table>`))

// Table is a rendered preview with the dimensions of the full view
type Table struct {
	HTML         string
	TotalRows    int
	TotalColumns int
	Columns      []string
	ShownRows    int
}

type cell struct {
	Text    string
	Missing bool
}

type row struct {
	Number int
	Cells  []cell
}

// Renderer turns frames into HTML table previews
type Renderer struct {
	maxRows int
}

// NewRenderer creates a renderer showing at most maxRows rows; maxRows <= 0 uses DefaultMaxRows
func NewRenderer(maxRows int) *Renderer {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Renderer{maxRows: maxRows}
}

// MaxRows returns the preview row cap
func (r *Renderer) MaxRows() int {
	return r.maxRows
}

// Render previews f. When rows is non-nil only those row positions form the view, in the given
// order; row numbers count the view from 1.
func (r *Renderer) Render(f *frame.Frame, rows []int) (Table, error) {
	if f == nil {
		return Table{HTML: emptyTable, Columns: []string{}}, nil
	}
	view := f
	if rows != nil {
		view = f.Take(rows)
	}
	t := Table{TotalRows: view.NumRows(), TotalColumns: view.NumCols(), Columns: view.ColumnNames()}
	if view.NumRows() == 0 || view.NumCols() == 0 {
		t.HTML = emptyTable
		return t, nil
	}

	head := view.Head(r.maxRows)
	cols := head.Columns()
	data := struct {
		Columns []string
		Rows    []row
	}{Columns: t.Columns, Rows: make([]row, head.NumRows())}
	for i := range data.Rows {
		cells := make([]cell, len(cols))
		for j, col := range cols {
			v := col.At(i)
			if v.IsMissing() {
				cells[j] = cell{Text: NullLabel, Missing: true}
				continue
			}
			cells[j] = cell{Text: v.String()}
		}
		data.Rows[i] = row{Number: i + 1, Cells: cells}
	}

	var buf strings.Builder
	if err := tableTemplate.Execute(&buf, data); err != nil {
		log.Printf("[TableRenderer] Failed to render table: %v", err)
		return Table{}, err
	}
	t.HTML = buf.String()
	t.ShownRows = head.NumRows()
	return t, nil
}
