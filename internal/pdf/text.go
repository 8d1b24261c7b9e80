package pdf

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Layout grouping thresholds, in PDF points.
const (
	rowTolerance        = 3.0  // Y distance for glyphs to share a row
	columnTolerance     = 10.0 // X distance for cells to share a column
	wordSpaceMultiplier = 0.3  // fraction of font size treated as a word gap
	defaultPageHeight   = 792  // US Letter, used when no MediaBox resolves
)

// PageContent is the positioned text of one page: the table cell matrices
// that were detected plus the text regions around them. Regions never
// overlap table rows, so cell text is not duplicated into the page text.
type PageContent struct {
	Regions []TextRegion
	Tables  []Table
}

// TextExtractor reads positioned text through ledongthuc/pdf. The parser
// panics on some malformed content streams; every method converts those
// panics into an error scoped to the requested page.
type TextExtractor struct {
	file   *os.File
	reader *pdf.Reader
}

// OpenTextExtractor opens the positioned-text view of a document.
func OpenTextExtractor(path string) (*TextExtractor, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}
	return &TextExtractor{file: f, reader: r}, nil
}

// Close releases the underlying file handle.
func (t *TextExtractor) Close() error {
	return t.file.Close()
}

// PageContent extracts the tables and surrounding text regions of a page.
// Tables are best effort: when no aligned grid is found the whole page
// comes back as a single text region at the top and zero tables.
func (t *TextExtractor) PageContent(pageNr int) (content *PageContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("panic during text extraction on page %d: %v", pageNr, r)
		}
	}()

	page := t.reader.Page(pageNr)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d is missing or malformed", pageNr)
	}

	height := pageHeight(page)
	glyphs := dropEmptyGlyphs(page.Content().Text)
	if len(glyphs) == 0 {
		return &PageContent{}, nil
	}

	grouped := groupIntoRows(glyphs, rowTolerance)
	rows := make([][]wordBlock, len(grouped))
	tops := make([]float64, len(grouped))
	for i, row := range grouped {
		rows[i] = mergeRowWords(row.texts)
		tops[i] = height - row.yMax
	}

	spans := detectTableSpans(rows)

	content = &PageContent{}
	for _, span := range spans {
		content.Tables = append(content.Tables, Table{Top: tops[span.startRow], Rows: span.cells})
	}
	content.Regions = splitRegions(rows, tops, spans)
	return content, nil
}

// PlainText returns the page text without positions. Used for the cheap
// character-count probe in image_only mode.
func (t *TextExtractor) PlainText(pageNr int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("panic during text extraction on page %d: %v", pageNr, r)
		}
	}()

	page := t.reader.Page(pageNr)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// pageHeight resolves the page height in PDF points, following MediaBox
// inheritance up the page tree. Falls back to US Letter.
func pageHeight(page pdf.Page) float64 {
	node := page.V
	for depth := 0; depth < 16 && !node.IsNull(); depth++ {
		if mb := node.Key("MediaBox"); mb.Kind() == pdf.Array && mb.Len() == 4 {
			lower := numericValue(mb.Index(1))
			upper := numericValue(mb.Index(3))
			if upper > lower {
				return upper - lower
			}
		}
		node = node.Key("Parent")
	}
	return defaultPageHeight
}

// numericValue reads a PDF integer or real as a float64.
func numericValue(v pdf.Value) float64 {
	switch v.Kind() {
	case pdf.Integer:
		return float64(v.Int64())
	case pdf.Real:
		return v.Float64()
	}
	return 0
}

// dropEmptyGlyphs removes glyphs that carry no visible text.
func dropEmptyGlyphs(texts []pdf.Text) []pdf.Text {
	filtered := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) != "" {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// textRow is a Y bucket of glyphs that render on the same visual line.
// yMin and yMax are in PDF coordinates, origin bottom left.
type textRow struct {
	yMin, yMax float64
	texts      []pdf.Text
}

// groupIntoRows buckets glyphs into visual rows by Y coordinate, then
// sorts rows top of page first and glyphs within a row left to right.
func groupIntoRows(texts []pdf.Text, tolerance float64) []textRow {
	var rows []textRow
	for _, t := range texts {
		placed := false
		for i := range rows {
			if t.Y >= rows[i].yMin-tolerance && t.Y <= rows[i].yMax+tolerance {
				rows[i].texts = append(rows[i].texts, t)
				if t.Y < rows[i].yMin {
					rows[i].yMin = t.Y
				}
				if t.Y > rows[i].yMax {
					rows[i].yMax = t.Y
				}
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, textRow{yMin: t.Y, yMax: t.Y, texts: []pdf.Text{t}})
		}
	}

	// Higher Y renders higher on the page
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].yMax > rows[j].yMax })
	for i := range rows {
		row := rows[i].texts
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
	}
	return rows
}

// wordBlock is a run of glyphs merged into one positioned piece of text.
type wordBlock struct {
	x, w float64
	text string
}

// mergeRowWords joins adjacent glyphs into word blocks. A gap wider than
// wordSpaceMultiplier of the font size starts a new block, which is what
// separates table cells from ordinary word spacing.
func mergeRowWords(row []pdf.Text) []wordBlock {
	if len(row) == 0 {
		return nil
	}

	blocks := make([]wordBlock, 0, 4)
	current := wordBlock{x: row[0].X, w: row[0].W, text: row[0].S}
	for _, t := range row[1:] {
		threshold := wordSpaceMultiplier * t.FontSize
		if threshold == 0 {
			threshold = 3.0
		}
		if gap := t.X - (current.x + current.w); gap <= threshold {
			current.w = t.X + t.W - current.x
			current.text += t.S
		} else {
			blocks = append(blocks, current)
			current = wordBlock{x: t.X, w: t.W, text: t.S}
		}
	}
	return append(blocks, current)
}

// tableSpan is a run of consecutive rows that share a column grid.
// endRow is exclusive.
type tableSpan struct {
	startRow, endRow int
	cells            [][]string
}

// detectTableSpans finds runs of two or more consecutive rows whose cells
// align on at least two columns. Detection is conservative: pages without
// grid structure yield no spans and their text stays whole.
func detectTableSpans(rows [][]wordBlock) []tableSpan {
	var spans []tableSpan
	i := 0
	for i < len(rows) {
		if len(rows[i]) < 2 {
			i++
			continue
		}
		j := i + 1
		for j < len(rows) && len(rows[j]) >= 2 && alignedColumns(rows[j-1], rows[j]) >= 2 {
			j++
		}
		if j-i >= 2 {
			if grid := columnGrid(rows[i:j]); len(grid) >= 2 {
				spans = append(spans, tableSpan{startRow: i, endRow: j, cells: cellMatrix(rows[i:j], grid)})
			}
		}
		i = j
	}
	return spans
}

// alignedColumns counts how many cell start positions two rows share.
func alignedColumns(a, b []wordBlock) int {
	matches := 0
	for _, cellA := range a {
		for _, cellB := range b {
			if math.Abs(cellA.x-cellB.x) <= columnTolerance {
				matches++
				break
			}
		}
	}
	return matches
}

// columnGrid clusters the cell start positions of a row run into column
// X coordinates. A cluster only counts as a column when at least two
// rows contribute to it.
func columnGrid(rows [][]wordBlock) []float64 {
	type cluster struct {
		x    float64
		rows map[int]struct{}
	}
	var clusters []cluster
	for rowIdx, row := range rows {
		for _, b := range row {
			placed := false
			for i := range clusters {
				if math.Abs(clusters[i].x-b.x) <= columnTolerance {
					clusters[i].rows[rowIdx] = struct{}{}
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, cluster{x: b.x, rows: map[int]struct{}{rowIdx: {}}})
			}
		}
	}

	var grid []float64
	for _, c := range clusters {
		if len(c.rows) >= 2 {
			grid = append(grid, c.x)
		}
	}
	sort.Float64s(grid)
	return grid
}

// cellMatrix assigns every cell of the run to its nearest grid column.
// Cells landing on the same column are joined with spaces; columns with
// no cell stay empty, which feeds the merged-cell fill downstream.
func cellMatrix(rows [][]wordBlock, grid []float64) [][]string {
	matrix := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(grid))
		for _, b := range row {
			text := strings.TrimSpace(b.text)
			if text == "" {
				continue
			}
			col := nearestColumn(grid, b.x)
			if cells[col] != "" {
				cells[col] += " "
			}
			cells[col] += text
		}
		matrix[i] = cells
	}
	return matrix
}

// nearestColumn returns the index of the grid position closest to x.
func nearestColumn(grid []float64, x float64) int {
	best := 0
	bestDist := math.Abs(grid[0] - x)
	for i := 1; i < len(grid); i++ {
		if d := math.Abs(grid[i] - x); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// splitRegions assembles the text regions around the detected table
// spans: the rows above the first table, the rows between consecutive
// tables and the rows below the last one. Rows inside a span belong to
// the table and are excluded. With no spans the whole page is one region
// at the top.
func splitRegions(rows [][]wordBlock, tops []float64, spans []tableSpan) []TextRegion {
	var regions []TextRegion
	appendRegion := func(top float64, startRow, endRow int) {
		if text := joinRows(rows, startRow, endRow); text != "" {
			regions = append(regions, TextRegion{Top: top, Text: text})
		}
	}

	if len(spans) == 0 {
		appendRegion(0, 0, len(rows))
		return regions
	}

	appendRegion(0, 0, spans[0].startRow)
	for i := 0; i < len(spans)-1; i++ {
		appendRegion(tops[spans[i].endRow], spans[i].endRow, spans[i+1].startRow)
	}
	if last := spans[len(spans)-1]; last.endRow < len(rows) {
		appendRegion(tops[last.endRow], last.endRow, len(rows))
	}
	return regions
}

// joinRows renders rows [startRow, endRow) as text, blocks separated by
// single spaces and rows by newlines.
func joinRows(rows [][]wordBlock, startRow, endRow int) string {
	var sb strings.Builder
	for i := startRow; i < endRow && i < len(rows); i++ {
		line := rowText(rows[i])
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// rowText joins the blocks of one row left to right.
func rowText(blocks []wordBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if s := strings.TrimSpace(b.text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
