package pdf

import "strings"

// FillMergedCells resolves vertically merged cells: an empty cell inherits
// the nearest non-empty value above it in the same column. Leading empty
// cells with nothing above them stay empty. The input is not mutated.
func FillMergedCells(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}

	filled := make([][]string, len(rows))
	for i, row := range rows {
		filled[i] = append([]string(nil), row...)
	}

	// Column count follows the first row, matching the extraction layer's
	// notion of the table grid. Short rows are skipped per column.
	for col := 0; col < len(filled[0]); col++ {
		last := ""
		for _, row := range filled {
			if col >= len(row) {
				continue
			}
			if strings.TrimSpace(row[col]) == "" {
				row[col] = last
			} else {
				last = row[col]
			}
		}
	}

	return filled
}

// NormalizeColumns right-pads every row with empty cells to the widest
// observed column count so the grid is rectangular
func NormalizeColumns(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}

	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}

	normalized := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, maxCols)
		copy(padded, row)
		normalized[i] = padded
	}

	return normalized
}

// ToMarkdown renders a cell grid as a Markdown table: first row as header,
// then a separator row, then data rows. Merged cells are filled, rows are
// normalised to a rectangle, and cell text is flattened so embedded pipes
// and newlines cannot break the table syntax. An empty grid renders as an
// empty string.
func ToMarkdown(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cleaned := FillMergedCells(rows)
	for i, row := range cleaned {
		for j, cell := range row {
			cleaned[i][j] = cleanCell(cell)
		}
	}
	cleaned = NormalizeColumns(cleaned)

	cols := len(cleaned[0])
	separator := make([]string, cols)
	for i := range separator {
		separator[i] = "---"
	}

	lines := make([]string, 0, len(cleaned)+1)
	lines = append(lines, "| "+strings.Join(cleaned[0], " | ")+" |")
	lines = append(lines, "| "+strings.Join(separator, " | ")+" |")
	for _, row := range cleaned[1:] {
		lines = append(lines, "| "+strings.Join(row, " | ")+" |")
	}

	return strings.Join(lines, "\n")
}

func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	cell = strings.ReplaceAll(cell, "\n", " ")
	cell = strings.ReplaceAll(cell, "|", `\|`)
	return cell
}
