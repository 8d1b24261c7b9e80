package pdf

import "sort"

// OrderBlocks merges independently extracted text regions, tables and images
// into one reading-order sequence sorted by vertical position from the top
// of the page. The sort is stable and the inputs are concatenated text,
// table, image, so fragments sharing an exact coordinate keep that relative
// order (a table and its caption commonly report the same position).
func OrderBlocks(texts, tables, images []Block) []Block {
	blocks := make([]Block, 0, len(texts)+len(tables)+len(images))
	for _, b := range texts {
		b.Type = BlockText
		blocks = append(blocks, b)
	}
	for _, b := range tables {
		b.Type = BlockTable
		blocks = append(blocks, b)
	}
	for _, b := range images {
		b.Type = BlockImage
		blocks = append(blocks, b)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].top < blocks[j].top
	})

	return blocks
}

// MergeAdjacentTextBlocks coalesces neighbouring text blocks. Text regions
// arrive here as maximal non-table spans, so there is nothing to merge
// today; the stage stays in the pipeline as the seam for a future
// coalescing policy.
func MergeAdjacentTextBlocks(blocks []Block) []Block {
	return blocks
}
