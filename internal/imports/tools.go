package imports

import (
	// Tool packages register themselves with the registry on import
	_ "github.com/pdfblocks/pdfblocks/internal/tools/greppdf"
	_ "github.com/pdfblocks/pdfblocks/internal/tools/listpdfs"
	_ "github.com/pdfblocks/pdfblocks/internal/tools/readpdf"
	_ "github.com/pdfblocks/pdfblocks/internal/tools/toolhelp"
)
