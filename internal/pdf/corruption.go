package pdf

import (
	"regexp"
	"strings"

	"github.com/pdfblocks/pdfblocks/internal/config"
)

// Corrupted decode patterns. CID escapes appear verbatim when a font has no
// usable ToUnicode map; the known character set covers Latin-1 mojibake
// produced by mis-decoded CJK fonts.
var (
	cidPattern       = regexp.MustCompile(`\(cid:\d+\)`)
	strongRunPattern = regexp.MustCompile("[#$%&*+/<=>@\\\\^`|~]{3,}")
	weakRunPattern   = regexp.MustCompile("[#$%&*+/<=>@\\\\^`|~'\"()]{5,}")
)

// Latin-1 supplement characters that legitimate European text rarely opens
// with but mis-decoded multi-byte fonts produce constantly.
const knownCorruptedChars = "‹ŒÙÚÛÜñûýÞÅÆÇÈÉÊËÎÏÑÒÓÔÕÖßàáâãäåæçèéêëìíîïðòóôõöøùúÝþÿ¡¢£¤¥¦§¨©ª«¬®¯°±²³´µ¶·¸¹º»¼½¾¿ÀÁÂÃÄ"

// ASCII punctuation that signals corruption when it dominates a page
const suspiciousASCII = "#$%&*+/<=>@\\^`|~"

// Fixed ratios reported for run-pattern matches
const (
	strongRunRatio = 0.8
	weakRunRatio   = 0.7
)

// Detector decides whether extracted page text is mojibake rather than
// prose. Thresholds are exported so tests can tighten or relax individual
// signals; NewDetector fills in the tuned defaults.
type Detector struct {
	// SampleSize is the number of runes inspected from the head of the text
	SampleSize int
	// CIDThreshold is the number of (cid:N) escapes above which the page is
	// flagged outright
	CIDThreshold int
	// KnownCharRatio is the share of known mis-decoded characters in the
	// sample above which the page is flagged
	KnownCharRatio float64
	// StrongRunCount and WeakRunCount are the number of special-character
	// runs that flag the page at strongRunRatio and weakRunRatio
	StrongRunCount int
	WeakRunCount   int
	// StructuralThreshold is the number of malformed object references on a
	// page above which the page is treated as damaged regardless of how the
	// text reads
	StructuralThreshold int
	// Threshold is the suspicious-character ratio above which the fallback
	// classification flags the page
	Threshold float64
}

// NewDetector returns a detector with the tuned defaults, taking the final
// ratio threshold from cfg
func NewDetector(cfg config.Config) *Detector {
	return &Detector{
		SampleSize:          500,
		CIDThreshold:        3,
		KnownCharRatio:      0.05,
		StrongRunCount:      3,
		WeakRunCount:        2,
		StructuralThreshold: 3,
		Threshold:           cfg.CorruptionThreshold,
	}
}

// Detect reports whether text looks corrupted and the ratio that triggered
// the decision. Signals are checked in order of confidence and the first
// match wins: CID escapes, known mojibake characters, special-character
// runs, then the general suspicious-character ratio.
func (d *Detector) Detect(text string) (bool, float64) {
	if strings.TrimSpace(text) == "" {
		return false, 0
	}

	runes := []rune(text)
	if len(runes) > d.SampleSize {
		runes = runes[:d.SampleSize]
	}
	sample := string(runes)

	if len(cidPattern.FindAllString(sample, -1)) > d.CIDThreshold {
		return true, 1.0
	}

	known := 0
	for _, r := range runes {
		if strings.ContainsRune(knownCorruptedChars, r) {
			known++
		}
	}
	if float64(known) > float64(len(runes))*d.KnownCharRatio {
		return true, float64(known) / float64(len(runes))
	}

	if len(strongRunPattern.FindAllString(sample, -1)) >= d.StrongRunCount {
		return true, strongRunRatio
	}
	if len(weakRunPattern.FindAllString(sample, -1)) >= d.WeakRunCount {
		return true, weakRunRatio
	}

	ratio := d.suspiciousRatio(runes)
	return ratio > d.Threshold, ratio
}

// DetectStructural maps a malformed object reference count to a corruption
// verdict. The reported ratio is count/10 and can exceed 1 on badly damaged
// pages.
func (d *Detector) DetectStructural(malformed int) (bool, float64) {
	if malformed >= d.StructuralThreshold {
		return true, float64(malformed) / 10
	}
	return false, 0
}

// suspiciousRatio classifies each rune in the sample. ASCII is fine unless
// it is one of the suspicious punctuation characters; Hangul, CJK and the
// Latin-1 letter block are fine unless the rune is a known mojibake
// character; everything else counts against the page.
func (d *Detector) suspiciousRatio(runes []rune) float64 {
	suspect := 0
	for _, r := range runes {
		switch {
		case r <= 127:
			if strings.ContainsRune(suspiciousASCII, r) {
				suspect++
			}
		case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		case r >= 0x1100 && r <= 0x11FF: // Hangul jamo
		case r >= 0x3131 && r <= 0x318E: // Hangul compatibility jamo
		case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		case r >= 0x00C0 && r <= 0x00FF:
			if strings.ContainsRune(knownCorruptedChars, r) {
				suspect++
			}
		default:
			suspect++
		}
	}
	return float64(suspect) / float64(len(runes))
}
