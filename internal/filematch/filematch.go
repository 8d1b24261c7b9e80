// Package filematch suggests existing PDF files when a requested path does
// not exist. Filenames are split into Hangul, ASCII and numeric keywords so
// a half-remembered mixed-language name still finds its file.
package filematch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

var (
	hangulRun = regexp.MustCompile(`[가-힣]+`)
	letterRun = regexp.MustCompile(`[a-z]+`)
	digitRun  = regexp.MustCompile(`\d+`)
)

// Keywords splits a filename stem into the runs a reader would search by:
// Hangul words, ASCII words (lowercased) and numbers, in that order.
func Keywords(stem string) []string {
	var keywords []string
	keywords = append(keywords, hangulRun.FindAllString(stem, -1)...)
	keywords = append(keywords, letterRun.FindAllString(strings.ToLower(stem), -1)...)
	keywords = append(keywords, digitRun.FindAllString(stem, -1)...)
	return keywords
}

// FindSimilar suggests existing PDFs close to a requested path that does not
// exist. Candidates come from the requested path's directory, the working
// directory and sample_pdfs/, each searched one subdirectory level deep. A
// keyword pre-filter keeps the fuzzy ranking from pairing names that merely
// share a few letters; when no candidate shares a keyword the ranking falls
// back to all of them. Returned paths are relative to the working directory
// where possible.
func FindSimilar(requested string, maxSuggestions int) []string {
	if maxSuggestions <= 0 {
		return nil
	}

	candidates := collectCandidates(requested)
	if len(candidates) == 0 {
		return nil
	}

	base := filepath.Base(requested)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	filtered := filterByKeywords(candidates, Keywords(stem))
	if len(filtered) == 0 {
		filtered = candidates
	}

	names := make([]string, len(filtered))
	for i, candidate := range filtered {
		names[i] = strings.ToLower(filepath.Base(candidate))
	}
	matches := fuzzy.Find(strings.ToLower(base), names)

	var similar []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		if len(similar) >= maxSuggestions {
			break
		}
		path := relativeToCwd(filtered[m.Index])
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		similar = append(similar, path)
	}
	return similar
}

// NotFoundMessage builds the FILE_NOT_FOUND message, listing similar files
// when there are any
func NotFoundMessage(requested string, similar []string) string {
	base := fmt.Sprintf("PDF file not found: %s", requested)
	if len(similar) == 0 {
		return base + "\n\nCould not find similar PDF files in the current directory."
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nDid you mean one of these?\n")
	for _, f := range similar {
		b.WriteString("  - ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nPlease verify the exact file path or use the list_pdfs tool to see available PDF files.")
	return b.String()
}

// collectCandidates gathers PDF paths from the search directories, each one
// subdirectory level deep, deduplicated in discovery order
func collectCandidates(requested string) []string {
	var dirs []string
	if parent := filepath.Dir(requested); parent != "." {
		if info, err := os.Stat(parent); err == nil && info.IsDir() {
			dirs = append(dirs, parent)
		}
	}
	dirs = append(dirs, ".")
	if info, err := os.Stat("sample_pdfs"); err == nil && info.IsDir() {
		dirs = append(dirs, "sample_pdfs")
	}

	var candidates []string
	seen := make(map[string]struct{})
	add := func(paths []string) {
		for _, p := range paths {
			if info, err := os.Stat(p); err != nil || info.IsDir() {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			candidates = append(candidates, p)
		}
	}

	for _, dir := range dirs {
		if matches, err := filepath.Glob(filepath.Join(dir, "*.pdf")); err == nil {
			add(matches)
		}
		if matches, err := filepath.Glob(filepath.Join(dir, "*", "*.pdf")); err == nil {
			add(matches)
		}
	}
	return candidates
}

// filterByKeywords keeps candidates whose stem contains any keyword of two
// runes or more. Single characters match almost everything and only add
// noise.
func filterByKeywords(candidates, keywords []string) []string {
	var filtered []string
	for _, candidate := range candidates {
		base := filepath.Base(candidate)
		stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
		for _, kw := range keywords {
			if utf8.RuneCountInString(kw) < 2 {
				continue
			}
			if strings.Contains(stem, kw) {
				filtered = append(filtered, candidate)
				break
			}
		}
	}
	return filtered
}

// relativeToCwd rewrites a path relative to the working directory, keeping
// it as-is when it lives outside
func relativeToCwd(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
