package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser reads .gitignore files and turns them into doublestar
// exclusion patterns understood by the file scanner
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

// NewGitignoreParser creates a new gitignore parser
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	return gp.scanAndParsePatterns(file)
}

func (gp *GitignoreParser) scanAndParsePatterns(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return scanner.Err()
}

// AddPattern adds a single gitignore line
func (gp *GitignoreParser) AddPattern(line string) {
	pattern := GitignorePattern{}
	if strings.HasPrefix(line, "!") {
		pattern.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		pattern.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		pattern.Absolute = true
		line = line[1:]
	}
	if line == "" {
		return
	}
	pattern.Pattern = line
	gp.patterns = append(gp.patterns, pattern)
}

// ShouldIgnore reports whether the slash-separated relative path is
// ignored. Later patterns override earlier ones, negations included.
func (gp *GitignoreParser) ShouldIgnore(path string) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, pattern := range gp.patterns {
		for _, glob := range toGlobs(pattern) {
			if ok, _ := doublestar.Match(glob, path); ok {
				ignored = !pattern.Negate
				break
			}
		}
	}
	return ignored
}

// GetExclusionPatterns returns the non-negated patterns as exclusions.
// Negations cannot be expressed as exclusions and are skipped.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, pattern := range gp.patterns {
		if pattern.Negate {
			continue
		}
		exclusions = append(exclusions, toGlobs(pattern)...)
	}
	return exclusions
}

// toGlobs converts a gitignore pattern to doublestar globs. A plain name
// matches a file or a directory with that name anywhere in the tree.
func toGlobs(pattern GitignorePattern) []string {
	p := pattern.Pattern
	if !pattern.Absolute && !strings.HasPrefix(p, "**/") {
		p = "**/" + p
	}
	if pattern.Directory {
		return []string{p + "/**"}
	}
	return []string{p, p + "/**"}
}

// LoadGitignorePatterns returns the exclusion patterns of root/.gitignore
func LoadGitignorePatterns(root string) []string {
	gp := NewGitignoreParser()
	if err := gp.LoadGitignore(root); err != nil {
		return nil
	}
	return gp.GetExclusionPatterns()
}
