package mirror

import (
	"bufio"
	"fmt"
	"os"

	gitignore "github.com/sabhiram/go-gitignore"
)

// RuleList holds gitignore-style exclusion patterns. Excluded paths are
// invisible to both passes: never copied, never pruned. There are no
// built-in rules, an empty list mirrors everything.
type RuleList struct {
	matcher *gitignore.GitIgnore
	rules   int
}

// NewRuleList compiles inline patterns into a rule list.
func NewRuleList(patterns ...string) *RuleList {
	return &RuleList{
		matcher: gitignore.CompileIgnoreLines(patterns...),
		rules:   len(patterns),
	}
}

// LoadRuleList reads one pattern per line from path and appends the
// inline patterns. An unreadable file is an error: running with fewer
// rules than the user asked for could prune replica paths they meant
// to protect.
func LoadRuleList(path string, patterns ...string) (*RuleList, error) {
	if path == "" {
		return NewRuleList(patterns...), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exclusion rules: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read exclusion rules %s: %w", path, err)
	}

	lines = append(lines, patterns...)
	return &RuleList{
		matcher: gitignore.CompileIgnoreLines(lines...),
		rules:   len(lines),
	}, nil
}

// Excluded reports whether the relative path is filtered out.
// Directories are matched with a trailing slash so dir-only patterns
// like "cache/" apply.
func (l *RuleList) Excluded(relPath string, isDir bool) bool {
	if l == nil || l.matcher == nil {
		return false
	}
	if isDir {
		relPath += "/"
	}
	return l.matcher.MatchesPath(relPath)
}

// Len returns the number of compiled rules.
func (l *RuleList) Len() int {
	if l == nil {
		return 0
	}
	return l.rules
}
