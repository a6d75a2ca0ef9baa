package repo

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFile names the per-directory-root file listing paths Snapshot
// leaves out. Patterns follow the usual gitignore subset: "#" comments,
// "!" negation, a trailing "/" for directories only, "*" "?" and "[...]"
// within one component, "**" across components. Patterns containing a
// slash match the full relative path; others match the base name. The
// last matching pattern wins.
const IgnoreFile = ".snapvaultignore"

type ignoreRule struct {
	glob     string
	negated  bool
	dirOnly  bool
	anchored bool
	re       *regexp.Regexp
}

type ignoreRules []ignoreRule

// loadIgnoreRules reads root/.snapvaultignore. A missing file yields no rules.
func loadIgnoreRules(root string) (ignoreRules, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rules ignoreRules
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		rule, ok, err := parseIgnoreLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", IgnoreFile, err)
		}
		if ok {
			rules = append(rules, rule)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", IgnoreFile, err)
	}
	return rules, nil
}

func parseIgnoreLine(line string) (ignoreRule, bool, error) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false, nil
	}

	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignoreRule{}, false, nil
	}
	rule.anchored = strings.Contains(line, "/")
	rule.glob = line

	if strings.Contains(line, "**") {
		re, err := regexp.Compile(globstarRegexp(line))
		if err != nil {
			return ignoreRule{}, false, fmt.Errorf("pattern %q: %w", line, err)
		}
		rule.re = re
	} else if _, err := path.Match(line, ""); err != nil {
		return ignoreRule{}, false, fmt.Errorf("pattern %q: %w", line, err)
	}
	return rule, true, nil
}

// Ignored reports whether rel, a slash-separated path relative to the
// snapshot root, is excluded.
func (rules ignoreRules) Ignored(rel string, isDir bool) bool {
	ignored := false
	base := path.Base(rel)
	for _, rule := range rules {
		if rule.dirOnly && !isDir {
			continue
		}
		target := base
		if rule.anchored || rule.re != nil {
			target = rel
		}
		if rule.match(target) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func (rule ignoreRule) match(target string) bool {
	if rule.re != nil {
		return rule.re.MatchString(target)
	}
	ok, _ := path.Match(rule.glob, target)
	return ok
}

func globstarRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	if !strings.Contains(strings.ReplaceAll(glob, "**", ""), "/") && !strings.HasPrefix(glob, "**") {
		b.WriteString("(?:.*/)?")
	}
	for i := 0; i < len(glob); i++ {
		ch := glob[i]
		switch {
		case ch == '*' && i+1 < len(glob) && glob[i+1] == '*':
			if i+2 < len(glob) && glob[i+2] == '/' {
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
