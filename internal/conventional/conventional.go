// Package conventional classifies commit messages following the
// Conventional Commits convention.
package conventional

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sprite-ai/relnotes/internal/model"
)

// headerRe matches `type(scope)!: description` on the first line.
var headerRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)(?:\(([^()]*)\))?(!)?:\s+(\S.*)$`)

var breakingFooters = []string{"BREAKING CHANGE:", "BREAKING-CHANGE:"}

// Header is the parsed first line of a commit message.
type Header struct {
	Type        model.CommitType
	Scope       string
	Breaking    bool
	Description string // first line verbatim when the message is not conventional
}

// Parse splits a commit message into its conventional-commit parts.
// It never fails: anything unrecognised becomes Other("").
func Parse(message string) Header {
	message = strings.TrimLeft(message, " \t\r\n")
	first, body, _ := strings.Cut(message, "\n")
	first = strings.TrimSpace(first)

	h := Header{Type: model.Other(""), Description: first}
	if m := headerRe.FindStringSubmatch(first); m != nil {
		token := strings.ToLower(m[1])
		if k, ok := model.KindForToken(token); ok {
			h.Type = model.TypeOf(k)
		} else {
			h.Type = model.Other(token)
		}
		h.Scope = strings.TrimSpace(m[2])
		h.Breaking = m[3] == "!"
		h.Description = strings.TrimSpace(m[4])
	}

	if !h.Breaking {
		h.Breaking = hasBreakingFooter(body)
	}
	return h
}

// Classify returns the commit type and whether the commit is breaking.
func Classify(message string) (model.CommitType, bool) {
	h := Parse(message)
	return h.Type, h.Breaking
}

func hasBreakingFooter(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, footer := range breakingFooters {
			if strings.HasPrefix(line, footer) {
				return true
			}
		}
	}
	return false
}

var (
	mergeRe = regexp.MustCompile(`^Merge pull request #(\d+)\b`)
	prRe    = regexp.MustCompile(`\(#(\d+)\)`)
	issueRe = regexp.MustCompile(`#(\d+)\b`)
)

// References extracts the pull request number and any other "#N" issue
// references from a message. The pull request comes from a merge commit
// subject ("Merge pull request #123 from ...") or a "(#123)" as added by
// squash merges. pr is 0 when no pull request reference is present.
func References(message string) (pr int, issues []int) {
	if m := mergeRe.FindStringSubmatch(strings.TrimSpace(message)); m != nil {
		pr, _ = strconv.Atoi(m[1])
	} else if m := prRe.FindStringSubmatch(message); m != nil {
		pr, _ = strconv.Atoi(m[1])
	}

	seen := make(map[int]bool)
	for _, m := range issueRe.FindAllStringSubmatch(message, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 || n == pr || seen[n] {
			continue
		}
		seen[n] = true
		issues = append(issues, n)
	}
	sort.Ints(issues)
	return pr, issues
}
