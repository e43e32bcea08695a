package conventional

import (
	"reflect"
	"testing"

	"github.com/sprite-ai/relnotes/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		want     model.CommitType
		breaking bool
	}{
		{"feature with bang", "feat!: add x", model.TypeOf(model.KindFeature), true},
		{"unknown token", "chore: bump deps", model.Other("chore"), false},
		{"not conventional", "random text", model.Other(""), false},
		{"scope", "fix(parser): handle EOF", model.TypeOf(model.KindFix), false},
		{"scope and bang", "refactor(api)!: drop v1 routes", model.TypeOf(model.KindRefactor), true},
		{"uppercase token", "FEAT: shout", model.TypeOf(model.KindFeature), false},
		{"mixed case unknown", "Chore: tidy", model.Other("chore"), false},
		{"every known token", "perf: faster", model.TypeOf(model.KindPerformance), false},
		{"docs", "docs: readme", model.TypeOf(model.KindDocs), false},
		{"test", "test: cover resolver", model.TypeOf(model.KindTest), false},
		{"build", "build: go 1.25", model.TypeOf(model.KindBuild), false},
		{"ci", "ci: cache modules", model.TypeOf(model.KindCI), false},
		{"missing space after colon", "feat:add x", model.Other(""), false},
		{"missing description", "feat: ", model.Other(""), false},
		{"empty", "", model.Other(""), false},
		{"unbalanced scope", "feat(api: oops", model.Other(""), false},
		{"bang after colon", "feat:! nope", model.Other(""), false},
		{"leading blank lines", "\n\nfix: trimmed", model.TypeOf(model.KindFix), false},
		{
			"breaking footer",
			"feat: new config\n\nLonger body.\n\nBREAKING CHANGE: old keys removed",
			model.TypeOf(model.KindFeature), true,
		},
		{
			"hyphenated footer",
			"fix: x\n\nBREAKING-CHANGE: y",
			model.TypeOf(model.KindFix), true,
		},
		{
			"footer is case sensitive",
			"fix: x\n\nbreaking change: y",
			model.TypeOf(model.KindFix), false,
		},
		{
			"footer must start the line",
			"fix: x\n\nthis is not a BREAKING CHANGE: y",
			model.TypeOf(model.KindFix), false,
		},
		{
			"footer on header line does not count",
			"BREAKING CHANGE: everything",
			model.Other(""), false,
		},
		{
			"footer without conventional header",
			"update stuff\n\nBREAKING CHANGE: api",
			model.Other(""), true,
		},
		{"crlf footer", "feat: a\r\n\r\nBREAKING CHANGE: b\r\n", model.TypeOf(model.KindFeature), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, breaking := Classify(tt.message)
			if got != tt.want {
				t.Errorf("Classify(%q) type = %v, want %v", tt.message, got, tt.want)
			}
			if breaking != tt.breaking {
				t.Errorf("Classify(%q) breaking = %v, want %v", tt.message, breaking, tt.breaking)
			}
		})
	}
}

func TestParseHeaderParts(t *testing.T) {
	h := Parse("feat(cli)!: add --dry-run flag\n\nbody")
	if h.Scope != "cli" {
		t.Errorf("scope = %q, want cli", h.Scope)
	}
	if h.Description != "add --dry-run flag" {
		t.Errorf("description = %q", h.Description)
	}

	h = Parse("Merge branch 'main'\nmore")
	if h.Description != "Merge branch 'main'" {
		t.Errorf("non-conventional description = %q", h.Description)
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		message string
		pr      int
		issues  []int
	}{
		{"feat: add x (#42)", 42, nil},
		{"fix: crash\n\nFixes #7, closes #3 and #7", 0, []int{3, 7}},
		{"fix: y (#12)\n\nresolves #9", 12, []int{9}},
		{"no refs here", 0, nil},
		{"chore: #0 is not an issue", 0, nil},
		{"Merge pull request #12 from acme/feat-x\n\nfeat: add x", 12, nil},
		{"Merge pull request #12 from acme/fix\n\nfix: z\n\nCloses #4", 12, []int{4}},
		{"docs: explain Merge pull request #3", 0, []int{3}},
	}
	for _, tt := range tests {
		pr, issues := References(tt.message)
		if pr != tt.pr {
			t.Errorf("References(%q) pr = %d, want %d", tt.message, pr, tt.pr)
		}
		if !reflect.DeepEqual(issues, tt.issues) {
			t.Errorf("References(%q) issues = %v, want %v", tt.message, issues, tt.issues)
		}
	}
}
