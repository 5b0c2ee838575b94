package sql

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"neurocost/pkg/common"
)

// VariantSuffix names rewritten query files: <safe name>.lcm_variant.sql.
const VariantSuffix = ".lcm_variant.sql"

func VariantFileName(query string) string {
	return common.SafeName(query) + VariantSuffix
}

// Header is the comment block prepended to every variant.
func Header(query, tag string, predictedMs float64) string {
	return fmt.Sprintf("-- LCM suggested variant for %s\n-- tag: %s\n-- chosen_pred_ms: %s\n\n",
		query, tag, strconv.FormatFloat(predictedMs, 'g', -1, 64))
}

// RewriteVariant annotates src with the chosen plan. For cheap_variant the
// JOIN operands of the FROM clause are emitted in reverse order; other tags
// only normalize the JOIN spacing. Statements without JOINs come back as is.
func RewriteVariant(src, query string, plan common.CandidatePlan, predictedMs float64) string {
	header := Header(query, plan.Tag, predictedMs)
	fc, err := ParseFrom(src)
	if err != nil || !fc.Joined() {
		return header + src
	}
	return header + fc.Rewrite(src, plan.Tag == common.TagCheap)
}

// MissingSourceNote is written in place of a variant when the original SQL
// file cannot be found.
func MissingSourceNote(query string, plan common.CandidatePlan) (string, error) {
	body, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("-- Original SQL for %s not found in queries/; LCM chosen plan summary:\n%s\n", query, body), nil
}

// FindQueryFile looks for name under each category directory of root.
func FindQueryFile(root, name string) (string, bool) {
	for _, c := range common.Categories {
		p := filepath.Join(root, string(c), name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// NoChoiceHeader marks a variant file for a query where no candidate scored.
func NoChoiceHeader(query string) string {
	return fmt.Sprintf("-- LCM suggested variant for %s\n-- tag: none\n-- chosen_pred_ms: none\n\n", query)
}

// WriteVariant writes the variant for query into dir and returns its path.
// The source is looked up under queryDir.
func WriteVariant(dir, queryDir, query string, plan common.CandidatePlan, predictedMs float64) (string, error) {
	return writeVariant(dir, queryDir, query, func(src string, found bool) (string, error) {
		if !found {
			return MissingSourceNote(query, plan)
		}
		return RewriteVariant(src, query, plan, predictedMs), nil
	})
}

// WriteNoChoice writes the variant file for a query without a chosen plan:
// the original SQL unchanged under NoChoiceHeader, or a note with an empty
// plan summary when the source is missing.
func WriteNoChoice(dir, queryDir, query string) (string, error) {
	return writeVariant(dir, queryDir, query, func(src string, found bool) (string, error) {
		if !found {
			return fmt.Sprintf("-- Original SQL for %s not found in queries/; LCM chosen plan summary:\n{}\n", query), nil
		}
		return NoChoiceHeader(query) + src, nil
	})
}

func writeVariant(dir, queryDir, query string, render func(src string, found bool) (string, error)) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	var src string
	p, found := FindQueryFile(queryDir, query)
	if found {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		src = string(b)
	}
	text, err := render(src, found)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, VariantFileName(query))
	if err := os.WriteFile(out, []byte(text), 0644); err != nil {
		return "", err
	}
	return out, nil
}
