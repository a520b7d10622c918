package retrieval

import (
	"strings"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

// compileFilter translates a filter expression into a SQL WHERE clause with
// positional arguments. A nil filter compiles to no clause.
func compileFilter(filter model.FilterExpr) (string, []any) {
	if filter == nil {
		return "", nil
	}
	cond, args := compileExpr(filter)
	if cond == "" {
		return "", nil
	}
	return "WHERE " + cond, args
}

func compileExpr(expr model.FilterExpr) (string, []any) {
	switch f := expr.(type) {
	case model.TopicIs:
		return "topic = ? COLLATE NOCASE", []any{string(f)}
	case model.SubtopicIs:
		return "subtopic = ? COLLATE NOCASE", []any{string(f)}
	case model.TagAny:
		if len(f) == 0 {
			return "", nil
		}
		// tags are stored comma-joined; match each as a delimited token.
		conds := make([]string, 0, len(f))
		args := make([]any, 0, len(f))
		for _, tag := range f {
			conds = append(conds, "(',' || tags || ',') LIKE ? COLLATE NOCASE")
			args = append(args, "%,"+tag+",%")
		}
		return "(" + strings.Join(conds, " OR ") + ")", args
	case model.And:
		var conds []string
		var args []any
		for _, sub := range f {
			cond, subArgs := compileExpr(sub)
			if cond == "" {
				continue
			}
			conds = append(conds, cond)
			args = append(args, subArgs...)
		}
		if len(conds) == 0 {
			return "", nil
		}
		return strings.Join(conds, " AND "), args
	default:
		return "", nil
	}
}
