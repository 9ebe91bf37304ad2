package looker

import (
	"fmt"
	"strings"
)

// maxDescriptionLen caps field descriptions in rendered schema text so a
// single verbose description cannot dominate the prompt.
const maxDescriptionLen = 100

// CleanQuery strips the decoration LLMs habitually wrap around generated
// SQL: surrounding whitespace, a trailing run of semicolons, and markdown
// code fences (with or without an "sql" language tag). Cleaning an
// already-clean string is a no-op.
func CleanQuery(command string) string {
	s := strings.TrimSpace(command)
	s = strings.TrimRight(s, ";")
	if strings.HasPrefix(s, "```sql") {
		s = s[len("```sql"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// visibleFields drops fields flagged hidden and fields that failed to
// report a name or a type. An absent hidden flag counts as visible.
func visibleFields(fields []Field) []Field {
	visible := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.hidden() {
			continue
		}
		if f.Name == "" || f.Type == "" {
			continue
		}
		visible = append(visible, f)
	}
	return visible
}

// fieldLine renders one column definition line with inline metadata
// comments, e.g.:
//
//	`view1.fieldA` VARCHAR -- label: 'Field A Label'; category: DIMENSION
func fieldLine(f *Field) string {
	line := fmt.Sprintf("    `%s` %s", f.Name, f.Type)

	var comments []string
	if f.Label != "" && f.Label != f.Name {
		comments = append(comments, fmt.Sprintf("label: '%s'", f.Label))
	}
	if f.Alias != "" {
		comments = append(comments, fmt.Sprintf("alias: '%s'", f.Alias))
	}
	if f.Category != "" {
		comments = append(comments, "category: "+f.Category)
	}
	if f.Description != "" {
		comments = append(comments, fmt.Sprintf("description: '%s'", truncateDescription(f.Description)))
	}

	if len(comments) > 0 {
		line += " -- " + strings.Join(comments, "; ")
	}
	return line
}

// truncateDescription caps a description at maxDescriptionLen runes,
// marking the cut with an ellipsis.
func truncateDescription(desc string) string {
	runes := []rune(desc)
	if len(runes) <= maxDescriptionLen {
		return desc
	}
	return string(runes[:maxDescriptionLen-3]) + "..."
}

// truncateString shortens s for log output.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// backtickList joins names with ", ", backtick-quoting any that are not
// already quoted.
func backtickList(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "`") && strings.HasSuffix(name, "`") {
			quoted = append(quoted, name)
		} else {
			quoted = append(quoted, "`"+name+"`")
		}
	}
	return strings.Join(quoted, ", ")
}

// formatTuple renders a row as a parenthesized tuple of single-quoted,
// string-coerced values.
func formatTuple(row []any) string {
	cells := make([]string, 0, len(row))
	for _, v := range row {
		cells = append(cells, "'"+fmt.Sprint(v)+"'")
	}
	return "(" + strings.Join(cells, ", ") + ")"
}
