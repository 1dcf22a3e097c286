package usecase

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
)

// Template holds the fixed text wrapped around retrieved passages.
type Template struct {
	Preamble    string
	EmptyNotice string
}

// DefaultTemplate instructs the generator to cite sources and to say so when
// nothing relevant was retrieved.
var DefaultTemplate = Template{
	Preamble: "Answer the question using only the sources below. " +
		"Cite the source id in brackets for every fact you use. " +
		"If the sources do not contain the answer, say that you do not know.",
	EmptyNotice: "No relevant sources were found.",
}

// Assemble formats a query result as a context block. Each hit is preceded by
// a delimiter line naming its source id and rank. The output depends only on
// its inputs.
func Assemble(result domain.QueryResult, tmpl Template) string {
	if tmpl.Preamble == "" {
		tmpl.Preamble = DefaultTemplate.Preamble
	}
	if tmpl.EmptyNotice == "" {
		tmpl.EmptyNotice = DefaultTemplate.EmptyNotice
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(tmpl.Preamble))
	sb.WriteString("\n\n")

	if len(result) == 0 {
		sb.WriteString(tmpl.EmptyNotice)
		sb.WriteString("\n")
		return sb.String()
	}

	for i, hit := range result {
		if i > 0 {
			sb.WriteString("\n")
		}
		rank := hit.Rank
		if rank == 0 {
			rank = i + 1
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n", rank, hit.ID)
		sb.WriteString(strings.TrimRight(hit.Text, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}
