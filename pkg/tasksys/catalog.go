package tasksys

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog renders the help listing: one line per documented task, sorted by
// name, with descriptions aligned in a single column. Tasks without a Doc
// string are omitted.
func Catalog(reg *Registry) string {
	maxNameLen := 0
	sortedNames := make([]string, 0)
	for _, task := range reg.All() {
		if task.Doc == "" {
			continue
		}

		if len(task.Name) > maxNameLen {
			maxNameLen = len(task.Name)
		}
		sortedNames = append(sortedNames, task.Name)
	}

	sort.Strings(sortedNames)

	builder := strings.Builder{}
	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		task, _ := reg.Lookup(name)
		fmt.Fprintf(&builder, lineFmt, name+":", task.Doc)
	}

	return builder.String()
}
