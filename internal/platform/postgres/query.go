package postgres

import (
	"fmt"
	"strings"

	"github.com/gastroview/model-service/internal/store"
)

// inClause appends an "col IN ($n, $n+1, ...)" predicate for vals to the
// clause list, growing args as it goes. The caller has already checked that
// vals is non-empty.
func inClause[T any](clauses *[]string, args *[]any, col string, vals []T) {
	placeholders := make([]string, len(vals))
	for i, v := range vals {
		*args = append(*args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	*clauses = append(*clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
}

// orderClause renders a TaskSortOrder into an ORDER BY body. Every order
// ends with the id column so rows with equal sort keys page deterministically.
func orderClause(order store.TaskSortOrder, idCol string) string {
	switch order {
	case store.TaskSortOrderIDDescending:
		return idCol + " DESC"
	case store.TaskSortOrderRequestTimeAscending:
		return "request_time ASC, " + idCol + " ASC"
	case store.TaskSortOrderRequestTimeDescending:
		return "request_time DESC, " + idCol + " DESC"
	case store.TaskSortOrderUpdateTimeAscending:
		return "update_time ASC, " + idCol + " ASC"
	case store.TaskSortOrderUpdateTimeDescending:
		return "update_time DESC, " + idCol + " DESC"
	default:
		return idCol + " ASC"
	}
}
