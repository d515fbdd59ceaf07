package repositories

import "errors"

// ErrUnsortable signals that the store rejected the requested sort clause,
// typically because the field is absent on older documents or lacks an
// index. Callers retry with OrderQuery.Unsorted set and sort in memory.
var ErrUnsortable = errors.New("repositories: order sort field not sortable")
