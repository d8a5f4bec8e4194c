package store

import (
	"strings"
)

// InsertSQL renders a bound insert of rows records into t.
func InsertSQL(d Dialect, t Table, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.Name)
	b.WriteString(" (")
	b.WriteString(strings.Join(t.Columns, ", "))
	b.WriteString(") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range t.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	if len(t.Returning) > 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(strings.Join(t.Returning, ", "))
	}
	return b.String()
}

// ChunkSize clamps batch so one insert into t stays within the engine's
// bind parameter limit. It never returns less than one.
func ChunkSize(d Dialect, t Table, batch int) int {
	if batch < 1 {
		batch = 1
	}
	if cols := len(t.Columns); cols > 0 && d.MaxParams() > 0 {
		if limit := d.MaxParams() / cols; limit < batch {
			batch = limit
		}
	}
	if batch < 1 {
		return 1
	}
	return batch
}
