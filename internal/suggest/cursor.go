package suggest

// Cursor tracks keyboard position over the selectable rows of one
// suggestion list. Headings are skipped; Down and Up wrap circularly.
type Cursor struct {
	rows []Row
	sel  []int // row indexes of selectable rows
	pos  int   // index into sel, -1 when no explicit position
}

// NewCursor builds a cursor over a rendered row list.
func NewCursor(rows []Row) *Cursor {
	c := &Cursor{rows: rows, pos: -1}
	for i, r := range rows {
		if r.Selectable() {
			c.sel = append(c.sel, i)
		}
	}
	return c
}

// Len returns the number of selectable rows.
func (c *Cursor) Len() int {
	return len(c.sel)
}

// Down moves the cursor to the next selectable row, wrapping to the
// first past the end.
func (c *Cursor) Down() {
	if len(c.sel) == 0 {
		return
	}
	c.pos = (c.pos + 1) % len(c.sel)
}

// Up moves the cursor to the previous selectable row, wrapping to the
// last from the top.
func (c *Cursor) Up() {
	if len(c.sel) == 0 {
		return
	}
	if c.pos <= 0 {
		c.pos = len(c.sel) - 1
		return
	}
	c.pos--
}

// Current returns the explicitly positioned row, if any.
func (c *Cursor) Current() (Row, int, bool) {
	if c.pos < 0 || c.pos >= len(c.sel) {
		return Row{}, -1, false
	}
	i := c.sel[c.pos]
	return c.rows[i], i, true
}

// Confirm returns the row a confirm keypress selects: the cursor
// position when one is set, otherwise the first selectable row.
func (c *Cursor) Confirm() (Row, int, bool) {
	if r, i, ok := c.Current(); ok {
		return r, i, ok
	}
	if len(c.sel) == 0 {
		return Row{}, -1, false
	}
	i := c.sel[0]
	return c.rows[i], i, true
}
