package scheduler

// logRing keeps the most recent lines up to a fixed size. Callers synchronize.
type logRing struct {
	lines []string
	next  int
	full  bool
}

func newLogRing(size int) *logRing {
	if size < 1 {
		size = 1
	}
	return &logRing{lines: make([]string, size)}
}

func (r *logRing) Add(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Items returns the lines oldest first.
func (r *logRing) Items() []string {
	if !r.full {
		return append([]string{}, r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}
