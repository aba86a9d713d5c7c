package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carepulse/console/pkg/wire"
)

// Filter narrows an audit feed before display or export. Zero fields match
// everything. Start and End are calendar days; End includes the whole day.
type Filter struct {
	Search   string
	Category Category
	Start    string
	End      string
}

type compiledFilter struct {
	search   string
	category Category
	start    time.Time
	end      time.Time
}

func (f Filter) compile() (compiledFilter, error) {
	cf := compiledFilter{
		search:   strings.ToLower(strings.TrimSpace(f.Search)),
		category: f.Category,
	}
	switch f.Category {
	case "", CategoryAuth, CategoryAccess, CategorySystem:
	default:
		return cf, fmt.Errorf("unknown event type %q", f.Category)
	}
	if f.Start != "" {
		t := wire.ParseTime(f.Start)
		if !t.Valid {
			return cf, fmt.Errorf("invalid start date %q", f.Start)
		}
		cf.start = t.Time
	}
	if f.End != "" {
		t := wire.ParseTime(f.End)
		if !t.Valid {
			return cf, fmt.Errorf("invalid end date %q", f.End)
		}
		y, m, d := t.Time.Date()
		cf.end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	return cf, nil
}

func (cf compiledFilter) match(e Entry) bool {
	if cf.category != "" && CategoryOf(e.Action) != cf.category {
		return false
	}
	// Entries without a usable timestamp are not excluded by dates.
	if e.CreatedAt.Valid {
		if !cf.start.IsZero() && e.CreatedAt.Time.Before(cf.start) {
			return false
		}
		if !cf.end.IsZero() && e.CreatedAt.Time.After(cf.end) {
			return false
		}
	}
	if cf.search != "" {
		meta := e.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(meta)
		if !strings.Contains(strings.ToLower(buf.String()), cf.search) &&
			!strings.Contains(strings.ToLower(e.Action), cf.search) {
			return false
		}
	}
	return true
}

// Apply returns the entries matching f, in input order.
func Apply(entries []Entry, f Filter) ([]Entry, error) {
	cf, err := f.compile()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if cf.match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Validate reports a malformed category or date without filtering anything.
func (f Filter) Validate() error {
	_, err := f.compile()
	return err
}
