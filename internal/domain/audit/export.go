package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the first line of an export. It is written unquoted.
const CSVHeader = "id,action,name,role,timestamp"

// Row is one exported line.
type Row struct {
	ID        string
	Action    string
	Name      string
	Role      string
	Timestamp string
}

// RowOf projects an entry onto the export columns.
func RowOf(e Entry) Row {
	return Row{
		ID:        strconv.FormatInt(e.ID, 10),
		Action:    e.Action,
		Name:      e.UserName(),
		Role:      e.Role(),
		Timestamp: e.CreatedAt.Raw,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExportCSV renders entries as CSV: the unquoted header, then one line per
// entry with every value quoted. Lines are joined by "\n" with no trailing
// newline.
func ExportCSV(entries []Entry) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	for _, e := range entries {
		r := RowOf(e)
		b.WriteByte('\n')
		b.WriteString(strings.Join([]string{
			quote(r.ID), quote(r.Action), quote(r.Name), quote(r.Role), quote(r.Timestamp),
		}, ","))
	}
	return b.String()
}

// WriteCSV writes ExportCSV(entries) to w.
func WriteCSV(w io.Writer, entries []Entry) error {
	_, err := io.WriteString(w, ExportCSV(entries))
	return err
}

// ParseCSV reads an export back into rows. The header must match CSVHeader.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse audit csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse audit csv: missing header")
	}
	if strings.Join(records[0], ",") != CSVHeader {
		return nil, fmt.Errorf("parse audit csv: unexpected header %q", strings.Join(records[0], ","))
	}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, Row{ID: rec[0], Action: rec[1], Name: rec[2], Role: rec[3], Timestamp: rec[4]})
	}
	return rows, nil
}
