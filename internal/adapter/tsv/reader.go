package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// Record is one parsed data line.
type Record struct {
	Date   time.Time
	Lead   int
	Member string
	Values []float64
}

// Table is a parsed output file.
type Table struct {
	MemberColumn bool
	Columns      []string // metric columns, without the identity prefix
	Records      []Record
}

// ReadTable parses a table written by Writer. Every line must have as many
// fields as the header.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, errors.New("empty table: missing header")
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != domain.ColumnDate || header[1] != domain.ColumnLead {
		return Table{}, fmt.Errorf("header must start with %q and %q, got %v", domain.ColumnDate, domain.ColumnLead, header)
	}

	t := Table{MemberColumn: len(header) > 2 && header[2] == domain.ColumnMember}
	prefix := len(domain.PrefixColumns(t.MemberColumn))
	t.Columns = header[prefix:]

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRecord(fields, prefix, t.MemberColumn)
		if err != nil {
			return Table{}, fmt.Errorf("line %d: %w", line, err)
		}
		t.Records = append(t.Records, rec)
	}
}

func parseRecord(fields []string, prefix int, member bool) (Record, error) {
	var rec Record
	var err error
	if rec.Date, err = time.Parse(domain.DateLayout, fields[0]); err != nil {
		return rec, fmt.Errorf("invalid date %q", fields[0])
	}
	if rec.Lead, err = strconv.Atoi(fields[1]); err != nil {
		return rec, fmt.Errorf("invalid lead %q", fields[1])
	}
	if member {
		rec.Member = fields[2]
	}
	rec.Values = make([]float64, 0, len(fields)-prefix)
	for _, f := range fields[prefix:] {
		v, err := ParseValue(f)
		if err != nil {
			return rec, fmt.Errorf("invalid value %q", f)
		}
		rec.Values = append(rec.Values, v)
	}
	return rec, nil
}
