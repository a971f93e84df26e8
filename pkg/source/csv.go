package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

var (
	emailColumns     = []string{"email", "e-mail", "email address", "email_address", "mail"}
	nameColumns      = []string{"name", "full name", "full_name"}
	firstNameColumns = []string{"first_name", "first name", "firstname"}
	lastNameColumns  = []string{"last_name", "last name", "lastname"}
)

type csvSource struct {
	reader    *csv.Reader
	closer    io.Closer
	columns   []string
	email     int
	name      int
	firstName int
	lastName  int
	pos       int
}

// NewCSV reads a CSV recipient list. The header row is consumed immediately.
// If r is an io.Closer it is closed by Close.
func NewCSV(r io.Reader) (Source, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingEmailColumn
		}
		return nil, fmt.Errorf("source: read csv header: %w", err)
	}

	s := &csvSource{reader: reader, email: -1, name: -1, firstName: -1, lastName: -1}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		s.columns = append(s.columns, col)
		switch {
		case s.email < 0 && matches(col, emailColumns):
			s.email = i
		case s.name < 0 && matches(col, nameColumns):
			s.name = i
		case s.firstName < 0 && matches(col, firstNameColumns):
			s.firstName = i
		case s.lastName < 0 && matches(col, lastNameColumns):
			s.lastName = i
		}
	}
	if s.email < 0 {
		return nil, ErrMissingEmailColumn
	}
	return s, nil
}

func (s *csvSource) Next(ctx context.Context) (Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		row, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("source: read csv row %d: %w", s.pos+1, err)
		}
		if blank(row) {
			continue
		}
		s.pos++
		return s.record(row), nil
	}
}

func (s *csvSource) record(row []string) Record {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := Record{Email: field(s.email), Name: field(s.name)}
	if rec.Name == "" {
		rec.Name = strings.TrimSpace(field(s.firstName) + " " + field(s.lastName))
	}
	for i, col := range s.columns {
		if i == s.email || i == s.name || col == "" {
			continue
		}
		rec.Variables = append(rec.Variables, campaign.Variable{Name: variableName(col), Value: field(i)})
	}
	return rec
}

func (s *csvSource) Offset() int { return s.pos }

func (s *csvSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func matches(col string, names []string) bool {
	for _, n := range names {
		if col == n {
			return true
		}
	}
	return false
}

// variableName turns a header like "Company Name" into "company_name".
func variableName(col string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(col, "-", " ")), "_")
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
