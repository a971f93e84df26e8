package source_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/source"
)

func readAll(t *testing.T, src source.Source) []source.Record {
	t.Helper()
	var out []source.Record
	for {
		rec, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestCSV(t *testing.T) {
	t.Parallel()

	data := "Email,Name,Company Name,city\n" +
		"ada@example.com,Ada Lovelace,Analytical Engines,London\n" +
		" , , , \n" +
		"grace@example.com,Grace,Navy,\n"

	src, err := source.NewCSV(strings.NewReader(data))
	require.NoError(t, err)

	recs := readAll(t, src)
	require.Len(t, recs, 2)
	assert.Equal(t, source.Record{
		Email: "ada@example.com",
		Name:  "Ada Lovelace",
		Variables: campaign.Variables{
			{Name: "company_name", Value: "Analytical Engines"},
			{Name: "city", Value: "London"},
		},
	}, recs[0])
	assert.Equal(t, "grace@example.com", recs[1].Email)
	assert.Equal(t, 2, src.Offset())
	require.NoError(t, src.Close())
}

func TestCSV_FirstAndLastName(t *testing.T) {
	t.Parallel()

	src, err := source.NewCSV(strings.NewReader("first_name,last_name,e-mail\nAda,Lovelace,ada@example.com\n"))
	require.NoError(t, err)

	recs := readAll(t, src)
	require.Len(t, recs, 1)
	assert.Equal(t, "Ada Lovelace", recs[0].Name)
	v, ok := recs[0].Variables.Get("first_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestCSV_UTF16WithBOM(t *testing.T) {
	t.Parallel()

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte("email,name\nzoë@example.com,Zoë\n"))
	require.NoError(t, err)

	src, err := source.NewCSV(bytes.NewReader(encoded))
	require.NoError(t, err)
	recs := readAll(t, src)
	require.Len(t, recs, 1)
	assert.Equal(t, "Zoë", recs[0].Name)
}

func TestCSV_MissingEmailColumn(t *testing.T) {
	t.Parallel()

	_, err := source.NewCSV(strings.NewReader("name,company\nAda,Acme\n"))
	require.ErrorIs(t, err, source.ErrMissingEmailColumn)

	_, err = source.NewCSV(strings.NewReader(""))
	require.ErrorIs(t, err, source.ErrMissingEmailColumn)
}

func TestMemory_OpenAtOffset(t *testing.T) {
	t.Parallel()

	m := source.NewMemory()
	ref := m.Put("list", []source.Record{{Email: "a@example.com"}, {Email: "b@example.com"}, {Email: "c@example.com"}})
	assert.Equal(t, "mem://list", ref)

	src, err := m.Open(context.Background(), ref, 1)
	require.NoError(t, err)
	recs := readAll(t, src)
	require.Len(t, recs, 2)
	assert.Equal(t, "b@example.com", recs[0].Email)
	assert.Equal(t, 3, src.Offset())

	_, err = m.Open(context.Background(), ref, 4)
	require.ErrorIs(t, err, source.ErrInvalidOffset)

	_, err = m.Open(context.Background(), "mem://missing", 0)
	require.ErrorIs(t, err, source.ErrNotFound)
}

type objects map[string]string

func (o objects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	v, ok := o[key]
	if !ok {
		return nil, source.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func TestMux(t *testing.T) {
	t.Parallel()

	mem := source.NewMemory()
	ref := mem.Put("form", []source.Record{{Email: "a@example.com"}})

	mux := source.NewMux()
	mux.Handle(source.SchemeMemory, mem)
	mux.Handle(source.SchemeS3, source.NewObjectOpener(objects{
		"uploads/list.csv": "email\na@example.com\nb@example.com\nc@example.com\n",
	}))

	src, err := mux.Open(context.Background(), ref, 0)
	require.NoError(t, err)
	assert.Len(t, readAll(t, src), 1)

	src, err = mux.Open(context.Background(), source.ObjectRef("uploads/list.csv"), 2)
	require.NoError(t, err)
	recs := readAll(t, src)
	require.Len(t, recs, 1)
	assert.Equal(t, "c@example.com", recs[0].Email)

	_, err = mux.Open(context.Background(), source.ObjectRef("uploads/list.csv"), 9)
	require.ErrorIs(t, err, source.ErrInvalidOffset)

	_, err = mux.Open(context.Background(), "ftp://x", 0)
	require.ErrorIs(t, err, source.ErrUnknownScheme)

	_, err = mux.Open(context.Background(), "no-scheme", 0)
	require.ErrorIs(t, err, source.ErrUnknownScheme)
}
