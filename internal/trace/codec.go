package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

const numFields = 9

// ErrMalformed marks a record that could not be decoded. Records before it
// are still valid.
var ErrMalformed = errors.New("trace: malformed record")

type Writer struct {
	w   *csv.Writer
	row []string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w), row: make([]string, numFields)}
}

func (w *Writer) Write(r Record) error {
	w.row[0] = strconv.Itoa(r.Step)
	w.row[1] = formatFloat(r.X)
	w.row[2] = formatFloat(r.Y)
	w.row[3] = formatFloat(r.Radius)
	w.row[4] = formatFloat(r.PrevX)
	w.row[5] = formatFloat(r.PrevY)
	w.row[6] = strconv.Itoa(int(r.Color.R))
	w.row[7] = strconv.Itoa(int(r.Color.G))
	w.row[8] = strconv.Itoa(int(r.Color.B))
	return w.w.Write(w.row)
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Encode writes all records in order and flushes.
func Encode(dst io.Writer, records []Record) error {
	w := NewWriter(dst)
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

// formatFloat uses the shortest representation that parses back to the same value.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type Reader struct {
	r *csv.Reader
	n int
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Read returns the next record, io.EOF at the end, or an error wrapping
// ErrMalformed.
func (r *Reader) Read() (Record, error) {
	fields, err := r.r.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	r.n++
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %d: %v", ErrMalformed, r.n, err)
	}
	rec, err := parseRecord(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: record %d: %v", ErrMalformed, r.n, err)
	}
	return rec, nil
}

// ReadAll decodes records until EOF or the first malformed one. The records
// decoded so far are returned in both cases.
func ReadAll(src io.Reader) ([]Record, error) {
	r := NewReader(src)
	var out []Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func parseRecord(fields []string) (Record, error) {
	if len(fields) != numFields {
		return Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(fields))
	}

	var rec Record
	var err error
	if rec.Step, err = parseInt(fields[0]); err != nil {
		return Record{}, fmt.Errorf("step: %w", err)
	}

	floats := [...]*float64{&rec.X, &rec.Y, &rec.Radius, &rec.PrevX, &rec.PrevY}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(fields[1+i], 64); err != nil {
			return Record{}, err
		}
	}
	if rec.Radius <= 0 {
		return Record{}, fmt.Errorf("radius must be positive, got %g", rec.Radius)
	}

	channels := [...]*uint8{&rec.Color.R, &rec.Color.G, &rec.Color.B}
	for i, dst := range channels {
		v, err := parseInt(fields[6+i])
		if err != nil {
			return Record{}, fmt.Errorf("colour: %w", err)
		}
		if v < 0 || v > 255 {
			return Record{}, fmt.Errorf("colour channel %d out of range", v)
		}
		*dst = uint8(v)
	}

	return rec, nil
}

// parseInt also accepts integral floats such as "12.0".
func parseInt(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
