// Package bulkio feeds settlement runs from external files. A CSV export
// from the order system is the common hand-off format for backfills and
// month-end batches.
package bulkio

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared/valueobject"
)

// Column names the source requires in the header row. Order does not
// matter; unknown columns are ignored.
const (
	ColLineItemRef = "line_item_ref"
	ColProductID   = "product_id"
	ColVendorID    = "vendor_id"
	ColCategoryID  = "category_id"
	ColVendorTier  = "vendor_tier"
	ColAmount      = "amount"
	ColCurrency    = "currency"
	ColAt          = "at"
)

var requiredColumns = []string{
	ColLineItemRef, ColProductID, ColVendorID, ColCategoryID,
	ColVendorTier, ColAmount, ColCurrency, ColAt,
}

var (
	// ErrEmptyFile is returned when the CSV input has no content
	ErrEmptyFile = errors.New("CSV input is empty")

	// ErrInvalidEncoding is returned when the input is not valid UTF-8
	ErrInvalidEncoding = errors.New("CSV input is not valid UTF-8")
)

// RowError reports a data row the source could not turn into a line
// item. The row number counts the header as row 1.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value,omitempty"`
	Cause  error  `json:"-"`
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Cause)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Cause)
}

func (e *RowError) Unwrap() error { return e.Cause }

func newRowError(row int, column, value string, cause error) *RowError {
	return &RowError{Row: row, Column: column, Value: value, Cause: cause}
}

// CSVSource streams line items out of a CSV document. A malformed row
// aborts the run with a RowError naming the row, so a bad export fails
// loudly instead of settling a partial batch.
type CSVSource struct {
	reader     *csv.Reader
	headerMap  map[string]int
	currentRow int
	delimiter  rune
	trimSpace  bool
	lazyQuotes bool
}

// SourceOption configures a CSVSource
type SourceOption func(*CSVSource)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) SourceOption {
	return func(s *CSVSource) {
		s.delimiter = d
	}
}

// WithTrimSpace controls trimming of leading and trailing spaces in
// fields (default on)
func WithTrimSpace(trim bool) SourceOption {
	return func(s *CSVSource) {
		s.trimSpace = trim
	}
}

// WithLazyQuotes permits bare quotes inside unquoted fields (default on)
func WithLazyQuotes(lazy bool) SourceOption {
	return func(s *CSVSource) {
		s.lazyQuotes = lazy
	}
}

// NewCSVSource reads the header row and validates the input up front so
// a run never starts against a file the source cannot finish reading.
func NewCSVSource(r io.Reader, opts ...SourceOption) (*CSVSource, error) {
	source := &CSVSource{
		delimiter:  ',',
		trimSpace:  true,
		lazyQuotes: true,
		headerMap:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(source)
	}

	buf := bufio.NewReader(r)

	// Spreadsheet exports routinely lead with a UTF-8 BOM
	lead, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(lead) == 0 {
		return nil, ErrEmptyFile
	}
	if len(lead) >= 3 && lead[0] == 0xEF && lead[1] == 0xBB && lead[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	if err := validateUTF8(buf); err != nil {
		return nil, err
	}

	source.reader = csv.NewReader(buf)
	source.reader.Comma = source.delimiter
	source.reader.LazyQuotes = source.lazyQuotes
	source.reader.TrimLeadingSpace = source.trimSpace
	source.reader.FieldsPerRecord = -1

	if err := source.readHeader(); err != nil {
		return nil, err
	}
	return source, nil
}

// validateUTF8 checks the buffered prefix for invalid sequences. The
// check covers the buffer window only; a bad byte deeper in the stream
// surfaces as a row parse error instead.
func validateUTF8(buf *bufio.Reader) error {
	window, err := buf.Peek(buf.Size())
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read input: %w", err)
	}
	// Trim a possibly split trailing rune before checking
	for i := 0; i < utf8.UTFMax && len(window) > 0; i++ {
		if utf8.Valid(window) {
			return nil
		}
		window = window[:len(window)-1]
	}
	return ErrInvalidEncoding
}

func (s *CSVSource) readHeader() error {
	header, err := s.reader.Read()
	if err == io.EOF {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}
	s.currentRow = 1

	for i, name := range header {
		s.headerMap[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := s.headerMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("header row is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next line item, io.EOF when the input is exhausted,
// or a RowError when a data row cannot be converted.
func (s *CSVSource) Next(ctx context.Context) (*commission.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		record, err := s.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		s.currentRow++
		if err != nil {
			return nil, newRowError(s.currentRow, "", "", err)
		}

		if s.isBlank(record) {
			continue
		}
		return s.toLineItem(record)
	}
}

func (s *CSVSource) isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func (s *CSVSource) field(record []string, column string) string {
	idx, ok := s.headerMap[column]
	if !ok || idx >= len(record) {
		return ""
	}
	value := record[idx]
	if s.trimSpace {
		value = strings.TrimSpace(value)
	}
	return value
}

func (s *CSVSource) fieldUUID(record []string, column string) (uuid.UUID, error) {
	raw := s.field(record, column)
	if raw == "" {
		return uuid.Nil, newRowError(s.currentRow, column, "", errors.New("value is required"))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newRowError(s.currentRow, column, raw, err)
	}
	return id, nil
}

func (s *CSVSource) toLineItem(record []string) (*commission.LineItem, error) {
	ref := s.field(record, ColLineItemRef)
	if ref == "" {
		return nil, newRowError(s.currentRow, ColLineItemRef, "", errors.New("value is required"))
	}

	productID, err := s.fieldUUID(record, ColProductID)
	if err != nil {
		return nil, err
	}
	vendorID, err := s.fieldUUID(record, ColVendorID)
	if err != nil {
		return nil, err
	}
	categoryID, err := s.fieldUUID(record, ColCategoryID)
	if err != nil {
		return nil, err
	}

	tier := commission.MembershipTier(strings.ToLower(s.field(record, ColVendorTier)))
	if !tier.IsKnown() {
		return nil, newRowError(s.currentRow, ColVendorTier, string(tier), errors.New("unknown membership tier"))
	}

	rawAmount := s.field(record, ColAmount)
	currency := strings.ToUpper(s.field(record, ColCurrency))
	amount, err := valueobject.NewMoneyFromString(rawAmount, valueobject.Currency(currency))
	if err != nil {
		return nil, newRowError(s.currentRow, ColAmount, rawAmount, err)
	}

	rawAt := s.field(record, ColAt)
	at, err := time.Parse(time.RFC3339, rawAt)
	if err != nil {
		return nil, newRowError(s.currentRow, ColAt, rawAt, err)
	}

	item := commission.LineItem{
		LineItemRef: ref,
		ProductID:   productID,
		VendorID:    vendorID,
		CategoryID:  categoryID,
		VendorTier:  tier,
		Amount:      amount,
		At:          at,
	}
	if err := item.Validate(); err != nil {
		return nil, newRowError(s.currentRow, "", ref, err)
	}
	return &item, nil
}
