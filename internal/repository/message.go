package repository

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"disaster-classifier/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DefaultTable is the table the cleaned disaster response data is stored in
const DefaultTable = "DisasterResponse"

// metadataColumns precede the category columns in every row
const metadataColumns = 4

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MessageRepository reads labelled messages from the message store
type MessageRepository struct {
	db      *sqlx.DB
	table   string
	locator string
	logger  *zap.Logger
}

// NewMessageRepository creates a new repository over table
func NewMessageRepository(db *sqlx.DB, locator, table string, logger *zap.Logger) (*MessageRepository, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &MessageRepository{
		db:      db,
		table:   table,
		locator: redact(locator),
		logger:  logger,
	}, nil
}

// Close closes the underlying database
func (r *MessageRepository) Close() error {
	return r.db.Close()
}

// LoadCorpus reads every usable row of the table.
// Columns are id, message, original and genre, followed by one 0/1 column per category.
func (r *MessageRepository) LoadCorpus(ctx context.Context) (*models.Corpus, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s"`, r.table)

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, r.fail(fmt.Errorf("failed to query %s: %w", r.table, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, r.fail(fmt.Errorf("failed to read columns: %w", err))
	}
	layout, err := newRowLayout(columns)
	if err != nil {
		return nil, r.fail(err)
	}

	corpus := &models.Corpus{Categories: layout.categories}
	genres := make(map[string]int)
	var dropped, clamped int

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, r.fail(fmt.Errorf("failed to scan row: %w", err))
		}

		if !layout.keep(values) {
			dropped++
			continue
		}

		msg, labels, n, err := layout.decode(values)
		if err != nil {
			return nil, r.fail(err)
		}
		clamped += n

		genres[msg.Genre]++
		corpus.Messages = append(corpus.Messages, msg.Text)
		corpus.Labels = append(corpus.Labels, labels)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(fmt.Errorf("failed to iterate rows: %w", err))
	}

	if corpus.Len() == 0 {
		return nil, r.fail(fmt.Errorf("table %s has no usable rows", r.table))
	}
	if clamped > 0 {
		r.logger.Warn("Clamped label values above 1", zap.Int("values", clamped))
	}
	if err := corpus.Validate(); err != nil {
		return nil, r.fail(err)
	}

	r.logger.Info("Corpus loaded",
		zap.String("table", r.table),
		zap.Int("messages", corpus.Len()),
		zap.Int("dropped", dropped),
		zap.Int("categories", corpus.Categories.Len()),
		zap.Any("genres", genres))

	return corpus, nil
}

func (r *MessageRepository) fail(err error) error {
	return &models.DataAccessError{Locator: r.locator, Err: err}
}

// rowLayout maps scanned column positions to message fields and categories
type rowLayout struct {
	id, message, original, genre int
	offer                        int
	categories                   models.LabelSpace
}

func newRowLayout(columns []string) (*rowLayout, error) {
	if len(columns) <= metadataColumns {
		return nil, fmt.Errorf("expected %d metadata columns and at least one category, got %d columns", metadataColumns, len(columns))
	}

	layout := &rowLayout{id: -1, message: -1, original: -1, genre: -1, offer: -1}
	for i, name := range columns[:metadataColumns] {
		switch name {
		case "id":
			layout.id = i
		case "message":
			layout.message = i
		case "original":
			layout.original = i
		case "genre":
			layout.genre = i
		}
	}
	if layout.message < 0 || layout.original < 0 {
		return nil, fmt.Errorf("columns %v lack message or original", columns[:metadataColumns])
	}

	categories, err := models.NewLabelSpace(columns[metadataColumns:])
	if err != nil {
		return nil, fmt.Errorf("invalid category columns: %w", err)
	}
	layout.categories = categories

	if idx := categories.Index("offer"); idx >= 0 {
		layout.offer = metadataColumns + idx
	} else {
		return nil, fmt.Errorf("category column offer is missing")
	}

	return layout, nil
}

// keep reports whether a row passes the completeness filter: either every column is set,
// or original is missing and offer is set. Rows without text or with a missing label are dropped too.
func (l *rowLayout) keep(values []any) bool {
	complete := true
	for _, v := range values {
		if v == nil {
			complete = false
			break
		}
	}
	if !complete && !(values[l.original] == nil && values[l.offer] != nil) {
		return false
	}

	if values[l.message] == nil {
		return false
	}
	for _, v := range values[metadataColumns:] {
		if v == nil {
			return false
		}
	}
	return true
}

// decode converts a kept row; the int result counts label values clamped to 1
func (l *rowLayout) decode(values []any) (models.Message, models.LabelVector, int, error) {
	var msg models.Message
	if l.id >= 0 {
		if id, err := toInt(values[l.id]); err == nil {
			msg.ID = id
		}
	}
	msg.Text = toString(values[l.message])
	if values[l.original] != nil {
		original := toString(values[l.original])
		msg.Original = &original
	}
	if l.genre >= 0 && values[l.genre] != nil {
		msg.Genre = toString(values[l.genre])
	}

	clamped := 0
	labels := make(models.LabelVector, l.categories.Len())
	for j := range labels {
		v, err := toInt(values[metadataColumns+j])
		if err != nil {
			return msg, nil, 0, fmt.Errorf("message %d category %q: %w", msg.ID, l.categories.Name(j), err)
		}
		switch {
		case v < 0:
			return msg, nil, 0, fmt.Errorf("message %d category %q has negative label %d", msg.ID, l.categories.Name(j), v)
		case v > 1:
			labels[j] = 1
			clamped++
		default:
			labels[j] = uint8(v)
		}
	}
	return msg, labels, clamped, nil
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("label %v is not an integer", x)
		}
		return int64(x), nil
	case string:
		return parseInt(x)
	case []byte:
		return parseInt(string(x))
	default:
		return 0, fmt.Errorf("unsupported label type %T", v)
	}
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("label %q is not numeric", s)
	}
	return n, nil
}
