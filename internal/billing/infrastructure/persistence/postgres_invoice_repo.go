package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfolio/hostfolio/internal/billing/domain"
	sharedPersistence "github.com/hostfolio/hostfolio/internal/shared/infrastructure/persistence"
)

const invoiceColumns = `
	id, host_id, number, amount, discount_amount, final_amount, status,
	due_date, paid_date, payment_method, payment_reference, details,
	created_at, updated_at
`

// PostgresInvoiceRepository implements domain.InvoiceRepository using
// PostgreSQL. Invoice details are stored as JSONB.
type PostgresInvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresInvoiceRepository creates a new PostgreSQL invoice repository.
func NewPostgresInvoiceRepository(pool *pgxpool.Pool) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{pool: pool}
}

// Save inserts a new invoice, joining the context transaction if any.
func (r *PostgresInvoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	details, err := json.Marshal(invoice.Details())
	if err != nil {
		return fmt.Errorf("marshal invoice details: %w", err)
	}

	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = q.Exec(ctx, query,
		invoice.ID(),
		invoice.HostID(),
		invoice.Number(),
		invoice.Amount(),
		invoice.DiscountAmount(),
		invoice.FinalAmount(),
		invoice.Status(),
		invoice.DueDate(),
		invoice.PaidDate(),
		invoice.PaymentMethod(),
		invoice.PaymentReference(),
		details,
		invoice.CreatedAt(),
		invoice.UpdatedAt(),
	)
	return err
}

// Update persists the invoice's settlement fields.
func (r *PostgresInvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		UPDATE invoices
		SET status = $2, paid_date = $3, updated_at = $4
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query,
		invoice.ID(), invoice.Status(), invoice.PaidDate(), invoice.UpdatedAt())
	return err
}

// FindByID returns the invoice, or nil when it does not exist.
func (r *PostgresInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return invoice, err
}

// FindByReference returns the invoice carrying the payment reference, or
// nil when none does.
func (r *PostgresInvoiceRepository) FindByReference(ctx context.Context, reference string) (*domain.Invoice, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_reference = $1`, reference)
	invoice, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return invoice, err
}

// FindByNumber returns the invoice with the number, or nil when it does
// not exist.
func (r *PostgresInvoiceRepository) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number)
	invoice, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return invoice, err
}

// LastNumberForYear returns the highest invoice number issued in the year,
// or empty when none was.
func (r *PostgresInvoiceRepository) LastNumberForYear(ctx context.Context, year int) (string, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	query := `
		SELECT number FROM invoices
		WHERE number LIKE $1
		ORDER BY number DESC
		LIMIT 1
	`
	var number string
	err := q.QueryRow(ctx, query, fmt.Sprintf("INV-%d-%%", year)).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// CancelOverdue cancels PENDING invoices whose due date has passed.
func (r *PostgresInvoiceRepository) CancelOverdue(ctx context.Context, now time.Time) (int64, error) {
	q := sharedPersistence.Executor(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE invoices
		SET status = 'canceled', updated_at = $1
		WHERE status = 'pending' AND due_date < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		id, hostID               uuid.UUID
		number                   string
		amount, discount, final  float64
		status                   domain.InvoiceStatus
		dueDate                  time.Time
		paidDate                 *time.Time
		method, reference        string
		detailsRaw               []byte
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(&id, &hostID, &number, &amount, &discount, &final, &status,
		&dueDate, &paidDate, &method, &reference, &detailsRaw, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var details domain.InvoiceDetails
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &details); err != nil {
			return nil, fmt.Errorf("unmarshal invoice details: %w", err)
		}
	}
	return domain.RehydrateInvoice(id, hostID, number, amount, discount, final,
		status, dueDate, paidDate, method, reference, details, createdAt, updatedAt), nil
}

var _ domain.InvoiceRepository = (*PostgresInvoiceRepository)(nil)
