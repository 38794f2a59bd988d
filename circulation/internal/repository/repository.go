package repository

import (
	"context"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"go.uber.org/zap"
)

// Repository runs fn inside one transaction: fn's error rolls everything back.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the union of the stores the circulation coordinator composes atomically.
type Tx interface {
	CatalogStore
	LoanLedger
	ReservationQueue
}

type CatalogStore interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, bookID int) (model.Book, error)
	LockBook(ctx context.Context, bookID int) (model.Book, error)
	DecrementAvailable(ctx context.Context, bookID int) (model.Book, error)
	IncrementAvailable(ctx context.Context, bookID int) (model.Book, error)
	FindFreeCopy(ctx context.Context, bookID int) (copyID int, found bool, err error)
	SetCopyStatus(ctx context.Context, copyID int, status model.CopyStatus) error
	AddCopies(ctx context.Context, bookID, n int) (model.Book, error)
	RemoveAvailableCopies(ctx context.Context, bookID, n int) (model.Book, error)
	CountCopies(ctx context.Context, bookID int) (total, free int, err error)
}

type LoanLedger interface {
	CreateLoan(ctx context.Context, loan model.NewLoan) (model.Loan, error)
	GetLoan(ctx context.Context, loanID int) (model.Loan, error)
	LockActiveLoan(ctx context.Context, loanID int) (model.Loan, error)
	MarkReturned(ctx context.Context, loanID int, at time.Time) (model.Loan, error)
}

type ReservationQueue interface {
	Enqueue(ctx context.Context, bookID, userID int, at time.Time) (model.Reservation, error)
	HasActiveReservation(ctx context.Context, bookID, userID int) (bool, error)
	RecalcPositions(ctx context.Context, bookID int) error
	PeekNext(ctx context.Context, bookID int) (model.Reservation, bool, error)
	PeekNextPending(ctx context.Context, bookID int) (model.Reservation, bool, error)
	GetReservation(ctx context.Context, reservationID int) (model.Reservation, error)
	LockReservation(ctx context.Context, reservationID int) (model.Reservation, error)
	MarkReady(ctx context.Context, reservationID int) error
	MarkFulfilled(ctx context.Context, reservationID int) error
	MarkCancelled(ctx context.Context, reservationID int) error
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName        = `books`
	bookCopyTableName     = `book_copy`
	loansTableName        = `loans`
	reservationsTableName = `reservations`
	activityTableName     = `activity_log`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(errors.Wrap(err, "begin"))
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.Warn("rollback", zap.Error(rbErr))
		}
	}()

	if err = fn(ctx, &txRepository{tx: tx, log: r.log}); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(errors.Wrap(err, "commit"))
	}
	return nil
}

// classify turns lock contention reported by postgres into errs.ErrConcurrencyConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return errors.Wrap(errs.ErrConcurrencyConflict, pgErr.Message)
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

type txRepository struct {
	tx  pgx.Tx
	log *zap.Logger
}

var _ Tx = (*txRepository)(nil)

func collectOne[T any](ctx context.Context, tx pgx.Tx, query string, args ...any) (T, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
}

func buildOne[T any](ctx context.Context, tx pgx.Tx, b sq.Sqlizer) (T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		var zero T
		return zero, err
	}
	return collectOne[T](ctx, tx, query, args...)
}
