package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
)

// Reports serves read-only listings outside of circulation transactions.
type Reports interface {
	UserLoans(ctx context.Context, userID int, now time.Time) ([]model.UserLoan, error)
	UserReservations(ctx context.Context, userID int) ([]model.QueuedReservation, error)
	ActiveReservations(ctx context.Context) ([]model.QueuedReservation, error)
	LoanStats(ctx context.Context, now time.Time) (model.LoanStats, error)
	DashboardStats(ctx context.Context, now time.Time) (model.DashboardStats, error)
	RecentActivity(ctx context.Context, limit int) ([]model.Activity, error)
	SaveActivity(ctx context.Context, activity model.Activity) error
}

type reportRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewReportRepository(db *sqlx.DB, log *zap.Logger) *reportRepository {
	return &reportRepository{
		db:  db,
		log: log.Named("reports"),
	}
}

func (r *reportRepository) UserLoans(ctx context.Context, userID int, now time.Time) ([]model.UserLoan, error) {
	query, args, err := qb.Select(
		"l.loan_id", "coalesce(l.copy_id, 0) as copy_id", "l.book_id", "l.user_id",
		"l.loan_date", "l.due_date", "l.return_date", "l.status",
		"b.title as book_title", "b.author as book_author").
		Column(sq.Expr("(l.status = 'active' and l.due_date < ?::timestamptz) as is_overdue", now)).
		Column(sq.Expr("case when l.status = 'active' then extract(day from l.due_date - ?::timestamptz)::int end as days_remaining", now)).
		From(loansTableName + " l").
		Join(booksTableName + " b on b.book_id = l.book_id").
		Where(sq.Eq{"l.user_id": userID}).
		OrderBy("l.loan_date desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("UserLoans", zap.String("query", query), zap.Any("args", args))

	items := make([]model.UserLoan, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "UserLoans")
	}
	return items, nil
}

func queuedReservations() sq.SelectBuilder {
	return qb.Select(
		"r.reservation_id", "r.user_id", "r.book_id", "r.reservation_date", "r.position", "r.status",
		"b.title as book_title", "b.author as book_author", "b.available_copies").
		From(reservationsTableName + " r").
		Join(booksTableName + " b on b.book_id = r.book_id")
}

func (r *reportRepository) UserReservations(ctx context.Context, userID int) ([]model.QueuedReservation, error) {
	query, args, err := queuedReservations().
		Where(sq.Eq{"r.user_id": userID}).
		OrderBy("r.reservation_date desc", "r.reservation_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.QueuedReservation, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "UserReservations")
	}
	return items, nil
}

func (r *reportRepository) ActiveReservations(ctx context.Context) ([]model.QueuedReservation, error) {
	query, args, err := queuedReservations().
		Where(sq.Eq{"r.status": activeStatuses()}).
		OrderBy("b.title asc", "r.position asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.QueuedReservation, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "ActiveReservations")
	}
	return items, nil
}

func (r *reportRepository) LoanStats(ctx context.Context, now time.Time) (model.LoanStats, error) {
	const q = `
	select count(*) filter (where status = 'active')                         as active_loans,
	       count(*) filter (where status = 'active' and due_date < $1::timestamptz) as overdue_loans,
	       count(*) filter (where status = 'returned')                       as total_returned
	from loans`
	var stats model.LoanStats
	if err := r.db.GetContext(ctx, &stats, q, now); err != nil {
		return model.LoanStats{}, errors.Wrap(err, "LoanStats")
	}
	return stats, nil
}

func (r *reportRepository) DashboardStats(ctx context.Context, now time.Time) (model.DashboardStats, error) {
	const q = `
	select (select count(*) from books)                                                             as total_books,
	       (select coalesce(sum(total_copies), 0) from books)                                       as total_copies,
	       (select count(*) from loans where status = 'active')                                     as active_loans,
	       (select count(*) from loans where status = 'active' and due_date < $1::timestamptz)      as overdue_loans,
	       (select count(*) from reservations where status = 'pending')                             as pending_reservations,
	       (select count(*) from reservations where status = 'ready')                               as ready_reservations`
	var stats model.DashboardStats
	if err := r.db.GetContext(ctx, &stats, q, now); err != nil {
		return model.DashboardStats{}, errors.Wrap(err, "DashboardStats")
	}
	return stats, nil
}

func (r *reportRepository) RecentActivity(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	query, args, err := qb.Select("event_uid::text as event_uid", "action", "details", "timestamp").
		From(activityTableName).
		OrderBy("timestamp desc").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.Activity, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "RecentActivity")
	}
	return items, nil
}

// SaveActivity ignores redelivered events.
func (r *reportRepository) SaveActivity(ctx context.Context, activity model.Activity) error {
	query, args, err := qb.Insert(activityTableName).
		Columns("event_uid", "action", "details", "timestamp").
		Values(activity.EventUid, activity.Action, activity.Details, activity.Timestamp).
		Suffix("on conflict (event_uid) do nothing").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "SaveActivity")
	}
	return nil
}
