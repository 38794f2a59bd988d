package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
)

const reservationsOneActivePerUser = "reservations_one_active_per_user"

var reservationColumns = []string{"reservation_id", "user_id", "book_id", "reservation_date", "position", "status"}

func activeStatuses() []string {
	return []string{string(model.ReservationPending), string(model.ReservationReady)}
}

func (r *txRepository) Enqueue(ctx context.Context, bookID, userID int, at time.Time) (model.Reservation, error) {
	q := fmt.Sprintf(`insert into %[1]s (user_id, book_id, reservation_date, position, status)
	select @user_id::int, @book_id::int, @reservation_date::timestamptz, coalesce(max(position), 0) + 1, @status::text
	from %[1]s
	where book_id = @book_id::int and status in ('pending', 'ready')
	returning %[2]s`, reservationsTableName, strings.Join(reservationColumns, ", "))
	args := pgx.NamedArgs{
		"user_id":          userID,
		"book_id":          bookID,
		"reservation_date": at,
		"status":           string(model.ReservationPending),
	}
	rsv, err := collectOne[model.Reservation](ctx, r.tx, q, args)
	if err != nil {
		if isUniqueViolation(err, reservationsOneActivePerUser) {
			return model.Reservation{}, errs.ErrDuplicateReservation
		}
		return model.Reservation{}, errors.Wrap(err, "Enqueue")
	}
	return rsv, nil
}

func (r *txRepository) HasActiveReservation(ctx context.Context, bookID, userID int) (bool, error) {
	query, args, err := qb.Select("1").
		From(reservationsTableName).
		Where(sq.Eq{"book_id": bookID, "user_id": userID, "status": activeStatuses()}).
		Prefix("select exists (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "HasActiveReservation")
	}
	return exists, nil
}

// RecalcPositions renumbers the active queue of a book 1..N by (reservation_date, reservation_id).
func (r *txRepository) RecalcPositions(ctx context.Context, bookID int) error {
	q := fmt.Sprintf(`
	with ordered as (
		select reservation_id,
		       row_number() over (order by reservation_date asc, reservation_id asc) as new_position
		from %[1]s
		where book_id = @book_id and status in ('pending', 'ready')
	)
	update %[1]s r
	set position = o.new_position
	from ordered o
	where r.reservation_id = o.reservation_id and r.position <> o.new_position`, reservationsTableName)
	if _, err := r.tx.Exec(ctx, q, pgx.NamedArgs{"book_id": bookID}); err != nil {
		return errors.Wrap(err, "RecalcPositions")
	}
	return nil
}

func (r *txRepository) PeekNext(ctx context.Context, bookID int) (model.Reservation, bool, error) {
	return r.peek(ctx, bookID, activeStatuses())
}

func (r *txRepository) PeekNextPending(ctx context.Context, bookID int) (model.Reservation, bool, error) {
	return r.peek(ctx, bookID, []string{string(model.ReservationPending)})
}

func (r *txRepository) peek(ctx context.Context, bookID int, statuses []string) (model.Reservation, bool, error) {
	rsv, err := buildOne[model.Reservation](ctx, r.tx, qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"book_id": bookID, "status": statuses}).
		OrderBy("position", "reservation_date", "reservation_id").
		Limit(1))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, false, nil
		}
		return model.Reservation{}, false, errors.Wrap(err, "peek")
	}
	return rsv, true, nil
}

func (r *txRepository) GetReservation(ctx context.Context, reservationID int) (model.Reservation, error) {
	return r.selectReservation(ctx, reservationID, "")
}

func (r *txRepository) LockReservation(ctx context.Context, reservationID int) (model.Reservation, error) {
	return r.selectReservation(ctx, reservationID, "for update")
}

func (r *txRepository) selectReservation(ctx context.Context, reservationID int, suffix string) (model.Reservation, error) {
	q := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"reservation_id": reservationID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	rsv, err := buildOne[model.Reservation](ctx, r.tx, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, errs.ErrReservationNotFound
		}
		return model.Reservation{}, errors.Wrap(err, "selectReservation")
	}
	return rsv, nil
}

func (r *txRepository) MarkReady(ctx context.Context, reservationID int) error {
	return r.transition(ctx, reservationID, model.ReservationReady, []string{string(model.ReservationPending)})
}

func (r *txRepository) MarkFulfilled(ctx context.Context, reservationID int) error {
	return r.transition(ctx, reservationID, model.ReservationFulfilled, activeStatuses())
}

func (r *txRepository) MarkCancelled(ctx context.Context, reservationID int) error {
	return r.transition(ctx, reservationID, model.ReservationCancelled, activeStatuses())
}

func (r *txRepository) transition(ctx context.Context, reservationID int, to model.ReservationStatus, from []string) error {
	query, args, err := qb.Update(reservationsTableName).
		Set("status", string(to)).
		Where(sq.Eq{"reservation_id": reservationID, "status": from}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "mark %s", to)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.ErrInvalidReservationState, "reservation %d -> %s", reservationID, to)
	}
	return nil
}
