package library

import (
	"context"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// Reservations manages holds on titles. A hold never pins a specific copy and
// does not change copy status.
type Reservations struct {
	st  store.Store
	cfg *settings
}

// NewReservations creates a Reservations service over st.
func NewReservations(st store.Store, opts ...Option) *Reservations {
	return &Reservations{st: st, cfg: newSettings(opts)}
}

// Create places a hold for memberID on bookID lasting days, or the configured
// default when days is zero.
func (r *Reservations) Create(ctx context.Context, memberID, bookID int64, days int) (*Reservation, error) {
	if days < 0 {
		return nil, domainerrors.Validationf("reservation days must be positive, got %d", days)
	}
	if days == 0 {
		days = r.cfg.reservationDays
	}

	var created Reservation
	err := r.st.WithTx(ctx, func(tx store.Store) error {
		if err := exists(ctx, tx, store.Members, memberID); err != nil {
			return err
		}
		if err := exists(ctx, tx, store.Books, bookID); err != nil {
			return err
		}
		today := r.cfg.today()
		rv := Reservation{
			MemberID:  memberID,
			BookID:    bookID,
			CreatedAt: today,
			ExpiresAt: today.AddDays(days),
			Active:    true,
		}
		row, err := tx.Insert(ctx, store.Reservations, rv.toRow())
		if err != nil {
			return storeErr(err, "create reservation")
		}
		created, err = reservationFromRow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.cfg.metrics.ReservationsIn.WithLabelValues("created").Inc()
	r.cfg.log.Info("reservation created",
		"reservation_id", created.ID, "member_id", memberID, "book_id", bookID,
		"expires_at", created.ExpiresAt.String())
	return &created, nil
}

// Get fetches one reservation.
func (r *Reservations) Get(ctx context.Context, id int64) (*Reservation, error) {
	list, err := r.list(ctx, store.Eq("reservation_id", id))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domainerrors.NotFoundf("reservation %d not found", id)
	}
	return &list[0], nil
}

// List returns every reservation, expired and cancelled ones included.
func (r *Reservations) List(ctx context.Context) ([]Reservation, error) { return r.list(ctx) }

// GetMemberReservations returns all reservations of memberID.
func (r *Reservations) GetMemberReservations(ctx context.Context, memberID int64) ([]Reservation, error) {
	return r.list(ctx, store.Eq("member_id", memberID))
}

// Cancel deactivates a reservation. It reports false when it does not exist.
func (r *Reservations) Cancel(ctx context.Context, id int64) (bool, error) {
	n, err := r.st.Update(ctx, store.Reservations, store.Row{"active": false}, store.Eq("reservation_id", id))
	if err != nil {
		return false, storeErr(err, "cancel reservation %d", id)
	}
	if n == 0 {
		return false, nil
	}
	r.cfg.metrics.ReservationsIn.WithLabelValues("cancelled").Inc()
	r.cfg.log.Info("reservation cancelled", "reservation_id", id)
	return true, nil
}

// ExpireReservations deactivates active holds whose expiry date has passed
// and returns how many changed.
func (r *Reservations) ExpireReservations(ctx context.Context) (int64, error) {
	today := r.cfg.today()
	n, err := r.st.Update(ctx, store.Reservations,
		store.Row{"active": false},
		store.Eq("active", true),
		store.Lt("expires_at", today.String()))
	if err != nil {
		return 0, storeErr(err, "expire reservations")
	}
	r.cfg.metrics.ReservationsIn.WithLabelValues("expired").Add(float64(n))
	r.cfg.log.Info("reservation sweep finished", "expired", n, "today", today.String())
	return n, nil
}

func (r *Reservations) list(ctx context.Context, filters ...store.Filter) ([]Reservation, error) {
	rows, err := r.st.Select(ctx, store.Reservations, filters...)
	if err != nil {
		return nil, storeErr(err, "list reservations")
	}
	return decodeAll(rows, reservationFromRow)
}

// exists returns NotFound unless t has a row with the given key.
func exists(ctx context.Context, st store.Store, t store.Table, id int64) error {
	rows, err := st.Select(ctx, t, store.Eq(t.Key, id))
	if err != nil {
		return storeErr(err, "get %s %d", t.Name, id)
	}
	if len(rows) == 0 {
		return domainerrors.NotFoundf("%s %d not found", t.Name, id)
	}
	return nil
}
