package model

import (
	"time"
)

// LoanPeriod is the fixed due-date window for checkouts and fulfilled reservations.
const LoanPeriod = 14 * 24 * time.Hour

type Book struct {
	ID              int    `json:"id" db:"book_id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	ISBN            string `json:"isbn" db:"isbn"`
	Genre           string `json:"genre" db:"genre"`
	TotalCopies     int    `json:"totalCopies" db:"total_copies"`
	AvailableCopies int    `json:"availableCopies" db:"available_copies"`
}

type CopyStatus string

const (
	CopyAvailable CopyStatus = "available"
	CopyLoaned    CopyStatus = "loaned"
)

type BookCopy struct {
	ID     int        `json:"id" db:"copy_id"`
	BookID int        `json:"bookId" db:"book_id"`
	Status CopyStatus `json:"status" db:"status"`
}

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

type Loan struct {
	ID         int        `json:"id" db:"loan_id"`
	CopyID     int        `json:"copyId" db:"copy_id"`
	BookID     int        `json:"bookId" db:"book_id"`
	UserID     int        `json:"userId" db:"user_id"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
}

// IsOverdue branches on the loan status, return_date is metadata only.
func (l Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanActive && l.DueDate.Before(now)
}

type NewLoan struct {
	CopyID   int
	BookID   int
	UserID   int
	LoanDate time.Time
	DueDate  time.Time
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationReady     ReservationStatus = "ready"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ActiveReservationStatuses form the queue of a book.
var ActiveReservationStatuses = []ReservationStatus{ReservationPending, ReservationReady}

func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationReady
}

type Reservation struct {
	ID              int               `json:"id" db:"reservation_id"`
	UserID          int               `json:"userId" db:"user_id"`
	BookID          int               `json:"bookId" db:"book_id"`
	ReservationDate time.Time         `json:"reservationDate" db:"reservation_date"`
	Position        int               `json:"position" db:"position"`
	Status          ReservationStatus `json:"status" db:"status"`
}

// Notification tells the caller that a waiting user can pick up a copy.
type Notification struct {
	UserID        int    `json:"userId"`
	BookID        int    `json:"bookId"`
	ReservationID int    `json:"reservationId"`
	Message       string `json:"message"`
}

type ReturnResult struct {
	Loan         Loan          `json:"loan"`
	Notification *Notification `json:"notification"`
}

type CheckoutRequest struct {
	UserID int `json:"userId" validate:"required,gt=0"`
	BookID int `json:"bookId" validate:"required,gt=0"`
}

type ReservationRequest struct {
	UserID int `json:"userId" validate:"required,gt=0"`
	BookID int `json:"bookId" validate:"required,gt=0"`
}

type CreateBookRequest struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	ISBN   string `json:"isbn"`
	Genre  string `json:"genre"`
	Copies int    `json:"copies" validate:"required,gte=1"`
}

type CopiesRequest struct {
	Count int `json:"count" validate:"required,gte=1"`
}

// InventoryReport compares the availability counter with the copy rows.
type InventoryReport struct {
	BookID          int  `json:"bookId"`
	TotalCopies     int  `json:"totalCopies"`
	AvailableCopies int  `json:"availableCopies"`
	CopyRows        int  `json:"copyRows"`
	FreeCopies      int  `json:"freeCopies"`
	Consistent      bool `json:"consistent"`
}

type UserLoan struct {
	Loan          `json:",inline"`
	BookTitle     string `json:"bookTitle" db:"book_title"`
	BookAuthor    string `json:"bookAuthor" db:"book_author"`
	IsOverdue     bool   `json:"isOverdue" db:"is_overdue"`
	DaysRemaining *int   `json:"daysRemaining" db:"days_remaining"`
}

type QueuedReservation struct {
	Reservation     `json:",inline"`
	BookTitle       string `json:"bookTitle" db:"book_title"`
	BookAuthor      string `json:"bookAuthor" db:"book_author"`
	AvailableCopies int    `json:"availableCopies" db:"available_copies"`
}

type LoanStats struct {
	ActiveLoans   int `json:"activeLoans" db:"active_loans"`
	OverdueLoans  int `json:"overdueLoans" db:"overdue_loans"`
	TotalReturned int `json:"totalReturned" db:"total_returned"`
}

type DashboardStats struct {
	TotalBooks          int `json:"totalBooks" db:"total_books"`
	TotalCopies         int `json:"totalCopies" db:"total_copies"`
	ActiveLoans         int `json:"activeLoans" db:"active_loans"`
	OverdueLoans        int `json:"overdueLoans" db:"overdue_loans"`
	PendingReservations int `json:"pendingReservations" db:"pending_reservations"`
	ReadyReservations   int `json:"readyReservations" db:"ready_reservations"`
}

type Activity struct {
	EventUid  string    `json:"eventUid" db:"event_uid"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
