package models

// Transaction statuses as reported by the catalog API. OVERDUE is computed
// server-side; the console never requests that transition.
const (
	StatusBorrowed = "BORROWED"
	StatusReturned = "RETURNED"
	StatusOverdue  = "OVERDUE"
)

// Transaction is one borrow/return record. Dates stay in the server's wire
// form and are only parsed at render time.
type Transaction struct {
	ID         int64  `json:"id"`
	BookTitle  string `json:"bookTitle"`
	UserName   string `json:"userName"`
	BorrowDate string `json:"borrowDate"`
	DueDate    string `json:"dueDate,omitempty"`
	ReturnDate string `json:"returnDate,omitempty"`
	Status     string `json:"status"`
}
