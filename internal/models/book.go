package models

// Book is one catalog entry as the API returns it. Copy counts are
// server-maintained; this layer only reads them.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category,omitempty"`
	ISBN            string `json:"isbn,omitempty"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

// Available reports whether at least one copy can be borrowed.
func (b Book) Available() bool {
	return b.AvailableCopies > 0
}
