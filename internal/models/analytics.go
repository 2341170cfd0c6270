package models

import "github.com/tidwall/gjson"

// DashboardAggregate is the normalized analytics snapshot. The API has
// shipped two nestings of this payload (top-level analytics objects, and
// the same objects wrapped under "dashboard") plus two spellings of the
// trend counters. Normalization happens once here, at the API boundary,
// so render code never probes alternate shapes.
type DashboardAggregate struct {
	TotalBooks          int
	AvailableBooks      int
	ActiveBorrowers     int
	OverdueTransactions int
	BooksByCategory     []CategoryCount
	TransactionTrends   []TrendPoint
	MostBorrowedBooks   []PopularBook
}

// CategoryCount is one slice of the category distribution chart.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// TrendPoint is one day of borrow/return activity.
type TrendPoint struct {
	Date     string `json:"date"`
	Borrowed int    `json:"borrowed"`
	Returned int    `json:"returned"`
}

// PopularBook is one entry of the most-borrowed list.
type PopularBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	BorrowCount int    `json:"borrowCount"`
}

// SystemReport is the flat payload of /analytics/reports. Every field is
// optional on the wire; absent values render as their zero defaults.
type SystemReport struct {
	TotalBooks          int     `json:"totalBooks"`
	AvailableBooks      int     `json:"availableBooks"`
	PopularCategory     string  `json:"popularCategory"`
	AvgBooksPerCategory float64 `json:"avgBooksPerCategory"`
	TotalUsers          int     `json:"totalUsers"`
	ActiveBorrowers     int     `json:"activeBorrowers"`
	AvgBooksPerUser     float64 `json:"avgBooksPerUser"`
	MostActiveUser      string  `json:"mostActiveUser"`
}

// InventoryReport is the payload of /analytics/inventory.
type InventoryReport struct {
	Books []Book `json:"books"`
}

// probe returns the first existing result among dotted paths, tried in order.
func probe(json string, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := gjson.Get(json, p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// NormalizeDashboard maps either known dashboard payload shape onto a
// DashboardAggregate. Unknown or missing pieces fall back to zero values;
// a malformed payload yields an empty aggregate, never an error.
func NormalizeDashboard(raw []byte) DashboardAggregate {
	doc := string(raw)
	var agg DashboardAggregate

	agg.TotalBooks = int(probe(doc,
		"dashboard.bookAnalytics.totalBooks", "bookAnalytics.totalBooks").Int())
	agg.AvailableBooks = int(probe(doc,
		"dashboard.bookAnalytics.availableBooks", "bookAnalytics.availableBooks").Int())
	agg.ActiveBorrowers = int(probe(doc,
		"dashboard.userAnalytics.activeUsers", "userAnalytics.activeBorrowers").Int())
	agg.OverdueTransactions = int(probe(doc,
		"dashboard.transactionAnalytics.overdueTransactions", "transactionAnalytics.overdueTransactions").Int())

	agg.BooksByCategory = normalizeCategories(probe(doc,
		"dashboard.bookAnalytics.booksByCategory", "bookAnalytics.booksByCategory"))
	agg.TransactionTrends = normalizeTrends(probe(doc,
		"dashboard.transactionAnalytics.recentActivity", "transactionAnalytics.transactionTrends"))
	agg.MostBorrowedBooks = normalizePopular(probe(doc,
		"dashboard.bookAnalytics.mostBorrowedBooks", "bookAnalytics.mostBorrowedBooks"))

	return agg
}

// normalizeCategories accepts both the {"Fiction": 3} map form and the
// [{"category":"Fiction","count":3}] array form.
func normalizeCategories(r gjson.Result) []CategoryCount {
	var out []CategoryCount
	if r.IsObject() {
		r.ForEach(func(key, value gjson.Result) bool {
			out = append(out, CategoryCount{Category: key.String(), Count: int(value.Int())})
			return true
		})
		return out
	}
	r.ForEach(func(_, item gjson.Result) bool {
		out = append(out, CategoryCount{
			Category: item.Get("category").String(),
			Count:    int(item.Get("count").Int()),
		})
		return true
	})
	return out
}

func normalizeTrends(r gjson.Result) []TrendPoint {
	var out []TrendPoint
	r.ForEach(func(_, item gjson.Result) bool {
		borrowed := item.Get("borrowings")
		if !borrowed.Exists() {
			borrowed = item.Get("borrowed")
		}
		returned := item.Get("returns")
		if !returned.Exists() {
			returned = item.Get("returned")
		}
		out = append(out, TrendPoint{
			Date:     item.Get("date").String(),
			Borrowed: int(borrowed.Int()),
			Returned: int(returned.Int()),
		})
		return true
	})
	return out
}

func normalizePopular(r gjson.Result) []PopularBook {
	var out []PopularBook
	r.ForEach(func(_, item gjson.Result) bool {
		out = append(out, PopularBook{
			Title:       item.Get("title").String(),
			Author:      item.Get("author").String(),
			BorrowCount: int(item.Get("borrowCount").Int()),
		})
		return true
	})
	return out
}
