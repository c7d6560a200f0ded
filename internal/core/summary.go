package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthlyStats aggregates one user's transactions over a calendar month.
type MonthlyStats struct {
	Year             int              `json:"year"`
	Month            int              `json:"month"` // 1-12
	TotalIncome      Money            `json:"totalIncome"`
	TotalExpenses    Money            `json:"totalExpenses"`
	ByCategory       []CategoryAmount `json:"byCategory"` // expenses only, largest first
	TransactionCount int              `json:"transactionCount"`
}

// Net is income minus expenses.
func (s MonthlyStats) Net() Money {
	return s.TotalIncome.Sub(s.TotalExpenses)
}

// MonthName returns e.g. "March 2025".
func (s MonthlyStats) MonthName() string {
	return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// ComputeMonthlyStats folds transactions into stats for the given month.
// Transactions outside the month are ignored.
func ComputeMonthlyStats(year, month int, txs []Transaction) MonthlyStats {
	stats := MonthlyStats{Year: year, Month: month}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	byCat := map[string]Money{}
	for _, tx := range txs {
		if tx.Date.Before(start) || !tx.Date.Before(end) {
			continue
		}
		stats.TransactionCount++
		if tx.Type == Expense {
			stats.TotalExpenses = stats.TotalExpenses.Add(tx.Amount)
			byCat[tx.Category] = byCat[tx.Category].Add(tx.Amount)
		} else {
			stats.TotalIncome = stats.TotalIncome.Add(tx.Amount)
		}
	}
	for name, amt := range byCat {
		stats.ByCategory = append(stats.ByCategory, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool {
		if c := stats.ByCategory[i].Amount.Cmp(stats.ByCategory[j].Amount); c != 0 {
			return c > 0
		}
		return stats.ByCategory[i].Name < stats.ByCategory[j].Name
	})
	return stats
}

// BudgetAlert is the payload of a budget threshold notification.
type BudgetAlert struct {
	UserName       string
	Email          string
	AccountName    string
	PercentageUsed decimal.Decimal
	BudgetAmount   Money
	TotalExpenses  Money
}

// Remaining is the unspent part of the budget, possibly negative.
func (a BudgetAlert) Remaining() Money {
	return a.BudgetAmount.Sub(a.TotalExpenses)
}

// MonthlyReport is the payload of the monthly summary email.
type MonthlyReport struct {
	UserName string
	Email    string
	Stats    MonthlyStats
	Insights []string
}

// BudgetStatus is the current month's spending against the budget.
type BudgetStatus struct {
	Budget          *Budget `json:"budget"`
	CurrentExpenses Money   `json:"currentExpenses"`
}

// ReceiptData holds fields extracted from a receipt image.
type ReceiptData struct {
	Amount       Money     `json:"amount"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchantName"`
	Category     string    `json:"category"`
}

// IsEmpty reports whether nothing could be extracted.
func (r ReceiptData) IsEmpty() bool {
	return r.Amount.IsZero() && r.MerchantName == "" && r.Description == ""
}

// ExpenseCategories are the category ids offered for expenses and receipt extraction.
var ExpenseCategories = []string{
	"housing", "transportation", "groceries", "utilities", "entertainment",
	"food", "shopping", "healthcare", "education", "personal",
	"travel", "insurance", "gifts", "bills", "other-expense",
}
