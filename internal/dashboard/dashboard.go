// Package dashboard derives display metrics from the aggregate counters.
package dashboard

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/verte-zerg/ledgeradmin/internal/model"
)

// Trend is the change between the last two entries of a series.
type Trend struct {
	MagnitudePercent float64
	IsPositive       bool
}

// String renders the trend as an arrow and a percentage.
func (t Trend) String() string {
	arrow := "↑"
	if !t.IsPositive {
		arrow = "↓"
	}
	return fmt.Sprintf("%s %.1f%%", arrow, t.MagnitudePercent)
}

// TrendOf compares the last entry of series with the one before it.
// Fewer than two entries or a zero second-to-last entry is neutral.
func TrendOf(series []int) Trend {
	if len(series) < 2 {
		return Trend{IsPositive: true}
	}
	last, prev := series[len(series)-1], series[len(series)-2]
	if prev == 0 {
		return Trend{IsPositive: true}
	}
	diff := last - prev
	return Trend{
		MagnitudePercent: math.Abs(float64(diff)) / float64(max(1, prev)) * 100,
		IsPositive:       diff >= 0,
	}
}

// Growth is the percentage change from previous to current, rounded to one
// decimal. It is 0 when previous is 0.
func Growth(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	g := float64(current-previous) / float64(previous) * 100
	return math.Round(g*10) / 10
}

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatCurrency formats amount in rupees for the en-IN locale.
func FormatCurrency(amount float64) string {
	return inrPrinter.Sprint(currency.Symbol(currency.INR.Amount(amount)))
}

// FormatCount formats an integer with en-IN digit grouping.
func FormatCount(n int) string {
	return inrPrinter.Sprintf("%d", n)
}

// Card is one headline metric.
type Card struct {
	Title string
	Value string
	// Sub is the last-week figure, empty for cards without one.
	Sub string
	// Growth is the week-over-week change in percent, 0 when unknown.
	Growth float64
}

// GrowthLabel renders the growth badge, empty when there is no change.
func (c Card) GrowthLabel() string {
	switch {
	case c.Growth > 0:
		return fmt.Sprintf("↑ %.1f%%", c.Growth)
	case c.Growth < 0:
		return fmt.Sprintf("↓ %.1f%%", -c.Growth)
	default:
		return ""
	}
}

// Cards builds the headline metrics. The previous value of a counter is
// its total minus the last week.
func Cards(agg model.DashboardAggregate) []Card {
	counter := func(title string, total, lastWeek int) Card {
		return Card{
			Title:  title,
			Value:  FormatCount(total),
			Sub:    fmt.Sprintf("+%s this week", FormatCount(lastWeek)),
			Growth: Growth(total, total-lastWeek),
		}
	}
	return []Card{
		counter("Total Users", agg.TotalUsers, agg.LastWeekUsers),
		counter("Total Books", agg.TotalBooks, agg.LastWeekBooks),
		counter("Total Transactions", agg.TotalTransactions, agg.LastWeekTransactions),
		{Title: "Total Amount", Value: FormatCurrency(agg.TotalTransactionAmount)},
	}
}

// SeriesTrend is a monthly series with its trend.
type SeriesTrend struct {
	Name   string
	Values []int
	Trend  Trend
}

// Report contains precomputed data for dashboard rendering.
type Report struct {
	Aggregate model.DashboardAggregate
	Cards     []Card
	Series    []SeriesTrend
}

// Source loads the aggregate counters.
type Source interface {
	Dashboard(ctx context.Context) (model.DashboardAggregate, error)
}

// BuildReport loads the aggregate and prepares it for rendering.
func BuildReport(ctx context.Context, src Source) (Report, error) {
	agg, err := src.Dashboard(ctx)
	if err != nil {
		return Report{}, err
	}
	return NewReport(agg), nil
}

// NewReport derives cards and trends from agg.
func NewReport(agg model.DashboardAggregate) Report {
	monthly := agg.MonthlyStats
	return Report{
		Aggregate: agg,
		Cards:     Cards(agg),
		Series: []SeriesTrend{
			{Name: "Users", Values: monthly.Users, Trend: TrendOf(monthly.Users)},
			{Name: "Books", Values: monthly.Books, Trend: TrendOf(monthly.Books)},
			{Name: "Transactions", Values: monthly.Transactions, Trend: TrendOf(monthly.Transactions)},
		},
	}
}
