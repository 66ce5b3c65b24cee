package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"erkc63/lib/textutil"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// AccrualDetails is one named expense category of a period's detail
// breakdown.
type AccrualDetails struct {
	Accrued float64
	Recalc  float64
	Paid    float64
	Debt    float64
}

// Accrual is a billing-period receipt record, optionally split into a
// general and a penalty document.
type Accrual struct {
	Account int64
	Date    time.Time
	Summa   float64
	Peni    float64
	// document ids for PDF download; zero means no document
	BillID int64
	PeniID int64
	// named expense breakdown, populated by UpdateAccrual
	Details map[string]AccrualDetails
}

// MonthAccrual is one row of the period-range accrual listing.
type MonthAccrual struct {
	Account int64
	Date    time.Time
	Summa   float64
	Peni    float64
	Paid    float64
	Recalc  float64
	Details map[string]AccrualDetails
}

// Detailed is satisfied by the accrual records whose expense
// breakdown can be fetched with UpdateAccrual.
type Detailed interface {
	detailKey() (account int64, month time.Time)
	setDetails(details map[string]AccrualDetails)
}

func (a *Accrual) detailKey() (int64, time.Time) { return a.Account, a.Date }

func (a *Accrual) setDetails(d map[string]AccrualDetails) { a.Details = d }

func (a *MonthAccrual) detailKey() (int64, time.Time) { return a.Account, a.Date }

func (a *MonthAccrual) setDetails(d map[string]AccrualDetails) { a.Details = d }

// row discriminators of the yearly receipt listing
const (
	receiptKindGeneral = "общая"
	receiptKindPenalty = "пени"
)

// lastAccrualMonth is the most recent closed billing period: bills
// are issued for the previous month.
func lastAccrualMonth(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
}

type YearAccrualsRequest struct {
	// Year defaults to the year of the last closed billing period.
	Year int
	// Account defaults to the primary account.
	Account int64
	// Limit bounds the number of distinct billing dates returned;
	// zero means all of them.
	Limit int
	// IncludeDetails fetches the expense breakdown of every record.
	IncludeDetails bool
}

// YearAccruals lists the receipts of one year. The portal emits one
// row per document, so rows sharing a billing date are folded into a
// single record carrying both document ids, in first-seen date order.
func (c *Client) YearAccruals(ctx context.Context, req YearAccrualsRequest) ([]*Accrual, error) {
	ctx, span := tracer.Start(ctx, "client:YearAccruals")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return nil, err
	}
	account, err := c.resolveAccount(req.Account)
	if err != nil {
		return nil, err
	}

	year := req.Year
	if year == 0 {
		year = lastAccrualMonth(time.Now()).Year()
	}

	var rows [][]string
	err = c.ajax(ctx, "getReceipts", account, map[string]string{
		"year": strconv.Itoa(year),
	}, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch receipts")
		return nil, err
	}

	var order []time.Time
	byDate := make(map[time.Time]*Accrual)

	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: short receipt row", ErrParsing)
		}
		date, err := textutil.FindDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: receipt row date: %v", ErrParsing, err)
		}

		record, ok := byDate[date]
		if !ok {
			if req.Limit > 0 && len(order) == req.Limit {
				break
			}
			summa, err := textutil.ParseFloat(fragmentText(row[1]))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParsing, err)
			}
			peni, err := textutil.ParseFloat(fragmentText(row[2]))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParsing, err)
			}
			record = &Accrual{
				Account: account,
				Date:    date,
				Summa:   summa,
				Peni:    peni,
			}
			byDate[date] = record
			order = append(order, date)
		}

		id := fragmentID(row[5])
		switch fragmentText(row[3]) {
		case receiptKindGeneral:
			record.BillID = id
		case receiptKindPenalty:
			record.PeniID = id
		default:
			return nil, fmt.Errorf("%w: unknown receipt kind %q", ErrParsing, fragmentText(row[3]))
		}
	}

	result := make([]*Accrual, len(order))
	for i, date := range order {
		result[i] = byDate[date]
	}

	if req.IncludeDetails {
		records := make([]Detailed, len(result))
		for i, r := range result {
			records[i] = r
		}
		if err := c.UpdateAccruals(ctx, records...); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type AccrualsHistoryRequest struct {
	// Account defaults to the primary account.
	Account int64
	// Start and End default to MinDate and MaxDate.
	Start time.Time
	End   time.Time
	// IncludeDetails fetches the expense breakdown of every record.
	IncludeDetails bool
}

// AccrualsHistory lists per-month accruals in a date window. The
// endpoint pads its output with zero rows past the valid range
// instead of returning an empty result, so accumulation stops at the
// first zero-total row.
func (c *Client) AccrualsHistory(ctx context.Context, req AccrualsHistoryRequest) ([]*MonthAccrual, error) {
	ctx, span := tracer.Start(ctx, "client:AccrualsHistory")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return nil, err
	}
	account, err := c.resolveAccount(req.Account)
	if err != nil {
		return nil, err
	}
	start, end, err := historyWindow(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	rows, err := c.history(ctx, "accruals", account, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch accruals history")
		return nil, err
	}

	var result []*MonthAccrual
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: short accrual row", ErrParsing)
		}
		date, err := textutil.FindDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: accrual row date: %v", ErrParsing, err)
		}
		var floats [4]float64
		for i := range floats {
			floats[i], err = textutil.ParseFloat(fragmentText(row[i+1]))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParsing, err)
			}
		}

		// the first zero total marks the end of the valid range,
		// everything after it is padding
		if floats[0] == 0 {
			break
		}

		result = append(result, &MonthAccrual{
			Account: account,
			Date:    date,
			Summa:   floats[0],
			Peni:    floats[1],
			Paid:    floats[2],
			Recalc:  floats[3],
		})
	}

	if req.IncludeDetails {
		records := make([]Detailed, len(result))
		for i, r := range result {
			records[i] = r
		}
		if err := c.UpdateAccruals(ctx, records...); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UpdateAccrual fetches the named expense breakdown of one record.
func (c *Client) UpdateAccrual(ctx context.Context, record Detailed) error {
	ctx, span := tracer.Start(ctx, "client:UpdateAccrual")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return err
	}
	return c.updateAccrual(ctx, record)
}

func (c *Client) updateAccrual(ctx context.Context, record Detailed) error {
	account, month := record.detailKey()
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	var rows [][]string
	err := c.ajax(ctx, "accrualsDetalization", account, map[string]string{
		"month": monthStart.Format("02.01.06"),
	}, &rows)
	if err != nil {
		return err
	}

	details := make(map[string]AccrualDetails, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return fmt.Errorf("%w: short detalization row", ErrParsing)
		}
		var floats [4]float64
		for i := range floats {
			floats[i], err = textutil.ParseFloat(row[i+1])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrParsing, err)
			}
		}
		details[textutil.Normalize(row[0])] = AccrualDetails{
			Accrued: floats[0],
			Recalc:  floats[1],
			Paid:    floats[2],
			Debt:    floats[3],
		}
	}

	record.setDetails(details)
	return nil
}

// UpdateAccruals fetches the breakdowns of a batch of records, one
// request per record, all in flight at once.
func (c *Client) UpdateAccruals(ctx context.Context, records ...Detailed) error {
	ctx, span := tracer.Start(ctx, "client:UpdateAccruals")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, record := range records {
		record := record
		g.Go(func() error {
			return c.updateAccrual(ctx, record)
		})
	}
	return g.Wait()
}
