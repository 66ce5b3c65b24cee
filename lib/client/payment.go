package client

import (
	"context"
	"fmt"
	"time"

	"erkc63/lib/textutil"

	"go.opentelemetry.io/otel/codes"
)

// Payment is one posted payment.
type Payment struct {
	Date        time.Time
	Summa       float64
	Description string
}

type PaymentsHistoryRequest struct {
	// Account defaults to the primary account.
	Account int64
	// Start and End default to MinDate and MaxDate.
	Start time.Time
	End   time.Time
}

// PaymentsHistory lists payments in a date window. Zero-amount rows
// are internal reallocations, not payments, and are filtered out.
func (c *Client) PaymentsHistory(ctx context.Context, req PaymentsHistoryRequest) ([]Payment, error) {
	ctx, span := tracer.Start(ctx, "client:PaymentsHistory")
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

	rows, err := c.history(ctx, "payments", account, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch payments history")
		return nil, err
	}

	result := make([]Payment, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("%w: short payment row", ErrParsing)
		}
		date, err := textutil.FindDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: payment row date: %v", ErrParsing, err)
		}
		summa, err := textutil.ParseFloat(fragmentText(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsing, err)
		}
		if summa == 0 {
			continue
		}
		result = append(result, Payment{
			Date:        date,
			Summa:       summa,
			Description: fragmentText(row[2]),
		})
	}
	return result, nil
}
