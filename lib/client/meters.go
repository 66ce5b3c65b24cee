package client

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"erkc63/lib/textutil"

	"go.opentelemetry.io/otel/codes"
)

// MeterValue is one reading of one device.
type MeterValue struct {
	Date        time.Time
	Value       float64
	Consumption float64
	Source      string
}

// MeterInfoHistory is the reconciled reading history of one device.
type MeterInfoHistory struct {
	Name   string
	Serial string
	Values []MeterValue
}

// PublicMeterInfo describes a device as listed on a counters page.
type PublicMeterInfo struct {
	// internal portal id, used when submitting new readings
	ID     int64
	Serial string
	// date and value of the last accepted reading
	Date  time.Time
	Value float64
}

// device key column separator in counters history rows
const meterKeySeparator = ", счетчик №"

type MetersHistoryRequest struct {
	// Account defaults to the primary account.
	Account int64
	// Start and End default to MinDate and MaxDate.
	Start time.Time
	End   time.Time
}

// MetersHistory reconstructs the full reading history of every device
// on the account. The endpoint caps each response at 25 rows, so the
// window is walked backwards page by page; pages overlap near the
// boundary and overlapping rows are deduplicated, keeping first-seen
// order. Readings without consumption are skipped as non-events.
//
// A full page whose rows all share one date cannot be advanced by
// date alone: any further rows of that day are beyond the cap and
// unreachable. That case is logged and worked around by stepping the
// window back a day; the result may genuinely be incomplete.
func (c *Client) MetersHistory(ctx context.Context, req MetersHistoryRequest) ([]MeterInfoHistory, error) {
	ctx, span := tracer.Start(ctx, "client:MetersHistory")
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

	type deviceKey struct {
		name   string
		serial string
	}
	var order []deviceKey
	values := make(map[deviceKey][]MeterValue)

	for {
		rows, err := c.history(ctx, "counters", account, start, end)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch counters history")
			return nil, err
		}
		if len(rows) > historyPageCap {
			return nil, fmt.Errorf("%w: counters history returned %d rows, the API caps at %d",
				ErrParsing, len(rows), historyPageCap)
		}

		pageDates := make(map[time.Time]struct{})
		for _, row := range rows {
			if len(row) < 6 {
				return nil, fmt.Errorf("%w: short counters row", ErrParsing)
			}
			date, err := textutil.FindDate(row[2])
			if err != nil {
				return nil, fmt.Errorf("%w: counters row date: %v", ErrParsing, err)
			}
			pageDates[date] = struct{}{}
			// rows arrive newest-first, so the last processed date is
			// the lower bound of the page and the next window's end
			end = date

			consumption, err := textutil.ParseFloat(row[4])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParsing, err)
			}
			if consumption == 0 {
				// a reading without consumption is a non-event
				continue
			}
			value, err := textutil.ParseFloat(row[3])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParsing, err)
			}

			name, serial, ok := strings.Cut(row[1], meterKeySeparator)
			if !ok {
				return nil, fmt.Errorf("%w: bad device key %q", ErrParsing, row[1])
			}
			key := deviceKey{textutil.Normalize(name), textutil.Normalize(serial)}
			if _, seen := values[key]; !seen {
				order = append(order, key)
			}
			values[key] = append(values[key], MeterValue{
				Date:        date,
				Value:       value,
				Consumption: consumption,
				Source:      textutil.Normalize(row[5]),
			})
		}

		if len(rows) < historyPageCap {
			// a short page is the last page
			break
		}

		if len(pageDates) == 1 {
			slog.WarnContext(ctx, "counters history may be incomplete: a full page of rows shares one date",
				"date", textutil.FormatDate(end))
			if start.Equal(end) {
				break
			}
			end = end.AddDate(0, 0, -1)
			slog.WarnContext(ctx, "stepping the history window back a day",
				"end", textutil.FormatDate(end))
		}
	}

	result := make([]MeterInfoHistory, 0, len(order))
	for _, key := range order {
		result = append(result, MeterInfoHistory{
			Name:   key.name,
			Serial: key.serial,
			Values: dedupMeterValues(values[key]),
		})
	}
	return result, nil
}

// dedupMeterValues collapses exact duplicates from overlapping pages,
// preserving first-seen order. Equality covers every field.
func dedupMeterValues(in []MeterValue) []MeterValue {
	seen := make(map[MeterValue]struct{}, len(in))
	out := make([]MeterValue, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MetersInfo lists the devices of a bound account with their last
// readings, keyed by the internal portal id.
func (c *Client) MetersInfo(ctx context.Context, account int64) (map[int64]PublicMeterInfo, error) {
	ctx, span := tracer.Start(ctx, "client:MetersInfo")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return nil, err
	}
	account, err := c.resolveAccount(account)
	if err != nil {
		return nil, err
	}

	res, err := c.get(ctx, fmt.Sprintf("/account/%d/counters", account), nil)
	if err != nil {
		return nil, err
	}
	return parseMeters(res.Body())
}

// PubMetersInfo lists the devices of any account anonymously.
func (c *Client) PubMetersInfo(ctx context.Context, account int64) (map[int64]PublicMeterInfo, error) {
	ctx, span := tracer.Start(ctx, "client:PubMetersInfo")
	defer span.End()

	if err := c.guard(ctx, modePublic, false); err != nil {
		return nil, err
	}

	res, err := c.get(ctx, fmt.Sprintf("/counters/%d", account), nil)
	if err != nil {
		return nil, err
	}
	return parseMeters(res.Body())
}

// SetMetersValues submits new readings for a bound account, keyed by
// the internal device id. Every value must exceed the device's last
// accepted reading.
func (c *Client) SetMetersValues(ctx context.Context, account int64, values map[int64]float64) error {
	ctx, span := tracer.Start(ctx, "client:SetMetersValues")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return err
	}
	account, err := c.resolveAccount(account)
	if err != nil {
		return err
	}
	return c.submitMeters(ctx, fmt.Sprintf("/account/%d/counters", account), 0, values)
}

// PubSetMetersValues submits new readings anonymously. The account id
// travels in the form since there is no session to infer it from.
func (c *Client) PubSetMetersValues(ctx context.Context, account int64, values map[int64]float64) error {
	ctx, span := tracer.Start(ctx, "client:PubSetMetersValues")
	defer span.End()

	if err := c.guard(ctx, modePublic, false); err != nil {
		return err
	}
	return c.submitMeters(ctx, fmt.Sprintf("/counters/%d", account), account, values)
}

func (c *Client) submitMeters(ctx context.Context, path string, lsAccount int64, values map[int64]float64) error {
	if len(values) == 0 {
		return nil
	}

	res, err := c.get(ctx, path, nil)
	if err != nil {
		return err
	}
	meters, err := parseMeters(res.Body())
	if err != nil {
		return err
	}

	form := make(map[string]string, len(values)*3+1)
	if lsAccount != 0 {
		form["ls"] = strconv.FormatInt(lsAccount, 10)
	}
	for id, value := range values {
		meter, ok := meters[id]
		if !ok {
			return fmt.Errorf("%w: device %d is not listed for this account", ErrMeterNotFound, id)
		}
		if value <= meter.Value {
			return fmt.Errorf("%w: reading %v for device %d must exceed the current %v",
				ErrValidation, value, id, meter.Value)
		}
		form[fmt.Sprintf("counters[%d_0][value]", id)] = strconv.FormatFloat(value, 'f', -1, 64)
		form[fmt.Sprintf("counters[%d_0][rawId]", id)] = strconv.FormatInt(id, 10)
		form[fmt.Sprintf("counters[%d_0][tarif]", id)] = "0"
	}

	slog.DebugContext(ctx, "submitting meter readings", "count", len(values))
	_, err = c.postForm(ctx, path, form)
	return err
}
