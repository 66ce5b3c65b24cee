package client

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ReceiptFiles holds the PDF documents of one accrual. Either slice
// may be empty: receipts legitimately do not exist for every record.
type ReceiptFiles struct {
	Bill []byte
	Peni []byte
}

// ReceiptPDF downloads the receipt PDF of an accrual, the penalty
// document when peni is set. Any download failure, including a record
// without a document id, yields empty content rather than an error.
func (c *Client) ReceiptPDF(ctx context.Context, accrual *Accrual, peni bool) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:ReceiptPDF")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return nil, err
	}
	return c.receiptPDF(ctx, accrual, peni), nil
}

func (c *Client) receiptPDF(ctx context.Context, accrual *Accrual, peni bool) []byte {
	id := accrual.BillID
	if peni {
		id = accrual.PeniID
	}
	if id == 0 {
		return nil
	}

	var ref struct {
		File string `json:"file"`
	}
	err := c.ajax(ctx, "getReceipt", accrual.Account, map[string]string{
		"receiptId": strconv.FormatInt(id, 10),
	}, &ref)
	if err != nil || ref.File == "" {
		slog.DebugContext(ctx, "no receipt file reference", "receipt", id, "err", err)
		return nil
	}

	res, err := c.get(ctx, ref.File, nil)
	if err != nil {
		slog.DebugContext(ctx, "receipt download failed", "receipt", id, "err", err)
		return nil
	}
	return res.Body()
}

// ReceiptFiles downloads the general and the penalty PDF of an
// accrual concurrently. A failed branch leaves its slice empty and
// does not affect the other.
func (c *Client) ReceiptFiles(ctx context.Context, accrual *Accrual) (ReceiptFiles, error) {
	ctx, span := tracer.Start(ctx, "client:ReceiptFiles")
	defer span.End()

	if err := c.guard(ctx, modeNormal, true); err != nil {
		return ReceiptFiles{}, err
	}

	var files ReceiptFiles
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		files.Bill = c.receiptPDF(ctx, accrual, false)
		return nil
	})
	g.Go(func() error {
		files.Peni = c.receiptPDF(ctx, accrual, true)
		return nil
	})
	_ = g.Wait()
	return files, nil
}
