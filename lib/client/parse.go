package client

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"erkc63/lib/htmlutil"
	"erkc63/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	return doc, nil
}

// parseToken extracts the hidden CSRF token every Laravel form on the
// portal carries.
func parseToken(body []byte) (string, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return "", err
	}
	token := doc.Find("input[name=_token]").AttrOr("value", "")
	if token == "" {
		return "", fmt.Errorf("%w: no _token field on login page", ErrParsing)
	}
	return token, nil
}

var accountHrefRegex = regexp.MustCompile(`/account/(\d+)`)

// parseAccounts extracts the accounts bound to the cabinet from any
// authorized page, in the order the portal lists them. The result is
// non-nil even when empty: an authorized login may have no accounts.
func parseAccounts(body []byte) ([]int64, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	accounts := make([]int64, 0, 4)
	seen := make(map[int64]struct{})
	doc.Find("a[href*='/account/']").Each(func(_ int, a *goquery.Selection) {
		m := accountHrefRegex.FindStringSubmatch(a.AttrOr("href", ""))
		if m == nil {
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		accounts = append(accounts, id)
	})
	return accounts, nil
}

// parseMeters reads the device table from a counters page, both the
// authorized and the anonymous variant.
func parseMeters(body []byte) (map[int64]PublicMeterInfo, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	meters := make(map[int64]PublicMeterInfo)
	var rowErr error
	doc.Find("tr[data-counter]").Each(func(_ int, tr *goquery.Selection) {
		if rowErr != nil {
			return
		}
		id, err := strconv.ParseInt(tr.AttrOr("data-counter", ""), 10, 64)
		if err != nil {
			rowErr = fmt.Errorf("%w: bad counter id: %v", ErrParsing, err)
			return
		}
		date, err := textutil.FindDate(tr.Find("td.date").Text())
		if err != nil {
			rowErr = fmt.Errorf("%w: counter %d: %v", ErrParsing, id, err)
			return
		}
		value, err := textutil.ParseFloat(tr.Find("td.value").Text())
		if err != nil {
			rowErr = fmt.Errorf("%w: counter %d: %v", ErrParsing, id, err)
			return
		}
		meters[id] = PublicMeterInfo{
			ID:     id,
			Serial: textutil.Normalize(tr.Find("td.serial").Text()),
			Date:   date,
			Value:  value,
		}
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return meters, nil
}

// parseAccountInfo reads the summary block of an account page.
func parseAccountInfo(body []byte, account int64) (AccountInfo, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return AccountInfo{}, err
	}

	block := doc.Find(".account-info").First()
	address := textutil.Normalize(block.Find(".address").Text())
	if address == "" {
		return AccountInfo{}, fmt.Errorf("%w: account page has no summary block", ErrParsing)
	}
	balance, err := textutil.ParseFloat(block.Find(".balance").Text())
	if err != nil {
		return AccountInfo{}, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	peni, err := textutil.ParseFloat(block.Find(".peni").Text())
	if err != nil {
		return AccountInfo{}, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	return AccountInfo{
		Account: account,
		Address: address,
		Balance: balance,
		Peni:    peni,
	}, nil
}

// fragmentText is the visible text of an HTML fragment from an AJAX
// row, normalized.
func fragmentText(fragment string) string {
	return textutil.Normalize(htmlutil.FragmentText(fragment))
}

var digitsRegex = regexp.MustCompile(`\d+`)

// fragmentID extracts a document id from a row cell: a data attribute
// when present, otherwise the first number in the cell text. Zero
// means no document.
func fragmentID(fragment string) int64 {
	s := htmlutil.FirstAttr(fragment, "data-receipt")
	if s == "" {
		s = digitsRegex.FindString(fragmentText(fragment))
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
