package commands

import (
	"strconv"
	"time"

	"erkc63/lib/textutil"
)

func parseAccountArgs(args []string) ([]int64, error) {
	accounts := make([]int64, 0, len(args))
	for _, arg := range args {
		a, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// parseDateFlag reads a dd.mm.yyyy flag value, empty meaning unset.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return textutil.ParseDate(s)
}
