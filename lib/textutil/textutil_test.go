package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "г. Самара, ул. Ленина", Normalize("  г. Самара,  ул. Ленина \n"))
	require.Equal(t, "", Normalize("    "))
}

func TestParseFloat(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
	}{
		{"1 234,56", 1234.56},
		{"1 234,56 руб.", 1234.56},
		{"1 234,56 руб.", 1234.56},
		{"Итого: 1 234,56 руб.", 1234.56},
		{"-78,90", -78.90},
		{"105.0", 105.0},
		{"100", 100},
		{"", 0},
		{"нет данных", 0},
	} {
		got, err := ParseFloat(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := ParseDate("15.06.2024")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = ParseDate(" 15.06.24 ")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ParseDate("июнь 2024")
	require.Error(t, err)
}

func TestFindDate(t *testing.T) {
	got, err := FindDate(`<span data-date="01.06.2024">Июнь 2024</span>`)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = FindDate("<span></span>")
	require.Error(t, err)
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "01.06.2024", FormatDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}
