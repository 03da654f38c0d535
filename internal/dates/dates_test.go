package dates

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestParseLongForm(t *testing.T) {
	got, err := Parse("23 de outubro de 2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.October, 23, 0, 0, 0, 0, time.UTC), got)

	got, err = Parse("1 de MARÇO de 2030")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParseNumericSeparators(t *testing.T) {
	want := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"5/6/2024", "05-06-2024", "05.06.2024"} {
		got, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}

func TestParseTwoDigitYearPivot(t *testing.T) {
	got, err := Parse("01/01/24")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())

	got, err = Parse("01/01/75")
	require.NoError(t, err)
	assert.Equal(t, 1975, got.Year())
}

func TestParseRejectsInvalidCalendarDates(t *testing.T) {
	for _, s := range []string{"31/02/2024", "31/04/2024", "32/01/2024", "10/13/2024", "0/5/2024"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrUnparseable, s)
	}
}

func TestParseUnparseable(t *testing.T) {
	for _, s := range []string{"", "prazo indeterminado", "2024", "10/2024", "a/b/c"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrUnparseable, s)
	}
}

func TestParseRoundTrip(t *testing.T) {
	// Every valid day/month combination survives a parse and reformat.
	for month := 1; month <= 12; month++ {
		for day := 1; day <= 31; day++ {
			s := fmt.Sprintf("%d/%d/2024", day, month)
			got, err := Parse(s)
			if err != nil {
				_, ok := calendarDate(2024, time.Month(month), day)
				assert.False(t, ok, "%s failed to parse but is a valid date", s)
				continue
			}
			assert.Equal(t, day, got.Day(), s)
			assert.Equal(t, time.Month(month), got.Month(), s)
			assert.Equal(t, 2024, got.Year(), s)
		}
	}
}

func TestFutureGraceMargin(t *testing.T) {
	today := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC)
	assert.True(t, Future(today, testNow), "today is within grace")
	assert.True(t, Future(today.AddDate(0, 0, 1), testNow))
	assert.False(t, Future(today.AddDate(0, 0, -2), testNow))
}

func TestExpired(t *testing.T) {
	assert.True(t, Expired("10/01/2020", testNow))
	assert.False(t, Expired("10/01/2030", testNow))
	assert.False(t, Expired("15/03/2025", testNow), "today survives the grace margin")
	assert.False(t, Expired("sem prazo definido", testNow), "unparseable text never expires")
}

func TestFindDeadlinePicksEarliestFuture(t *testing.T) {
	text := "Resultado divulgado em 10/01/2020. Submissões até 05/06/2030. Vigência até 01/01/2031."
	assert.Equal(t, "05/06/2030", FindDeadline(text, testNow))
}

func TestFindDeadlineFallsBackToLastDate(t *testing.T) {
	text := "Publicado em 10/01/2020, retificado em 22/03/2021."
	assert.Equal(t, "22/03/2021", FindDeadline(text, testNow))
}

func TestFindDeadlineEmptyWhenNoDates(t *testing.T) {
	assert.Equal(t, "", FindDeadline("nenhuma data por aqui", testNow))
}

func TestFindAmountPrefersLocalCurrency(t *testing.T) {
	text := "Orçamento total de US$ 1,000,000 sendo R$ 50.000,00 por projeto."
	assert.Equal(t, "R$ 50.000,00", FindAmount(text))
}

func TestFindAmountForeignFallback(t *testing.T) {
	assert.Equal(t, "EUR 200.000", FindAmount("budget of EUR 200.000 total"))
	assert.Equal(t, "", FindAmount("sem valores informados"))
}

func TestFindPublicationDateLabeled(t *testing.T) {
	text := "EDITAL 07/2024\nPublicado em: 12/03/2024\nPrazo final: 30/11/2024"
	assert.Equal(t, "12/03/2024", FindPublicationDate(text))
}

func TestFindPublicationDateGenericFallback(t *testing.T) {
	text := "Chamada aberta.\nBelém, 3 de maio de 2024."
	assert.Equal(t, "3 de maio de 2024", FindPublicationDate(text))
}

func TestFindPublicationDateSkipsUnparseable(t *testing.T) {
	assert.Equal(t, "", FindPublicationDate("versão 31/02/2024 inválida"))
}

func TestPrefixRespectsRuneBoundaries(t *testing.T) {
	s := "publicação"
	cut := Prefix(s, 8)
	assert.True(t, len(cut) <= 8)
	for _, r := range cut {
		assert.NotEqual(t, '�', r)
	}
}
