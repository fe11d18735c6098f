package ftl

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberFormatting(t *testing.T) {
	runRenderCases(t, nil, []renderCase{
		{"default", `${1234567.891} ${0.12345} ${-42}`, "1,234,567.891 0.123 -42"},
		{"computer", `<#setting number_format="computer">${1234567}`, "1234567"},
		{"pattern setting", `<#setting number_format="0.00">${3.14159} ${2}`, "3.14 2.00"},
		{"grouping pattern", `${1234.5?string("#,##0.00")}`, "1,234.50"},
		{"percent pattern", `${0.256?string("0.#%")}`, "25.6%"},
		{"quoted literal", `${5?string("0 'pcs'")}`, "5 pcs"},
		{"bank rounding", `${0.125?string("0.00")} ${0.135?string("0.00")}`, "0.12 0.14"},
		{"percent", `<#setting number_format="percent">${0.25}`, "25%"},
		{"german", `<#setting locale="de-DE">${1234.5} ${1234.5?string("#,##0.00")}`, "1.234,5 1.234,50"},
	})
	out, err := renderString(NewConfiguration(), `<#setting number_format="currency">${12.5}`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "$")
	assert.Contains(t, out, "12.50")

	assertRenderErrorKind(t, `${1?string("abc")}`, nil, ErrBadArguments)
}

func TestBooleanFormatting(t *testing.T) {
	assertRender(t, `${true} ${false}`, nil, "true false")
	assertRender(t, `<#setting boolean_format="yes,no">${true} ${false} ${true?string} ${true?c}`, nil, "yes no yes true")
	assertRender(t, `<#setting boolean_format="c">${true}`, nil, "true")
	assertRenderErrorKind(t, `<#setting boolean_format="maybe">`, nil, ErrInvalidOperation)
}

func TestSettingDirective(t *testing.T) {
	assertRender(t, `<#setting locale="hu-HU">${.locale} ${.lang}`, nil, "hu-HU hu")
	assertRenderErrorKind(t, `<#setting colour="red">`, nil, ErrInvalidOperation)
	assertRenderErrorKind(t, `<#setting locale=1>`, nil, ErrInvalidType)
	assertRenderErrorKind(t, `<#setting locale="not a locale!">`, nil, ErrInvalidOperation)
	assertRender(t, `<#setting arithmetic_engine="conservative">${(1 / 4)?c}`, nil, "0.25")
}

func TestDateFormatting(t *testing.T) {
	data := map[string]any{"t": time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)}
	runRenderCases(t, data, []renderCase{
		{"default datetime", `${t}`, "Mar 5, 2024, 2:07:09 PM"},
		{"date and time", `${t?date} | ${t?time}`, "Mar 5, 2024 | 2:07:09 PM"},
		{"pattern", `${t?string("yyyy-MM-dd HH:mm")}`, "2024-03-05 14:07"},
		{"names", `${t?string("EEEE, d MMMM yy")}`, "Tuesday, 5 March 24"},
		{"literal text", `${t?string("'day' D 'of' yyyy")}`, "day 065 of 2024"},
		{"styles", `${t?string("short")} ${t?date?string("long")}`, "3/5/24, 2:07 PM March 5, 2024"},
		{"iso", `${t?iso_utc} ${t?date?iso_utc} ${t?string("iso")}`, "2024-03-05T14:07:09Z 2024-03-05 2024-03-05T14:07:09Z"},
		{"setting", `<#setting date_format="dd/MM/yyyy">${t?date}`, "05/03/2024"},
		{"time zone", `<#setting time_zone="Europe/Budapest">${t?string("HH:mm")} ${t?iso_local}`, "15:07 2024-03-05T15:07:09+01:00"},
		{"epoch millis", `${t?long?c} ${1709647629000?number_to_datetime?iso_utc}`, "1709647629000 2024-03-05T14:07:09Z"},
		{"kind tests", `${t?is_datetime?c} ${t?date?is_date_only?c} ${t?time?is_time?c} ${"x"?is_date?c}`, "true true true false"},
	})
}

func TestDateParsing(t *testing.T) {
	runRenderCases(t, nil, []renderCase{
		{"iso date", `${"2024-03-05"?date?string("dd/MM/yyyy")}`, "05/03/2024"},
		{"pattern", `${"05.03.2024"?date("dd.MM.yyyy")?iso_utc}`, "2024-03-05"},
		{"iso datetime", `${"2024-03-05T14:07:09Z"?datetime?string("HH:mm:ss")}`, "14:07:09"},
		{"time", `${"14:07"?time?string("h:mm a")}`, "2:07 PM"},
	})
	assertRenderErrorKind(t, `${"x"?date}`, nil, ErrBadArguments)
	assertRenderErrorKind(t, `${"2024-03-05"?date("dd.MM.yyyy")}`, nil, ErrBadArguments)
}
