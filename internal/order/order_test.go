package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDedupItems(t *testing.T) {
	items := []Item{
		NewItem("Paper Towels", 2, "$5.00", decimal.NewFromInt(5)),
		NewItem("Milk 1 Gallon", 0, "", decimal.Zero),
		NewItem("Paper Towels", 1, "$9.99", decimal.Zero),
		NewItem("paper towels", 1, "", decimal.Zero),
	}
	out := DedupItems(items)
	require.Len(t, out, 3)
	require.Equal(t, "$5.00", out[0].Price)
	require.Equal(t, 1, out[1].Quantity)
	require.Equal(t, "paper towels", out[2].Name)
}

func TestMoney(t *testing.T) {
	cases := []struct {
		in      string
		display string
		ok      bool
	}{
		{in: "$12.34", display: "$12.34", ok: true},
		{in: "Total $1,234.5", display: "$1234.50", ok: true},
		{in: "-$3.00", display: "-$3.00", ok: true},
		{in: "12", display: "$12.00", ok: true},
		{in: "free", ok: false},
	}
	for _, test := range cases {
		value, ok := ParseMoney(test.in)
		require.Equal(t, test.ok, ok, test.in)
		if ok {
			require.Equal(t, test.display, FormatMoney(value), test.in)
		}
	}
}

func TestErrorFetching(t *testing.T) {
	o := ErrorFetching("123", TypeOnline, errors.New("status 500"))
	require.Equal(t, StatusErrorFetching, o.Status)
	require.Equal(t, "status 500", o.Error)
	require.Empty(t, o.Items)
	require.NotNil(t, o.Items)
}

func TestStoreLocationString(t *testing.T) {
	require.Equal(t, "Springfield Supercenter - 123 Main St, Springfield, IL 62701",
		StoreLocation{Name: "Springfield Supercenter", Address: "123 Main St, Springfield, IL 62701"}.String())
	require.Equal(t, "Store #42", StoreLocation{Name: "Store #42"}.String())
}
