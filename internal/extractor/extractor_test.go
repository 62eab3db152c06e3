package extractor

import (
	"testing"

	"github.com/level10nurd/documentExtraction/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

type wantItem struct {
	qty, code, desc, price, amount string
}

type wantRecord struct {
	number, date, po     string
	subtotal, tax, total string
	items                []wantItem
}

func assertRecord(t *testing.T, want wantRecord, r *models.Record) {
	t.Helper()

	assert.Equal(t, want.number, r.InvoiceNumber, "invoice number")
	assert.Equal(t, want.date, r.DateKey(), "invoice date")
	assert.Equal(t, want.po, r.PONumber, "po number")
	assert.Equal(t, want.subtotal, amount(r.Subtotal), "subtotal")
	assert.Equal(t, want.tax, amount(r.SalesTax), "sales tax")
	assert.Equal(t, want.total, amount(r.Total), "total")
	assert.Empty(t, r.ExtractionErrors)

	require.Len(t, r.LineItems, len(want.items))
	for i, w := range want.items {
		got := r.LineItems[i]
		assert.Equal(t, w.qty, got.Quantity.String(), "line %d quantity", i+1)
		assert.Equal(t, w.code, got.ItemCode, "line %d code", i+1)
		assert.Equal(t, w.desc, got.Description, "line %d description", i+1)
		assert.Equal(t, w.price, got.PriceEach.Decimal.String(), "line %d price", i+1)
		assert.Equal(t, w.amount, got.Amount.StringFixed(2), "line %d amount", i+1)
	}
}

func TestVendorExtractors(t *testing.T) {
	tests := []struct {
		vendor models.Vendor
		text   string
		want   wantRecord
	}{
		{
			vendor: models.VendorOmico,
			text: `OMICO, Inc.
Invoice Number: 123456
Invoice Date: 03/15/2025
Customer PO | 4501-2

| Quantity | Part Number | Description | Unit Price USD | Amount USD |
|---|---|---|---|---|
| 100 | AB12 | Bottle cap | 1.25 | 125.00 |
| 50 | CD34 | Label roll | 2.00 | 100.00 |

Subtotal: 225.00
Sales Tax: 15.75
Total Invoice Amount | | 240.75`,
			want: wantRecord{
				number: "123456", date: "2025-03-15", po: "4501-2",
				subtotal: "225.00", tax: "15.75", total: "240.75",
				items: []wantItem{
					{"100", "AB12", "Bottle cap", "1.25", "125.00"},
					{"50", "CD34", "Label roll", "2", "100.00"},
				},
			},
		},
		{
			vendor: models.VendorSunsetPress,
			text: `Sunset Press
| Date | Invoice # |
|---|---|
| 1/15/2025 | 20871 |

| P.O. Number | Terms | Project |
|---|---|---|
| 4410 | Net 30 | VoChill |

| Quantity | Item Code | Description | Price Each | Amount |
|---|---|---|---|---|
| 500 | 12-ABC | Printed box | 1.50 | 750.00 |

Subtotal $750.00
Sales Tax (8.25%) $61.88
Total $811.88
Balance Due $811.88`,
			want: wantRecord{
				number: "20871", date: "2025-01-15", po: "4410",
				subtotal: "750.00", tax: "61.88", total: "811.88",
				items: []wantItem{{"500", "12-ABC", "Printed box", "1.5", "750.00"}},
			},
		},
		{
			vendor: models.VendorReflexMedical,
			text: `REFLEX MEDICAL CORP
| Date | Invoice # |
|---|---|
| 2/20/2025 | 9912 |

P.O. Number: 4490

| Item | Description | Qty | Rate | Amount |
|---|---|---|---|---|
| 10-200-01 | Cold pack | 200 | 2.25 | 450.00 |

Total $450.00
Balance Due $450.00`,
			want: wantRecord{
				number: "9912", date: "2025-02-20", po: "4490",
				subtotal: "450.00", tax: "0.00", total: "450.00",
				items: []wantItem{{"200", "10-200-01", "Cold pack", "2.25", "450.00"}},
			},
		},
		{
			vendor: models.VendorWolverinePrinting,
			text: `Wolverine Printing
Invoice Number: 77120
Invoice Date: 6/10/25
Purchase Order: 4480

| Quantity | Job # | Description | Price | Amount |
|---|---|---|---|---|
| 5,000 | 123456 | Hang tags | 0.0900 Each | 450.00 |

Sales: | 450.00
Tax: | 27.00
Invoice Total: | 477.00`,
			want: wantRecord{
				number: "77120", date: "2025-06-10", po: "4480",
				subtotal: "450.00", tax: "27.00", total: "477.00",
				items: []wantItem{{"5000", "123456", "Hang tags", "0.09", "450.00"}},
			},
		},
		{
			vendor: models.VendorYesSolutions,
			text: `YES Solutions LLC
| INVOICE # | 88123 |
| Invoice Date: | 02/03/2025 |
## LOAD #: 25716
Line Haul $1,450.00
Total Rate: $1,450.00`,
			want: wantRecord{
				number: "88123", date: "2025-02-03", po: "25716",
				subtotal: "1450.00", tax: "0.00", total: "1450.00",
				items: []wantItem{{"1", "LINE_HAUL", "Line Haul Freight Charges", "1450", "1450.00"}},
			},
		},
		{
			vendor: models.VendorStolzleLausitz,
			text: `Stölzle Glassware
Invoice No: # 24-1234
Date created: 12-09-2024

| QTY | NAME | DATE | DISCOUNT | PRICE |
|---|---|---|---|---|
| 60 x | Revolution Tumbler 16 oz SKU: 3580016-6 | 12-09-2024 | 727.2 USD | 12.12 USD |
| | Shipping Freight | | 95.00 USD | |

NET
822.20 USD
Total Tax
0.00 USD
TOTAL DUE
822.20 USD`,
			want: wantRecord{
				number: "24-1234", date: "2024-12-09",
				subtotal: "822.20", tax: "0.00", total: "822.20",
				items: []wantItem{
					{"60", "3580016-6", "Revolution Tumbler 16 oz", "12.12", "727.20"},
					{"1", "SHIPPING", "Shipping Freight", "95", "95.00"},
				},
			},
		},
		{
			vendor: models.VendorPridePrinting,
			text: `Pride Printing LLC
INVOICE #

3301

DATE

04/21/2025

P.O. NUMBER

4475

| PRODUCT | DESCRIPTION | | QTY | RATE | AMOUNT |
|---|---|---|---|---|---|
| Labels | 4x6 shipping labels | | 1,000 | 0.12 | 120.00 |
| | SUBTOTAL | | | | 120.00 |
| | TAX | | | | 9.90 |
| | TOTAL | | | | 129.90 |

BALANCE DUE $129.90`,
			want: wantRecord{
				number: "3301", date: "2025-04-21", po: "4475",
				subtotal: "120.00", tax: "9.90", total: "129.90",
				items: []wantItem{{"1000", "Labels", "4x6 shipping labels", "0.12", "120.00"}},
			},
		},
		{
			vendor: models.VendorDimax,
			text: `Dimax Corporation
Invoice Number: 51234
Invoice Date: 5/6/2025
PO Number: 4470

## Item

Quantity Description

12574

/ EA $0.5871

20434 - VoChill Non-slip Pad Dots

$7,382.20

Sub-total: $7,382.20
Sales Tax: $0.00
Invoice Total: $7,382.20`,
			want: wantRecord{
				number: "51234", date: "2025-05-06", po: "4470",
				subtotal: "7382.20", tax: "0.00", total: "7382.20",
				items: []wantItem{{"12574", "20434", "VoChill Non-slip Pad Dots", "0.5871", "7382.20"}},
			},
		},
		{
			vendor: models.VendorAmandaAndrews,
			text: `AMANDA-ANDREWS PERSONNEL CORP
1234567 INVOICE #
3/7/2025 INVOICE DATE
$2,310.40 AMOUNT DUE`,
			want: wantRecord{
				number: "1234567", date: "2025-03-07",
				subtotal: "2310.40", tax: "0.00", total: "2310.40",
			},
		},
		{
			vendor: models.VendorABox,
			text: `A-Box
| Number | Date |
|---|---|
| 100676 | 4/2/2025 |

| Line # | Order No. | Shipper # | PO/Rel | Customer Part # | Count | Price | UOM | Amount |
|---|---|---|---|---|---|---|---|---|
| 1 | 55012 | 7781 | 4520/1 | VC-SHIP-BOX | 2,000 | $310.00 | 1000 | $620.00 |

Sub Total
$620.00
Tax
$0.00
Total
$620.00`,
			want: wantRecord{
				number: "100676", date: "2025-04-02", po: "4520",
				subtotal: "620.00", tax: "0.00", total: "620.00",
				items: []wantItem{{"2000", "55012", "VC-SHIP-BOX", "0.31", "620.00"}},
			},
		},
	}

	registry := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.vendor.String(), func(t *testing.T) {
			e, ok := registry.Get(tt.vendor)
			require.True(t, ok)

			r := e.Extract(tt.text, "bill.pdf")

			assert.Equal(t, tt.vendor, r.Vendor)
			assert.Equal(t, "bill.pdf", r.SourceFile)
			assert.Equal(t, models.ExtractionMethodRules, r.ExtractionMethod)
			assert.Zero(t, r.Confidence)
			assertRecord(t, tt.want, r)
		})
	}
}

func TestExtract_MissingFields(t *testing.T) {
	e, ok := NewRegistry().Get(models.VendorOmico)
	require.True(t, ok)

	r := e.Extract("OMICO scanned cover page", "scan.pdf")

	assert.Equal(t, []string{MsgNoInvoiceNumber, MsgNoInvoiceDate, MsgNoLineItems, MsgNoTotal}, r.ExtractionErrors)
	assert.False(t, r.Total.Valid)
	assert.False(t, r.Subtotal.Valid)
	assert.True(t, r.SalesTax.Valid)
	assert.Empty(t, r.LineItems)
	assert.NotNil(t, r.LineItems)
}

func TestExtract_ServiceInvoiceHasNoLineItemError(t *testing.T) {
	e, _ := NewRegistry().Get(models.VendorAmandaAndrews)

	r := e.Extract("$10.00 AMOUNT DUE", "week.pdf")

	assert.NotContains(t, r.ExtractionErrors, MsgNoLineItems)
	assert.Contains(t, r.ExtractionErrors, MsgNoInvoiceNumber)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, models.KnownVendors(), r.Supported())

	_, ok := r.Get(models.VendorUnknown)
	assert.False(t, ok)

	r.Register(NewRuleExtractor(RuleSet{Vendor: models.VendorOmico, NoLineItems: true}))
	e, ok := r.Get(models.VendorOmico)
	require.True(t, ok)
	assert.NotContains(t, e.Extract("", "x.pdf").ExtractionErrors, MsgNoLineItems)
}
