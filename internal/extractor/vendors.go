package extractor

import "github.com/level10nurd/documentExtraction/internal/models"

const (
	money     = `\$?\s*([\d,]+\.?\d*)`
	slashDate = `(\d{1,2}/\d{1,2}/\d{2,4})`
)

// headerTable matches a "| date | number |" row under a date/number header
var headerTable = re(`\|\s*(?P<date>\d{1,2}/\d{1,2}/\d{4})\s*\|\s*(?P<number>\d+)\s*\|`)

// VendorRules returns the built-in rule set of every supported vendor
func VendorRules() []RuleSet {
	return []RuleSet{
		sunsetPress(),
		reflexMedical(),
		wolverinePrinting(),
		omico(),
		yesSolutions(),
		stolzleLausitz(),
		pridePrinting(),
		dimax(),
		amandaAndrews(),
		aBox(),
	}
}

func sunsetPress() RuleSet {
	return RuleSet{
		Vendor: models.VendorSunsetPress,
		Header: headerTable,
		InvoiceNumber: res(
			`Invoice\s*#?\s*\n\s*(\d+)`,
			`Invoice\s*(?:Number|#|No\.?)[:\s]*(\d+)`,
		),
		InvoiceDate: res(`(?:Invoice\s+)?Date\s*\n\s*(\d{1,2}/\d{1,2}/\d{4})`),
		PONumber: res(
			`P\.O\.\s+Number\s*\|[^\n]*\n[\s|:\-]*\n\s*\|\s*([^|\n]+?)\s*\|`,
			`P\.O\.\s+Number[:\s]+([A-Z0-9\-]+)`,
		),
		Subtotal: res(`Subtotal[^\$]*\$\s*([\d,]+\.?\d*)`),
		SalesTax: res(`Sales\s+Tax[^\$]*\$\s*([\d,]+\.?\d*)`),
		Total: res(
			`(?:^|\|)[^\S\n]*(?:Invoice\s+)?Total\b[^\$]*\$\s*([\d,]+\.?\d*)`,
			`Balance\s+Due[^\$]*\$\s*([\d,]+\.?\d*)`,
		),
		Table: &Columns{
			Quantity:    []string{"Quantity", "Qty"},
			ItemCode:    []string{"Item Code", "Item"},
			Description: []string{"Description"},
			PriceEach:   []string{"Price Each", "Price", "Rate"},
			Amount:      []string{"Amount"},
		},
		ItemPattern: re(`^[^\S\n]*(?P<qty>[\d,]+)[^\S\n]+(?P<code>\d+-\w+)[^\S\n]+(?P<desc>[^\n]+?)[^\S\n]+(?P<price>[\d,]+\.\d{2,4})[^\S\n]+(?P<amount>[\d,]+\.\d{2})[^\S\n]*$`),
	}
}

func reflexMedical() RuleSet {
	return RuleSet{
		Vendor:        models.VendorReflexMedical,
		Header:        headerTable,
		InvoiceNumber: res(`Invoice\s*(?:Number|#|No\.?)[:\s]*(\d+)`),
		InvoiceDate:   res(`(?:Invoice\s+)?Date[:\s]*(\d{1,2}/\d{1,2}/\d{4})`),
		PONumber:      res(`P\.?O\.?\s*(?:Number|#|No\.?)[:\s|]*([A-Z0-9\-]+)`),
		Total: res(
			`Balance\s+Due[^\$]*\$\s*([\d,]+\.?\d*)`,
			`\bTotal\b[^\$]*\$\s*([\d,]+\.?\d*)`,
		),
		Table: &Columns{
			Quantity:    []string{"Qty", "Quantity"},
			ItemCode:    []string{"Item", "Item Code"},
			Description: []string{"Description"},
			PriceEach:   []string{"Rate", "Price"},
			Amount:      []string{"Amount"},
		},
		ItemPattern:       re(`(?P<code>\d{2}-\d{3}-\d{2}|[A-Z0-9]+-[A-Z0-9]+-[A-Z0-9]+)[^\S\n]+(?P<desc>[^\n]+?)[^\S\n]+(?P<qty>[\d,]+)[^\S\n]+(?P<price>[\d,]*\d\.\d+)[^\S\n]+(?P<amount>[\d,]+\.\d{2})`),
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}

func wolverinePrinting() RuleSet {
	return RuleSet{
		Vendor:        models.VendorWolverinePrinting,
		InvoiceNumber: res(`Invoice\s+Number:\s*(\d+)`),
		InvoiceDate:   res(`Invoice\s+Date:\s*` + slashDate),
		PONumber:      res(`Purchase\s+Order:\s*([^\s|]+)`),
		Subtotal: res(
			`Sales:\s*\|?\s*([\d,]+\.\d+)`,
			`Non-Taxable:\s*\|?\s*([\d,]+\.\d+)`,
		),
		SalesTax: res(`(?:Total\s+)?\bTax[:\s|]*([\d,]+\.?\d*)`),
		Total:    res(`(?:Invoice\s+)?Total:\s*[|\s]*([\d,]+\.\d+)`),
		Table: &Columns{
			Quantity:    []string{"Quantity", "Qty", "Quantity Shipped"},
			ItemCode:    []string{"Item", "Job #", "Item #"},
			Description: []string{"Description"},
			PriceEach:   []string{"Price", "Unit Price"},
			Amount:      []string{"Amount", "Extension", "Extended"},
		},
		TaxDefaultsToZero: true,
	}
}

func omico() RuleSet {
	return RuleSet{
		Vendor: models.VendorOmico,
		InvoiceNumber: res(
			`Invoice\s*(?:Number|#|No\.?)[:\s]*(\d+)`,
			`Invoice[:\s]+(\d+)`,
			`\bInv[:\s#]+(\d+)`,
		),
		InvoiceDate: res(
			`Invoice\s+Date[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
			`Date[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
			`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
		),
		PONumber: res(
			`Customer\s+PO[^|]*\|[^\d]*(\d+(?:\-\d+)?)`,
			`P\.?O\.?\s*(?:Number|#|No\.?)[:\s]*([A-Z0-9\-]+)`,
			`Purchase\s+Order[:\s]*([A-Z0-9\-]+)`,
			`\bPO[:\s]+([A-Z0-9\-]+)`,
		),
		Subtotal: res(
			`Subtotal\s*\|\s*[\d,]*\.?\d*\s*\|\s*([\d,]+\.?\d+)`,
			`\|\s*Subtotal\s*\|[^|]*\|\s*([\d,]+\.?\d+)`,
			`Subtotal[:\s]*\$?\s*([\d,]+\.?\d+)`,
		),
		SalesTax: res(
			`Sales\s+Tax\s*\|\s*[\d,]*\.?\d*\s*\|\s*([\d,]+\.?\d+)`,
			`\|\s*Sales\s+Tax\s*\|[^|]*\|\s*([\d,]+\.?\d+)`,
			`Sales\s+Tax[:\s]*\$?\s*([\d,]+\.?\d+)`,
		),
		Total: res(
			`Total\s+Invoice\s+Amount\s*\|\s*[\d,]*\.?\d*\s*\|\s*([\d,]+\.?\d+)`,
			`\|\s*Total\s+Invoice\s+Amount\s*\|[^|]*\|\s*([\d,]+\.?\d+)`,
			`\bTOTAL\s*\|\s*USD\s*\|\s*([\d,]+\.?\d+)`,
			`(?:Invoice\s+)?\bTotal[:\s]*\$?\s*([\d,]+\.?\d+)`,
			`Amount\s+Due[:\s]*\$?\s*([\d,]+\.?\d+)`,
			`(?:Balance\s+)?\bDue[:\s]*\$?\s*([\d,]+\.?\d+)`,
		),
		Table: &Columns{
			Quantity:    []string{"Quantity", "Qty", "Quantity Shipped"},
			ItemCode:    []string{"Part Number", "Item Number", "Part #"},
			Description: []string{"Description"},
			PriceEach:   []string{"Unit Price USD", "Unit Price", "Price"},
			Amount:      []string{"Amount USD", "Amount", "Extended"},
		},
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}

func yesSolutions() RuleSet {
	return RuleSet{
		Vendor: models.VendorYesSolutions,
		InvoiceNumber: res(
			`\|\s*INVOICE\s*#\s*\|\s*(\d+)\s*\|`,
			`INVOICE\s*#[:\s]*(\d+)`,
		),
		InvoiceDate: res(
			`\|\s*Invoice\s+Date:\s*\|\s*(\d{2}/\d{2}/\d{4})\s*\|`,
			`Invoice\s+Date:?\s*` + slashDate,
		),
		// The load number stands in for the PO
		PONumber: res(`LOAD\s*#:\s*(\d+)`),
		Total: res(
			`Total\s+Rate:\s+\$\s*([\d,]+\.?\d*)`,
			`\$\s*([\d,]+\.?\d*)\s+USD`,
		),
		Flat: &FlatItem{
			Pattern:     re(`Line\s+Haul\s+\$\s*([\d,]+\.?\d*)`),
			ItemCode:    "LINE_HAUL",
			Description: "Line Haul Freight Charges",
		},
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}

func stolzleLausitz() RuleSet {
	return RuleSet{
		Vendor:        models.VendorStolzleLausitz,
		InvoiceNumber: res(`Invoice\s+No:?\s*[#\s]*(\d{2}-\d{4})`),
		InvoiceDate:   res(`Date\s+created:?\s*(\d{1,2}-\d{1,2}-\d{4})`),
		PONumber:      res(`ORDER\s+ID[^\n]*\n(?:[^\n]*\n){3,8}?\s*(\d{11,})\s*$`),
		Subtotal:      res(`\bNET[\s\S]*?([\d,]+\.?\d*)\s+USD`),
		SalesTax:      res(`Total\s+Tax[\s\S]*?([\d,]+\.?\d*)\s+USD`),
		Total:         res(`TOTAL\s+DUE[\s\S]*?([\d,]+\.?\d*)\s+USD`),
		Table: &Columns{
			Quantity:    []string{"QTY"},
			Description: []string{"NAME"},
			PriceEach:   []string{"PRICE"},
			Amount:      []string{"DISCOUNT"},
		},
		CodeInDescription: re(`SKU:?\s*([\w\-]+)`),
		Flat: &FlatItem{
			Pattern:     re(`\|[^\n]*(?:Shipping|Freight)[^\n]*?([\d,]+\.?\d*)\s+USD`),
			ItemCode:    "SHIPPING",
			Description: "Shipping Freight",
		},
		SkipWords:         append([]string{"shipping", "freight"}, defaultSkipWords...),
		TaxDefaultsToZero: true,
	}
}

func pridePrinting() RuleSet {
	return RuleSet{
		Vendor:        models.VendorPridePrinting,
		InvoiceNumber: res(`INVOICE\s*#\s*\n+\s*(\d+)`, `INVOICE\s*#[:\s]*(\d+)`),
		InvoiceDate:   res(`DATE\s*\n+\s*(\d{2}/\d{2}/\d{4})`, `\bDATE[:\s]*(\d{2}/\d{2}/\d{4})`),
		PONumber:      res(`P\.O\.\s+NUMBER\s*\n+\s*(\S+)`),
		Subtotal:      res(`\|\s*SUBTOTAL\s*\|[^\d\n]*([\d,]+\.\d{2})`),
		SalesTax:      res(`\|\s*TAX\s*\|[^\d\n]*([\d,]+\.\d{2})`),
		Total: res(
			`BALANCE\s*DUE[^\$]*\$\s*([\d,]+\.?\d*)`,
			`\|\s*TOTAL\s*\|[^\d\n]*([\d,]+\.\d{2})`,
		),
		Table: &Columns{
			Quantity:    []string{"QTY"},
			ItemCode:    []string{"PRODUCT"},
			Description: []string{"DESCRIPTION"},
			PriceEach:   []string{"RATE"},
			Amount:      []string{"AMOUNT"},
		},
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}

func dimax() RuleSet {
	return RuleSet{
		Vendor:        models.VendorDimax,
		InvoiceNumber: res(`Invoice\s+Number:\s*(\d+)`),
		InvoiceDate:   res(`Invoice\s+Date:\s*(\d{1,2}/\d{1,2}/\d{4})`),
		PONumber:      res(`PO\s+Number:\s*(\d+)`),
		Subtotal:      res(`Sub-total:\s*` + money),
		SalesTax:      res(`Sales\s+Tax:\s*` + money),
		Total: res(
			`Invoice\s+Total:\s*`+money,
			`Balance\s+Due:\s*`+money,
		),
		Table:             &DefaultColumns,
		// Item blocks span lines: quantity, "/ EA $price", "code - description", amount
		ItemPattern:       re(`(?P<qty>\d[\d,]*)\s+/\s*EA\s*\$\s*(?P<price>[\d.]+)\s+(?P<code>\d{4,5})\s*-\s*(?P<desc>[^\n]+?)\s+\$\s*(?P<amount>[\d,]+\.\d{2})`),
		TaxDefaultsToZero: true,
	}
}

func amandaAndrews() RuleSet {
	return RuleSet{
		Vendor: models.VendorAmandaAndrews,
		InvoiceNumber: res(
			`(\d{5,})\s+INVOICE\s+#`,
			`INVOICE\s*#[:\s]*(\d{5,})`,
		),
		InvoiceDate: res(
			`(\d{1,2}/\d{1,2}/\d{4})\s+INVOICE\s+DATE`,
			`INVOICE\s+DATE[:\s]*(\d{1,2}/\d{1,2}/\d{4})`,
		),
		Total: res(
			`\$\s*([\d,]+\.?\d*)\s+AMOUNT\s+DUE`,
			`AMOUNT\s+DUE\s+\$\s*([\d,]+\.?\d*)`,
			`Invoice\s+Total:\s*\$\s*([\d,]+\.?\d*)`,
		),
		NoLineItems:       true,
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}

func aBox() RuleSet {
	return RuleSet{
		Vendor: models.VendorABox,
		Header: re(`\|\s*Number\s*\|\s*Date\s*\|[^\n]*\n[\s|:\-]*\n\s*\|\s*(?P<number>\d+)\s*\|\s*(?P<date>\d{1,2}/\d{1,2}/\d{2,4})\s*\|`),
		InvoiceNumber: res(`Invoice\s+No[.:]?\s*(\d+)`),
		InvoiceDate:   res(`Invoice\s+Date[:\s|]*` + slashDate),
		PONumber:      res(`Customer\s+P\.?O\.?\s+No\.?\s*[:|]?\s*(\d+)`),
		Subtotal:      res(`Sub\s*Total\s*\n?\s*\$?([\d,]+\.\d{2})`),
		SalesTax:      res(`^[|\s]*Tax\s*\|?\s*\n?\s*\$?([\d,]+\.\d{2})`),
		Total: res(
			`^[|\s]*Total\s*\n\s*\$?([\d,]+\.\d{2})`,
			`^[|\s]*Total\s*\|?\s*\$?([\d,]+\.\d{2})`,
			`This\s+Amount\s*=?>?\s*\$?([\d,]+\.\d{2})`,
			`Please\s+Pay.*?\$?([\d,]+\.\d{2})`,
		),
		Table: &Columns{
			Quantity:      []string{"Count", "Qty"},
			ItemCode:      []string{"Order No.", "Order No", "Order #"},
			Description:   []string{"Customer Part #", "Customer Part", "Description"},
			PriceEach:     []string{"Price"},
			Amount:        []string{"Amount"},
			UnitOfMeasure: []string{"UOM"},
			PONumber:      []string{"PO/Rel", "PO"},
		},
		SubtotalFromTotal: true,
		TaxDefaultsToZero: true,
	}
}
