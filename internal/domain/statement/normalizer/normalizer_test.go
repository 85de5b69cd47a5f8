package normalizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"45,23", "45.23"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1.000.000,00", "1000000"},
		{"1,234", "1234"},
		{"1 234,56", "1234.56"},
		{"0,99", "0.99"},
		{"12.5", "12.5"},
		{"1.234.567", "1234567"},
		{"-45,23", "-45.23"},
		{"(45,23)", "-45.23"},
		{"+2.500,00", "2500"},
		{"€ 45,23", "45.23"},  // Currency symbol stripped
		{"45,23 EUR", "45.23"}, // Currency code stripped
		{"45,23 eur", "45.23"},
		{"R$ 1.500,00", "1500"},
		{"$45.23", "45.23"},
		{"£7.10", "7.10"},
		{"  67,77  ", "67.77"},
	}

	for _, tc := range tests {
		got, err := ParseAmount(tc.input)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.input, err)
			continue
		}
		want := decimal.RequireFromString(tc.expected)
		if !got.Equal(want) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.input, got, want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	inputs := []string{"", "   ", "abc", "EUR", "--", "12,3,4a", "1.2.3,4.5", "12a,50"}

	for _, input := range inputs {
		_, err := ParseAmount(input)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", input, err)
		}
	}
}

func TestParseSignedAmount_ReportsNumeralSign(t *testing.T) {
	tests := []struct {
		input string
		sign  model.Sign
	}{
		{"12,00", model.SignNone},
		{"-12,00", model.SignNegative},
		{"(12,00)", model.SignNegative},
		{"+12,00", model.SignPositive},
	}

	for _, tc := range tests {
		got, sign, err := ParseSignedAmount(tc.input)
		if err != nil {
			t.Errorf("ParseSignedAmount(%q) error: %v", tc.input, err)
			continue
		}
		if sign != tc.sign {
			t.Errorf("ParseSignedAmount(%q) sign = %v, want %v", tc.input, sign, tc.sign)
		}
		if !got.Equal(decimal.RequireFromString("12")) {
			t.Errorf("ParseSignedAmount(%q) magnitude = %s, want 12", tc.input, got)
		}
	}
}

func TestApplySign(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tests := []struct {
		name      string
		magnitude decimal.Decimal
		explicit  model.Sign
		numeral   model.Sign
		def       model.Sign
		expected  int64
	}{
		{"explicit wins", ten, model.SignNegative, model.SignPositive, model.SignPositive, -10},
		{"explicit plus", ten, model.SignPositive, model.SignNone, model.SignNegative, 10},
		{"numeral sign", ten, model.SignNone, model.SignNegative, model.SignPositive, -10},
		{"default negative", ten, model.SignNone, model.SignNone, model.SignNegative, -10},
		{"default positive", ten.Neg(), model.SignNone, model.SignNone, model.SignPositive, 10},
	}

	for _, tc := range tests {
		got := ApplySign(tc.magnitude, tc.explicit, tc.numeral, tc.def)
		if !got.Equal(decimal.NewFromInt(tc.expected)) {
			t.Errorf("%s: ApplySign = %s, want %d", tc.name, got, tc.expected)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"24-11-2025", "2025-11-24"},
		{"24/11/2025", "2025-11-24"},
		{"24-11/2025", "2025-11-24"},
		{"1/2/2024", "2024-02-01"},
		{"1/2/99", "1999-02-01"},
		{"05-03-24", "2024-03-05"},
		{"05-03-50", "2050-03-05"},
		{"05-03-51", "1951-03-05"},
		{"29-02-2024", "2024-02-29"},
		{" 31-12-1999 ", "1999-12-31"},
	}

	for _, tc := range tests {
		got, err := NormalizeDate(tc.input, DefaultYearPivot)
		if err != nil {
			t.Errorf("NormalizeDate(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"29-02-2023",
		"31-04-2025",
		"00-01-2025",
		"15-13-2025",
		"32-13-2025",
		"15-00-2025",
		"2025-11-24",
		"24-11-202",
		"24.11.2025",
		"hoje",
	}

	for _, input := range inputs {
		_, err := NormalizeDate(input, DefaultYearPivot)
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("NormalizeDate(%q) error = %v, want ErrInvalidDate", input, err)
		}
	}
}

func TestNormalizeDate_Pivot(t *testing.T) {
	got, err := NormalizeDate("01-01-30", 20)
	if err != nil {
		t.Fatalf("NormalizeDate error: %v", err)
	}
	if got != "1930-01-01" {
		t.Errorf("NormalizeDate with pivot 20 = %q, want 1930-01-01", got)
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Lidl | Montijo\tLoja  ", "Lidl Montijo Loja"},
		{"Compra EUR1.234,56 Continente", "Compra Continente"},
		{"Saldo €12,00EUR final", "Saldo final"},
		{"Pingo   Doce", "Pingo Doce"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := CleanDescription(tc.input); got != tc.expected {
			t.Errorf("CleanDescription(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestExtractMerchant(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Lidl Montijo", "Lidl Montijo"},
		{"Compra 24-11 Continente Lisboa 12,50", "Compra Continente Lisboa"},
		{"TRF MB WAY - 12,00", "TRF MB WAY"},
		{"Pagamento servicos Netflix International BV Amsterdam NL", "Pagamento servicos Netflix International BV"},
		{"24-11-2025 -12,50", "24-11-2025 -12,50"}, // nothing left, description kept
		{"Ab 12,00", "Ab 12,00"},
		{"12-34-5678 - 10,00 uma loja qualquer", "uma loja qualquer"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
		{strings.Repeat("é", 70), strings.Repeat("é", 60)},
	}

	for _, tc := range tests {
		if got := ExtractMerchant(tc.input); got != tc.expected {
			t.Errorf("ExtractMerchant(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Lidl Montijo", "Alimentação"},
		{"Uber Eats Lisboa", "Alimentação"},
		{"Uber Trip Help", "Transporte"},
		{"Galp Energia Amadora", "Transporte"},
		{"EDP Comercial", "Moradia"},
		{"NETFLIX.COM", "Entretenimento"},
		{"Farmácia Central", "Saúde"},
		{"Transferência MB WAY Joana", "Transferência"},
		{"Salário Empresa XYZ", DefaultCategory},
	}

	for _, tc := range tests {
		if got := InferCategory(tc.input); got != tc.expected {
			t.Errorf("InferCategory(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestCategories(t *testing.T) {
	got := Categories()
	if len(got) != 7 || got[len(got)-1] != DefaultCategory {
		t.Errorf("Categories() = %v", got)
	}
}
