package market

type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
	ContractSize  float64 // units of base per 1.0 lot
	MinVolume     float64
	MarginRate    float64
}

var Instruments = map[string]InstrumentMeta{
	"XAU_USD": {
		Name:          "XAU_USD",
		BaseCurrency:  "XAU",
		QuoteCurrency: "USD",
		PipLocation:   -1,
		ContractSize:  100, // 100 oz per lot
		MinVolume:     0.01,
		MarginRate:    0.05,
	},
	"EUR_USD": {
		Name:          "EUR_USD",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipLocation:   -4,
		ContractSize:  100_000,
		MinVolume:     0.01,
		MarginRate:    0.02,
	},
}

// Meta returns instrument metadata, falling back to gold-like defaults for
// symbols not in the table (broker symbol suffixes vary, e.g. XAUUSDm).
func Meta(symbol string) InstrumentMeta {
	if m, ok := Instruments[symbol]; ok {
		return m
	}
	return InstrumentMeta{
		Name:         symbol,
		ContractSize: 100,
		MinVolume:    0.01,
		MarginRate:   0.05,
	}
}
