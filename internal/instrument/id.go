// Package instrument implements the InstrumentID value type: canonical
// and provider-native projections of a tradable's identity, and the small
// set of exchanges the system understands.
package instrument

import (
	"fmt"
	"strings"

	"github.com/aristath/quoteflow/internal/errkind"
)

// Exchange is one of the markets the platform tracks, in its canonical
// spelling. Adapters translate to/from their own native spelling at their
// boundary only (Q3).
type Exchange string

const (
	SSE    Exchange = "SSE"
	SZSE   Exchange = "SZSE"
	BSE    Exchange = "BSE"
	HKEX   Exchange = "HKEX"
	NASDAQ Exchange = "NASDAQ"
	NYSE   Exchange = "NYSE"
)

// nativeCode is the per-adapter native spelling used by A-share sources.
var nativeCode = map[Exchange]string{
	SSE:    "SH",
	SZSE:   "SZ",
	BSE:    "BSE",
	HKEX:   "HKEX",
	NASDAQ: "NASDAQ",
	NYSE:   "NYSE",
}

var codeToExchange = func() map[string]Exchange {
	m := make(map[string]Exchange, len(nativeCode))
	for ex, code := range nativeCode {
		m[code] = ex
	}
	// canonical spellings also accepted as their own native form
	m[string(SSE)] = SSE
	m[string(SZSE)] = SZSE
	return m
}()

// Valid reports whether ex is a recognized exchange.
func (ex Exchange) Valid() bool {
	_, ok := nativeCode[ex]
	return ok
}

// ID is a canonical "SYMBOL.EXCHANGE" instrument identity.
type ID struct {
	Symbol   string
	Exchange Exchange
}

// String renders the canonical projection, e.g. "600000.SSE".
func (id ID) String() string {
	return fmt.Sprintf("%s.%s", id.Symbol, id.Exchange)
}

// Native renders the provider-native projection, e.g. "600000.SH".
func (id ID) Native() string {
	code, ok := nativeCode[id.Exchange]
	if !ok {
		code = string(id.Exchange)
	}
	return fmt.Sprintf("%s.%s", id.Symbol, code)
}

// Parse converts a canonical "SYMBOL.EXCHANGE" string into an ID.
func Parse(canonical string) (ID, error) {
	symbol, exCode, ok := splitLast(canonical, '.')
	if !ok || symbol == "" || exCode == "" {
		return ID{}, errkind.New(errkind.InvalidInput, "instrument.Parse",
			fmt.Errorf("malformed instrument id %q", canonical))
	}
	ex, ok := codeToExchange[strings.ToUpper(exCode)]
	if !ok {
		return ID{}, errkind.New(errkind.InvalidInput, "instrument.Parse",
			fmt.Errorf("unknown exchange code %q in %q", exCode, canonical))
	}
	return ID{Symbol: symbol, Exchange: ex}, nil
}

// ParseNative converts a provider-native "SYMBOL.SH"-style string into an
// ID, given the exchange the provider call was scoped to (native codes
// like "SH"/"SZ" are ambiguous without that context only for A-shares,
// where the mapping happens to be total, but passing the expected
// exchange avoids relying on that coincidence).
func ParseNative(native string, expect Exchange) (ID, error) {
	symbol, _, ok := splitLast(native, '.')
	if !ok || symbol == "" {
		return ID{}, errkind.New(errkind.InvalidInput, "instrument.ParseNative",
			fmt.Errorf("malformed native id %q", native))
	}
	if !expect.Valid() {
		return ID{}, errkind.New(errkind.InvalidInput, "instrument.ParseNative",
			fmt.Errorf("unknown exchange %q", expect))
	}
	return ID{Symbol: symbol, Exchange: expect}, nil
}

func splitLast(s string, sep byte) (head, tail string, ok bool) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
