package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
	"github.com/csd2000/Trade-Flow-sub002/internal/infrastructure/httpclient"
)

func TestFetchCandlesParsesOHLC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("pair"))
		assert.Equal(t, "240", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":[
			[1704067200,"42000.0","42300.0","41800.0","42200.0","42100.0","15.5",120],
			[1704081600,"42200.0","42500.0","42100.0","42400.0","42300.0","11.0",98],
			[1704096000,"42400.0","42450.0","42000.0","42050.0","42200.0","8.0",77]
		],"last":1704096000}}`))
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, httpclient.NewClientPool(httpclient.DefaultClientConfig()))
	candles, err := a.FetchCandles(context.Background(), "BTC-USD", market.TF4h, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 42400.0, candles[0].Close)
	assert.Equal(t, 8.0, candles[1].Volume)
}

func TestFetchCandlesUnknownPairIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":["EQuery:Unknown asset pair"]}`))
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, httpclient.NewClientPool(httpclient.DefaultClientConfig()))
	candles, err := a.FetchCandles(context.Background(), "FOO-USD", market.TF1h, 10)
	assert.NoError(t, err)
	assert.Empty(t, candles)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "XBTUSD", NormalizeSymbol("BTC-USD"))
	assert.Equal(t, "XBTUSD", NormalizeSymbol("BTCUSDT"))
	assert.Equal(t, "ETHUSD", NormalizeSymbol("ETH/USD"))
}
