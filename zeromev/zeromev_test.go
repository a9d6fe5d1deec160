package zeromev

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"crosswatcher/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchMevTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("block_number") != "18000000" {
			t.Errorf("wrong block_number param: %s", r.URL.Query().Get("block_number"))
		}
		if r.URL.Query().Get("count") != "100" {
			t.Errorf("wrong count param: %s", r.URL.Query().Get("count"))
		}
		fmt.Fprint(w, `[
			{"block_number": 18000000, "tx_index": 3, "mev_type": "swap"},
			{"block_number": 18000001, "tx_index": 0, "mev_type": "sandwich"}
		]`)
	}))
	defer server.Close()

	client := &Client{blocksURL: server.URL, logger: testLogger()}
	responses, err := client.FetchMevTransactions(18_000_000, 100)
	if err != nil {
		t.Fatalf("FetchMevTransactions error: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].BlockNumber != 18_000_000 || responses[0].TxIndex != 3 ||
		responses[0].MevType != types.MevTypeSwap {
		t.Fatalf("wrong first response: %+v", responses[0])
	}
	if responses[1].MevType != types.MevTypeSandwich {
		t.Fatalf("wrong second response: %+v", responses[1])
	}
}

func TestFetchMevTransactionsRejectsOversizedRequest(t *testing.T) {
	client := NewClient(testLogger())
	if _, err := client.FetchMevTransactions(0, 101); err == nil {
		t.Fatalf("requests above the block cap must fail")
	}
}

func TestFetchMevTransactionsUnknownTypeFailsLoudly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"block_number": 1, "tx_index": 0, "mev_type": "jit-liquidity"}]`)
	}))
	defer server.Close()

	client := &Client{blocksURL: server.URL, logger: testLogger()}
	if _, err := client.FetchMevTransactions(1, 1); err == nil {
		t.Fatalf("unknown MEV type name must fail, not be silently mapped")
	}
}
