package explorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func txJSON(hash string, ts int64, to string) string {
	return fmt.Sprintf(`{"hash":%q,"from":"0xABCD","to":%q,"timeStamp":"%d",
		"blockNumber":"42","value":"1500000000000000000","gasUsed":"21000",
		"gasPrice":"30000000000","isError":"0"}`, hash, to, ts)
}

func okResponse(txs ...string) string {
	return `{"status":"1","message":"OK","result":[` + strings.Join(txs, ",") + `]}`
}

func newTestClient(serverURL string, pageSize int) *Client {
	return New("test-key",
		WithBaseURL(serverURL),
		WithPageSize(pageSize),
	)
}

func TestTransactions_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "txlist" {
			t.Errorf("action = %q, want txlist", q.Get("action"))
		}
		if q.Get("address") != "0xaabb" {
			t.Errorf("address = %q, want lowercased 0xaabb", q.Get("address"))
		}
		fmt.Fprint(w, okResponse(txJSON("0x1", 1700000000, "0xdex")))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 100)

	txs, err := client.Transactions(context.Background(), "0xAABB")
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("len(txs) = %d, want 1", len(txs))
	}

	tx := txs[0]
	if tx.Hash != "0x1" {
		t.Errorf("Hash = %q, want 0x1", tx.Hash)
	}
	if tx.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", tx.Timestamp)
	}
	if tx.Block != 42 {
		t.Errorf("Block = %d, want 42", tx.Block)
	}
	if got := tx.Value.String(); got != "1.5" {
		t.Errorf("Value = %s, want 1.5 (wei scaled)", got)
	}
	if tx.Failed {
		t.Error("Failed = true, want false")
	}
}

func TestTransactions_Pagination(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			pages.Add(1)
			fmt.Fprint(w, okResponse(txJSON("0x1", 100, "0xa"), txJSON("0x2", 200, "0xb")))
		case "2":
			pages.Add(1)
			fmt.Fprint(w, okResponse(txJSON("0x3", 300, "0xc")))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	// Page size 2: a full first page forces a second fetch.
	client := newTestClient(srv.URL, 2)

	txs, err := client.Transactions(context.Background(), "0xaabb")
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("len(txs) = %d, want 3", len(txs))
	}
	if pages.Load() != 2 {
		t.Errorf("pages fetched = %d, want 2", pages.Load())
	}
	if txs[2].Hash != "0x3" {
		t.Errorf("last hash = %q, want 0x3", txs[2].Hash)
	}
}

func TestTransactions_RateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
			return
		}
		fmt.Fprint(w, okResponse(txJSON("0x1", 100, "0xa")))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 100)

	txs, err := client.Transactions(context.Background(), "0xaabb")
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("len(txs) = %d, want 1 after retry", len(txs))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (rate-limited then retried)", calls.Load())
	}
}

func TestTransactions_NoneFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 100)

	txs, err := client.Transactions(context.Background(), "0xaabb")
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("len(txs) = %d, want 0", len(txs))
	}
}

func TestTransactions_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 100)

	if _, err := client.Transactions(context.Background(), "0xaabb"); err == nil {
		t.Fatal("Transactions() error = nil, want API error")
	}
}

func TestParseTxlist_FailedFlag(t *testing.T) {
	body := `{"status":"1","message":"OK","result":[
		{"hash":"0x9","timeStamp":"100","blockNumber":"1","value":"0",
		 "gasUsed":"0","gasPrice":"0","isError":"1","to":"0xa","from":"0xb"}]}`

	txs, err := parseTxlist([]byte(body))
	if err != nil {
		t.Fatalf("parseTxlist() error = %v", err)
	}
	if len(txs) != 1 || !txs[0].Failed {
		t.Errorf("Failed flag not set for isError=1 transaction")
	}
}
