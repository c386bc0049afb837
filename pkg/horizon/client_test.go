package horizon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripLinkTemplate(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{
			name: "templated operations link",
			link: "https://horizon-testnet.stellar.org/transactions/abc/operations{?cursor,limit,order}",
			want: "https://horizon-testnet.stellar.org/transactions/abc/operations",
		},
		{
			name: "plain link",
			link: "https://horizon-testnet.stellar.org/transactions/abc/operations",
			want: "https://horizon-testnet.stellar.org/transactions/abc/operations",
		},
		{
			name: "empty link",
			link: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripLinkTemplate(tt.link); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTransaction_ParsesRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/5f36bca71f" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "5f36bca71f",
			"hash": "5f36bca71f",
			"successful": true,
			"ledger": 123456,
			"memo_type": "text",
			"memo": "4d6f8c2b9e1a7f3c5d0b8a21",
			"_links": {
				"operations": {
					"href": "https://horizon-testnet.stellar.org/transactions/5f36bca71f/operations{?cursor,limit,order}",
					"templated": true
				}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	tx, err := client.Transaction(context.Background(), "5f36bca71f")
	if err != nil {
		t.Fatalf("expected transaction fetch to succeed, got %v", err)
	}
	if tx.Hash != "5f36bca71f" {
		t.Fatalf("expected hash 5f36bca71f, got %q", tx.Hash)
	}
	if !tx.HasTextMemo() || tx.Memo != "4d6f8c2b9e1a7f3c5d0b8a21" {
		t.Fatalf("expected a text memo carrying the contribution ID, got type=%q memo=%q", tx.MemoType, tx.Memo)
	}
	if !strings.HasSuffix(tx.Links.Operations.Href, "/operations{?cursor,limit,order}") {
		t.Fatalf("expected the templated operations link to survive decoding, got %q", tx.Links.Operations.Href)
	}
}

func TestTransaction_NotFoundReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"type":"https://stellar.org/horizon-errors/not_found","title":"Resource Missing","status":404,"detail":"The resource at the url requested was not found."}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Transaction(context.Background(), "doesnotexist")
	if err == nil {
		t.Fatal("expected an error for a missing transaction")
	}
	apiErr, ok := err.(*ErrorResponse)
	if !ok {
		t.Fatalf("expected *ErrorResponse, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Title != "Resource Missing" {
		t.Fatalf("expected the problem document to be decoded, got %+v", apiErr)
	}
}

func TestHasTextMemo(t *testing.T) {
	tests := []struct {
		name     string
		memoType string
		memo     string
		want     bool
	}{
		{name: "text memo", memoType: "text", memo: "abc", want: true},
		{name: "empty text memo", memoType: "text", memo: "", want: false},
		{name: "id memo", memoType: "id", memo: "123", want: false},
		{name: "no memo", memoType: "none", memo: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{MemoType: tt.memoType, Memo: tt.memo}
			if got := tx.HasTextMemo(); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestOperationsByLink_StripsTemplateBeforeFetching(t *testing.T) {
	var requestedURI string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedURI = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"_embedded":{"records":[
			{"id":"1","type":"payment","from":"GAFROM","to":"GATO","amount":"10.0000000","asset_type":"native"},
			{"id":"2","type":"create_account","funder":"GAFROM","account":"GANEW","starting_balance":"3.5000000"},
			{"id":"3","type":"manage_sell_offer","amount":"7.0000000"}
		]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ops, err := client.OperationsByLink(context.Background(), server.URL+"/transactions/abc/operations{?cursor,limit,order}")
	if err != nil {
		t.Fatalf("expected operations fetch to succeed, got %v", err)
	}
	if strings.Contains(requestedURI, "{") {
		t.Fatalf("expected the link template to be stripped, requested %q", requestedURI)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 operation records, got %d", len(ops))
	}
}

func TestOperationPaymentSemantics(t *testing.T) {
	tests := []struct {
		name            string
		op              Operation
		wantPayment     bool
		wantDestination string
		wantAmount      string
		wantNative      bool
	}{
		{
			name:            "native payment",
			op:              Operation{Type: "payment", To: "GATO", Amount: "10.0000000", AssetType: "native"},
			wantPayment:     true,
			wantDestination: "GATO",
			wantAmount:      "10.0000000",
			wantNative:      true,
		},
		{
			name:            "issued asset payment",
			op:              Operation{Type: "payment", To: "GATO", Amount: "25.0000000", AssetType: "credit_alphanum4", AssetCode: "USDC"},
			wantPayment:     true,
			wantDestination: "GATO",
			wantAmount:      "25.0000000",
			wantNative:      false,
		},
		{
			name:            "account creation is an implicit native payment",
			op:              Operation{Type: "create_account", Account: "GANEW", StartingBalance: "3.5000000"},
			wantPayment:     true,
			wantDestination: "GANEW",
			wantAmount:      "3.5000000",
			wantNative:      true,
		},
		{
			name:        "offer is not a payment",
			op:          Operation{Type: "manage_sell_offer", Amount: "7.0000000"},
			wantPayment: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.IsPayment(); got != tt.wantPayment {
				t.Fatalf("expected IsPayment=%t, got %t", tt.wantPayment, got)
			}
			if !tt.wantPayment {
				return
			}
			if got := tt.op.Destination(); got != tt.wantDestination {
				t.Fatalf("expected destination %q, got %q", tt.wantDestination, got)
			}
			if got := tt.op.PaymentAmount(); got != tt.wantAmount {
				t.Fatalf("expected amount %q, got %q", tt.wantAmount, got)
			}
			if got := tt.op.IsNativeAsset(); got != tt.wantNative {
				t.Fatalf("expected native=%t, got %t", tt.wantNative, got)
			}
		})
	}
}

func TestAccountTransactions_RequestsNewestFirst(t *testing.T) {
	var requestedPath, requestedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		requestedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"_embedded":{"records":[
			{"hash":"newer","memo_type":"text","memo":"abc"},
			{"hash":"older","memo_type":"none","memo":""}
		]}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	txs, err := client.AccountTransactions(context.Background(), "GDESCROW", 7)
	if err != nil {
		t.Fatalf("expected account history fetch to succeed, got %v", err)
	}
	if requestedPath != "/accounts/GDESCROW/transactions" {
		t.Fatalf("unexpected path %q", requestedPath)
	}
	if !strings.Contains(requestedQuery, "order=desc") || !strings.Contains(requestedQuery, "limit=7") {
		t.Fatalf("expected order=desc and limit=7, got %q", requestedQuery)
	}
	if len(txs) != 2 || txs[0].Hash != "newer" {
		t.Fatalf("expected 2 records newest first, got %+v", txs)
	}
}
