package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"optionchain-board/interfaces"
	"optionchain-board/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func newTestRouter(t *testing.T) (*gin.Engine, *services.ChainRefresher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	refresher := services.NewChainRefresher(services.NewStaticFeed("NIFTY"), time.Minute, logger)
	controller := NewChainController(refresher, nil, logger)

	router := gin.New()
	controller.RegisterRoutes(router)
	return router, refresher
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleGetChainRefreshesOnDemand(t *testing.T) {
	router, refresher := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/chain", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view interfaces.ChainView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if len(view.Rows) != 7 || view.Basis != 155000 {
		t.Fatalf("unexpected view: basis=%d rows=%d", view.Basis, len(view.Rows))
	}
	if view.Rows[0].Strike != 22400 {
		t.Fatalf("first strike = %v, want 22400", view.Rows[0].Strike)
	}
	if refresher.Latest() == nil {
		t.Fatal("on-demand refresh was not cached")
	}
}

func TestHandleRefresh(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/chain/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleBuildRows(t *testing.T) {
	router, _ := newTestRouter(t)

	body := []byte(`{
		"ladder": [22000],
		"puts":  [{"strike": 22000, "open_price": 120, "last_traded_price": 98,  "open_interest": 155000}],
		"calls": [{"strike": 22000, "open_price": 120, "last_traded_price": 145, "open_interest": 120000}]
	}`)

	w := doRequest(router, http.MethodPost, "/api/v1/chain/rows", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Basis int64                 `json:"basis"`
		Count int                   `json:"count"`
		Rows  []interfaces.ChainRow `json:"rows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Basis != 155000 || resp.Count != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	row := resp.Rows[0]
	if row.PutChangePercent != -18.33 || row.CallChangePercent != 20.83 || row.CallOIPercent != 77.42 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.PutOpenInterestDisplay != "155,000" {
		t.Fatalf("put oi display = %q", row.PutOpenInterestDisplay)
	}
}

func TestHandleBuildRowsExplicitBasis(t *testing.T) {
	router, _ := newTestRouter(t)

	body := []byte(`{
		"ladder": [100],
		"puts":  [{"strike": 100, "open_price": 10, "last_traded_price": 12, "open_interest": 50}],
		"calls": [{"strike": 100, "open_price": 10, "last_traded_price": 8,  "open_interest": 25}],
		"basis": 200
	}`)

	w := doRequest(router, http.MethodPost, "/api/v1/chain/rows", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"put_oi_percent":25`) {
		t.Fatalf("explicit basis not applied: %s", w.Body.String())
	}
}

func TestHandleBuildRowsRejectsInvalidInput(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := map[string]string{
		"zero open price": `{"ladder":[100],
			"puts":[{"strike":100,"open_price":0,"last_traded_price":5,"open_interest":10}],
			"calls":[{"strike":100,"open_price":10,"last_traded_price":5,"open_interest":10}]}`,
		"missing call": `{"ladder":[100,200],
			"puts":[{"strike":100,"open_price":1,"last_traded_price":1,"open_interest":1},{"strike":200,"open_price":1,"last_traded_price":1,"open_interest":1}],
			"calls":[{"strike":100,"open_price":1,"last_traded_price":1,"open_interest":1}]}`,
		"empty ladder": `{"ladder":[],"puts":[],"calls":[]}`,
		"zero basis": `{"ladder":[100],
			"puts":[{"strike":100,"open_price":1,"last_traded_price":1,"open_interest":0}],
			"calls":[{"strike":100,"open_price":1,"last_traded_price":1,"open_interest":0}]}`,
		"malformed json": `{"ladder":`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/chain/rows", []byte(body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleGetColumns(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/chain/columns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Count   int                           `json:"count"`
		Columns []interfaces.ColumnDescriptor `json:"columns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode columns: %v", err)
	}
	if resp.Count != 11 || resp.Columns[5].Key != "strike" {
		t.Fatalf("unexpected columns: %+v", resp)
	}
}

func TestHandleChainPage(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	page := w.Body.String()
	for _, want := range []string{"Option Chain (NIFTY)", "PUT LTP", "155,000", "22000", "-18.33%", `http-equiv="refresh"`} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestHandleStreamPushesViews(t *testing.T) {
	router, refresher := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	if _, err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chain/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// the current view is sent on connect
	var first interfaces.ChainView
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read initial view: %v", err)
	}
	if len(first.Rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(first.Rows))
	}

	// later refreshes are pushed; retry until the handler has subscribed
	deadline := time.Now().Add(2 * time.Second)
	received := make(chan interfaces.ChainView, 1)
	go func() {
		var next interfaces.ChainView
		if err := conn.ReadJSON(&next); err == nil {
			received <- next
		}
	}()
	for {
		if _, err := refresher.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh returned error: %v", err)
		}
		select {
		case next := <-received:
			if next.Basis != 155000 {
				t.Fatalf("unexpected pushed view basis %d", next.Basis)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no view pushed after refresh")
		}
	}
}
