package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/engine"
	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/internal/server"
	"github.com/flipflow/flipflow/internal/storage"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
)

type (
	stubCaps struct {
		mu   sync.Mutex
		errs map[capability.Name]error
	}

	webHarness struct {
		router *gin.Engine
		eng    *engine.Engine
		store  store.Store
		ebay   *platform.MemoryAdapter
		caps   *stubCaps
	}
)

var stubOutputs = map[capability.Name]string{
	capability.VisionProfile: `{"title":"Leather Satchel","category":"bags",
		"condition":"excellent","confidence":0.9}`,
	capability.TextProfile: `{"title":"Leather Satchel","category":"bags",
		"condition":"excellent","confidence":0.7}`,
	capability.ListingCopy: `{"titles":{"ebay":"Leather Satchel"},
		"descriptions":{"ebay":"Full-grain leather"},"suggested_price":45}`,
	capability.AutoReply:   `{"reply":"Still available"}`,
	capability.OfferReview: `{"recommendation":"counter","counter_price":40}`,
}

func (f *stubCaps) Invoke(
	_ context.Context, name capability.Name, _ api.Args,
) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return json.RawMessage(stubOutputs[name]), nil
}

func (f *stubCaps) setError(name capability.Name, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, name)
		return
	}
	f.errs[name] = err
}

func newWebHarness(t *testing.T) *webHarness {
	gin.SetMode(gin.TestMode)
	as := assert.New(t)

	h := &webHarness{
		store: store.NewMemoryStore(),
		ebay:  platform.NewMemoryAdapter(api.PlatformEbay),
		caps:  &stubCaps{errs: map[capability.Name]error{}},
	}

	reg := platform.Registry{}
	reg.Register(h.ebay)

	b := bus.NewMemoryBus()
	h.eng = engine.New(h.store, b, h.caps, reg,
		engine.WithRetryPolicy(&api.RetryPolicy{
			MaxRetries:  1,
			InitBackoff: 1,
			MaxBackoff:  1,
			BackoffType: api.BackoffTypeFixed,
		}),
	)
	h.eng.Start()

	sup := engine.NewSupervisor(h.eng, h.store, time.Hour)
	images, err := storage.Open(t.Context(), "file://"+t.TempDir())
	as.NoError(err)

	srv := server.NewServer(h.eng, sup, h.store, b, images,
		[]api.Platform{api.PlatformEbay, api.PlatformVinted})
	h.router = srv.SetupRoutes()

	t.Cleanup(func() {
		srv.CloseWebSockets()
		sup.Stop()
		h.eng.Stop()
		_ = images.Close()
		_ = b.Close()
		_ = h.store.Close()
	})
	return h
}

func (h *webHarness) do(
	method, path, contentType string, body []byte,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *webHarness) postJSON(
	path, body string,
) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, path, "application/json", []byte(body))
}

// toGate drives a fresh item to the approval gate without the router
func (h *webHarness) toGate(as *assert.Wrapper) *api.RunState {
	st, err := h.eng.CreateItem(as.Context(), &api.Fields{
		UserDescription: "Full-grain leather satchel",
		Platforms:       []api.Platform{api.PlatformEbay},
	})
	as.NoError(err)
	as.NoError(h.eng.Run(as.Context(), st.ItemID))

	loaded, err := h.store.Load(as.Context(), st.ItemID)
	as.NoError(err)
	return loaded
}

func (h *webHarness) toListed(as *assert.Wrapper) *api.RunState {
	st := h.toGate(as)
	_, err := h.eng.SubmitApproval(as.Context(), st.ItemID, 45, "")
	as.NoError(err)
	as.NoError(h.eng.Run(as.Context(), st.ItemID))

	loaded, err := h.store.Load(as.Context(), st.ItemID)
	as.NoError(err)
	return loaded
}

func multipartForm(
	as *assert.Wrapper, fields map[string]string, images map[string][]byte,
) ([]byte, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		as.NoError(w.WriteField(k, v))
	}
	for name, data := range images {
		fw, err := w.CreateFormFile("images", name)
		as.NoError(err)
		_, err = fw.Write(data)
		as.NoError(err)
	}
	as.NoError(w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	rec := h.do(http.MethodGet, "/health", "", nil)
	as.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	as.Equal("healthy", gjson.Get(body, "status").String())
	as.NotEmpty(gjson.Get(body, "service").String())
}

func TestCreateItem(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	photo := []byte("\xff\xd8\xff\xdbnot-really-a-jpeg")
	body, contentType := multipartForm(as, map[string]string{
		"description": "Leather satchel, lightly used",
		"platforms":   "ebay",
	}, map[string][]byte{"front.jpg": photo})

	rec := h.do(http.MethodPost, "/items", contentType, body)
	as.Equal(http.StatusCreated, rec.Code)

	created := rec.Body.String()
	as.Equal("draft", gjson.Get(created, "status").String())
	as.Equal(int64(0), gjson.Get(created, "version").Int())

	keys := gjson.Get(created, "fields.image_keys").Array()
	as.Len(keys, 1)

	// the upload is immediately readable back
	imgRec := h.do(http.MethodGet, "/images/"+keys[0].String(), "", nil)
	as.Equal(http.StatusOK, imgRec.Code)
	as.Equal(photo, imgRec.Body.Bytes())

	// creation kicked the run; it settles at the approval gate
	id := api.ItemID(gjson.Get(created, "item_id").String())
	as.Eventually(func() bool {
		st, err := h.store.Load(as.Context(), id)
		return err == nil && st.Suspended()
	}, 2*time.Second, "created item never reached the approval gate")
}

func TestCreateItemNoInput(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	body, contentType := multipartForm(as, map[string]string{}, nil)
	rec := h.do(http.MethodPost, "/items", contentType, body)
	as.Equal(http.StatusBadRequest, rec.Code)
}

func TestCreateItemUnknownPlatform(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	body, contentType := multipartForm(as, map[string]string{
		"description": "something",
		"platforms":   "etsy",
	}, nil)
	rec := h.do(http.MethodPost, "/items", contentType, body)
	as.Equal(http.StatusBadRequest, rec.Code)
}

func TestGetItemNotFound(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	rec := h.do(http.MethodGet, "/items/"+string(api.NewItemID()), "", nil)
	as.Equal(http.StatusNotFound, rec.Code)
}

func TestListItems(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	h.toGate(as)
	h.toGate(as)

	rec := h.do(http.MethodGet, "/items", "", nil)
	as.Equal(http.StatusOK, rec.Code)
	as.Equal(int64(2), gjson.Get(rec.Body.String(), "count").Int())
}

func TestApproveItem(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toGate(as)
	path := "/items/" + string(st.ItemID) + "/approve"

	rec := h.postJSON(path, `{"final_price":42.5}`)
	as.Equal(http.StatusOK, rec.Code)
	as.Equal("publishing", gjson.Get(rec.Body.String(), "status").String())

	as.Eventually(func() bool {
		loaded, err := h.store.Load(as.Context(), st.ItemID)
		return err == nil && loaded.Status == api.ItemListed
	}, 2*time.Second, "approved item never published")

	// replay conflicts
	rec = h.postJSON(path, `{"final_price":42.5}`)
	as.Equal(http.StatusConflict, rec.Code)
}

func TestApproveItemBadBody(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toGate(as)

	rec := h.postJSON(
		"/items/"+string(st.ItemID)+"/approve", `{"final_price":0}`,
	)
	as.Equal(http.StatusBadRequest, rec.Code)
}

func TestApproveItemNotFound(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	rec := h.postJSON(
		"/items/"+string(api.NewItemID())+"/approve", `{"final_price":10}`,
	)
	as.Equal(http.StatusNotFound, rec.Code)
}

func TestCancelItem(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toGate(as)
	path := "/items/" + string(st.ItemID) + "/cancel"

	rec := h.postJSON(path, "")
	as.Equal(http.StatusOK, rec.Code)
	as.Equal("archived", gjson.Get(rec.Body.String(), "status").String())

	rec = h.postJSON(path, "")
	as.Equal(http.StatusConflict, rec.Code)
}

func TestResumeItem(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	h.caps.setError(capability.ListingCopy, &capability.Failure{
		Name: capability.ListingCopy,
		Err:  errors.New("copywriter offline"),
	})

	st, err := h.eng.CreateItem(as.Context(), &api.Fields{
		UserDescription: "Broken run",
		Platforms:       []api.Platform{api.PlatformEbay},
	})
	as.NoError(err)
	as.NoError(h.eng.Run(as.Context(), st.ItemID))

	loaded, err := h.store.Load(as.Context(), st.ItemID)
	as.NoError(err)
	as.NotEmpty(loaded.Error)

	h.caps.setError(capability.ListingCopy, nil)
	rec := h.postJSON("/items/"+string(st.ItemID)+"/resume", "")
	as.Equal(http.StatusAccepted, rec.Code)

	as.Eventually(func() bool {
		fresh, err := h.store.Load(as.Context(), st.ItemID)
		return err == nil && fresh.Suspended()
	}, 2*time.Second, "resumed item never reached the approval gate")
}

func TestListListings(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toListed(as)

	rec := h.do(
		http.MethodGet, "/items/"+string(st.ItemID)+"/listings", "", nil,
	)
	as.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	as.Equal(int64(1), gjson.Get(body, "count").Int())
	as.Equal("ebay", gjson.Get(body, "listings.0.platform").String())
	as.Equal("published", gjson.Get(body, "listings.0.status").String())
}

func TestListComparables(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	h.ebay.SeedComparables([]*platform.Comparable{
		{Title: "similar satchel", SoldPrice: 40},
		{Title: "another satchel", SoldPrice: 50},
	})
	st := h.toGate(as)

	rec := h.do(
		http.MethodGet, "/items/"+string(st.ItemID)+"/comparables", "", nil,
	)
	as.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	as.Equal(int64(2), gjson.Get(body, "count").Int())
	as.Equal(
		"similar satchel",
		gjson.Get(body, "comparables.0.title").String(),
	)
}

func TestOfferDecisionFlow(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toListed(as)

	platformID := st.Fields.Listings[0].PlatformListingID
	h.ebay.SeedOffer(platformID, &platform.Offer{
		OfferID: "po-1",
		Buyer:   "sam",
		Amount:  38,
	})
	as.NoError(h.eng.Run(as.Context(), st.ItemID))

	rec := h.do(
		http.MethodGet, "/items/"+string(st.ItemID)+"/offers", "", nil,
	)
	as.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	as.Equal(int64(1), gjson.Get(body, "count").Int())
	offerID := gjson.Get(body, "offers.0.id").String()
	as.Equal("pending", gjson.Get(body, "offers.0.status").String())

	path := "/offers/" + offerID + "/decision"
	rec = h.postJSON(path, `{"action":"accept"}`)
	as.Equal(http.StatusOK, rec.Code)
	as.Equal("accepted", gjson.Get(rec.Body.String(), "status").String())

	// the decision kicks the run; the sale finalizes
	as.Eventually(func() bool {
		loaded, err := h.store.Load(as.Context(), st.ItemID)
		return err == nil && loaded.Status == api.ItemSold
	}, 2*time.Second, "accepted offer never closed the sale")

	// replay conflicts
	rec = h.postJSON(path, `{"action":"decline"}`)
	as.Equal(http.StatusConflict, rec.Code)
}

func TestOfferDecisionValidation(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)

	rec := h.postJSON(
		"/offers/"+string(api.NewOfferID())+"/decision",
		`{"action":"counter"}`,
	)
	as.Equal(http.StatusBadRequest, rec.Code)

	rec = h.postJSON(
		"/offers/"+string(api.NewOfferID())+"/decision",
		`{"action":"accept"}`,
	)
	as.Equal(http.StatusNotFound, rec.Code)
}

func TestItemSocket(t *testing.T) {
	as := assert.New(t)
	h := newWebHarness(t)
	st := h.toGate(as)

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/items/" + string(st.ItemID) + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	as.NoError(err)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	// the first frame is the authoritative snapshot
	var snapshot api.SubscribedResult
	as.NoError(conn.ReadJSON(&snapshot))
	as.Equal(api.SubscribedType, snapshot.Type)
	as.Equal(st.Version, snapshot.Seq)
	as.RunSuspended(snapshot.State, api.GateApproval)

	_, err = h.eng.SubmitApproval(as.Context(), st.ItemID, 45, "")
	as.NoError(err)
	as.NoError(h.eng.Run(as.Context(), st.ItemID))

	as.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))

	var resumed api.Event
	as.NoError(conn.ReadJSON(&resumed))
	as.EventSeq(&resumed, api.EventResumed, st.Version+1)

	var published api.Event
	as.NoError(conn.ReadJSON(&published))
	as.EventSeq(&published, api.EventStep, st.Version+2)
	as.Equal("listed", published.Data["status"])
}
