package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zama-ai/decryptiondb/codec"
	"github.com/zama-ai/decryptiondb/store"
	"github.com/zama-ai/decryptiondb/waitcache"
	"github.com/zama-ai/decryptiondb/workerpool"
)

const testBucket store.Bucket = "require"

func hashKey(k codec.Key) uint64 { return xxhash.Sum64(k[:]) }

type testServer struct {
	router chi.Router
	cache  *waitcache.Cache[codec.Key, codec.StoredRecord[bool]]
	store  store.Store
}

func newTestServer(t *testing.T, waitTimeout time.Duration) *testServer {
	t.Helper()
	mem := store.NewMemoryStore()
	cache := waitcache.New[codec.Key, codec.StoredRecord[bool]](waitTimeout, hashKey)
	t.Cleanup(cache.Close)

	r := NewRouter()
	Mount(r, "require", Deps[bool]{
		Store:       mem,
		Bucket:      testBucket,
		Cache:       cache,
		Pool:        workerpool.New(8),
		Profile:     codec.BoolProfile,
		WaitTimeout: waitTimeout,
	})

	return &testServer{router: r, cache: cache, store: mem}
}

func keyA() string { return strings.Repeat("a", 2*codec.KeyBytes) }
func keyB() string { return strings.Repeat("b", 2*codec.KeyBytes) }

func doPut(t *testing.T, r chi.Router, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/require/"+key, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doGet(t *testing.T, r chi.Router, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/require/"+key, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type wireBody struct {
	Value     bool   `json:"value"`
	Signature string `json:"signature"`
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s := newTestServer(t, time.Second)

	rec := doPut(t, s.router, keyA(), `{"value":true,"signature":"YmJiYg=="}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, s.router, keyA())
	require.Equal(t, http.StatusOK, rec.Code)
	var body wireBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Value)
	assert.Equal(t, "YmJiYg==", body.Signature)
}

func TestLastWriterWins(t *testing.T) {
	s := newTestServer(t, time.Second)

	doPut(t, s.router, keyA(), `{"value":true,"signature":"YmJiYg=="}`)
	doPut(t, s.router, keyA(), `{"value":false,"signature":"Yg=="}`)

	rec := doGet(t, s.router, keyA())
	require.Equal(t, http.StatusOK, rec.Code)
	var body wireBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Value)
	assert.Equal(t, "Yg==", body.Signature)
}

func TestFailedPutStaysInvisible(t *testing.T) {
	s := newTestServer(t, time.Second)

	doPut(t, s.router, keyA(), `{"value":true,"signature":"YmJiYg=="}`)
	rec := doPut(t, s.router, keyA(), `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, s.router, keyA())
	require.Equal(t, http.StatusOK, rec.Code)
	var body wireBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Value)
}

func TestSuspendedGetUnblockedByPut(t *testing.T) {
	s := newTestServer(t, time.Second)

	var rec *httptest.ResponseRecorder
	done := make(chan struct{})
	go func() {
		rec = doGet(t, s.router, keyA())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	doPut(t, s.router, keyA(), `{"value":true,"signature":"YmJiYg=="}`)
	<-done

	require.Equal(t, http.StatusOK, rec.Code)
	var body wireBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Value)
}

func TestGetTimesOutWhenNoPutArrives(t *testing.T) {
	wait := 80 * time.Millisecond
	s := newTestServer(t, wait)

	start := time.Now()
	rec := doGet(t, s.router, keyB())
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.GreaterOrEqual(t, elapsed, wait)
}

func TestBadHexKeyRejected(t *testing.T) {
	s := newTestServer(t, time.Second)

	badKey := strings.Repeat("a", 2*codec.KeyBytes-1) + "X"
	rec := doGet(t, s.router, badKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doPut(t, s.router, badKey, `{"value":true,"signature":"YmJiYg=="}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeyValidation_AllLengthsAndCharsets(t *testing.T) {
	s := newTestServer(t, time.Second)

	cases := []struct {
		key  string
		want int
	}{
		{strings.Repeat("a", 2*codec.KeyBytes), http.StatusNotFound},
		{strings.Repeat("a", 2*codec.KeyBytes-1), http.StatusBadRequest},
		{strings.Repeat("a", 2*codec.KeyBytes+1), http.StatusBadRequest},
		{strings.Repeat("g", 2*codec.KeyBytes), http.StatusBadRequest}, // 'g' is not hex
	}
	for _, c := range cases {
		rec := doGet(t, s.router, c.key)
		assert.Equal(t, c.want, rec.Code, "key=%q", c.key)
	}
}

func TestRendezvousLiveness_NConcurrentWaiters(t *testing.T) {
	s := newTestServer(t, 2*time.Second)

	const n = 20
	var wg sync.WaitGroup
	codes := make([]int, n)
	bodies := make([]wireBody, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := doGet(t, s.router, keyA())
			codes[i] = rec.Code
			_ = json.Unmarshal(rec.Body.Bytes(), &bodies[i])
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	doPut(t, s.router, keyA(), `{"value":true,"signature":"YmJiYg=="}`)
	wg.Wait()

	for i := range n {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.True(t, bodies[i].Value)
	}
}

func TestBadJSONBody(t *testing.T) {
	s := newTestServer(t, time.Second)
	rec := doPut(t, s.router, keyA(), `{"value":true`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadSignatureEncoding(t *testing.T) {
	s := newTestServer(t, time.Second)
	rec := doPut(t, s.router, keyA(), `{"value":true,"signature":"not valid base64!!"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
