package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-router/internal/common/errors"
	"signal-router/internal/crypto"
	"signal-router/internal/rules"
	"signal-router/internal/storage"
	"signal-router/internal/storage/sqlite"
)

func newTestPipeline(t *testing.T) (*Pipeline, *sqlite.Adapter, *crypto.TargetCodec) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	codec, err := crypto.NewTargetCodec("pipeline-test-key")
	require.NoError(t, err)

	pipeline := New(store, codec, &http.Client{}, 2*time.Second, nil)
	return pipeline, store, codec
}

func addRule(t *testing.T, store storage.Storage, name string, priority int, cs rules.ConditionSet, targets []string) *storage.Rule {
	t.Helper()

	conditions, err := cs.Encode()
	require.NoError(t, err)
	action, err := rules.Action{Type: rules.ActionForward, Targets: targets}.Encode()
	require.NoError(t, err)

	rule := &storage.Rule{
		Name:       name,
		Enabled:    true,
		Priority:   priority,
		Conditions: conditions,
		Action:     action,
	}
	require.NoError(t, store.CreateRule(rule))
	return rule
}

func alwaysMatch() rules.ConditionSet {
	return rules.ConditionSet{Op: rules.OpAnd, Items: []rules.Predicate{{Kind: rules.KindAlways}}}
}

func encryptTarget(t *testing.T, codec *crypto.TargetCodec, url string) string {
	t.Helper()
	encrypted, err := codec.Encrypt(url)
	require.NoError(t, err)
	return encrypted
}

// countingServer records every request it receives and answers with the
// given status.
type countingServer struct {
	*httptest.Server

	mu          sync.Mutex
	bodies      []string
	contentType string
}

func newCountingServer(t *testing.T, status int, responseBody string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cs.mu.Lock()
		cs.bodies = append(cs.bodies, string(body))
		cs.contentType = r.Header.Get("Content-Type")
		cs.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(responseBody))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) requestCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.bodies)
}

func TestIngest_RejectsNonObjectBody(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	for _, body := range []string{`[1, 2, 3]`, `"text"`, `42`, `null`, `{broken`} {
		_, err := pipeline.Ingest(context.Background(), []byte(body))
		require.Error(t, err, "body %s should be rejected", body)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	}

	signals, err := store.ListSignals(10)
	require.NoError(t, err)
	assert.Empty(t, signals, "rejected input must not create a signal")
}

func TestIngest_NoMatchingRules(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	result, err := pipeline.Ingest(context.Background(), []byte(`{"text": "hello"}`))
	require.NoError(t, err)

	assert.NotNil(t, result.MatchedRuleIDs)
	assert.Empty(t, result.MatchedRuleIDs)
	assert.Equal(t, 0, result.DeliveryCount)

	signal, err := store.GetSignal(result.SignalID)
	require.NoError(t, err)
	assert.Equal(t, "", signal.Source)
	assert.Equal(t, `{"text": "hello"}`, signal.RawPayload)
	assert.Equal(t, 0, signal.MatchCount)
	assert.Equal(t, 0, signal.DeliveryCount)
}

func TestIngest_MatchedRulesOrderedByPriority(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	low := addRule(t, store, "low", 100, alwaysMatch(), nil)
	high := addRule(t, store, "high", 1000, alwaysMatch(), nil)
	mid := addRule(t, store, "mid", 900, alwaysMatch(), nil)

	result, err := pipeline.Ingest(context.Background(), []byte(`{"kind": "x"}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{high.ID, mid.ID, low.ID}, result.MatchedRuleIDs)
	assert.Equal(t, 0, result.DeliveryCount)

	signal, err := store.GetSignal(result.SignalID)
	require.NoError(t, err)
	assert.Equal(t, 3, signal.MatchCount)
	assert.Equal(t, 0, signal.DeliveryCount)
}

func TestIngest_EndToEndFanOut(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	fallbackTarget := newCountingServer(t, http.StatusOK, `{"accepted": true}`)
	etfTarget := newCountingServer(t, http.StatusOK, "ok")

	fallback := addRule(t, store, "fallback", 1000, alwaysMatch(),
		[]string{encryptTarget(t, codec, fallbackTarget.URL)})
	etf := addRule(t, store, "etf", 900,
		rules.ConditionSet{Op: rules.OpAnd, Items: []rules.Predicate{
			{Kind: rules.KindContainsText, Text: "ETF动量模型推送"},
		}},
		[]string{encryptTarget(t, codec, etfTarget.URL)})

	raw := []byte(`{"text": {"content": "【ETF动量模型推送】今日信号更新"}}`)
	result, err := pipeline.Ingest(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, []int64{fallback.ID, etf.ID}, result.MatchedRuleIDs)
	assert.Equal(t, 2, result.DeliveryCount)
	assert.Equal(t, 1, fallbackTarget.requestCount())
	assert.Equal(t, 1, etfTarget.requestCount())

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	for _, delivery := range deliveries {
		assert.True(t, delivery.Success)
		require.NotNil(t, delivery.ResponseStatus)
		assert.Equal(t, http.StatusOK, *delivery.ResponseStatus)
	}

	signal, err := store.GetSignal(result.SignalID)
	require.NoError(t, err)
	assert.Equal(t, 2, signal.MatchCount)
	assert.Equal(t, 2, signal.DeliveryCount)
}

func TestIngest_ForwardsVerbatimPayload(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	server := newCountingServer(t, http.StatusOK, "")
	addRule(t, store, "fwd", 10, alwaysMatch(), []string{encryptTarget(t, codec, server.URL)})

	raw := []byte(`{"nested": {"deep": true}, "text": "payload"}`)
	_, err := pipeline.Ingest(context.Background(), raw)
	require.NoError(t, err)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.Len(t, server.bodies, 1)
	assert.Equal(t, string(raw), server.bodies[0])
	assert.Equal(t, "application/json", server.contentType)
}

func TestIngest_PartialFailureIsolation(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	failing := newCountingServer(t, http.StatusInternalServerError, "boom")
	healthy := newCountingServer(t, http.StatusOK, "ok")
	other := newCountingServer(t, http.StatusOK, "ok")

	ruleA := addRule(t, store, "rule-a", 200, alwaysMatch(), []string{
		encryptTarget(t, codec, failing.URL),
		encryptTarget(t, codec, healthy.URL),
	})
	ruleB := addRule(t, store, "rule-b", 100, alwaysMatch(),
		[]string{encryptTarget(t, codec, other.URL)})

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{ruleA.ID, ruleB.ID}, result.MatchedRuleIDs)
	assert.Equal(t, 3, result.DeliveryCount)

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)

	succeeded := 0
	for _, delivery := range deliveries {
		require.NotNil(t, delivery.ResponseStatus)
		if delivery.Success {
			succeeded++
		} else {
			assert.Equal(t, http.StatusInternalServerError, *delivery.ResponseStatus)
			assert.Equal(t, "boom", delivery.ResponseBody)
			assert.NotEmpty(t, delivery.ErrorMessage)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, other.requestCount(), "second rule still dispatched after first rule's failure")
}

func TestIngest_TransportFailureRecordedWithoutStatus(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	addRule(t, store, "dead-target", 10, alwaysMatch(),
		[]string{encryptTarget(t, codec, deadURL)})

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeliveryCount)

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].Success)
	assert.Nil(t, deliveries[0].ResponseStatus)
	assert.NotEmpty(t, deliveries[0].ErrorMessage)
}

func TestIngest_UndecryptableTargetSilentlySkipped(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	server := newCountingServer(t, http.StatusOK, "ok")

	foreignCodec, err := crypto.NewTargetCodec("some-other-key")
	require.NoError(t, err)
	corrupted := encryptTarget(t, foreignCodec, "https://example.com/hook")

	rule := addRule(t, store, "mixed-targets", 10, alwaysMatch(), []string{
		corrupted,
		encryptTarget(t, codec, server.URL),
	})

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{rule.ID}, result.MatchedRuleIDs, "rule still counts as matched")
	assert.Equal(t, 1, result.DeliveryCount, "skipped target is not a delivery attempt")

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].Success)
}

func TestIngest_MasksTargetOnDeliveryRecord(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	target := server.URL + "/bot/send?key=abcdefgh1234"
	addRule(t, store, "masked", 10, alwaysMatch(), []string{encryptTarget(t, codec, target)})

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, server.URL+"/bot/send?key=abcd***1234", deliveries[0].TargetMasked)
	assert.NotContains(t, deliveries[0].TargetMasked, "abcdefgh1234")
}

func TestIngest_TruncatesStoredResponseBody(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	longBody := strings.Repeat("z", 2000)
	server := newCountingServer(t, http.StatusOK, longBody)
	addRule(t, store, "chatty-target", 10, alwaysMatch(),
		[]string{encryptTarget(t, codec, server.URL)})

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Len(t, deliveries[0].ResponseBody, maxStoredResponseBytes)
}

func TestIngest_StoresFullRequestPayload(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	server := newCountingServer(t, http.StatusOK, "ok")
	addRule(t, store, "audited", 10, alwaysMatch(),
		[]string{encryptTarget(t, codec, server.URL)})

	raw := []byte(`{"filler": "` + strings.Repeat("a", 2000) + `"}`)
	result, err := pipeline.Ingest(context.Background(), raw)
	require.NoError(t, err)

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, string(raw), deliveries[0].RequestPayload)
}

// deliveryFailingStore rejects every delivery insert.
type deliveryFailingStore struct {
	storage.Storage
}

func (s *deliveryFailingStore) CreateDelivery(*storage.Delivery) error {
	return errors.InternalError("delivery insert failed", nil)
}

func TestIngest_UnrecordedDeliveryNotCounted(t *testing.T) {
	pipeline, store, codec := newTestPipeline(t)

	server := newCountingServer(t, http.StatusOK, "ok")
	addRule(t, store, "unrecordable", 10, alwaysMatch(),
		[]string{encryptTarget(t, codec, server.URL)})

	pipeline.store = &deliveryFailingStore{Storage: store}

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)

	assert.Equal(t, 1, server.requestCount(), "the POST itself still goes out")
	assert.Equal(t, 0, result.DeliveryCount)

	signal, err := store.GetSignal(result.SignalID)
	require.NoError(t, err)
	assert.Equal(t, 0, signal.DeliveryCount, "count stays equal to the stored delivery rows")

	deliveries, err := store.GetDeliveries(result.SignalID)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestIngest_ExtractedFieldsPersisted(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	result, err := pipeline.Ingest(context.Background(),
		[]byte(`{"text": {"content": "signal body"}, "severity": "high", "source": "tradingview"}`))
	require.NoError(t, err)

	signal, err := store.GetSignal(result.SignalID)
	require.NoError(t, err)

	var extracted map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(signal.ParsedFields), &extracted))
	assert.Equal(t, "signal body", extracted["message_text"])
	assert.Equal(t, "high", extracted["severity"])
	assert.Equal(t, "tradingview", signal.Source)
}

func TestIngest_DisabledRuleNeverMatches(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t)

	rule := addRule(t, store, "disabled", 10, alwaysMatch(), nil)
	rule.Enabled = false
	require.NoError(t, store.UpdateRule(rule))

	result, err := pipeline.Ingest(context.Background(), []byte(`{"x": 1}`))
	require.NoError(t, err)
	assert.Empty(t, result.MatchedRuleIDs)
}
