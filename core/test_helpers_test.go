package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	return s.err
}

func (s *recordingSleeper) calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

var errBackendDown = errors.New("backend unavailable")

// fakeGovernanceClient scripts backend responses and records every call.
type fakeGovernanceClient struct {
	mu sync.Mutex

	identities      map[string]Identity
	identityMisses  int
	identityErr     error
	identityQueries []IdentityQuery
	entitlements    map[string]Entitlement
	searchResults   []Entitlement
	searchErr       error
	searchQueries   []string
	getErr          error
	getCalls        []string
	patchErr        error
	patches         []string
	patchOps        [][]JSONPatchOperation
	accounts        map[string]Account
	accountErr      error
	accountFilters  []AccountFilter
	requestFailures int
	requestErr      error
	requests        []AccessRequest
	probeErr        error
	probeCalls      int
	callLog         []string
}

func newFakeGovernanceClient() *fakeGovernanceClient {
	return &fakeGovernanceClient{
		identities:   map[string]Identity{},
		entitlements: map[string]Entitlement{},
		accounts:     map[string]Account{},
	}
}

func (c *fakeGovernanceClient) SearchIdentities(_ context.Context, query IdentityQuery) ([]Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identityQueries = append(c.identityQueries, query)
	c.callLog = append(c.callLog, "search_identities")
	if c.identityErr != nil {
		return nil, c.identityErr
	}
	if c.identityMisses > 0 {
		c.identityMisses--
		return []Identity{}, nil
	}
	identity, ok := c.identities[query.String()]
	if !ok {
		return []Identity{}, nil
	}
	return []Identity{identity}, nil
}

func (c *fakeGovernanceClient) SearchEntitlements(_ context.Context, query string) ([]Entitlement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchQueries = append(c.searchQueries, query)
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return append([]Entitlement(nil), c.searchResults...), nil
}

func (c *fakeGovernanceClient) GetEntitlement(_ context.Context, id string) (Entitlement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls = append(c.getCalls, id)
	c.callLog = append(c.callLog, "get:"+id)
	if c.getErr != nil {
		return Entitlement{}, c.getErr
	}
	entitlement, ok := c.entitlements[id]
	if !ok {
		return Entitlement{ID: id, Requestable: true}, nil
	}
	return entitlement, nil
}

func (c *fakeGovernanceClient) PatchEntitlement(_ context.Context, id string, ops []JSONPatchOperation) (Entitlement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patches = append(c.patches, id)
	c.patchOps = append(c.patchOps, ops)
	c.callLog = append(c.callLog, "patch:"+id)
	if c.patchErr != nil {
		return Entitlement{}, c.patchErr
	}
	entitlement := c.entitlements[id]
	entitlement.Requestable = true
	c.entitlements[id] = entitlement
	return entitlement, nil
}

func (c *fakeGovernanceClient) ListAccounts(_ context.Context, filter AccountFilter) ([]Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountFilters = append(c.accountFilters, filter)
	if c.accountErr != nil {
		return nil, c.accountErr
	}
	account, ok := c.accounts[filter.NativeIdentity]
	if !ok {
		return []Account{}, nil
	}
	return []Account{account}, nil
}

func (c *fakeGovernanceClient) CreateAccessRequest(_ context.Context, req AccessRequest) (AccessRequestResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	c.callLog = append(c.callLog, "request:"+string(req.RequestType))
	if c.requestErr != nil {
		return AccessRequestResponse{}, c.requestErr
	}
	if c.requestFailures > 0 {
		c.requestFailures--
		return AccessRequestResponse{}, errBackendDown
	}
	return AccessRequestResponse{ID: "ar_" + req.RequestedFor, Status: "ACCEPTED"}, nil
}

func (c *fakeGovernanceClient) GetPublicIdentityConfig(context.Context) (PublicIdentityConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probeCalls++
	if c.probeErr != nil {
		return PublicIdentityConfig{}, c.probeErr
	}
	return PublicIdentityConfig{Attributes: map[string]any{}}, nil
}

// lookupResolver is a minimal resolver over the fake client used by service
// tests; resolver retry behaviour is covered in the identity package.
type lookupResolver struct {
	client *fakeGovernanceClient
}

func (r lookupResolver) ResolveForCreate(ctx context.Context, name string) (Identity, error) {
	return r.lookup(ctx, IdentityQuery{Field: IdentityFieldNameExact, Value: name})
}

func (r lookupResolver) ResolveForUpdate(ctx context.Context, id string) (Identity, error) {
	return r.lookup(ctx, IdentityQuery{Field: IdentityFieldID, Value: id})
}

func (r lookupResolver) lookup(ctx context.Context, query IdentityQuery) (Identity, error) {
	found, err := r.client.SearchIdentities(ctx, query)
	if err != nil {
		return Identity{}, err
	}
	if len(found) == 0 {
		return Identity{}, IdentityNotFoundError(query.Value, 1)
	}
	return found[0], nil
}

type memoryLedger struct {
	mu      sync.Mutex
	records []AccessRequestRecord
	err     error
}

func (l *memoryLedger) Record(_ context.Context, record AccessRequestRecord) (AccessRequestRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return AccessRequestRecord{}, l.err
	}
	l.records = append(l.records, record)
	return record, nil
}

func (l *memoryLedger) ListByIdentity(_ context.Context, identityID string, _ int) ([]AccessRequestRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []AccessRequestRecord{}
	for _, record := range l.records {
		if record.IdentityID == identityID {
			out = append(out, record)
		}
	}
	return out, nil
}

func hasCounter(counters []capturedCounter, name string, status string) bool {
	for _, counter := range counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(histograms []capturedHistogram, name string) bool {
	for _, histogram := range histograms {
		if histogram.name == name {
			return true
		}
	}
	return false
}
