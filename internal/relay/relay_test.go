package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"orderexport/internal/export"
	"orderexport/internal/extract"
	"orderexport/internal/metrics"
	"orderexport/internal/order"
	"orderexport/internal/telemetry"
	"orderexport/lib/chrono"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const linksPage = `<html><body><main>
<a href="/orders/111">Order 111</a>
<a href="/orders/222">Order 222</a>
</main></body></html>`

type staticNavigator struct {
	doc *goquery.Document
}

func (n staticNavigator) Current() (*goquery.Document, *url.URL) {
	u, _ := url.Parse("https://www.walmart.com/orders")
	return n.doc, u
}

func (n staticNavigator) NextPage(ctx context.Context) (bool, error) {
	return false, nil
}

// gatedSource announces every detail fetch on entered and holds it until release is closed.
type gatedSource struct {
	doc     *goquery.Document
	entered chan string
	release chan struct{}
}

func newGatedSource(t *testing.T, open bool) *gatedSource {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(linksPage))
	require.NoError(t, err)
	s := &gatedSource{
		doc:     doc,
		entered: make(chan string, 8),
		release: make(chan struct{}),
	}
	if open {
		close(s.release)
	}
	return s
}

func (s *gatedSource) OpenOrderList(ctx context.Context) (export.Navigator, error) {
	return staticNavigator{doc: s.doc}, nil
}

func (s *gatedSource) FetchOrderDetail(ctx context.Context, id string, isStore bool) order.Order {
	s.entered <- id
	<-s.release
	o := order.New(id, order.TypeOnline)
	o.OrderDate = "Jan 2, 2024"
	o.Status = "Delivered"
	o.Total = "$10.00"
	o.Items = []order.Item{order.NewItem("Great Value Whole Milk", 1, "$10.00", decimal.NewFromInt(10))}
	return o
}

func (s *gatedSource) FetchDetailedItems(ctx context.Context, id string, isStore bool) (*extract.DetailedItems, bool) {
	return nil, false
}

type memorySaver struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (s *memorySaver) Save(filename string, contents []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[filename] = contents
	return "/memory/" + filename, nil
}

type fixture struct {
	ctrl   *Controller
	broker *Broker
	saver  *memorySaver
	source *gatedSource
}

func newFixture(t *testing.T, open bool) fixture {
	t.Helper()
	f := fixture{
		broker: NewBroker(64),
		saver:  &memorySaver{},
		source: newGatedSource(t, open),
	}
	factory := func(onProgress func(export.Progress)) *export.Orchestrator {
		return export.New(f.source, chrono.NewStandardImpl(), &telemetry.Recorder{}, export.Config{
			FilenamePrefix: "walmart",
			Location:       time.UTC,
			OnProgress:     onProgress,
		})
	}
	f.ctrl = NewController(factory, f.broker, f.saver, &telemetry.Recorder{})
	return f
}

func startMessage() Message {
	return Message{
		Type: StartExport,
		Options: &export.Options{
			IncludeItems:    true,
			DateRange:       export.AllDates,
			OrderTypeFilter: export.FilterAll,
		},
	}
}

func TestControllerStartExport(t *testing.T) {
	f := newFixture(t, true)
	events, unsubscribe := f.broker.Subscribe()
	defer unsubscribe()

	res := f.ctrl.Handle(context.Background(), startMessage())
	require.True(t, res.Success, res.Error)
	require.Equal(t, 2, res.OrderCount)
	require.Equal(t, 2, res.ItemCount)
	require.True(t, strings.HasPrefix(res.Filename, "walmart_orders_"))

	csv, ok := f.saver.files[res.Filename]
	require.True(t, ok)
	require.Contains(t, string(csv), "111,\"Jan 2, 2024\",Delivered,Great Value Whole Milk,$10.00,1,")

	latest := f.ctrl.Latest()
	require.NotNil(t, latest)
	require.Equal(t, "/memory/"+res.Filename, latest.Path)
	require.Equal(t, csv, latest.CSV)

	var last Event
	count := len(events)
	require.Greater(t, count, 0)
	for i := 0; i < count; i++ {
		last = <-events
		require.Equal(t, ExportProgress, last.Type)
	}
	require.Equal(t, 100, last.Data.Percent)

	st := f.ctrl.Status()
	require.False(t, st.Running)
	require.Equal(t, "completed", st.State)
	require.Equal(t, &res, st.Last)
}

func TestControllerDefaultsOptions(t *testing.T) {
	f := newFixture(t, true)
	res := f.ctrl.Handle(context.Background(), Message{Type: StartExport})
	require.True(t, res.Success, res.Error)
	require.Equal(t, 2, res.OrderCount)
}

func TestControllerRejectsConcurrentStartAndStops(t *testing.T) {
	f := newFixture(t, false)

	done := make(chan Response, 1)
	go func() {
		done <- f.ctrl.Handle(context.Background(), startMessage())
	}()
	require.Equal(t, "111", <-f.source.entered)

	st := f.ctrl.Status()
	require.True(t, st.Running)
	require.Equal(t, "running", st.State)
	require.NotEmpty(t, st.RunId)

	second := f.ctrl.Handle(context.Background(), startMessage())
	require.False(t, second.Success)
	require.Equal(t, export.ErrAlreadyRunning.Error(), second.Error)

	stop := f.ctrl.Handle(context.Background(), Message{Type: StopExport})
	require.True(t, stop.Success)

	close(f.source.release)
	first := <-done
	require.False(t, first.Success)
	require.Equal(t, export.ErrCancelled.Error(), first.Error)

	// the stop is honored before the second order is fetched
	require.Len(t, f.source.entered, 0)
	require.Empty(t, f.saver.files)
	require.Nil(t, f.ctrl.Latest())
	require.Equal(t, "cancelled", f.ctrl.Status().State)

	// the controller accepts a new run once the previous one is over
	f.source.release = make(chan struct{})
	close(f.source.release)
	again := f.ctrl.Handle(context.Background(), startMessage())
	require.True(t, again.Success, again.Error)
}

func TestControllerStopWhenIdle(t *testing.T) {
	f := newFixture(t, true)
	res := f.ctrl.Handle(context.Background(), Message{Type: StopExport})
	require.True(t, res.Success)
	require.Equal(t, "idle", f.ctrl.Status().State)
}

func TestControllerUnknownMessage(t *testing.T) {
	f := newFixture(t, true)
	res := f.ctrl.Handle(context.Background(), Message{Type: "REFRESH"})
	require.False(t, res.Success)
	require.Contains(t, res.Error, "REFRESH")
}

func TestControllerSaveFailure(t *testing.T) {
	f := newFixture(t, true)
	f.saver.err = errors.New("disk full")

	res := f.ctrl.Handle(context.Background(), startMessage())
	require.False(t, res.Success)
	require.Equal(t, "save csv: disk full", res.Error)
	require.Nil(t, f.ctrl.Latest())
}

func TestBroker(t *testing.T) {
	b := NewBroker(1)
	first, unsubscribeFirst := b.Subscribe()
	_, unsubscribeSecond := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	ev := progressEvent(export.Progress{Percent: 10, Label: "Page 1"})
	require.Equal(t, 2, b.Publish(ev))
	// both buffers are full, the event is dropped instead of blocking
	require.Equal(t, 0, b.Publish(ev))

	require.Equal(t, ev, <-first)
	require.Equal(t, 1, b.Publish(ev))

	unsubscribeFirst()
	unsubscribeFirst()
	unsubscribeSecond()
	require.Equal(t, 0, b.Subscribers())
	require.Equal(t, 0, b.Publish(ev))

	<-first
	_, open := <-first
	require.False(t, open)
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	saver := DirSaver{Dir: dir}

	path, err := saver.Save("../walmart_orders_2024-03-01.csv", []byte("a,b\n"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "walmart_orders_2024-03-01.csv"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a,b\n", string(contents))
}

func postMessage(t *testing.T, server *httptest.Server, body string) (*http.Response, Response) {
	t.Helper()
	res, err := http.Post(server.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var out Response
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res, out
}

func TestHandlerMessages(t *testing.T) {
	f := newFixture(t, true)
	reg := metrics.NewRegistry()
	server := httptest.NewServer(NewHandler(f.ctrl, f.broker, reg.Handler()).Routes())
	defer server.Close()

	latest, err := http.Get(server.URL + "/exports/latest")
	require.NoError(t, err)
	latest.Body.Close()
	require.Equal(t, http.StatusNotFound, latest.StatusCode)

	bad, _ := postMessage(t, server, "{not json")
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)

	httpRes, res := postMessage(t, server, `{"type":"START_EXPORT","options":{"includeItems":false,"dateRange":"all","orderTypeFilter":"online"}}`)
	require.Equal(t, http.StatusOK, httpRes.StatusCode)
	require.True(t, res.Success, res.Error)
	require.Equal(t, 2, res.OrderCount)

	statusRes, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer statusRes.Body.Close()
	var st Status
	require.NoError(t, json.NewDecoder(statusRes.Body).Decode(&st))
	require.Equal(t, "completed", st.State)

	latest, err = http.Get(server.URL + "/exports/latest")
	require.NoError(t, err)
	defer latest.Body.Close()
	require.Equal(t, http.StatusOK, latest.StatusCode)
	require.Contains(t, latest.Header.Get("Content-Disposition"), res.Filename)
	body, err := io.ReadAll(latest.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("Order Number,Order Date,Status,Item Count,")))

	metricsRes, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	metricsRes.Body.Close()
	require.Equal(t, http.StatusOK, metricsRes.StatusCode)
}

func TestHandlerProgressStream(t *testing.T) {
	f := newFixture(t, true)
	server := httptest.NewServer(NewHandler(f.ctrl, f.broker, nil).Routes())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/progress", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return f.broker.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)
	f.broker.Publish(progressEvent(export.Progress{Percent: 42, Label: "Page 1", Detail: "Order 1 of 2"}))

	reader := bufio.NewReader(res.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: EXPORT_PROGRESS\n", eventLine)
	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataLine, "data: "))

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &ev))
	require.Equal(t, ExportProgress, ev.Type)
	require.Equal(t, export.Progress{Percent: 42, Label: "Page 1", Detail: "Order 1 of 2"}, ev.Data)

	cancel()
	require.Eventually(t, func() bool {
		return f.broker.Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
