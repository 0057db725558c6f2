package chunk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgpstream-engine/bgpstream/broker"
	"github.com/bgpstream-engine/bgpstream/element"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

func TestWindows_PartitionsAndTruncatesLast(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	end := time.Unix(0, 0).UTC().Add(90 * time.Minute)
	ws := Windows(start, end, time.Hour)
	require.Len(t, ws, 2)
	require.Equal(t, start, ws[0].Start)
	require.Equal(t, start.Add(time.Hour), ws[0].End)
	require.Equal(t, ws[0].End, ws[1].Start)
	require.Equal(t, end, ws[1].End)
}

// fakeSeq is a canned parser.Sequence used by fakeDriver.
type fakeSeq struct {
	elems []*element.BGPElement
	pos   int
}

func (s *fakeSeq) Next() (*element.BGPElement, bool, error) {
	if s.pos >= len(s.elems) {
		return nil, false, nil
	}
	e := s.elems[s.pos]
	s.pos++
	return e, true, nil
}
func (s *fakeSeq) Close() error { return nil }

// fakeDriver returns elements keyed by the downloaded file's basename,
// so the test can control exactly what each broker-listed file yields
// without needing a real MRT payload.
type fakeDriver struct {
	byBasename map[string][]*element.BGPElement
}

func (d *fakeDriver) Backend() parser.Backend { return parser.BackendPybgpkit }
func (d *fakeDriver) Open(ctx context.Context, path string, hints parser.Hints) (parser.Sequence, error) {
	return &fakeSeq{elems: d.byBasename[filepath.Base(path)]}, nil
}

func mkElem(sec int64) *element.BGPElement {
	return &element.BGPElement{
		Type:      element.TypeAnnounce,
		Collector: "rrc00",
		Time:      time.Unix(sec, 0).UTC(),
		Fields:    element.Fields{Prefix: "10.0.0.0/8"},
	}
}

func TestScheduler_DrainsChunksInWindowOrder(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mrt-bytes"))
	}))
	defer fileSrv.Close()

	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tsStart := r.URL.Query().Get("ts_start")
		var fname string
		switch tsStart {
		case "0":
			fname = "chunk0.mrt"
		default:
			fname = "chunk1.mrt"
		}
		w.Write([]byte(`{"data":{"files":[{"url":"` + fileSrv.URL + "/" + fname + `","collector":"rrc00","data_type":"updates","ts_start":0,"rough_size":9}]}}`))
	}))
	defer brokerSrv.Close()

	driver := &fakeDriver{byBasename: map[string][]*element.BGPElement{
		"chunk0.mrt": {mkElem(10), mkElem(20)},
		"chunk1.mrt": {mkElem(70), mkElem(80)},
	}}

	bk := broker.New(broker.Options{BaseURL: brokerSrv.URL})
	cfg := Config{
		Collectors:             []string{"rrc00"},
		DataTypes:              []string{"updates"},
		MaxConcurrentDownloads: 4,
	}
	start := time.Unix(0, 0).UTC()
	end := time.Unix(100, 0).UTC()
	windows := Windows(start, end, 60*time.Second)
	require.Len(t, windows, 2)

	diag := stream.NewDiagnostics()
	sched, err := New(context.Background(), cfg, bk, driver, diag, windows)
	require.NoError(t, err)
	defer sched.Close()

	var got []int64
	for {
		e, ok, err := sched.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Time.Unix())
	}
	require.Equal(t, []int64{10, 20, 70, 80}, got)
}

func TestScheduler_AllFilesFailedEscalates(t *testing.T) {
	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"files":[{"url":"http://127.0.0.1:1/nope.mrt","collector":"rrc00","data_type":"updates","ts_start":0}]}}`))
	}))
	defer brokerSrv.Close()

	driver := &fakeDriver{byBasename: map[string][]*element.BGPElement{}}
	bk := broker.New(broker.Options{BaseURL: brokerSrv.URL})
	cfg := Config{
		Collectors:             []string{"rrc00"},
		DataTypes:              []string{"updates"},
		MaxConcurrentDownloads: 2,
		Retry:                  retry.Policy{Base: time.Millisecond, Factor: 2, Retries: 1},
	}
	windows := Windows(time.Unix(0, 0).UTC(), time.Unix(60, 0).UTC(), time.Minute)

	diag := stream.NewDiagnostics()
	sched, err := New(context.Background(), cfg, bk, driver, diag, windows)
	require.NoError(t, err)
	defer sched.Close()

	_, _, err = sched.Next()
	require.Error(t, err)
}
