package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/goblimey/go-tools/dailylogger"
	reporter "github.com/goblimey/go-tools/statusreporter"

	"github.com/binnacle/nmeabridge/arbiter"
	"github.com/binnacle/nmeabridge/nmea"
)

// KindStatus is a snapshot of one sensor kind's current arbitration
// winner, for display on the status page.
type KindStatus struct {
	Kind   nmea.Kind
	Source arbiter.Source
	Device string
}

// Reporter implements the go-tools/statusreporter ReportFeedT interface,
// exactly as the teacher's reportfeed.ReportFeed does, but reporting
// bridge state (peer count, per-kind winners, recent sentences) instead
// of RTCM hex dumps.
type Reporter struct {
	mu sync.Mutex

	logger *dailylogger.Writer
	recent *RecentSentences

	peerCount int
	kinds     []KindStatus
	startedAt time.Time
}

var _ reporter.ReportFeedT = (*Reporter)(nil)

// New creates a Reporter holding the (optional) capture-log writer
// logger, which it only enables or disables (see SetLogLevel), and
// backed by recent for the sentence history.
func New(logger *dailylogger.Writer, recent *RecentSentences) *Reporter {
	return &Reporter{logger: logger, recent: recent, startedAt: time.Now()}
}

// SetLogLevel implements reporter.ReportFeedT.
func (r *Reporter) SetLogLevel(level uint8) {
	if r.logger == nil {
		return
	}
	if level == 0 {
		r.logger.DisableLogging()
	} else {
		r.logger.EnableLogging()
	}
}

// SetPeerCount records the current number of connected TCP peers, called
// by the supervisor once per tick.
func (r *Reporter) SetPeerCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peerCount = n
}

// SetKindStatus records the current arbitration winner for kind.
func (r *Reporter) SetKindStatus(kind nmea.Kind, source arbiter.Source, device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.kinds {
		if r.kinds[i].Kind == kind {
			r.kinds[i].Source = source
			r.kinds[i].Device = device
			return
		}
	}
	r.kinds = append(r.kinds, KindStatus{Kind: kind, Source: source, Device: device})
}

// Status implements reporter.ReportFeedT, rendering a plain-text report
// the same way reportfeed.ReportFeed.Status does (fmt.Sprintf into a
// fixed template, not html/template, since this is operational plumbing
// rather than user-facing markup).
func (r *Reporter) Status() []byte {
	r.mu.Lock()
	peerCount := r.peerCount
	kinds := make([]KindStatus, len(r.kinds))
	copy(kinds, r.kinds)
	uptime := time.Since(r.startedAt)
	r.mu.Unlock()

	body := fmt.Sprintf("nmeabridge status\nuptime: %s\nconnected peers: %d\n\nchannels:\n",
		uptime.Round(time.Second), peerCount)
	for _, k := range kinds {
		body += fmt.Sprintf("  %-7s source=%-7s device=%s\n", k.Kind, k.Source, k.Device)
	}

	body += "\nrecent sentences:\n"
	if r.recent != nil {
		for _, e := range r.recent.Snapshot() {
			body += fmt.Sprintf("  [%s] %s", e.Tag, e.Line)
		}
	}

	return []byte(body)
}

// SetLogger implements reporter.ReportFeedT.
func (r *Reporter) SetLogger(logger *dailylogger.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// StartService launches the HTTP status endpoint on host:port using the
// teacher's own statusreporter package, matching
// apps/proxy/tcpprox.go's makeReporter/StartService pairing.
func StartService(feed reporter.ReportFeedT, host string, port int) {
	svc := reporter.MakeReporter(feed, host, port)
	svc.SetUseTextTemplates(true)
	go svc.StartService()
}
