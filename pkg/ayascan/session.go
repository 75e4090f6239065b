package ayascan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// Status messages shown to the user.
const (
	StatusNothingToSave   = "nothing to save"
	StatusAnalysisPaused  = "analysis paused"
	StatusAnalysisResumed = "analysis resumed"
)

// Session is the state a scanning screen works against: the confirmed
// readings (newest first), the live search filter, and a one-line status.
// Confirmations only live in memory until SaveLatest persists the newest one.
type Session struct {
	storage  Storage
	pipeline *Pipeline
	log      Logger
	now      func() time.Time

	mu       sync.Mutex
	results  []Record
	filtered []Record
	query    string
	status   string
}

func NewSession(storage Storage, log Logger) *Session {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Session{
		storage: storage,
		log:     log,
		now:     time.Now,
	}
}

// attach connects the session to the pipeline it toggles.
func (s *Session) attach(p *Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = p
}

// OnStablePair records a confirmation. Repeated identical confirmations are
// recorded each time.
func (s *Session) OnStablePair(letter, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := Record{Letter: letter, Number: number, Timestamp: s.now().UnixMilli()}
	s.results = append([]Record{item}, s.results...)
	s.applyFilterLocked()
	s.status = fmt.Sprintf("recognized: %s - %s", letter, number)
}

// SetQuery updates the live filter.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	s.applyFilterLocked()
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Filtered returns a copy of the readings matching the current query.
func (s *Session) Filtered() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.filtered...)
}

// Latest returns the newest reading, if any.
func (s *Session) Latest() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return Record{}, false
	}
	return s.results[0], true
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SaveLatest persists the newest reading. With nothing to save it only sets
// a status message. Storage failures are reported in the status and returned.
func (s *Session) SaveLatest(ctx context.Context) (Record, bool, error) {
	latest, ok := s.Latest()
	if !ok {
		s.setStatus(StatusNothingToSave)
		return Record{}, false, nil
	}
	if s.storage == nil {
		s.setStatus("save failed: " + ErrStorageUnavailable.Error())
		return Record{}, false, ErrStorageUnavailable
	}

	rec, err := s.storage.Insert(ctx, latest.Letter, latest.Number)
	if err != nil {
		s.log.Errorf("saving %s-%s: %v", latest.Letter, latest.Number, err)
		s.setStatus(fmt.Sprintf("save failed: %v", err))
		return Record{}, false, fmt.Errorf("saving latest result: %w", err)
	}

	s.setStatus(fmt.Sprintf("saved: %s-%s", rec.Letter, rec.Number))
	return rec, true, nil
}

// LoadHistory replaces the in-memory readings with the persisted history.
func (s *Session) LoadHistory(ctx context.Context) error {
	if s.storage == nil {
		s.setStatus("load failed: " + ErrStorageUnavailable.Error())
		return ErrStorageUnavailable
	}

	all, err := s.storage.GetAll(ctx)
	if err != nil {
		s.log.Errorf("loading history: %v", err)
		s.setStatus(fmt.Sprintf("load failed: %v", err))
		return fmt.Errorf("loading history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = all
	s.applyFilterLocked()
	return nil
}

// ToggleAnalyzing pauses or resumes the attached pipeline and returns the
// new state.
func (s *Session) ToggleAnalyzing() bool {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p == nil {
		return false
	}

	on := p.ToggleAnalyzing()
	if on {
		s.setStatus(StatusAnalysisResumed)
	} else {
		s.setStatus(StatusAnalysisPaused)
	}
	return on
}

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = msg
}

func (s *Session) applyFilterLocked() {
	s.filtered = FilterRecords(s.results, s.query)
}

// FilterRecords keeps records whose letter contains q ignoring case or whose
// number contains q. A blank q keeps everything. Order is preserved.
func FilterRecords(records []Record, q string) []Record {
	q = strings.TrimSpace(q)
	if q == "" {
		return append([]Record(nil), records...)
	}
	upper := strings.ToUpper(q)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToUpper(r.Letter), upper) || strings.Contains(r.Number, q) {
			out = append(out, r)
		}
	}
	return out
}
