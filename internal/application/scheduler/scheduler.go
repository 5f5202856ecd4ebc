package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal"
)

// ErrUnknownJob 表示找不到指定名稱的工作。
var ErrUnknownJob = errors.New("unknown job")

const maxHistory = 50

// JobFunc 執行一次工作並回傳摘要。
type JobFunc func(ctx context.Context) (string, error)

// Job 是一個具名的排程工作。
type Job struct {
	Name    string
	Trigger Trigger
	Run     JobFunc
}

// Run 是一次執行紀錄。
type Run struct {
	Job         string    `json:"job"`
	TriggeredBy string    `json:"triggered_by"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	OK          bool      `json:"ok"`
	Summary     string    `json:"summary,omitempty"`
	Err         string    `json:"error,omitempty"`
}

// JobInfo 描述工作與下一次執行時間。
type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	LastRun  *Run       `json:"last_run,omitempty"`
}

// Observer 接收每次執行的結果，例如 Prometheus 指標。
type Observer interface {
	ObserveRun(job string, duration time.Duration, err error)
}

// Scheduler 以各自獨立的觸發器驅動工作；工作之間不互相協調。
type Scheduler struct {
	jobs     []Job
	byName   map[string]Job
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	history []Run
	next    map[string]time.Time
	started bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// New 建立排程器；observer 可為 nil。
func New(observer Observer, jobs ...Job) *Scheduler {
	s := &Scheduler{
		byName:   make(map[string]Job, len(jobs)),
		observer: observer,
		now:      time.Now,
		next:     make(map[string]time.Time, len(jobs)),
		stopChan: make(chan struct{}),
		log:      log.With().Str("component", "scheduler").Logger(),
	}
	for _, j := range jobs {
		s.jobs = append(s.jobs, j)
		s.byName[j.Name] = j
	}
	return s
}

// Start 為每個工作啟動一個迴圈；重複呼叫無效。
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(j)
	}
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop 停止所有迴圈並等待執行中的工作自然結束；停止後不可再啟動。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()
	for {
		now := s.now()
		next := j.Trigger.Next(now)
		s.mu.Lock()
		s.next[j.Name] = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			// 排程執行不可中途取消，關閉時等待其自然完成。
			s.execute(context.Background(), j, "scheduler")
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// RunNow 立即執行指定工作並回傳紀錄。
func (s *Scheduler) RunNow(ctx context.Context, name, triggeredBy string) (Run, error) {
	j, ok := s.byName[name]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j, triggeredBy), nil
}

func (s *Scheduler) execute(ctx context.Context, j Job, triggeredBy string) Run {
	run := Run{Job: j.Name, TriggeredBy: triggeredBy, Start: s.now()}
	s.log.Info().Str("job", j.Name).Str("triggered_by", triggeredBy).Msg("job started")

	summary, err := s.safeRun(ctx, j)
	run.End = s.now()
	run.Summary = summary
	run.OK = err == nil
	if err != nil {
		run.Err = err.Error()
		s.log.Error().Err(err).Str("job", j.Name).Dur("duration", run.End.Sub(run.Start)).Msg("job failed")
	} else {
		s.log.Info().Str("job", j.Name).Str("summary", summary).Dur("duration", run.End.Sub(run.Start)).Msg("job completed")
	}
	if !internal.IsNil(s.observer) {
		s.observer.ObserveRun(j.Name, run.End.Sub(run.Start), err)
	}
	s.record(run)
	return run
}

func (s *Scheduler) safeRun(ctx context.Context, j Job) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
	}()
	return j.Run(ctx)
}

func (s *Scheduler) record(r Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// History 回傳最近的執行紀錄，新到舊。
func (s *Scheduler) History(limit int) []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Run, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Jobs 回傳工作清單與下一次執行時間，依名稱排序。
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := make(map[string]Run, len(s.jobs))
	for _, r := range s.history {
		last[r.Job] = r
	}
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{Name: j.Name, Schedule: j.Trigger.String()}
		if next, ok := s.next[j.Name]; ok {
			next := next
			info.NextRun = &next
		}
		if r, ok := last[j.Name]; ok {
			r := r
			info.LastRun = &r
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
