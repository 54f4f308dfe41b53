// Package worker выполняет построение отчетов в фоновых горутинах
package worker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"perfdash-service/internal/analytics"
	"perfdash-service/internal/models"
)

// Job задача на построение отчета
type Job struct {
	ID       string
	Table    *models.Table
	Fields   []string
	Detector *analytics.Detector
}

// Result результат задачи: отчет или ошибка валидации таблицы
type Result struct {
	JobID   string
	Report  *models.Report
	Err     error
	Elapsed time.Duration
}

// Pool пул воркеров, строящих отчеты
type Pool struct {
	detector *analytics.Detector
	logger   zerolog.Logger

	jobs     chan Job
	results  chan Result
	stopChan chan struct{}
	wg       sync.WaitGroup
	workers  int
	stopOnce sync.Once

	shutdownTimeout time.Duration
}

// DefaultShutdownTimeout время ожидания потребителя результатов при остановке
const DefaultShutdownTimeout = 5 * time.Second

// NewPool создает пул с очередью заданного размера
func NewPool(detector *analytics.Detector, bufferSize int, logger zerolog.Logger) *Pool {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Pool{
		detector: detector,
		logger:   logger,
		jobs:     make(chan Job, bufferSize),
		results:  make(chan Result, bufferSize),
		stopChan: make(chan struct{}),

		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// Start запускает горутины для обработки задач
func (p *Pool) Start(numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	p.workers += numWorkers
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker горутина для обработки задач.
// При остановке дорабатывает задачи, оставшиеся в очереди.
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.deliver(p.run(job))
		case <-p.stopChan:
			p.drain()
			return
		}
	}
}

func (p *Pool) drain() {
	for {
		select {
		case job := <-p.jobs:
			p.deliver(p.run(job))
		default:
			return
		}
	}
}

// deliver ждет, пока потребитель заберет результат.
// После Stop ожидание ограничено shutdownTimeout.
func (p *Pool) deliver(result Result) {
	select {
	case p.results <- result:
		return
	case <-p.stopChan:
	}

	timer := time.NewTimer(p.shutdownTimeout)
	defer timer.Stop()
	select {
	case p.results <- result:
	case <-timer.C:
		p.logger.Error().Str("job_id", result.JobID).Msg("no consumer for report result on shutdown, result lost")
	}
}

// run строит отчет по одной задаче
func (p *Pool) run(job Job) Result {
	detector := job.Detector
	if detector == nil {
		detector = p.detector
	}

	start := time.Now()
	report, err := detector.Report(job.Table, job.Fields...)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("report job failed")
		return Result{JobID: job.ID, Err: err, Elapsed: elapsed}
	}
	// Отчет доступен по идентификатору задачи
	report.ID = job.ID
	return Result{JobID: job.ID, Report: report, Elapsed: elapsed}
}

// Submit ставит задачу в очередь, false если очередь заполнена.
// Пустой ID заменяется сгенерированным.
func (p *Pool) Submit(job Job) (string, bool) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case p.jobs <- job:
		return job.ID, true
	default:
		return job.ID, false
	}
}

// RunSync синхронно строит отчет в вызывающей горутине
func (p *Pool) RunSync(job Job) Result {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return p.run(job)
}

// Results возвращает канал результатов
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Pending количество задач в очереди
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Workers количество запущенных воркеров
func (p *Pool) Workers() int {
	return p.workers
}

// Detector детектор по умолчанию
func (p *Pool) Detector() *analytics.Detector {
	return p.detector
}

// Stop останавливает воркеры и закрывает канал результатов.
// Задачи из очереди дорабатываются, результаты должны быть вычитаны из Results.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()
		close(p.results)
	})
}
