package scheduler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"

	"github.com/stagelink/gig-backend/internal/logger"
	"github.com/stagelink/gig-backend/internal/pkg/apperror"
)

// Job — периодическая задача жизненного цикла.
type Job interface {
	Name() string
	Definition() gocron.JobDefinition
	Run(ctx context.Context)
}

// Manager регистрирует и запускает периодические задачи. Каждая задача
// регистрируется в singleton-режиме: пока выполняется прошлый запуск,
// новый не стартует.
type Manager struct {
	scheduler gocron.Scheduler
	jobs      map[string]Job
}

// NewManager создаёт менеджер задач.
func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create %w", err)
	}
	return &Manager{scheduler: s, jobs: make(map[string]Job)}, nil
}

// Register добавляет задачу в расписание.
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.Definition(),
		gocron.NewTask(func() {
			job.Run(context.Background())
		}),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register %s %w", job.Name(), err)
	}
	m.jobs[job.Name()] = job
	return nil
}

// Start запускает расписание.
func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Log.WithField("jobs", len(m.jobs)).Info("scheduler: задачи запущены")
}

// Stop останавливает расписание, дожидаясь выполняющихся задач.
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Log.WithError(err).Error("scheduler: остановка не удалась")
	}
}

// RunByName выполняет задачу вне расписания. Админский рычаг для
// немедленного прогона после инцидента.
func (m *Manager) RunByName(ctx context.Context, name string) error {
	job, ok := m.jobs[name]
	if !ok {
		return apperror.New(apperror.ErrCodeNotFound, "задача с таким именем не зарегистрирована")
	}
	job.Run(ctx)
	return nil
}

// JobNames возвращает имена зарегистрированных задач.
func (m *Manager) JobNames() []string {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	return names
}
