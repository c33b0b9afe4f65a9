package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/repository"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type TaskService struct {
	queries *repository.Queries
	cache   *TaskCache
}

func NewTaskService(queries *repository.Queries, cache *TaskCache) *TaskService {
	return &TaskService{queries: queries, cache: cache}
}

func (s *TaskService) ListActive(ctx context.Context) ([]domain.Task, error) {
	if tasks := s.cache.Get(); tasks != nil {
		return tasks, nil
	}

	tasks, err := s.queries.ListActiveTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	s.cache.Set(tasks)
	return tasks, nil
}

// Available returns active tasks the user has not completed yet.
func (s *TaskService) Available(ctx context.Context, userID int64) ([]domain.Task, error) {
	tasks, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.queries.CompletedTaskIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	available := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !done[t.ID] {
			available = append(available, t)
		}
	}
	return available, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (domain.Task, error) {
	t, err := s.queries.GetTaskByID(ctx, id)
	if err != nil {
		if repository.IsNoRows(err) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	if !t.Active {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return t, nil
}

// Save validates t and inserts it, or refreshes the task with the same media
// reference.
func (s *TaskService) Save(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}

	saved, err := s.queries.UpsertTask(ctx, repository.UpsertTaskParams{
		Title:           t.Title,
		ChannelLabel:    t.ChannelLabel,
		MediaReference:  t.MediaReference,
		RequiredSeconds: t.RequiredSeconds,
		RewardAmount:    t.RewardAmount,
	})
	if err != nil {
		return domain.Task{}, fmt.Errorf("save task: %w", err)
	}
	s.cache.Invalidate()
	return saved, nil
}

func (s *TaskService) Deactivate(ctx context.Context, id int64) error {
	n, err := s.queries.DeactivateTask(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate task: %w", err)
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	s.cache.Invalidate()
	return nil
}

// SeedFromFile upserts every task listed in a YAML catalog file.
func (s *TaskService) SeedFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open task catalog: %w", err)
	}
	defer f.Close()

	tasks, err := LoadTaskCatalog(f)
	if err != nil {
		return 0, err
	}

	for _, t := range tasks {
		if _, err := s.Save(ctx, t); err != nil {
			return 0, fmt.Errorf("seed task %q: %w", t.MediaReference, err)
		}
	}
	slog.Info("task catalog seeded", "path", path, "count", len(tasks))
	return len(tasks), nil
}

type taskCatalog struct {
	Tasks []struct {
		Title   string `yaml:"title"`
		Channel string `yaml:"channel"`
		VideoID string `yaml:"video_id"`
		Seconds int    `yaml:"seconds"`
		Reward  string `yaml:"reward"`
	} `yaml:"tasks"`
}

// LoadTaskCatalog parses and validates a YAML task catalog.
func LoadTaskCatalog(r io.Reader) ([]domain.Task, error) {
	var catalog taskCatalog
	if err := yaml.NewDecoder(r).Decode(&catalog); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse task catalog: %w", err)
	}

	tasks := make([]domain.Task, 0, len(catalog.Tasks))
	for i, entry := range catalog.Tasks {
		reward, err := decimal.NewFromString(strings.TrimSpace(entry.Reward))
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, &domain.ValidationError{Field: "reward_amount", Message: fmt.Sprintf("%q is not a number", entry.Reward)})
		}

		t := domain.Task{
			Title:           strings.TrimSpace(entry.Title),
			ChannelLabel:    strings.TrimSpace(entry.Channel),
			MediaReference:  strings.TrimSpace(entry.VideoID),
			RequiredSeconds: entry.Seconds,
			RewardAmount:    reward,
			Active:          true,
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
