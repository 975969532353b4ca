package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"milestonez/contracts/mq"
	"milestonez/internal/codec"
	"milestonez/internal/llm"
	"milestonez/internal/model"
	"milestonez/internal/planner"
	"milestonez/internal/repository"
	"milestonez/internal/similarity"
	"milestonez/pkg/logger"
	"milestonez/pkg/metrics"
	"milestonez/pkg/trace"
)

const (
	MinWeeks     = 3
	MaxWeeks     = 16
	DefaultWeeks = 6

	// NotEvaluated is the similarity reported when no evaluation ran.
	NotEvaluated = -1.0

	dedupScope = "generate"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type Options struct {
	DefaultModel   string
	EvaluateAlways bool
}

type GenerateRequest struct {
	UserID             string
	ProjectID          string // 为空时使用项目描述作为 key
	ProjectDescription string
	ModifyingPrompt    string
	TotalWeeks         int // 0 表示默认值
	Evaluate           bool
	Model              string
	IdempotencyKey     string
}

type GenerateResult struct {
	AverageCosineSimilarity float64          `json:"average_cosine_similarity"`
	GenerationTime          float64          `json:"generation_time"`
	GeneratedMilestones     []model.TableRow `json:"generated_milestones"`
	RawMilestones           string           `json:"raw_milestones"`
	Callbacks               string           `json:"callbacks"`
	Usage                   llm.Usage        `json:"usage"`
	EvaluationError         string           `json:"evaluation_error,omitempty"`
	HistoryID               string           `json:"history_id"`
	Mode                    string           `json:"mode"`
}

type UpdateRequest struct {
	UserID    string
	ProjectID string
	Milestone model.Milestone
}

type MilestoneService struct {
	provider  llm.Provider
	store     repository.HistoryStore
	publisher EventPublisher
	deduper   Deduper
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewMilestoneService wires the service. publisher and deduper may be nil.
func NewMilestoneService(provider llm.Provider, store repository.HistoryStore, publisher EventPublisher, deduper Deduper, opts Options, logger *zap.Logger) *MilestoneService {
	if opts.DefaultModel == "" {
		opts.DefaultModel = "GPT 4o"
	}
	return &MilestoneService{
		provider:  provider,
		store:     store,
		publisher: publisher,
		deduper:   deduper,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *MilestoneService) normalize(req *GenerateRequest) (string, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ProjectDescription = strings.TrimSpace(req.ProjectDescription)
	req.ModifyingPrompt = strings.TrimSpace(req.ModifyingPrompt)
	if req.ProjectID == "" {
		req.ProjectID = req.ProjectDescription
	}
	if req.TotalWeeks == 0 {
		req.TotalWeeks = DefaultWeeks
	}
	if req.Model == "" {
		req.Model = s.opts.DefaultModel
	}

	switch {
	case req.UserID == "":
		return "", fmt.Errorf("%w: user_id is required", ErrValidation)
	case req.ProjectDescription == "":
		return "", fmt.Errorf("%w: project_description is required", ErrValidation)
	case req.TotalWeeks < MinWeeks || req.TotalWeeks > MaxWeeks:
		return "", fmt.Errorf("%w: total_weeks must be between %d and %d, got %d", ErrValidation, MinWeeks, MaxWeeks, req.TotalWeeks)
	}

	name, err := s.provider.Resolve(req.Model)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return name, nil
}

// GenerateMilestones summarizes the description, generates (or regenerates
// from history when a modifying prompt is given) a plan, persists its text
// and optionally scores it.
func (s *MilestoneService) GenerateMilestones(ctx context.Context, req GenerateRequest) (result *GenerateResult, err error) {
	start := s.now()
	log := logger.WithTrace(ctx, s.logger)
	mode := "generate"
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.IncrementMilestoneGeneration(mode, status)
	}()

	modelName, err := s.normalize(&req)
	if err != nil {
		return nil, stageErr(StageValidate, err)
	}

	if req.IdempotencyKey != "" && s.deduper != nil {
		if !s.deduper.AcquireOnce(ctx, dedupScope, req.IdempotencyKey) {
			log.Warn("Duplicate generate request", zap.String("idempotency_key", req.IdempotencyKey))
			return nil, stageErr(StageValidate, ErrDuplicateRequest)
		}
		defer func() {
			// 失败时释放，允许客户端重试
			if err != nil {
				s.deduper.Release(context.WithoutCancel(ctx), dedupScope, req.IdempotencyKey)
			}
		}()
	}

	log.Info("Generating milestones",
		zap.String("user_id", req.UserID),
		zap.String("model", req.Model),
		zap.Int("total_weeks", req.TotalWeeks),
		zap.Bool("modifying", req.ModifyingPrompt != ""),
	)

	summary, sumUsage, err := s.provider.Complete(ctx, modelName, planner.SummaryPrompt(req.ProjectDescription))
	if err != nil {
		log.Error("Failed to summarize project description", zap.Error(err))
		return nil, stageErr(StageSummarize, err)
	}

	p := planner.New(s.provider, similarity.NewScorer(s.provider), modelName, planner.Brief{
		Detailed:   req.ProjectDescription,
		Summarized: summary,
		TotalWeeks: req.TotalWeeks,
	})

	if req.ModifyingPrompt == "" {
		_, err = p.Generate(ctx)
	} else {
		prev, lerr := s.store.Get(ctx, req.UserID, req.ProjectID)
		switch {
		case errors.Is(lerr, repository.ErrHistoryNotFound):
			log.Info("No history to modify, generating from scratch",
				zap.String("history_id", model.HistoryID(req.UserID, req.ProjectID)))
			_, err = p.Generate(ctx)
		case lerr != nil:
			return nil, stageErr(StageLoad, lerr)
		default:
			mode = "regenerate"
			_, err = p.Regenerate(ctx, prev.History, req.ModifyingPrompt)
		}
	}
	if err != nil {
		log.Error("Failed to generate milestones", zap.String("mode", mode), zap.Error(err))
		return nil, stageErr(StageGenerate, err)
	}

	text, err := p.Textify()
	if err != nil {
		return nil, stageErr(StageSerialize, err)
	}
	rows, err := p.ToTable(req.TotalWeeks)
	if err != nil {
		return nil, stageErr(StageSerialize, err)
	}

	rec := model.NewHistoryRecord(text, req.UserID, req.ProjectID)
	if err = s.store.Put(ctx, rec); err != nil {
		return nil, stageErr(StagePersist, err)
	}

	usage := sumUsage
	usage.Add(p.Usage())
	result = &GenerateResult{
		AverageCosineSimilarity: NotEvaluated,
		GeneratedMilestones:     rows,
		RawMilestones:           text,
		HistoryID:               rec.ID,
		Mode:                    mode,
	}

	if req.Evaluate || s.opts.EvaluateAlways {
		score, eerr := p.EvaluateFidelity(ctx, true)
		if eerr != nil {
			log.Warn("Fidelity evaluation failed", zap.Error(eerr))
			result.EvaluationError = eerr.Error()
		} else {
			result.AverageCosineSimilarity = score
			metrics.ObserveFidelity(score)
		}
	}

	result.Usage = usage
	result.Callbacks = usage.String()
	result.GenerationTime = math.Round(s.now().Sub(start).Seconds()*100) / 100

	s.publish(ctx, mq.RoutingKeyPlanGenerated, mq.PlanGeneratedPayload{
		HistoryID:      rec.ID,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		Mode:           mode,
		Model:          req.Model,
		MilestoneCount: len(p.Plan()),
		FidelityScore:  result.AverageCosineSimilarity,
		TraceID:        trace.FromContext(ctx),
		CreatedAt:      s.now(),
	})

	log.Info("Milestones generated",
		zap.String("history_id", rec.ID),
		zap.String("mode", mode),
		zap.Int("rows", len(rows)),
		zap.Float64("generation_time", result.GenerationTime),
	)
	return result, nil
}

// UpdateMilestone patches one milestone of the stored plan in place.
func (s *MilestoneService) UpdateMilestone(ctx context.Context, req UpdateRequest) (*model.HistoryRecord, error) {
	log := logger.WithTrace(ctx, s.logger)

	if req.UserID == "" || req.ProjectID == "" {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: user_id and project_id are required", ErrValidation))
	}
	if req.Milestone.Time < 1 {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: time must be at least one week", ErrValidation))
	}

	existing, err := s.store.Get(ctx, req.UserID, req.ProjectID)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}

	patched, err := codec.PatchOne(existing.History, req.Milestone)
	if err != nil {
		log.Warn("Failed to patch milestone",
			zap.String("history_id", existing.ID),
			zap.Int("index", req.Milestone.Index),
			zap.Error(err),
		)
		metrics.IncrementMilestoneGeneration("patch", "error")
		return nil, stageErr(StageSerialize, err)
	}

	rec := model.NewHistoryRecord(patched, req.UserID, req.ProjectID)
	if err := s.store.Put(ctx, rec); err != nil {
		metrics.IncrementMilestoneGeneration("patch", "error")
		return nil, stageErr(StagePersist, err)
	}
	metrics.IncrementMilestoneGeneration("patch", "success")

	s.publish(ctx, mq.RoutingKeyMilestoneUpdated, mq.MilestoneUpdatedPayload{
		HistoryID:      rec.ID,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		MilestoneIndex: req.Milestone.Index,
		TraceID:        trace.FromContext(ctx),
		UpdatedAt:      s.now(),
	})

	log.Info("Milestone updated", zap.String("history_id", rec.ID), zap.Int("index", req.Milestone.Index))
	return &rec, nil
}

func (s *MilestoneService) GetHistory(ctx context.Context, userID, projectID string) (*model.HistoryRecord, error) {
	rec, err := s.store.Get(ctx, userID, projectID)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	return rec, nil
}

func (s *MilestoneService) ListHistories(ctx context.Context) ([]model.HistoryRecord, error) {
	recs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	return recs, nil
}

// Ready reports whether the history store is reachable.
func (s *MilestoneService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *MilestoneService) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
