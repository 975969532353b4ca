package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"milestonez/internal/model"
	"milestonez/internal/service"
)

// ─── GenerateTool ───────────────────────────────────────────────────────────

type GenerateTool struct {
	svc *service.MilestoneService
}

func NewGenerateTool(svc *service.MilestoneService) *GenerateTool {
	return &GenerateTool{svc: svc}
}

func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_milestones",
		mcp.WithDescription(
			"Generate a milestone plan for a project description, or modify the stored plan when modifying_prompt is set.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User the plan belongs to"),
		),
		mcp.WithString("project_description",
			mcp.Required(),
			mcp.Description("Detailed description of the project"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project key; defaults to the project description"),
		),
		mcp.WithString("modifying_prompt",
			mcp.Description("Instruction for changing the previously stored plan"),
		),
		mcp.WithNumber("total_weeks",
			mcp.Description(fmt.Sprintf("Total number of weeks, %d to %d (default %d)", service.MinWeeks, service.MaxWeeks, service.DefaultWeeks)),
		),
		mcp.WithBoolean("evaluate",
			mcp.Description("Score the plan against the summarized description"),
		),
		mcp.WithString("model",
			mcp.Description("Model alias, e.g. \"GPT 4o\""),
		),
	)
}

func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	desc := strings.TrimSpace(req.GetString("project_description", ""))
	if userID == "" || desc == "" {
		return mcp.NewToolResultError("'user_id' and 'project_description' are required"), nil
	}

	res, err := t.svc.GenerateMilestones(ctx, service.GenerateRequest{
		UserID:             userID,
		ProjectID:          req.GetString("project_id", ""),
		ProjectDescription: desc,
		ModifyingPrompt:    req.GetString("modifying_prompt", ""),
		TotalWeeks:         intArg(req, "total_weeks", 0),
		Evaluate:           req.GetBool("evaluate", false),
		Model:              req.GetString("model", ""),
	})
	if err != nil {
		return errorResult("generate milestones", err), nil
	}
	return jsonResult(res)
}

// ─── UpdateTool ─────────────────────────────────────────────────────────────

type UpdateTool struct {
	svc *service.MilestoneService
}

func NewUpdateTool(svc *service.MilestoneService) *UpdateTool {
	return &UpdateTool{svc: svc}
}

func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("update_milestone",
		mcp.WithDescription("Replace one milestone of a stored plan, matched by index."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User the plan belongs to")),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project key of the plan")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the milestone to replace")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Weeks for this milestone")),
		mcp.WithArray("roles", mcp.WithStringItems(), mcp.Description("Team roles")),
		mcp.WithArray("deliverables", mcp.WithStringItems(), mcp.Description("Deliverables")),
	)
}

func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	projectID := req.GetString("project_id", "")
	if userID == "" || projectID == "" {
		return mcp.NewToolResultError("'user_id' and 'project_id' are required"), nil
	}

	rec, err := t.svc.UpdateMilestone(ctx, service.UpdateRequest{
		UserID:    userID,
		ProjectID: projectID,
		Milestone: model.Milestone{
			Index:        intArg(req, "index", 0),
			Title:        req.GetString("title", ""),
			Description:  req.GetString("description", ""),
			Time:         intArg(req, "time", 0),
			Roles:        stringsArg(req, "roles"),
			Deliverables: stringsArg(req, "deliverables"),
		},
	})
	if err != nil {
		return errorResult("update milestone", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Milestone %d of %s updated\n\n%s", intArg(req, "index", 0), rec.ID, rec.History)), nil
}

// ─── GetHistoryTool ─────────────────────────────────────────────────────────

type GetHistoryTool struct {
	svc *service.MilestoneService
}

func NewGetHistoryTool(svc *service.MilestoneService) *GetHistoryTool {
	return &GetHistoryTool{svc: svc}
}

func (t *GetHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_history",
		mcp.WithDescription("Return the stored plan text for one user and project."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project key")),
	)
}

func (t *GetHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := t.svc.GetHistory(ctx, req.GetString("user_id", ""), req.GetString("project_id", ""))
	if err != nil {
		return errorResult("get history", err), nil
	}
	return mcp.NewToolResultText(rec.History), nil
}

// ─── ListHistoriesTool ──────────────────────────────────────────────────────

type ListHistoriesTool struct {
	svc *service.MilestoneService
}

func NewListHistoriesTool(svc *service.MilestoneService) *ListHistoriesTool {
	return &ListHistoriesTool{svc: svc}
}

func (t *ListHistoriesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_histories",
		mcp.WithDescription("List every stored plan."),
	)
}

func (t *ListHistoriesTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := t.svc.ListHistories(ctx)
	if err != nil {
		return errorResult("list histories", err), nil
	}
	return jsonResult(recs)
}
