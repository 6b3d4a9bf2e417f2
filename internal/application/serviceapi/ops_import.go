package serviceapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/workflow-engine/internal/application/importer"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/models"
)

// ImportWorkflowParams carries a YAML workflow document to import.
type ImportWorkflowParams struct {
	YAML      []byte
	CreatedBy *uuid.UUID
}

// ImportWorkflowResult reports what an import created.
type ImportWorkflowResult struct {
	Workflow   *models.Workflow
	ScheduleID *uuid.UUID
	NodesCount int
	EdgesCount int
}

// ImportWorkflow parses a YAML workflow document, persists it as a new
// definition (always a fresh row, like every definition write), and creates
// its schedule when the document declares one.
func (o *Operations) ImportWorkflow(ctx context.Context, params ImportWorkflowParams) (*ImportWorkflowResult, error) {
	data, err := importer.ParseYAMLContent(params.YAML)
	if err != nil {
		return nil, NewValidationError("EMPTY_YAML", err.Error())
	}

	imp := importer.NewYAMLImporter(o.ExecutorManager)
	result, err := imp.ImportFromYAML(data)
	if err != nil {
		return nil, NewValidationError("YAML_IMPORT_FAILED", err.Error())
	}

	workflowModel := &storagemodels.WorkflowModel{
		ID:          uuid.New(),
		Name:        result.Workflow.Name,
		Description: result.Workflow.Description,
		Status:      string(result.Workflow.Status),
		Version:     result.Workflow.Version,
		Variables:   storagemodels.JSONBMap(result.Workflow.Variables),
		Metadata:    storagemodels.JSONBMap(result.Workflow.Metadata),
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	workflowModel.Nodes = make([]*storagemodels.NodeModel, len(result.Workflow.Nodes))
	for i, node := range result.Workflow.Nodes {
		workflowModel.Nodes[i] = &storagemodels.NodeModel{
			NodeID:     node.ID,
			WorkflowID: workflowModel.ID,
			Name:       node.Name,
			Type:       node.Type,
			Config:     storagemodels.JSONBMap(node.Config),
		}
		if node.Position != nil {
			workflowModel.Nodes[i].Position = storagemodels.JSONBMap{"x": node.Position.X, "y": node.Position.Y}
		}
	}

	workflowModel.Edges = make([]*storagemodels.EdgeModel, len(result.Workflow.Edges))
	for i, edge := range result.Workflow.Edges {
		em := &storagemodels.EdgeModel{
			EdgeID:       edge.ID,
			WorkflowID:   workflowModel.ID,
			FromNodeID:   edge.From,
			ToNodeID:     edge.To,
			SourceHandle: edge.SourceHandle,
		}
		if edge.Condition != "" {
			em.Condition = storagemodels.JSONBMap{"expression": edge.Condition}
		}
		workflowModel.Edges[i] = em
	}

	if err := o.WorkflowRepo.Create(ctx, workflowModel); err != nil {
		o.Logger.Error("Failed to persist imported workflow", "error", err, "workflow_name", workflowModel.Name)
		return nil, err
	}

	out := &ImportWorkflowResult{
		Workflow:   result.Workflow,
		NodesCount: result.NodesCount,
		EdgesCount: result.EdgesCount,
	}
	out.Workflow.ID = workflowModel.ID.String()

	if result.Schedule != nil {
		sch := &storagemodels.ScheduleModel{
			ID:             uuid.New(),
			WorkflowID:     workflowModel.ID,
			CronExpression: result.Schedule.CronExpression,
			Timezone:       result.Schedule.Timezone,
			Enabled:        result.Schedule.Enabled,
			MaxInstances:   result.Schedule.MaxInstances,
			MutexKey:       result.Schedule.MutexKey,
			Input:          storagemodels.JSONBMap(result.Schedule.Input),
		}
		if err := o.ScheduleRepo.Create(ctx, sch); err != nil {
			o.Logger.Error("Failed to persist imported schedule", "error", err, "workflow_id", workflowModel.ID)
			return nil, err
		}
		if o.Scheduler != nil {
			if err := o.Scheduler.AddSchedule(sch); err != nil {
				o.Logger.Error("Failed to register imported schedule with cron runner", "error", err, "schedule_id", sch.ID)
			}
		}
		out.ScheduleID = &sch.ID
	}

	return out, nil
}

// ExportWorkflowParams identifies the workflow to export.
type ExportWorkflowParams struct {
	WorkflowID uuid.UUID
}

// ExportWorkflow renders a stored definition (and its first schedule, if
// any) as a YAML document.
func (o *Operations) ExportWorkflow(ctx context.Context, params ExportWorkflowParams) ([]byte, error) {
	workflow, err := o.GetWorkflow(ctx, GetWorkflowParams{WorkflowID: params.WorkflowID})
	if err != nil {
		return nil, err
	}

	var spec *importer.ScheduleSpec
	schedules, err := o.ScheduleRepo.FindByWorkflowID(ctx, params.WorkflowID)
	if err == nil && len(schedules) > 0 {
		sch := schedules[0]
		spec = &importer.ScheduleSpec{
			CronExpression: sch.CronExpression,
			Timezone:       sch.Timezone,
			Enabled:        sch.Enabled,
			MaxInstances:   sch.MaxInstances,
			MutexKey:       sch.MutexKey,
			Input:          map[string]any(sch.Input),
		}
	}

	imp := importer.NewYAMLImporter(o.ExecutorManager)
	data, err := imp.ExportToYAML(workflow, spec)
	if err != nil {
		o.Logger.Error("Failed to export workflow to YAML", "error", err, "workflow_id", params.WorkflowID)
		return nil, err
	}
	return data, nil
}
