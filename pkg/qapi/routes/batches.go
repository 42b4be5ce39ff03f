package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qsmr/pkg/qapi/schemas"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/report"
)

// ListBatchesInput defines the input for listing batches
type ListBatchesInput struct {
	Label string `query:"label" doc:"Filter by job label" required:"false"`
	Limit int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of batches"`
}

// ListBatchesOutput is the response for listing batches
type ListBatchesOutput struct {
	Body struct {
		Batches []schemas.BatchSummary `json:"batches" doc:"Batches, newest first"`
	}
}

// GetBatchInput defines the input for getting a batch
type GetBatchInput struct {
	BatchID string `path:"batchId" doc:"Batch ID"`
}

// GetBatchOutput is the response for getting a batch
type GetBatchOutput struct {
	Body schemas.BatchResponse
}

// ListBatchArtifactsInput defines the input for listing batch artifacts
type ListBatchArtifactsInput struct {
	BatchID string `path:"batchId" doc:"Batch ID"`
	Presign bool   `query:"presign" doc:"Include presigned download URLs valid for one hour"`
}

// ListBatchArtifactsOutput is the response for listing batch artifacts
type ListBatchArtifactsOutput struct {
	Body struct {
		Artifacts []schemas.BatchArtifact `json:"artifacts" doc:"Uploaded output files"`
	}
}

// RegisterBatches registers batch report routes
func RegisterBatches(api huma.API, reports report.Store, artifacts qart.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-batches",
		Method:      http.MethodGet,
		Path:        "/api/batches",
		Summary:     "List batches",
		Description: "List stored batch reports, newest first",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, input *ListBatchesInput) (*ListBatchesOutput, error) {
		if reports == nil {
			return nil, huma.Error503ServiceUnavailable("no report store configured")
		}

		list, err := reports.List(ctx, report.Filter{Label: input.Label, Limit: input.Limit})
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to list batches: %v", err))
		}

		resp := &ListBatchesOutput{}
		resp.Body.Batches = make([]schemas.BatchSummary, 0, len(list))
		for _, r := range list {
			resp.Body.Batches = append(resp.Body.Batches, toBatchSummary(r))
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-batch",
		Method:      http.MethodGet,
		Path:        "/api/batches/{batchId}",
		Summary:     "Get batch report",
		Description: "Get a batch report with every invocation",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, input *GetBatchInput) (*GetBatchOutput, error) {
		r, err := getReport(ctx, reports, input.BatchID)
		if err != nil {
			return nil, err
		}
		return &GetBatchOutput{Body: toBatchResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batch-artifacts",
		Method:      http.MethodGet,
		Path:        "/api/batches/{batchId}/artifacts",
		Summary:     "List batch artifacts",
		Description: "List output files uploaded for a batch",
		Tags:        []string{"Batches"},
	}, func(ctx context.Context, input *ListBatchArtifactsInput) (*ListBatchArtifactsOutput, error) {
		if artifacts == nil {
			return nil, huma.Error501NotImplemented("artifact storage not configured")
		}
		r, err := getReport(ctx, reports, input.BatchID)
		if err != nil {
			return nil, err
		}

		prefix := qart.BatchPrefix(r.ID, r.Job.Label)
		objects, err := artifacts.List(ctx, prefix)
		if err != nil {
			return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to list artifacts: %v", err))
		}

		resp := &ListBatchArtifactsOutput{}
		resp.Body.Artifacts = make([]schemas.BatchArtifact, 0, len(objects))
		for _, obj := range objects {
			a := schemas.BatchArtifact{
				Key:         obj.Key,
				Filename:    strings.TrimPrefix(obj.Key, prefix),
				Size:        obj.Size,
				ContentType: obj.ContentType,
			}
			if input.Presign {
				url, err := artifacts.GetPresignedURL(ctx, obj.Key, time.Hour)
				if err != nil {
					return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to get presigned URL: %v", err))
				}
				a.URL = url
			}
			resp.Body.Artifacts = append(resp.Body.Artifacts, a)
		}
		return resp, nil
	})
}

func getReport(ctx context.Context, reports report.Store, id string) (*report.Report, error) {
	if reports == nil {
		return nil, huma.Error503ServiceUnavailable("no report store configured")
	}
	if id == "" {
		return nil, huma.Error400BadRequest("batch ID is required")
	}
	r, err := reports.Get(ctx, id)
	if errors.Is(err, report.ErrNotFound) {
		return nil, huma.Error404NotFound("batch not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError(fmt.Sprintf("failed to load batch: %v", err))
	}
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toBatchSummary(r *report.Report) schemas.BatchSummary {
	s := r.Summary()
	return schemas.BatchSummary{
		ID:         r.ID,
		Label:      r.Job.Label,
		Gene:       r.Job.Gene,
		Backend:    r.Backend,
		Policy:     r.Policy,
		StartedAt:  formatTime(r.StartedAt),
		FinishedAt: formatTime(r.FinishedAt),
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Error:      r.Error,
		OutputDir:  r.OutputDir,
	}
}

func toBatchResponse(r *report.Report) schemas.BatchResponse {
	resp := schemas.BatchResponse{
		BatchSummary: toBatchSummary(r),
		Job: schemas.JobResponse{
			Gene:  r.Job.Gene,
			BFile: r.Job.BFile,
			SNPs:  r.Job.SNPs,
			Probe: r.Job.Probe,
			EQTL:  r.Job.EQTL,
			Label: r.Job.Label,
		},
		Invocations: make([]schemas.InvocationResponse, 0, len(r.Invocations)),
	}
	for _, inv := range r.Invocations {
		resp.Invocations = append(resp.Invocations, schemas.InvocationResponse{
			Seq:        inv.Seq,
			SNP:        inv.SNP,
			Outcome:    inv.Outcome,
			OutPrefix:  inv.OutPrefix,
			Command:    inv.Command,
			Status:     inv.Status,
			ExitCode:   inv.ExitCode,
			Attempts:   inv.Attempts,
			StartedAt:  formatTime(inv.StartedAt),
			DurationMs: inv.Duration.Milliseconds(),
			Error:      inv.Error,
			Stderr:     inv.Stderr,
		})
	}
	return resp
}
