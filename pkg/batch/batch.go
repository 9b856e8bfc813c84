// Package batch starts the crawler and the ETL batch job that process promoted files.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/datacatalog"
	"github.com/oracle/oci-go-sdk/v65/dataflow"
)

// Launcher starts external processing.
type Launcher interface {
	// StartCrawler refreshes the metadata of the named crawler.
	StartCrawler(ctx context.Context, crawler string) error
	// StartJob submits a run of the named job and returns the run id.
	StartJob(ctx context.Context, job string) (string, error)
}

// DataFlowAPI is the subset of dataflow.DataFlowClient used here.
type DataFlowAPI interface {
	CreateRun(ctx context.Context, request dataflow.CreateRunRequest) (dataflow.CreateRunResponse, error)
}

// DataCatalogAPI is the subset of datacatalog.DataCatalogClient used here.
type DataCatalogAPI interface {
	CreateJobExecution(ctx context.Context, request datacatalog.CreateJobExecutionRequest) (datacatalog.CreateJobExecutionResponse, error)
}

// OCILauncher runs the crawler as a Data Catalog harvest job execution and
// the batch job as a Data Flow run. Job names are Data Flow application OCIDs
// and crawler names are Data Catalog job keys.
type OCILauncher struct {
	flow          DataFlowAPI
	catalog       DataCatalogAPI
	catalogID     string
	compartmentID string
}

// NewOCILauncher wires both clients.
func NewOCILauncher(flow DataFlowAPI, catalog DataCatalogAPI, catalogID, compartmentID string) *OCILauncher {
	return &OCILauncher{
		flow:          flow,
		catalog:       catalog,
		catalogID:     catalogID,
		compartmentID: compartmentID,
	}
}

func (l *OCILauncher) StartCrawler(ctx context.Context, crawler string) error {
	_, err := l.catalog.CreateJobExecution(ctx, datacatalog.CreateJobExecutionRequest{
		CatalogId: common.String(l.catalogID),
		JobKey:    common.String(crawler),
		CreateJobExecutionDetails: datacatalog.CreateJobExecutionDetails{
			JobType: datacatalog.JobTypeHarvest,
		},
	})
	if err != nil {
		return fmt.Errorf("start crawler %s: %w", crawler, err)
	}
	return nil
}

func (l *OCILauncher) StartJob(ctx context.Context, job string) (string, error) {
	resp, err := l.flow.CreateRun(ctx, dataflow.CreateRunRequest{
		CreateRunDetails: dataflow.CreateRunDetails{
			ApplicationId: common.String(job),
			CompartmentId: common.String(l.compartmentID),
			DisplayName:   common.String(runDisplayName()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("start job %s: %w", job, err)
	}
	if resp.Run.Id == nil {
		return "", fmt.Errorf("start job %s: run id missing from response", job)
	}
	return *resp.Run.Id, nil
}

func runDisplayName() string {
	return "etl-state-mover-" + uuid.NewString()[:8]
}
