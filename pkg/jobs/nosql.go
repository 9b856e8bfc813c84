package jobs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"
)

// Column names of the jobs table.
const (
	ColumnID     = "JOB_ID"
	ColumnFiles  = "FILES"
	ColumnStatus = "STATE"
)

// NosqlAPI is the subset of nosql.NosqlClient used by NosqlStore.
type NosqlAPI interface {
	GetRow(ctx context.Context, request nosql.GetRowRequest) (nosql.GetRowResponse, error)
	UpdateRow(ctx context.Context, request nosql.UpdateRowRequest) (nosql.UpdateRowResponse, error)
}

// NosqlStore keeps job records in an OCI NoSQL table.
type NosqlStore struct {
	client        NosqlAPI
	table         string
	compartmentID string
}

// NewNosqlStore creates a Store over the given table.
func NewNosqlStore(client NosqlAPI, table, compartmentID string) *NosqlStore {
	return &NosqlStore{client: client, table: table, compartmentID: compartmentID}
}

func (s *NosqlStore) Create(ctx context.Context, rec Record) error {
	_, err := s.put(ctx, rec, "")
	if err != nil {
		return fmt.Errorf("create job record %s: %w", rec.ID, err)
	}
	return nil
}

// SetStatus rewrites the row with the new status. The write only applies if
// the row still exists.
func (s *NosqlStore) SetStatus(ctx context.Context, id, status string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Status = status

	applied, err := s.put(ctx, rec, nosql.UpdateRowDetailsOptionPresent)
	if err != nil {
		return fmt.Errorf("update job record %s: %w", id, err)
	}
	if !applied {
		return fmt.Errorf("update job record %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *NosqlStore) Get(ctx context.Context, id string) (Record, error) {
	req := nosql.GetRowRequest{
		TableNameOrId: common.String(s.table),
		Key:           []string{ColumnID + ":" + id},
	}
	if s.compartmentID != "" {
		req.CompartmentId = common.String(s.compartmentID)
	}

	resp, err := s.client.GetRow(ctx, req)
	if err != nil {
		if svcErr, ok := common.IsServiceError(err); ok && svcErr.GetHTTPStatusCode() == http.StatusNotFound {
			return Record{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("get job record %s: %w", id, err)
	}
	if resp.Row.Value == nil {
		return Record{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	files, _ := resp.Row.Value[ColumnFiles].(string)
	status, _ := resp.Row.Value[ColumnStatus].(string)
	return Record{ID: id, Files: SplitFiles(files), Status: status}, nil
}

// put writes the full row and reports whether the conditional option allowed it.
func (s *NosqlStore) put(ctx context.Context, rec Record, option nosql.UpdateRowDetailsOptionEnum) (bool, error) {
	details := nosql.UpdateRowDetails{
		Value: map[string]interface{}{
			ColumnID:     rec.ID,
			ColumnFiles:  JoinFiles(rec.Files),
			ColumnStatus: rec.Status,
		},
		Option: option,
	}
	if s.compartmentID != "" {
		details.CompartmentId = common.String(s.compartmentID)
	}

	resp, err := s.client.UpdateRow(ctx, nosql.UpdateRowRequest{
		TableNameOrId:    common.String(s.table),
		UpdateRowDetails: details,
	})
	if err != nil {
		return false, err
	}
	return resp.UpdateRowResult.Version != nil, nil
}
