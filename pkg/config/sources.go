package config

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"
	"gopkg.in/yaml.v2"
)

// Column names of the configuration table.
const (
	ColumnKey   = "CONFIG_KEY"
	ColumnValue = "CONFIG_VALUE"
)

type rowGetter interface {
	GetRow(ctx context.Context, request nosql.GetRowRequest) (nosql.GetRowResponse, error)
}

// NosqlSource reads configuration rows from an OCI NoSQL table.
type NosqlSource struct {
	client        rowGetter
	table         string
	compartmentID string
}

// NewNosqlSource creates a Source over the given table.
func NewNosqlSource(client rowGetter, table, compartmentID string) *NosqlSource {
	return &NosqlSource{client: client, table: table, compartmentID: compartmentID}
}

// Lookup fetches the CONFIG_VALUE of the row keyed by key.
func (s *NosqlSource) Lookup(ctx context.Context, key string) (string, bool, error) {
	req := nosql.GetRowRequest{
		TableNameOrId: common.String(s.table),
		Key:           []string{ColumnKey + ":" + key},
	}
	if s.compartmentID != "" {
		req.CompartmentId = common.String(s.compartmentID)
	}

	resp, err := s.client.GetRow(ctx, req)
	if err != nil {
		if svcErr, ok := common.IsServiceError(err); ok && svcErr.GetHTTPStatusCode() == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	if resp.Row.Value == nil {
		return "", false, nil
	}

	raw, ok := resp.Row.Value[ColumnValue]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("column %s of %s is %T, not a string", ColumnValue, key, raw)
	}
	return value, true, nil
}

// FileSource serves configuration from a flat YAML mapping, e.g.
//
//	BUCKET: landing
//	READY-DIR-PATH: ready/
type FileSource struct {
	values map[string]string
}

// NewFileSource reads the YAML mapping at path.
func NewFileSource(path string) (*FileSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config values %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("parse config values %s: %w", path, err)
	}
	return &FileSource{values: values}, nil
}

func (s *FileSource) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}
