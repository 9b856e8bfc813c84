package lock

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/nosql"
)

// Column names of the lock table.
const (
	ColumnName      = "LOCK_NAME"
	ColumnHolder    = "HOLDER"
	ColumnExpiresAt = "EXPIRES_AT"
)

// NosqlAPI is the subset of nosql.NosqlClient used by NosqlLocker.
type NosqlAPI interface {
	GetRow(ctx context.Context, request nosql.GetRowRequest) (nosql.GetRowResponse, error)
	UpdateRow(ctx context.Context, request nosql.UpdateRowRequest) (nosql.UpdateRowResponse, error)
	DeleteRow(ctx context.Context, request nosql.DeleteRowRequest) (nosql.DeleteRowResponse, error)
}

// NosqlLocker keeps the lock as a row written with a put-if-absent.
type NosqlLocker struct {
	client        NosqlAPI
	table         string
	compartmentID string
	name          string
	ttl           time.Duration
	now           func() time.Time
}

// NewNosqlLocker creates a lock named name that expires after ttl.
func NewNosqlLocker(client NosqlAPI, table, compartmentID, name string, ttl time.Duration) *NosqlLocker {
	return &NosqlLocker{
		client:        client,
		table:         table,
		compartmentID: compartmentID,
		name:          name,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (l *NosqlLocker) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := l.putIfAbsent(ctx, token)
	if err != nil || ok {
		return ok, err
	}

	// Someone holds it. Take over only if their lease ran out.
	row, found, err := l.current(ctx)
	if err != nil {
		return false, err
	}
	if found && l.now().Before(row.expiresAt) {
		return false, nil
	}
	if found {
		// Only the version we read may be cleared; a newer row belongs to
		// whoever took over first.
		cleared, err := l.delete(ctx, row.etag)
		if err != nil {
			return false, fmt.Errorf("clear expired lock held by %s: %w", row.holder, err)
		}
		if !cleared {
			return false, nil
		}
	}
	return l.putIfAbsent(ctx, token)
}

func (l *NosqlLocker) Release(ctx context.Context, token string) error {
	row, found, err := l.current(ctx)
	if err != nil {
		return err
	}
	if !found || row.holder != token {
		return ErrNotHeld
	}
	cleared, err := l.delete(ctx, row.etag)
	if err != nil {
		return err
	}
	if !cleared {
		return ErrNotHeld
	}
	return nil
}

func (l *NosqlLocker) putIfAbsent(ctx context.Context, token string) (bool, error) {
	details := nosql.UpdateRowDetails{
		Value: map[string]interface{}{
			ColumnName:      l.name,
			ColumnHolder:    token,
			ColumnExpiresAt: l.now().Add(l.ttl).UnixMilli(),
		},
		Option: nosql.UpdateRowDetailsOptionAbsent,
	}
	if l.compartmentID != "" {
		details.CompartmentId = common.String(l.compartmentID)
	}

	resp, err := l.client.UpdateRow(ctx, nosql.UpdateRowRequest{
		TableNameOrId:    common.String(l.table),
		UpdateRowDetails: details,
	})
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.name, err)
	}
	return resp.UpdateRowResult.Version != nil, nil
}

type lockRow struct {
	holder    string
	expiresAt time.Time
	etag      string
}

func (l *NosqlLocker) current(ctx context.Context) (lockRow, bool, error) {
	req := nosql.GetRowRequest{
		TableNameOrId: common.String(l.table),
		Key:           []string{ColumnName + ":" + l.name},
	}
	if l.compartmentID != "" {
		req.CompartmentId = common.String(l.compartmentID)
	}

	resp, err := l.client.GetRow(ctx, req)
	if err != nil {
		if svcErr, ok := common.IsServiceError(err); ok && svcErr.GetHTTPStatusCode() == http.StatusNotFound {
			return lockRow{}, false, nil
		}
		return lockRow{}, false, fmt.Errorf("read lock %s: %w", l.name, err)
	}
	if resp.Row.Value == nil {
		return lockRow{}, false, nil
	}

	row := lockRow{expiresAt: time.UnixMilli(toInt64(resp.Row.Value[ColumnExpiresAt]))}
	row.holder, _ = resp.Row.Value[ColumnHolder].(string)
	if resp.Etag != nil {
		row.etag = *resp.Etag
	}
	return row, true, nil
}

// delete removes the lock row if it still carries etag. It reports false when
// the row changed or vanished since it was read.
func (l *NosqlLocker) delete(ctx context.Context, etag string) (bool, error) {
	req := nosql.DeleteRowRequest{
		TableNameOrId: common.String(l.table),
		Key:           []string{ColumnName + ":" + l.name},
	}
	if l.compartmentID != "" {
		req.CompartmentId = common.String(l.compartmentID)
	}
	if etag != "" {
		req.IfMatch = common.String(etag)
	}

	resp, err := l.client.DeleteRow(ctx, req)
	if err != nil {
		if svcErr, ok := common.IsServiceError(err); ok {
			switch svcErr.GetHTTPStatusCode() {
			case http.StatusPreconditionFailed, http.StatusNotFound:
				return false, nil
			}
		}
		return false, fmt.Errorf("delete lock %s: %w", l.name, err)
	}
	if resp.DeleteRowResult.IsSuccess != nil && !*resp.DeleteRowResult.IsSuccess {
		return false, nil
	}
	return true, nil
}

// toInt64 accepts the numeric shapes a JSON-decoded row can hold.
func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
