package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
)

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"ready/a.csv":        "a.csv",
		"a.csv":              "a.csv",
		"data/ready/x/b.csv": "b.csv",
		"ready/":             "",
	}
	for key, want := range cases {
		if got := BaseName(key); got != want {
			t.Fatalf("BaseName(%q): expected %q, got %q", key, want, got)
		}
	}
}

func TestFiles_SkipsFolderPlaceholders(t *testing.T) {
	objects := []Object{{Key: "ready/"}, {Key: "ready/a.csv"}, {Key: "ready/sub/"}, {Key: "ready/b.txt"}}
	files := Files("ready/", objects)
	if len(files) != 2 || files[0].Key != "ready/a.csv" || files[1].Key != "ready/b.txt" {
		t.Fatalf("unexpected files %v", files)
	}
}

// fakeOCI serves a sorted key space two objects per page.
type fakeOCI struct {
	objects   map[string]int64
	listCalls int
	failMove  bool
}

func (f *fakeOCI) ListObjects(_ context.Context, req objectstorage.ListObjectsRequest) (objectstorage.ListObjectsResponse, error) {
	f.listCalls++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, *req.Prefix) && (req.Start == nil || k >= *req.Start) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var resp objectstorage.ListObjectsResponse
	for i, k := range keys {
		if i == 2 {
			resp.ListObjects.NextStartWith = common.String(k)
			break
		}
		size := f.objects[k]
		resp.ListObjects.Objects = append(resp.ListObjects.Objects, objectstorage.ObjectSummary{
			Name: common.String(k),
			Size: common.Int64(size),
		})
	}
	return resp, nil
}

func (f *fakeOCI) RenameObject(_ context.Context, req objectstorage.RenameObjectRequest) (objectstorage.RenameObjectResponse, error) {
	if f.failMove {
		return objectstorage.RenameObjectResponse{}, errors.New("403 not authorized")
	}
	src := *req.RenameObjectDetails.SourceName
	size, ok := f.objects[src]
	if !ok {
		return objectstorage.RenameObjectResponse{}, errors.New("404 object not found")
	}
	delete(f.objects, src)
	f.objects[*req.RenameObjectDetails.NewName] = size
	return objectstorage.RenameObjectResponse{}, nil
}

func TestOCIStore_ListPages(t *testing.T) {
	client := &fakeOCI{objects: map[string]int64{
		"ready/":      0,
		"ready/a.csv": 10,
		"ready/b.csv": 20,
		"ready/c.csv": 30,
		"ready/d.csv": 40,
		"failed/z":    1,
	}}
	store := NewOCIStore(client, "ns", "landing")

	objects, err := store.List(context.Background(), "ready/")
	if err != nil {
		t.Fatalf("expected objects, got error %v", err)
	}
	if len(objects) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(objects))
	}
	if client.listCalls != 3 {
		t.Fatalf("expected 3 pages, got %d", client.listCalls)
	}
	if objects[4].Key != "ready/d.csv" || objects[4].Size != 40 {
		t.Fatalf("unexpected last object %+v", objects[4])
	}
}

func TestOCIStore_Move(t *testing.T) {
	client := &fakeOCI{objects: map[string]int64{"in-process/a.csv": 1}}
	store := NewOCIStore(client, "ns", "landing")

	if err := store.Move(context.Background(), "in-process/a.csv", "succeeded/a.csv"); err != nil {
		t.Fatalf("expected move, got error %v", err)
	}
	if _, ok := client.objects["in-process/a.csv"]; ok {
		t.Fatalf("expected source to be gone")
	}
	if _, ok := client.objects["succeeded/a.csv"]; !ok {
		t.Fatalf("expected destination to exist")
	}

	client.failMove = true
	if err := store.Move(context.Background(), "succeeded/a.csv", "failed/a.csv"); err == nil {
		t.Fatalf("expected move error")
	}
}
