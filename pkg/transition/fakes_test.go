package transition

import (
	"context"
	"errors"
	"sort"
	"strings"

	"etl-state-mover-oci-serverless/pkg/jobs"
	"etl-state-mover-oci-serverless/pkg/notify"
	"etl-state-mover-oci-serverless/pkg/storage"
)

type memObjects struct {
	keys     map[string]bool
	failMove string
	moves    int
}

func newMemObjects(keys ...string) *memObjects {
	m := &memObjects{keys: make(map[string]bool)}
	for _, k := range keys {
		m.keys[k] = true
	}
	return m
}

func (m *memObjects) List(_ context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	for k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memObjects) Move(_ context.Context, src, dst string) error {
	if src == m.failMove {
		return errors.New("503 service unavailable")
	}
	if !m.keys[src] {
		return errors.New("404 " + src)
	}
	delete(m.keys, src)
	m.keys[dst] = true
	m.moves++
	return nil
}

func (m *memObjects) under(prefix string) []string {
	var out []string
	for k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

type memJobs struct {
	recs map[string]jobs.Record
}

func newMemJobs(recs ...jobs.Record) *memJobs {
	m := &memJobs{recs: make(map[string]jobs.Record)}
	for _, r := range recs {
		m.recs[r.ID] = r
	}
	return m
}

func (m *memJobs) Create(_ context.Context, rec jobs.Record) error {
	m.recs[rec.ID] = rec
	return nil
}

func (m *memJobs) SetStatus(_ context.Context, id, status string) error {
	rec, ok := m.recs[id]
	if !ok {
		return jobs.ErrNotFound
	}
	rec.Status = status
	m.recs[id] = rec
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (jobs.Record, error) {
	rec, ok := m.recs[id]
	if !ok {
		return jobs.Record{}, jobs.ErrNotFound
	}
	return rec, nil
}

type fakeLauncher struct {
	crawls   []string
	jobs     []string
	runID    string
	crawlErr error
}

func (f *fakeLauncher) StartCrawler(_ context.Context, crawler string) error {
	f.crawls = append(f.crawls, crawler)
	return f.crawlErr
}

func (f *fakeLauncher) StartJob(_ context.Context, job string) (string, error) {
	f.jobs = append(f.jobs, job)
	return f.runID, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocker) Acquire(context.Context, string) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquired++
	return true, nil
}

func (f *fakeLocker) Release(context.Context, string) error {
	f.held = false
	f.released++
	return nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ context.Context, ev notify.Event) error {
	f.events = append(f.events, ev)
	return nil
}
