package testsupport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"folio/internal/source"
	"folio/internal/workid"
)

// FakeWork is one work served by FakeTransport.
type FakeWork struct {
	Fields source.Fields
	Name   string
	Pages  [][]byte
	// FailPage makes the page with this ordinal fail to download.
	FailPage int
}

// FakeTransport is an in-memory source.Transport.
type FakeTransport struct {
	mu    sync.Mutex
	works map[workid.ID]FakeWork

	// Unavailable makes every call fail as a network error.
	Unavailable bool
	// Gate, when set, blocks FetchPages until it is closed.
	Gate chan struct{}

	AlbumCalls    atomic.Int32
	PageCalls     atomic.Int32
	MetadataCalls atomic.Int32
}

// NewFakeTransport returns an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{works: make(map[workid.ID]FakeWork)}
}

// AddWork registers a work with pageCount small PNG pages.
func (f *FakeTransport) AddWork(t testing.TB, id workid.ID, name string, pageCount int) {
	t.Helper()
	pages := make([][]byte, pageCount)
	for i := range pages {
		pages[i] = PNGBytes(t, 4+i, 6)
	}
	f.Put(id, FakeWork{
		Name:   name,
		Pages:  pages,
		Fields: source.Fields{"name": name},
	})
}

// Put registers or replaces a work.
func (f *FakeTransport) Put(id workid.ID, work FakeWork) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.works[id] = work
}

func (f *FakeTransport) lookup(id workid.ID) (FakeWork, error) {
	if f.Unavailable {
		return FakeWork{}, fmt.Errorf("dial tcp: connection refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	work, ok := f.works[id]
	if !ok {
		return FakeWork{}, fmt.Errorf("%w: work %s", source.ErrNotFound, id)
	}
	return work, nil
}

// FetchMetadata implements source.Transport.
func (f *FakeTransport) FetchMetadata(_ context.Context, id workid.ID) (source.Fields, error) {
	f.MetadataCalls.Add(1)
	work, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	fields := source.Fields{}
	for k, v := range work.Fields {
		fields[k] = v
	}
	return fields, nil
}

// FetchAlbum implements source.Transport.
func (f *FakeTransport) FetchAlbum(_ context.Context, id workid.ID) (source.Album, error) {
	f.AlbumCalls.Add(1)
	work, err := f.lookup(id)
	if err != nil {
		return source.Album{}, err
	}
	album := source.Album{ID: id, Name: work.Name, Fields: work.Fields}
	for i := range work.Pages {
		album.Pages = append(album.Pages, source.PageRef{Ordinal: i + 1, URL: fmt.Sprintf("fake://%s/%d", id, i+1)})
	}
	return album, nil
}

// FetchPages implements source.Transport. Pages are delivered concurrently.
func (f *FakeTransport) FetchPages(ctx context.Context, album source.Album, sink source.PageSink) error {
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	work, err := f.lookup(album.ID)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(album.Pages))
	for _, ref := range album.Pages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.PageCalls.Add(1)
			if ref.Ordinal == work.FailPage {
				errs <- fmt.Errorf("page %d: http 500", ref.Ordinal)
				return
			}
			if err := sink(source.Page{Ordinal: ref.Ordinal, Ext: ".png", Data: work.Pages[ref.Ordinal-1]}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}
