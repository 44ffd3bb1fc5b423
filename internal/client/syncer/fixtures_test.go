package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/remote"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/cryptox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// fakeRemote records calls in order and dedupes submissions by local id the
// way the backend does.
type fakeRemote struct {
	mu sync.Mutex

	calls     []string
	uploads   map[string]int
	submits   []remote.Submission
	changes   []remote.Change
	serverIDs map[string]string

	failUploads  map[string]bool // by file name
	failSubmits  map[string]int  // by local id, remaining failures
	loseResponse map[string]bool // accept, then report failure once
	failChanges  bool

	gate    chan struct{}
	entered chan struct{}

	submitGate    chan struct{}
	submitEntered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		uploads:      map[string]int{},
		serverIDs:    map[string]string{},
		failUploads:  map[string]bool{},
		failSubmits:  map[string]int{},
		loseResponse: map[string]bool{},
	}
}

func (f *fakeRemote) UploadAsset(ctx context.Context, data []byte, meta remote.AssetMeta) (string, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upload:"+meta.FileName)
	f.uploads[meta.FileName]++
	if f.failUploads[meta.FileName] {
		return "", errBackendDown
	}
	return "https://cdn.example/" + meta.AssetID, nil
}

func (f *fakeRemote) SubmitRecord(ctx context.Context, s remote.Submission) (string, error) {
	if f.submitGate != nil {
		select {
		case f.submitEntered <- struct{}{}:
		default:
		}
		<-f.submitGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "submit:"+s.Title)
	f.submits = append(f.submits, s)

	if n := f.failSubmits[s.LocalID]; n > 0 {
		f.failSubmits[s.LocalID] = n - 1
		return "", errBackendDown
	}

	id, ok := f.serverIDs[s.LocalID]
	if !ok {
		id = "srv-" + uuid.NewString()
		f.serverIDs[s.LocalID] = id
	}
	if f.loseResponse[s.LocalID] {
		delete(f.loseResponse, s.LocalID)
		return "", errBackendDown
	}
	return id, nil
}

func (f *fakeRemote) ApplyChange(ctx context.Context, c remote.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "change:"+c.Kind)
	if f.failChanges {
		return errBackendDown
	}
	f.changes = append(f.changes, c)
	return nil
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.DSN(filepath.Join(t.TempDir(), "sync.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type assetSpec struct {
	name string
	data []byte
}

// addRecord stores a draft, its queue entry and its assets atomically, the
// way the capture path does.
func addRecord(t *testing.T, st *store.Store, title string, fields map[string]any, assets ...assetSpec) (*models.Record, []*models.Asset) {
	t.Helper()
	ctx := context.Background()

	payload, err := json.Marshal(fields)
	require.NoError(t, err)

	rec := &models.Record{ID: models.GenerateID(), Title: title, Payload: payload}
	var stored []*models.Asset

	err = st.Transaction(ctx, func(ctx context.Context, repos *store.Repositories) error {
		if err := repos.Records.Put(ctx, rec); err != nil {
			return err
		}
		if err := repos.Changes.Put(ctx, &models.PendingChange{
			ID: uuid.NewString(), Kind: models.KindRecord, Operation: models.OpCreate, EntityID: rec.ID,
		}); err != nil {
			return err
		}
		for _, in := range assets {
			a := &models.Asset{
				ID:       models.GenerateID(),
				RecordID: rec.ID,
				FileName: in.name,
				MimeType: "image/jpeg",
				Data:     models.EncodeDataURL("image/jpeg", in.data),
				Size:     int64(len(in.data)),
				Checksum: cryptox.Checksum(in.data),
			}
			if err := store.AdmitAsset(ctx, repos, a); err != nil {
				return err
			}
			stored = append(stored, a)
		}
		return nil
	})
	require.NoError(t, err)
	return rec, stored
}

func addComment(t *testing.T, st *store.Store, parentID, text string) *models.PendingChange {
	t.Helper()
	c := &models.PendingChange{
		ID:        uuid.NewString(),
		Kind:      models.KindComment,
		Operation: models.OpCreate,
		EntityID:  uuid.NewString(),
		ParentID:  parentID,
		Payload:   json.RawMessage(`{"text":"` + text + `"}`),
	}
	require.NoError(t, st.Repositories().Changes.Put(context.Background(), c))
	return c
}

type progressLog struct {
	mu     sync.Mutex
	events []models.Progress
}

func (p *progressLog) add(ev models.Progress) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *progressLog) all() []models.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Progress(nil), p.events...)
}
