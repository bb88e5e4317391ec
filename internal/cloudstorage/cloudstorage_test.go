package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory ObjectStore.
type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: %w", bucket, object, ErrObjectNotFound)
	}
	return data, nil
}

func (m *memoryStore) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	m.objects[bucket+"/"+object] = data
	return nil
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://statements/2024/Jan 24.csv", "statements", "2024/Jan 24.csv", false},
		{"gs://statements", "", "", true},
		{"gs:///x.csv", "", "", true},
		{"s3://bucket/x.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "a.csv", objectPath("", "a.csv"))
	assert.Equal(t, "in/a.csv", objectPath("in/", "a.csv"))
	assert.Equal(t, "out/runs/r1/x.csv", objectPath("out", "runs", "r1", "x.csv"))
}

func TestSource_FetchRows(t *testing.T) {
	store := newMemoryStore()
	store.objects["bkt/in/Jan 24.csv"] = []byte("Date,Transaction,Paid In,Withdrawn\n01/01/2024,Rent,,500\n")
	src := &Source{Store: store, Bucket: "bkt", Prefix: "in"}

	rows, err := src.FetchRows(context.Background(), "Jan 24")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Date", "Transaction", "Paid In", "Withdrawn"}, {"01/01/2024", "Rent", "", "500"}}, rows)

	_, err = src.FetchRows(context.Background(), "Feb 24")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestSource_KeywordRules(t *testing.T) {
	store := newMemoryStore()
	store.objects["bkt/in/keywords.csv"] = []byte("Keyword,Subcategory\nairbnb,Air bnb\n")
	src := &Source{Store: store, Bucket: "bkt", Prefix: "in"}

	rules, err := src.KeywordRules(context.Background(), "keywords.csv")
	require.NoError(t, err)
	assert.Equal(t, []domain.KeywordRule{{Keyword: "airbnb", Subcategory: "Air bnb"}}, rules)
}

func TestUploader_Export(t *testing.T) {
	store := newMemoryStore()
	up := &Uploader{Store: store, Bucket: "bkt", Prefix: "reports"}

	require.NoError(t, up.Export(context.Background(), &pipeline.RunResult{RunID: "r1"}))

	keys := make([]string, 0, len(store.objects))
	for k := range store.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Len(t, keys, 11)
	assert.Contains(t, keys, "bkt/reports/runs/r1/matched_deposits.csv")
	assert.Equal(t, "metric,value\n", string(store.objects["bkt/reports/runs/r1/summary.csv"])[:13])
}

func TestUploader_UploadPartition(t *testing.T) {
	store := newMemoryStore()
	up := &Uploader{Store: store, Bucket: "bkt", Prefix: "in"}

	path := filepath.Join(t.TempDir(), "jan.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Transaction\n01/01/2024,Rent\n"), 0o644))

	require.NoError(t, up.UploadPartition(context.Background(), "Jan/24", path))
	assert.Equal(t, "Date,Transaction\n01/01/2024,Rent\n", string(store.objects["bkt/in/Jan_24.csv"]))

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.Error(t, up.UploadPartition(context.Background(), "x", empty))
}
