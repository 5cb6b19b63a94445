package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/sentinel-go/internal/conf"
)

func TestReplay_SortsAcrossFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// later timestamps in the first file, earlier in the second
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_pos.jsonl"), []byte(
		`{"dataset":"POS_Transactions","event":{"timestamp":"2025-08-13T16:00:20","station_id":"SCC1","status":"Active","data":{"customer_id":"C001","sku":"PRD_A_01","price":10}}}`+"\n"+
			`{"dataset":"POS_Transactions","event":{"timestamp":"2025-08-13T16:00:40","station_id":"SCC1","status":"Active","data":{"customer_id":"C001","sku":"PRD_A_02","price":12}}}`+"\n",
	), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_rfid.jsonl"), []byte(
		`{"dataset":"RFID_data","event":{"timestamp":"2025-08-13T16:00:10","station_id":"SCC1","status":"Active","data":{"epc":"TAG1","sku":"PRD_A_01","location":"IN_SCAN_AREA"}}}`+"\n"+
			"not json at all\n",
	), 0o644))

	q := NewQueue(16, conf.OverflowBlock, nil)
	n, err := Replay(context.Background(), dir, q, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "the malformed line is skipped, not fatal")
	q.Close()

	var times []time.Time
	for rec := range q.Records() {
		times = append(times, rec.RecordTime())
	}
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.False(t, times[i].Before(times[i-1]), "records must arrive in timestamp order")
	}
}

func TestReplay_EmptyDirFails(t *testing.T) {
	t.Parallel()
	q := NewQueue(1, conf.OverflowBlock, nil)
	_, err := Replay(context.Background(), t.TempDir(), q, nil)
	assert.Error(t, err)
}
