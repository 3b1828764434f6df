package wire

import (
	"testing"
	"time"

	"cosmotablas-service/internal/domain"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequestKeepsAbsentFields(t *testing.T) {
	var req RecordRequest
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"u1","userName":"Ana","tableNumber":5,"timeMs":8000,"points":18}`), &req))

	sub := req.Submission()
	assert.Nil(t, sub.ErrorCount)
	_, err := sub.Verify()
	assert.ErrorIs(t, err, domain.ErrMissingFields)
}

func TestRecordRowUsesSnakeCaseAndEpochMillis(t *testing.T) {
	at := time.UnixMilli(1_717_236_000_000)
	row := FromRecord(domain.AttemptRecord{
		PlayerID: "u1", PlayerName: "Ana", TableNumber: 5, ElapsedMs: 12000, Score: 12, RecordedAt: at,
	})
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u1","user_name":"Ana","table_number":5,"time_ms":12000,"errors":0,"points":12,"date":1717236000000}`, string(raw))

	assert.True(t, row.Domain().RecordedAt.Equal(at))
}

func TestTablesResponseSkipsEmptyBoards(t *testing.T) {
	resp := FromBoards(domain.TableBoards{3: nil, 4: {{PlayerID: "a", TableNumber: 4}}})
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded TablesResponse
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Tables, 1)
	assert.Len(t, decoded.Boards()[4], 1)
}

func TestMistakeReportKey(t *testing.T) {
	var req MistakesRequest
	body := `{"mistakes":[{"table":7,"multiplier":8},{"table":"7","multiplier":8},{"table":2.5,"multiplier":3},{"multiplier":4}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	keys := req.Keys()
	require.Len(t, keys, 4)
	assert.Equal(t, domain.QuestionKey{Table: 7, Multiplier: 8}, keys[0])
	for _, k := range keys[1:] {
		assert.Equal(t, domain.QuestionKey{}, k)
	}

	out := NewMistakesRequest([]domain.QuestionKey{{Table: 3, Multiplier: 4}})
	assert.Equal(t, domain.QuestionKey{Table: 3, Multiplier: 4}, out.Keys()[0])
}
