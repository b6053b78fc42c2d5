package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *ConversationDataset {
	return &ConversationDataset{
		Source:      "vcon",
		UUID:        "0191d5a4-7a38-7c1f-9c43-5d6a0c0f3e11",
		CreatedAt:   "2024-09-01T10:00:00Z",
		Description: "Customer asks about a late delivery.",
		Conversation: []ConversationPair{
			{
				Agent:          MessageTurn{Message: "How can I help?", Sentiment: SentimentNeutral},
				Customer:       MessageTurn{Message: "My parcel is late.", Sentiment: SentimentNegative},
				Recommendation: MessageTurn{Message: "Sorry about that, let me check right away.", Sentiment: SentimentPositive},
				Score:          0.6,
			},
		},
	}
}

func TestValidateDataset(t *testing.T) {
	assert.NoError(t, ValidateDataset(sampleDataset()))

	t.Run("nil dataset", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDataset(nil), ErrSchemaMismatch)
	})

	t.Run("unknown sentiment", func(t *testing.T) {
		d := sampleDataset()
		d.Conversation[0].Customer.Sentiment = "angry"
		err := ValidateDataset(d)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "Customer.Sentiment")
	})

	t.Run("empty message is allowed", func(t *testing.T) {
		d := sampleDataset()
		d.Conversation[0].Recommendation.Message = ""
		assert.NoError(t, ValidateDataset(d))
	})

	t.Run("empty sentiment", func(t *testing.T) {
		d := sampleDataset()
		d.Conversation[0].Agent.Sentiment = ""
		assert.ErrorIs(t, ValidateDataset(d), ErrSchemaMismatch)
	})

	t.Run("missing conversation", func(t *testing.T) {
		d := sampleDataset()
		d.Conversation = nil
		assert.ErrorIs(t, ValidateDataset(d), ErrSchemaMismatch)
	})

	t.Run("empty conversation is allowed", func(t *testing.T) {
		d := sampleDataset()
		d.Conversation = []ConversationPair{}
		assert.NoError(t, ValidateDataset(d))
	})
}

func TestDecodeDataset(t *testing.T) {
	data, err := json.Marshal(sampleDataset())
	require.NoError(t, err)

	got, err := DecodeDataset(data)
	require.NoError(t, err)
	assert.Equal(t, sampleDataset(), got)

	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{not valid json`},
		{"unknown field", `{"source":"a","uuid":"b","created_at":"c","description":"d","conversation":[],"extra":1}`},
		{"wrong type", `{"source":"a","uuid":"b","created_at":"c","description":"d","conversation":"none"}`},
		{"missing conversation", `{"source":"a","uuid":"b","created_at":"c","description":"d"}`},
		{"trailing data", `{"source":"a","uuid":"b","created_at":"c","description":"d","conversation":[]} {}`},
		{"string score", `{"source":"a","uuid":"b","created_at":"c","description":"d","conversation":[{"agent":{"message":"x","sentiment":"neutral"},"customer":{"message":"y","sentiment":"neutral"},"recommendation":{"message":"z","sentiment":"positive"},"score":"high"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataset([]byte(tt.in))
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

const (
	fullTurn = `{"message":"hi","sentiment":"neutral"}`
	fullPair = `{"agent":` + fullTurn + `,"customer":` + fullTurn + `,"recommendation":` + fullTurn + `,"score":0.5}`
)

func datasetWith(pair string) string {
	return `{"source":"s","uuid":"u","created_at":"c","description":"d","conversation":[` + pair + `]}`
}

func TestDecodeDatasetMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"only conversation", `{"conversation":[]}`, `dataset: missing required key "source"`},
		{"missing description", `{"source":"s","uuid":"u","created_at":"c","conversation":[]}`, `missing required key "description"`},
		{"null uuid", `{"source":"s","uuid":null,"created_at":"c","description":"d","conversation":[]}`, "dataset.uuid: expected string, got null"},
		{"null conversation", `{"source":"s","uuid":"u","created_at":"c","description":"d","conversation":null}`, "dataset.conversation: expected array, got null"},
		{"pair without score", datasetWith(`{"agent":` + fullTurn + `,"customer":` + fullTurn + `,"recommendation":` + fullTurn + `}`), `dataset.conversation[0]: missing required key "score"`},
		{"pair without recommendation", datasetWith(`{"agent":` + fullTurn + `,"customer":` + fullTurn + `,"score":1}`), `missing required key "recommendation"`},
		{"turn without message", datasetWith(`{"agent":{"sentiment":"neutral"},"customer":` + fullTurn + `,"recommendation":` + fullTurn + `,"score":1}`), `dataset.conversation[0].agent: missing required key "message"`},
		{"turn without sentiment", datasetWith(`{"agent":` + fullTurn + `,"customer":{"message":"x"},"recommendation":` + fullTurn + `,"score":1}`), `dataset.conversation[0].customer: missing required key "sentiment"`},
		{"null message", datasetWith(`{"agent":{"message":null,"sentiment":"neutral"},"customer":` + fullTurn + `,"recommendation":` + fullTurn + `,"score":1}`), "dataset.conversation[0].agent.message: expected string, got null"},
		{"null score", datasetWith(`{"agent":` + fullTurn + `,"customer":` + fullTurn + `,"recommendation":` + fullTurn + `,"score":null}`), "dataset.conversation[0].score: expected number, got null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataset([]byte(tt.in))
			require.ErrorIs(t, err, ErrSchemaMismatch)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeDatasetAcceptsEmptyStrings(t *testing.T) {
	in := `{"source":"","uuid":"","created_at":"","description":"","conversation":[` +
		`{"agent":{"message":"","sentiment":"neutral"},"customer":` + fullTurn + `,"recommendation":` + fullTurn + `,"score":0}]}`

	got, err := DecodeDataset([]byte(in))
	require.NoError(t, err)
	assert.Empty(t, got.Source)
	require.Len(t, got.Conversation, 1)
	assert.Empty(t, got.Conversation[0].Agent.Message)
	assert.Equal(t, SentimentNeutral, got.Conversation[0].Agent.Sentiment)
}

func TestDatasetJSONFieldOrder(t *testing.T) {
	data, err := json.Marshal(sampleDataset())
	require.NoError(t, err)

	s := string(data)
	order := []string{`"source"`, `"uuid"`, `"created_at"`, `"description"`, `"conversation"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(s, key)
		require.Greater(t, idx, last, "field %s out of order", key)
		last = idx
	}
}

func TestDatasetJSONSchema(t *testing.T) {
	schema := DatasetJSONSchema()
	assert.ElementsMatch(t, []string{"source", "uuid", "created_at", "description", "conversation"}, schema.Required)

	pair := schema.Properties["conversation"].Items
	require.NotNil(t, pair)
	assert.Equal(t, []string{"positive", "neutral", "negative"}, pair.Properties["agent"].Properties["sentiment"].Enum)

	_, err := json.Marshal(schema)
	assert.NoError(t, err)
}
