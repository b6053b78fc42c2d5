// Package model defines data structures for the vCon dataset service.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

// ErrSchemaMismatch is returned when a payload does not have the ConversationDataset shape.
var ErrSchemaMismatch = errors.New("payload does not match dataset schema")

// Sentiment is the sentiment label attached to a message turn.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Sentiments lists the accepted labels in schema order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

// MessageTurn is a spoken turn or a recommended replacement turn.
type MessageTurn struct {
	Message   string    `json:"message"`
	Sentiment Sentiment `json:"sentiment" validate:"oneof=positive neutral negative"`
}

// ConversationPair is one agent/customer exchange with a recommended agent turn.
// Score is a quality measure, conventionally in [0.0, 1.0]; the range is not enforced.
type ConversationPair struct {
	Agent          MessageTurn `json:"agent"`
	Customer       MessageTurn `json:"customer"`
	Recommendation MessageTurn `json:"recommendation"`
	Score          float64     `json:"score"`
}

// ConversationDataset is the structured output extracted from one conversation record.
// It is built once per extraction and not modified afterwards.
type ConversationDataset struct {
	Source       string             `json:"source"`
	UUID         string             `json:"uuid"`
	CreatedAt    string             `json:"created_at"`
	Description  string             `json:"description"`
	Conversation []ConversationPair `json:"conversation" validate:"required,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDataset checks that d has the ConversationDataset shape.
func ValidateDataset(d *ConversationDataset) error {
	if d == nil {
		return fmt.Errorf("%w: dataset is nil", ErrSchemaMismatch)
	}
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrSchemaMismatch, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// DecodeDataset strictly decodes data into a ConversationDataset and validates it.
// Unknown fields, missing or null keys, trailing data and type mismatches are
// schema mismatches. Empty strings are accepted.
func DecodeDataset(data []byte) (*ConversationDataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var d ConversationDataset
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after dataset object", ErrSchemaMismatch)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := checkConforms(DatasetJSONSchema(), raw, "dataset"); err != nil {
		return nil, err
	}

	if err := ValidateDataset(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
