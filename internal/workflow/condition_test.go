package workflow_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagar1503/ApprovalPortal/internal/workflow"
)

func TestEvaluateEmptyConditionAlwaysApplies(t *testing.T) {
	payload := json.RawMessage(`{"Amount": 500}`)
	assert.True(t, workflow.Evaluate(nil, payload))
	assert.True(t, workflow.Evaluate(json.RawMessage(``), payload))
	assert.True(t, workflow.Evaluate(json.RawMessage(`{}`), payload))
	assert.True(t, workflow.Evaluate(json.RawMessage(` {} `), payload))
	assert.True(t, workflow.Evaluate(json.RawMessage(`null`), payload))
}

func TestEvaluatePermissiveOnMalformedData(t *testing.T) {
	// Malformed condition JSON: the stage applies.
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount"`), json.RawMessage(`{"Amount": 500}`)))
	// Malformed payload JSON: the stage applies.
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount":{">":1000}}`), json.RawMessage(`not json`)))
	// Missing payload field: the stage applies.
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount":{">":1000}}`), json.RawMessage(`{}`)))
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount":{">":1000}}`), nil))
	// Non-numeric payload field: the stage applies.
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount":{">":1000}}`), json.RawMessage(`{"Amount":"abc"}`)))
	assert.True(t, workflow.Evaluate(json.RawMessage(`{"Amount":{">":1000}}`), json.RawMessage(`{"Amount":true}`)))
}

func TestEvaluateObjectRules(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		payload   string
		want      bool
	}{
		{"gt true", `{"Amount":{">":1000}}`, `{"Amount":1500}`, true},
		{"gt false", `{"Amount":{">":1000}}`, `{"Amount":500}`, false},
		{"gt boundary", `{"Amount":{">":1000}}`, `{"Amount":1000}`, false},
		{"gte boundary", `{"Amount":{">=":1000}}`, `{"Amount":1000}`, true},
		{"lt true", `{"Amount":{"<":100}}`, `{"Amount":50}`, true},
		{"lte false", `{"Amount":{"<=":100}}`, `{"Amount":101}`, false},
		{"eq true", `{"Amount":{"=":3}}`, `{"Amount":3}`, true},
		{"double eq true", `{"Amount":{"==":3}}`, `{"Amount":3}`, true},
		{"neq true", `{"Amount":{"!=":3}}`, `{"Amount":4}`, true},
		{"neq false", `{"Amount":{"!=":3}}`, `{"Amount":3}`, false},
		{"string payload number", `{"Amount":{">":1000}}`, `{"Amount":"1500"}`, true},
		{"string payload number false", `{"Amount":{">":1000}}`, `{"Amount":"500"}`, false},
		{"range and", `{"Amount":{">":100,"<":1000}}`, `{"Amount":500}`, true},
		{"range and fail", `{"Amount":{">":100,"<":1000}}`, `{"Amount":5000}`, false},
		{"multi key and", `{"Amount":{">":100},"Days":{"<":10}}`, `{"Amount":500,"Days":5}`, true},
		{"multi key and fail", `{"Amount":{">":100},"Days":{"<":10}}`, `{"Amount":500,"Days":20}`, false},
		{"non numeric limit ignored", `{"Amount":{">":"abc"}}`, `{"Amount":500}`, true},
		{"unknown operator ignored", `{"Amount":{"~":100}}`, `{"Amount":5}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := workflow.Evaluate(json.RawMessage(tc.condition), json.RawMessage(tc.payload))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateStringRules(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		payload   string
		want      bool
	}{
		{"gt true", `{"Amount":">1000"}`, `{"Amount":1500}`, true},
		{"gt false", `{"Amount":">1000"}`, `{"Amount":500}`, false},
		{"lt true", `{"Amount":"<5"}`, `{"Amount":3}`, true},
		{"eq true", `{"Amount":"=3"}`, `{"Amount":3}`, true},
		{"eq false", `{"Amount":"=3"}`, `{"Amount":4}`, false},
		{"gte", `{"Amount":">=10"}`, `{"Amount":10}`, true},
		{"neq", `{"Amount":"!=10"}`, `{"Amount":10}`, false},
		{"no operator enforces nothing", `{"Amount":"1000"}`, `{"Amount":5}`, true},
		{"operator without number enforces nothing", `{"Amount":">"}`, `{"Amount":5}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := workflow.Evaluate(json.RawMessage(tc.condition), json.RawMessage(tc.payload))
			assert.Equal(t, tc.want, got)
		})
	}
}

// A missing referenced field makes the whole evaluation true even when
// another key's comparison fails, and the answer must not depend on the
// order the condition keys happen to be visited in.
func TestEvaluateMissingFieldWinsOverFailingComparison(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		payload   string
	}{
		{"missing first key", `{"Missing":{">":1},"Amount":{">":1000}}`, `{"Amount":500}`},
		{"missing last key", `{"Amount":{">":1000},"Missing":{">":1}}`, `{"Amount":500}`},
		{"non numeric beside failing", `{"Name":{">":1},"Amount":{">":1000}}`, `{"Name":"bob","Amount":500}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			condition := json.RawMessage(tc.condition)
			payload := json.RawMessage(tc.payload)
			for i := 0; i < 100; i++ {
				assert.True(t, workflow.Evaluate(condition, payload))
			}
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	condition := json.RawMessage(`{"Amount":{">":1000}}`)
	payload := json.RawMessage(`{"Amount":"1500"}`)
	first := workflow.Evaluate(condition, payload)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, workflow.Evaluate(condition, payload))
	}
	assert.Equal(t, `{"Amount":{">":1000}}`, string(condition))
	assert.Equal(t, `{"Amount":"1500"}`, string(payload))
}
