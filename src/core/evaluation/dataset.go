package evaluation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NormalizeDataset converts a raw dataset payload into canonical QA pairs.
// Two shapes are accepted: a columnar object
// {"question": [...], "ground_truths"|"answers": [...]} or a row-oriented
// list of objects keyed by "question" and one of
// "answer"/"ground_truth"/"ground_truths". Rows missing either field are
// dropped. Every later stage works on the canonical form only.
func NormalizeDataset(raw json.RawMessage) ([]QAPair, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty dataset payload")
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err == nil {
		return pairsFromRows(rows), nil
	}

	var columns map[string]interface{}
	if err := json.Unmarshal(raw, &columns); err != nil {
		return nil, fmt.Errorf("dataset is neither row-oriented nor columnar: %w", err)
	}
	return pairsFromColumns(columns)
}

func pairsFromRows(rows []map[string]interface{}) []QAPair {
	pairs := make([]QAPair, 0, len(rows))
	for _, row := range rows {
		question := stringValue(row["question"])
		answer := stringValue(row["answer"])
		if answer == "" {
			answer = stringValue(row["ground_truth"])
		}
		if answer == "" {
			answer = stringValue(row["ground_truths"])
		}
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer})
	}
	return pairs
}

func pairsFromColumns(columns map[string]interface{}) ([]QAPair, error) {
	questions, ok := columns["question"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("columnar dataset missing question column")
	}
	answers, ok := columns["ground_truths"].([]interface{})
	if !ok {
		answers, ok = columns["answers"].([]interface{})
	}
	if !ok {
		return nil, fmt.Errorf("columnar dataset missing ground_truths/answers column")
	}
	if len(questions) != len(answers) {
		return nil, fmt.Errorf("columnar dataset length mismatch: %d questions, %d answers",
			len(questions), len(answers))
	}

	pairs := make([]QAPair, 0, len(questions))
	for i := range questions {
		question := stringValue(questions[i])
		answer := stringValue(answers[i])
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer})
	}
	return pairs, nil
}

// stringValue coerces a decoded JSON value to a string. Lists contribute
// their first element, matching the ground_truths list form.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		if len(val) == 0 {
			return ""
		}
		return stringValue(val[0])
	default:
		return ""
	}
}
