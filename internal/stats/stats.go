// Package stats derives per-question and per-batch statistics from processed
// responses.
package stats

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/dshills/surveyrecon/internal/schema"
)

// Statistics is the aggregate view of one batch of responses.
type Statistics struct {
	TotalResponses    int                      `json:"total_responses"`
	AvgCompletionRate float64                  `json:"avg_completion_rate"`
	Questions         map[string]QuestionStats `json:"question_stats"`
	Quality           Quality                  `json:"data_quality"`
	TypeCounts        map[string]int           `json:"question_types"`
}

// Quality counts responses by completeness.
type Quality struct {
	Complete int `json:"complete_responses"`
	Partial  int `json:"partial_responses"`
	Empty    int `json:"empty_responses"`
	Errors   int `json:"error_responses"`
}

// QuestionStats covers one question. Only the block for its type is set.
type QuestionStats struct {
	ResponseCount int           `json:"response_count"`
	MissingCount  int           `json:"missing_count"`
	ResponseRate  float64       `json:"response_rate"`
	Distribution  []Bucket      `json:"distribution,omitempty"`
	Numeric       *NumericStats `json:"numeric,omitempty"`
	Text          *TextStats    `json:"text,omitempty"`
}

// Bucket is one entry of a choice distribution.
type Bucket struct {
	Code       *int    `json:"code"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Unknown    bool    `json:"unknown,omitempty"`
}

// NumericStats summarizes numeric answers.
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// TextStats summarizes free-text answers.
type TextStats struct {
	Unique        int     `json:"unique"`
	AverageLength float64 `json:"average_length"`
}

// Compute aggregates responses against q. An empty batch yields zero counts
// for every question.
func Compute(q schema.Questionnaire, responses []schema.ProcessedResponse) Statistics {
	st := Statistics{
		TotalResponses: len(responses),
		Questions:      make(map[string]QuestionStats, len(q.Questions)),
		TypeCounts:     map[string]int{},
	}
	for _, qq := range q.Questions {
		st.TypeCounts[string(qq.Type)]++
		st.Questions[qq.ID] = question(qq, responses)
	}

	total := 0.0
	for _, r := range responses {
		rate := r.Metadata.CompletionRate
		total += rate
		switch {
		case rate >= 100:
			st.Quality.Complete++
		case rate > 0:
			st.Quality.Partial++
		default:
			st.Quality.Empty++
		}
		if r.Metadata.HasErrors {
			st.Quality.Errors++
		}
	}
	if len(responses) > 0 {
		st.AvgCompletionRate = total / float64(len(responses))
	}
	return st
}

func question(q schema.Question, responses []schema.ProcessedResponse) QuestionStats {
	var values []schema.TypedValue
	for _, r := range responses {
		if v := r.Values[q.ID]; v != nil {
			values = append(values, v)
		}
	}
	qs := QuestionStats{
		ResponseCount: len(values),
		MissingCount:  len(responses) - len(values),
	}
	if len(responses) > 0 {
		qs.ResponseRate = float64(len(values)) / float64(len(responses)) * 100
	}
	switch {
	case q.Type.IsChoice():
		qs.Distribution = distribution(q, values)
	case q.Type == schema.TypeNumeric:
		qs.Numeric = numeric(values)
	case q.Type == schema.TypeText:
		qs.Text = text(values)
	}
	return qs
}

// distribution counts answers per option, listing unanswered options with a
// zero count. Buckets are ordered by count descending, then code ascending;
// unknown answers follow, by label.
func distribution(q schema.Question, values []schema.TypedValue) []Bucket {
	buckets := []Bucket{}
	byKey := map[string]int{}
	for _, o := range q.Options {
		b := Bucket{Label: o.Label}
		if n, err := strconv.Atoi(o.Code); err == nil {
			b.Code = &n
		}
		byKey["code:"+o.Code] = len(buckets)
		buckets = append(buckets, b)
	}
	for _, v := range values {
		cv, ok := v.(schema.ChoiceValue)
		if !ok {
			continue
		}
		key := "code:" + cv.Key
		if cv.Unknown {
			key = "label:" + cv.Label
		}
		i, seen := byKey[key]
		if !seen {
			i = len(buckets)
			byKey[key] = i
			buckets = append(buckets, Bucket{Code: cv.Code, Label: cv.Label, Unknown: cv.Unknown})
		}
		buckets[i].Count++
	}
	for i := range buckets {
		if len(values) == 0 {
			break
		}
		buckets[i].Percentage = float64(buckets[i].Count) / float64(len(values)) * 100
	}
	slices.SortStableFunc(buckets, func(a, b Bucket) int {
		if a.Unknown != b.Unknown {
			if a.Unknown {
				return 1
			}
			return -1
		}
		if a.Unknown {
			return cmp.Compare(a.Label, b.Label)
		}
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		switch {
		case a.Code != nil && b.Code != nil:
			return cmp.Compare(*a.Code, *b.Code)
		case a.Code != nil:
			return -1
		case b.Code != nil:
			return 1
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return buckets
}

func numeric(values []schema.TypedValue) *NumericStats {
	var nums []float64
	for _, v := range values {
		if nv, ok := v.(schema.NumericValue); ok {
			nums = append(nums, nv.Value)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	slices.Sort(nums)
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return &NumericStats{
		Min:    nums[0],
		Max:    nums[len(nums)-1],
		Mean:   sum / float64(len(nums)),
		Median: nums[len(nums)/2],
	}
}

func text(values []schema.TypedValue) *TextStats {
	unique := map[string]bool{}
	length := 0
	n := 0
	for _, v := range values {
		tv, ok := v.(schema.TextValue)
		if !ok {
			continue
		}
		unique[tv.Text] = true
		length += tv.Length
		n++
	}
	if n == 0 {
		return nil
	}
	return &TextStats{Unique: len(unique), AverageLength: float64(length) / float64(n)}
}
