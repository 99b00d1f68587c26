package schema

// TypedValue is the coerced form of one answered cell. Every implementation
// keeps the original raw cell value.
type TypedValue interface {
	ValueType() QuestionType
	RawValue() any
}

// ChoiceValue is an answer bound to an option, or flagged unknown.
type ChoiceValue struct {
	Kind    QuestionType `json:"type"`
	Code    *int         `json:"code"`
	Key     string       `json:"key,omitempty"`
	Label   string       `json:"label"`
	Raw     any          `json:"raw"`
	Unknown bool         `json:"unknown"`
}

func (v ChoiceValue) ValueType() QuestionType { return v.Kind }
func (v ChoiceValue) RawValue() any           { return v.Raw }

// NumericValue is a parsed number.
type NumericValue struct {
	Kind      QuestionType `json:"type"`
	Value     float64      `json:"value"`
	Formatted string       `json:"formatted"`
	Raw       any          `json:"raw"`
}

func (v NumericValue) ValueType() QuestionType { return v.Kind }
func (v NumericValue) RawValue() any           { return v.Raw }

// TextValue is trimmed free text. Types the coercer does not know are also
// carried as text.
type TextValue struct {
	Kind      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Length    int          `json:"length"`
	WordCount int          `json:"word_count"`
	Raw       any          `json:"raw"`
}

func (v TextValue) ValueType() QuestionType { return v.Kind }
func (v TextValue) RawValue() any           { return v.Raw }

// DateValue is a calendar date.
type DateValue struct {
	Kind      QuestionType `json:"type"`
	ISODate   string       `json:"iso_date"`
	Formatted string       `json:"formatted"`
	Raw       any          `json:"raw"`
}

func (v DateValue) ValueType() QuestionType { return v.Kind }
func (v DateValue) RawValue() any           { return v.Raw }

// EmailValue is a normalized address. Domain is extracted even when the
// address is not valid.
type EmailValue struct {
	Kind       QuestionType `json:"type"`
	Normalized string       `json:"normalized"`
	IsValid    bool         `json:"is_valid"`
	Domain     string       `json:"domain"`
	Raw        any          `json:"raw"`
}

func (v EmailValue) ValueType() QuestionType { return v.Kind }
func (v EmailValue) RawValue() any           { return v.Raw }
