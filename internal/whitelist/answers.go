package whitelist

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The community questionnaire renders a fixed set of questions keyed q1..q22.
// Answer keys outside the registry are dropped rather than stored.
const questionCount = 22

var questionKeyPattern = regexp.MustCompile(`^[qQ]([0-9]+)$`)

// ParseCreateRequest normalizes a raw submit body into a CreateRequest.
// Required-field validation happens later in Service.Create; this only shapes
// the input: known scalar fields are coerced, questionnaire answers are
// collected from q<N> keys, everything else is ignored.
func ParseCreateRequest(body map[string]any) CreateRequest {
	request := CreateRequest{
		Name:         stringField(body, "name"),
		Discord:      stringField(body, "discord"),
		Age:          ageField(body["age"]),
		Experience:   optionalTextField(body, "experience"),
		Availability: optionalTextField(body, "availability"),
		Motivation:   optionalTextField(body, "motivation"),
		UserMessage:  optionalTextField(body, "user_message"),
	}

	answers := map[string]string{}
	for key, value := range body {
		match := questionKeyPattern.FindStringSubmatch(key)
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil || number < 1 || number > questionCount {
			continue
		}
		answer := strings.TrimSpace(coerceString(value))
		if answer == "" {
			continue
		}
		answers[strings.ToLower(key)] = answer
	}
	if len(answers) > 0 {
		request.Answers = answers
	}

	return request
}

func stringField(body map[string]any, key string) string {
	return strings.TrimSpace(coerceString(body[key]))
}

func optionalTextField(body map[string]any, key string) *string {
	value := coerceString(body[key])
	if value == "" {
		return nil
	}
	return &value
}

// ageField accepts any value that reads as a finite number and truncates it
// to an integer; everything else becomes NULL.
func ageField(value any) *int64 {
	var parsed float64
	switch typed := value.(type) {
	case float64:
		parsed = typed
	case string:
		numeric, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return nil
		}
		parsed = numeric
	default:
		return nil
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}
	age := int64(parsed)
	return &age
}

func coerceString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}
