package ai

import (
	"context"
	"fmt"
	"strings"
)

// DefaultVariations is the number of candidate questions requested.
const DefaultVariations = 5

const placeholderQuestionPrefix = "Error generating question"

const questionsSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string"}
    }
  }
}`

var questionsValidator = mustCompileSchema("questions.json", questionsSchema)

// PlaceholderQuestions returns the deterministic fallback candidates.
func PlaceholderQuestions(topic string, count int) []string {
	if count <= 0 {
		count = DefaultVariations
	}
	questions := make([]string, count)
	for i := range questions {
		questions[i] = fmt.Sprintf("%s for %s", placeholderQuestionPrefix, topic)
	}
	return questions
}

// GenerateQuestionVariations asks for count one-sentence problem
// descriptions derived from topic.
func (a *Assistant) GenerateQuestionVariations(ctx context.Context, topic string, count int) []string {
	if count <= 0 {
		count = DefaultVariations
	}

	raw, err := a.generate(ctx, "questions", questionsPrompt(topic, count))
	if err != nil {
		a.fallback("questions", err, "")
		return PlaceholderQuestions(topic, count)
	}

	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := decodeJSON(raw, questionsValidator, &payload); err != nil {
		a.fallback("questions", err, raw)
		return PlaceholderQuestions(topic, count)
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		a.fallback("questions", fmt.Errorf("%w: no usable questions", ErrMalformedResponse), raw)
		return PlaceholderQuestions(topic, count)
	}
	return questions
}

// SelectBestQuestion returns the candidate with the highest TF-IDF cosine
// similarity to topic. Ties go to the earliest candidate. When there are no
// candidates or all of them are placeholders, topic itself is returned.
func SelectBestQuestion(topic string, candidates []string) string {
	if len(candidates) == 0 {
		return topic
	}
	allPlaceholders := true
	for _, c := range candidates {
		if !strings.Contains(c, placeholderQuestionPrefix) {
			allPlaceholders = false
			break
		}
	}
	if allPlaceholders {
		return topic
	}

	vectors := tfidfVectors(append([]string{topic}, candidates...))
	best, bestScore := 0, -1.0
	for i := range candidates {
		if score := cosine(vectors[0], vectors[i+1]); score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best]
}

func questionsPrompt(topic string, count int) string {
	return fmt.Sprintf(`You are an expert in creating educational programming challenges for beginners.
Based on the following keyword or topic, generate %d distinct real-world programming problem descriptions.
Each problem should be a concise, one-sentence description.

Topic: %q

Your response MUST be a valid JSON object with a single key "questions" which contains a list of the generated strings.
Example response format:
{
  "questions": [
    "Write a function to calculate the total cost of items in a shopping cart.",
    "Build a program that finds the most frequent word in a text file."
  ]
}`, count, topic)
}
