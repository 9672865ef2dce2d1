package ai

import (
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// tfidfVectors returns L2-normalised TF-IDF vectors for docs using raw term
// counts and smoothed idf: ln((1+n)/(1+df)) + 1.
func tfidfVectors(docs []string) []map[string]float64 {
	tokens := make([][]string, len(docs))
	df := map[string]int{}
	for i, doc := range docs {
		tokens[i] = tokenize(doc)
		seen := map[string]bool{}
		for _, term := range tokens[i] {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	vectors := make([]map[string]float64, len(docs))
	for i, terms := range tokens {
		vec := map[string]float64{}
		for _, term := range terms {
			vec[term]++
		}

		var norm float64
		for term, count := range vec {
			weight := count * (math.Log((1+n)/(1+float64(df[term]))) + 1)
			vec[term] = weight
			norm += weight * weight
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, weight := range a {
		dot += weight * b[term]
	}
	return dot
}
