package rag

import (
	"strings"
	"unicode"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

// Keyword tables for the intent heuristics. Matching is lowercase substring.
var (
	indonesianKeywords = []string{
		"saya", "aku", "tolong", "buatkan", "berikan", "kasih",
		"makan", "makanan", "bisa", "bagaimana", "apa", "apakah",
		"mohon", "untuk", "adalah", "yang", "dengan", "ini", "itu",
		"sudah", "belum", "ingin", "mau", "harus", "boleh", "tidak",
		"sehat", "diet", "resep", "masakan", "menu", "sarapan",
		"minum", "kalori", "protein", "lemak", "karbohidrat",
	}
	englishKeywords = []string{
		"i ", "i'm", "please", "can you", "could you", "would you",
		"give me", "suggest", "provide", "help", "what", "how",
		"the", "is", "are", "my", "me", "for", "with", "this",
		"that", "want", "need", "should", "meal", "food", "diet",
		"healthy", "recipe", "breakfast", "lunch", "dinner", "snack",
		"calories", "protein", "carbs", "fat",
	}
	// Extra words seen in profile goals, preferences and allergies.
	indonesianProfileKeywords = []string{
		"turun", "naik", "berat", "badan", "otot", "jaga", "pertahankan",
		"kacang", "udang", "sayur", "pedas", "gemuk", "kurus",
	}
	englishProfileKeywords = []string{
		"lose", "weight", "gain", "maintain", "muscle", "build",
		"nuts", "shrimp", "spicy", "vegetables",
	}
	listKeywords = []string{
		"meal", "menu", "food", "makanan", "suggest", "give", "berikan", "buatkan",
	}
	foodQueryKeywords = []string{
		"makanan", "food", "nutrisi", "kalori", "protein",
		"resep", "recipe", "bahan", "ingredient",
	}
	knownFoodTerms = []string{
		"ayam", "chicken", "daging", "beef", "ikan", "fish",
		"telur", "egg", "nasi", "rice", "roti", "bread",
		"sayur", "vegetable", "buah", "fruit", "susu", "milk",
	}
)

// DefaultFoodTerm is searched when a food query names no known food.
const DefaultFoodTerm = "protein"

// DetectLanguage returns Indonesian only when its keyword score strictly
// exceeds the English score.
func DetectLanguage(text string) domain.Language {
	lower := strings.ToLower(text)
	if countMatches(lower, indonesianKeywords) > countMatches(lower, englishKeywords) {
		return domain.LanguageIndonesian
	}
	return domain.LanguageEnglish
}

// ProfileLanguage guesses the language a profile was filled in from its
// goal, preferences and allergies. A profile with no signal either way gets
// Indonesian, the language meal plans are written in.
func ProfileLanguage(p *domain.UserProfile) domain.Language {
	if p == nil {
		return domain.LanguageIndonesian
	}
	fields := make([]string, 0, 1+len(p.Preferences)+len(p.Allergies))
	fields = append(fields, p.Goal)
	fields = append(fields, p.Preferences...)
	fields = append(fields, p.Allergies...)
	lower := strings.ToLower(strings.Join(fields, " "))

	id := countMatches(lower, indonesianKeywords) + countMatches(lower, indonesianProfileKeywords)
	en := countMatches(lower, englishKeywords) + countMatches(lower, englishProfileKeywords)
	if en > id {
		return domain.LanguageEnglish
	}
	return domain.LanguageIndonesian
}

// IsListRequest reports whether text has a digit and a meal keyword, e.g.
// "give me 5 meal ideas". A "7 day meal plan" request also qualifies.
func IsListRequest(text string) bool {
	lower := strings.ToLower(text)
	return strings.IndexFunc(lower, unicode.IsDigit) >= 0 && countMatches(lower, listKeywords) > 0
}

// IsFoodQuery reports whether text asks about foods or nutrition.
func IsFoodQuery(text string) bool {
	return countMatches(strings.ToLower(text), foodQueryKeywords) > 0
}

// ExtractFoodTerms returns the known food terms in text, in table order,
// falling back to DefaultFoodTerm.
func ExtractFoodTerms(text string) []string {
	lower := strings.ToLower(text)
	var terms []string
	for _, term := range knownFoodTerms {
		if strings.Contains(lower, term) {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return []string{DefaultFoodTerm}
	}
	return terms
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
