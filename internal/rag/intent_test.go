package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want domain.Language
	}{
		{"Tolong buatkan menu sehat untuk saya", domain.LanguageIndonesian},
		{"Please suggest a healthy meal for me", domain.LanguageEnglish},
		{"", domain.LanguageEnglish},
		{"Aku mau diet, apa yang harus aku makan?", domain.LanguageIndonesian},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectLanguage(tc.text), tc.text)
	}
}

func TestProfileLanguage(t *testing.T) {
	cases := []struct {
		name    string
		profile *domain.UserProfile
		want    domain.Language
	}{
		{"nil profile", nil, domain.LanguageIndonesian},
		{"empty profile", &domain.UserProfile{}, domain.LanguageIndonesian},
		{"indonesian goal", &domain.UserProfile{Goal: "turun berat badan"}, domain.LanguageIndonesian},
		{"english goal", &domain.UserProfile{Goal: "lose weight"}, domain.LanguageEnglish},
		{"empty goal with indonesian preferences", &domain.UserProfile{Preferences: []string{"sayur", "tidak pedas"}}, domain.LanguageIndonesian},
		{"empty goal with english allergies", &domain.UserProfile{Allergies: []string{"nuts", "shrimp"}}, domain.LanguageEnglish},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ProfileLanguage(tc.profile), tc.name)
	}
}

func TestIsListRequest(t *testing.T) {
	assert.True(t, IsListRequest("give me 5 meal ideas"))
	assert.True(t, IsListRequest("make me a 7 day meal plan"))
	assert.True(t, IsListRequest("Berikan 3 makanan tinggi protein"))
	assert.False(t, IsListRequest("what is a healthy breakfast"))
	assert.False(t, IsListRequest("I ran 5 km today"))
}

func TestIsFoodQuery(t *testing.T) {
	assert.True(t, IsFoodQuery("Berapa kalori nasi goreng?"))
	assert.True(t, IsFoodQuery("Any high PROTEIN food?"))
	assert.False(t, IsFoodQuery("hello there"))
}

func TestExtractFoodTerms(t *testing.T) {
	assert.Equal(t, []string{"ayam", "nasi"}, ExtractFoodTerms("Kalori ayam dan nasi?"))
	assert.Equal(t, []string{"chicken", "egg"}, ExtractFoodTerms("chicken or eggs?"))
	assert.Equal(t, []string{DefaultFoodTerm}, ExtractFoodTerms("what should I eat"))
}

func TestDirectives(t *testing.T) {
	assert.Equal(t, "[PENTING: JAWAB DALAM BAHASA INDONESIA]\n\n", Directives(domain.LanguageIndonesian, false))
	en := Directives(domain.LanguageEnglish, true)
	assert.Contains(t, en, "[IMPORTANT: YOU MUST REPLY IN ENGLISH]")
	assert.Contains(t, en, "[FORMAT: Use numbered list")
}
