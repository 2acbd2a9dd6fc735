package rag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

// SystemPrompt scopes the assistant to meal planning and enforces language
// mirroring and output shape.
const SystemPrompt = `You are NutriBot, a professional meal planner assistant.

LANGUAGE RULE (HIGHEST PRIORITY):
- If the user writes in English, reply in English.
- If the user writes in Indonesian, reply in Indonesian.
- Match the user's language exactly, including when refusing.

SCOPE RULES:
1. You only answer questions about:
   - Meal planning and diet
   - Nutrition and food health
   - Healthy recipes
   - Fitness, in a diet context only
2. For anything else (politics, history, general knowledge, coding, etc.):
   - Refuse politely in the user's language.
   - Redirect the conversation to meal planning.

Examples of a correct refusal:
- User (English): "What is the capital of France?"
  NutriBot: "Sorry, I'm NutriBot. I can only help you with diet and meal planning! 😊"
- User (Indonesian): "Siapa presiden Indonesia?"
  NutriBot: "Maaf, aku NutriBot. Aku hanya bisa bantu soal diet dan meal plan ya! 😊"

OUTPUT FORMAT:
- When the user asks for a number of meal ideas, answer with a numbered list (1. 2. 3.).
- When the user asks for a meal plan, use a day-labelled schedule:
**[Day] - [Meal Time]**
- Menu: [Food Name]
- Calories: [Amount] kcal
- Protein: [Amount] g`

// SummarizationSystemPrompt keeps the summary model faithful to the plan text.
const SummarizationSystemPrompt = `Kamu adalah auditor nutrisi yang teliti.
Tugasmu adalah merangkum meal plan yang DIBERIKAN, bukan mengarang atau menebak.

ATURAN:
1. HANYA gunakan informasi yang tertulis di teks input. JANGAN berhalusinasi.
2. Jika input hanya mencantumkan 1300 kalori, TULIS 1300 kalori. Jangan diubah jadi 2000.
3. Hitung ulang total kalori berdasarkan menu yang ada di teks jika perlu.
4. Identifikasi jika meal plan tersebut kurang dari target (misal: goal muscle gain tapi cuma dikasih 1500 kal, beri peringatan).`

// CalendarSystemPrompt frames the calendar extraction call.
const CalendarSystemPrompt = "Kamu adalah parser data JSON."

const (
	languageDirectiveID = "[PENTING: JAWAB DALAM BAHASA INDONESIA]\n\n"
	languageDirectiveEN = "[IMPORTANT: YOU MUST REPLY IN ENGLISH]\n\n"

	listDirectiveID = "[FORMAT: Gunakan nomor 1. 2. 3. 4. untuk setiap item. Contoh:\n" +
		"1. **Nasi Goreng** - Deskripsi singkat (350 kkal, 15g protein)\n" +
		"2. **Ayam Bakar** - Deskripsi singkat (400 kkal, 35g protein)]\n\n"
	listDirectiveEN = "[FORMAT: Use numbered list 1. 2. 3. 4. for each item. Example:\n" +
		"1. **Grilled Chicken** - Brief description (350 kcal, 35g protein)\n" +
		"2. **Salmon Bowl** - Brief description (400 kcal, 40g protein)]\n\n"
)

// Directives returns the prefix injected ahead of a user message: always a
// language directive, plus a list-format directive for list requests.
func Directives(lang domain.Language, listRequest bool) string {
	var b strings.Builder
	if lang == domain.LanguageIndonesian {
		b.WriteString(languageDirectiveID)
	} else {
		b.WriteString(languageDirectiveEN)
	}
	if listRequest {
		if lang == domain.LanguageIndonesian {
			b.WriteString(listDirectiveID)
		} else {
			b.WriteString(listDirectiveEN)
		}
	}
	return b.String()
}

// MealPlanPrompt renders the multi-day plan request. foodContext may be empty.
func MealPlanPrompt(profile domain.UserProfile, foodContext string) string {
	var b strings.Builder
	b.WriteString("Kamu adalah NutriBot, asisten meal planning yang ahli dan ramah.\n\n")
	b.WriteString("**Informasi User:**\n")
	fmt.Fprintf(&b, "- Umur: %s tahun\n", intOrNA(profile.Age))
	fmt.Fprintf(&b, "- Jenis Kelamin: %s\n", stringOrNA(string(profile.Gender)))
	fmt.Fprintf(&b, "- Tinggi: %s cm\n", floatOrNA(profile.HeightCM))
	fmt.Fprintf(&b, "- Berat: %s kg\n", floatOrNA(profile.WeightKG))
	fmt.Fprintf(&b, "- Tujuan: %s\n", stringOrNA(profile.Goal))
	fmt.Fprintf(&b, "- Aktivitas: %s\n", stringOrNA(string(profile.ActivityLevel)))
	if len(profile.Allergies) > 0 {
		fmt.Fprintf(&b, "- Alergi/Pantangan: %s\n", strings.Join(profile.Allergies, ", "))
	}
	if len(profile.Preferences) > 0 {
		fmt.Fprintf(&b, "- Preferensi: %s\n", strings.Join(profile.Preferences, ", "))
	}
	if strings.TrimSpace(foodContext) != "" {
		fmt.Fprintf(&b, "\n**Data Makanan yang Tersedia:**\n%s\n", foodContext)
	}

	days := profile.PlanDays()
	goal := strings.TrimSpace(profile.Goal)
	if goal == "" {
		goal = "kesehatan"
	}
	fmt.Fprintf(&b, `
**Tugas:**
Buatkan meal plan %d hari yang KOMPLIT dengan total kalori SESUAI target user (%s).

**WAJIB ADA 5 MAKANAN SETIAP HARI:**
1. Sarapan
2. Snack Pagi
3. Makan Siang
4. Snack Sore
5. Makan Malam

**Aturan Penting:**
1. JANGAN lewatkan Snack! Snack penting untuk mencapai target kalori.
2. Total kalori harian harus mendekati target (misal: Muscle Gain butuh surplus, Weight Loss butuh defisit).
3. Gunakan bahan makanan lokal Indonesia yang mudah didapat.
4. Sertakan angka kalori di sebelah setiap menu.

**Format Output:**
Gunakan format markdown tabel atau list yang rapi.
Hari 1:
- Sarapan: [Menu] ([Kalori] kkal)
- Snack Pagi: [Menu] ([Kalori] kkal)
- Makan Siang: [Menu] ([Kalori] kkal)
- Snack Sore: [Menu] ([Kalori] kkal)
- Makan Malam: [Menu] ([Kalori] kkal)
**Total Kalori Hari 1: [Total] kkal**

... dst untuk %d hari.
`, days, goal, days)
	return b.String()
}

// ProfileContext summarizes a profile for a chat turn's system prompt.
func ProfileContext(profile *domain.UserProfile) string {
	if profile == nil {
		return ""
	}
	var fields []string
	add := func(label, value string) {
		if value != "" && value != "N/A" {
			fields = append(fields, fmt.Sprintf("- %s: %s", label, value))
		}
	}
	add("Age", intOrNA(profile.Age))
	add("Gender", string(profile.Gender))
	add("Height (cm)", floatOrNA(profile.HeightCM))
	add("Weight (kg)", floatOrNA(profile.WeightKG))
	add("Goal", strings.TrimSpace(profile.Goal))
	add("Activity level", string(profile.ActivityLevel))
	add("Allergies", strings.Join(profile.Allergies, ", "))
	add("Preferences", strings.Join(profile.Preferences, ", "))
	if len(fields) == 0 {
		return ""
	}
	return "USER PROFILE:\n" + strings.Join(fields, "\n")
}

// SummaryPrompt asks for a factual audit of plan. targetCalories <= 0 means unknown.
func SummaryPrompt(plan string, profile *domain.UserProfile, targetCalories float64) string {
	prompt := `Analisis dan ringkas meal plan berikut secara FAKTUAL:

TEKS MEAL PLAN:
` + plan + `

TUGAS:
1. **Total Kalori & Makro**: Berapa estimasi total kalori harian BERDASARKAN TEKS DI ATAS SAJA? (Jangan nebak angka ideal, lihat menunya).
2. **Kualitas Menu**: Apakah porsi dan frekuensi makan (3x/5x) sudah cukup untuk goal user?
3. **Highlights**: Sebutkan 3 menu paling menarik.
4. **Verifikasi**: Apakah rencana ini masuk akal?

JAWAB DALAM BAHASA INDONESIA YANG SINGKAT (3-4 Paragraf).`

	if profile != nil {
		target := "Tidak diketahui"
		if targetCalories > 0 {
			target = strconv.FormatFloat(targetCalories, 'f', 0, 64) + " kkal"
		}
		prompt += fmt.Sprintf("\n\nKonteks User:\n- Goal: %s\n- Target Kalori Ideal: %s (Bandingkan dengan isi meal plan)",
			stringOrNA(profile.Goal), target)
	}
	return prompt
}

// CalendarPrompt asks for lunch and dinner per day as a JSON array.
func CalendarPrompt(plan string) string {
	return `Ekstrak menu makan siang (Lunch) dan makan malam (Dinner) dari teks meal plan berikut menjadi format JSON.

TEKS:
` + plan + `

TUGAS:
Ambil menu untuk 7 hari (atau sebanyak yang ada).
Ubah nama hari menjadi format pendek Inggris: Mon, Tue, Wed, Thu, Fri, Sat, Sun.
Ringkas nama menu jadi pendek (max 5 kata).

FORMAT OUTPUT JSON (HANYA JSON, TANPA TEXT LAIN):
[
  {"day": "Mon", "lunch": "Menu Siang", "dinner": "Menu Malam"},
  {"day": "Tue", "lunch": "...", "dinner": "..."}
]
`
}

func intOrNA(v int) string {
	if v <= 0 {
		return "N/A"
	}
	return strconv.Itoa(v)
}

func floatOrNA(v float64) string {
	if v <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stringOrNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
