package domain

// Role of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message of a chat history.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Language of a user message.
type Language string

const (
	LanguageIndonesian Language = "id"
	LanguageEnglish    Language = "en"
)

// GenerationRequest is one chat turn to answer.
type GenerationRequest struct {
	Message       string
	Profile       *UserProfile
	History       []ConversationTurn
	ModelOverride string
}

// Weekday tokens accepted in a meal calendar.
type Weekday string

const (
	Mon Weekday = "Mon"
	Tue Weekday = "Tue"
	Wed Weekday = "Wed"
	Thu Weekday = "Thu"
	Fri Weekday = "Fri"
	Sat Weekday = "Sat"
	Sun Weekday = "Sun"
)

// Weekdays lists the calendar tokens in order.
var Weekdays = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

// Index returns the position of d in the week, or -1.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// CalendarEntry is the lunch and dinner of one day.
type CalendarEntry struct {
	Day    Weekday `json:"day"`
	Lunch  string  `json:"lunch"`
	Dinner string  `json:"dinner"`
}

// GenerationResult is the composite answer to one chat turn.
type GenerationResult struct {
	Reply            string            `json:"reply"`
	Model            string            `json:"model"`
	Language         Language          `json:"language"`
	NutritionSummary *NutritionSummary `json:"nutrition_summary,omitempty"`
	MealPlanSummary  string            `json:"meal_plan_summary,omitempty"`
	MealCalendar     []CalendarEntry   `json:"meal_calendar,omitempty"`
}
