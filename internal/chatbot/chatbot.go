// Package chatbot answers common patient questions with canned replies.
package chatbot

import "strings"

// Response is what the bot says, plus follow-up suggestions for the client UI.
type Response struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type topic struct {
	keywords    []string
	message     string
	suggestions []string
}

// topics are checked in order; the first whole-word keyword hit wins.
var topics = []topic{
	{
		keywords: []string{"emergency", "chest pain", "can't breathe", "cannot breathe", "unconscious", "bleeding heavily"},
		message:  "If this is a medical emergency, call your local emergency number or go to the nearest emergency department right away.",
	},
	{
		keywords:    []string{"cancel", "cancelled", "cancellation"},
		message:     "You can cancel a scheduled appointment from My Appointments. Cancelled slots are released immediately so others can book them.",
		suggestions: []string{"Book an appointment", "Reschedule an appointment"},
	},
	{
		keywords:    []string{"reschedule", "change my appointment", "move my appointment"},
		message:     "Open the appointment in My Appointments and pick a new free slot with the same doctor.",
		suggestions: []string{"Show available slots", "Cancel an appointment"},
	},
	{
		keywords:    []string{"book", "booking", "appointment", "appointments", "schedule", "slot", "slots"},
		message:     "To book, search for a doctor, choose a date to see the free slots, then confirm the time that suits you.",
		suggestions: []string{"Find a doctor", "Show specializations"},
	},
	{
		keywords:    []string{"specialist", "specialists", "specialization", "doctor", "doctors", "find"},
		message:     "You can search doctors by name, specialization or hospital, or browse the top-rated list.",
		suggestions: []string{"Show specializations", "Top-rated doctors"},
	},
	{
		keywords:    []string{"fee", "fees", "cost", "price", "pay", "payment"},
		message:     "Each doctor's consultation fee is shown on their profile and is fixed when you book.",
		suggestions: []string{"Find a doctor"},
	},
	{
		keywords:    []string{"prescription", "prescriptions", "record", "records", "visit", "visits", "report"},
		message:     "Your visit records and prescriptions appear under My Visits after the doctor completes the consultation.",
		suggestions: []string{"My visits"},
	},
	{
		keywords:    []string{"password", "login", "log in", "sign in", "account"},
		message:     "Sign in with your username or email. If you cannot access your account, contact support.",
		suggestions: []string{"Update my profile"},
	},
	{
		keywords:    []string{"online", "video", "telemedicine"},
		message:     "Many doctors offer online consultations. Choose ONLINE as the consultation type when you book.",
		suggestions: []string{"Book an appointment"},
	},
	{
		keywords:    []string{"thank", "thanks"},
		message:     "You're welcome! Is there anything else I can help with?",
	},
	{
		keywords:    []string{"hello", "hi", "hey", "good morning", "good evening"},
		message:     "Hello! How can I help you today?",
		suggestions: defaultSuggestions,
	},
}

var defaultSuggestions = []string{"Book an appointment", "Find a doctor", "Cancel an appointment", "My visits"}

// Greet is the opening message of a conversation.
func Greet() Response {
	return Response{
		Message:     "Hi, I'm the MediBook assistant. I can help you find a doctor, book or manage appointments and find your visit records.",
		Suggestions: defaultSuggestions,
	}
}

// Reply matches message against known topics. Unknown input gets a fallback.
func Reply(message string) Response {
	text := " " + normalize(message) + " "
	if strings.TrimSpace(text) == "" {
		return Greet()
	}
	for _, t := range topics {
		for _, k := range t.keywords {
			if strings.Contains(text, " "+k+" ") {
				return Response{Message: t.message, Suggestions: t.suggestions}
			}
		}
	}
	return Response{
		Message:     "Sorry, I didn't quite get that. For medical advice, please book a consultation with a doctor.",
		Suggestions: defaultSuggestions,
	}
}

// normalize lower-cases s and turns punctuation into spaces.
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}), " ")
}
